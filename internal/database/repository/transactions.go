package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Columns that may be written one at a time through UpdateColumn.
var editableColumns = map[string]struct{}{
	"date":                {},
	"description":         {},
	"amount_cents":        {},
	"currency":            {},
	"classified_entity":   {},
	"accounting_category": {},
	"subcategory":         {},
	"origin":              {},
	"destination":         {},
	"justification":       {},
}

// IsEditableColumn reports whether col can be written by UpdateColumn.
func IsEditableColumn(col string) bool {
	_, ok := editableColumns[col]
	return ok
}

// ReviewThreshold is the confidence below which a row counts as needing review.
const ReviewThreshold = 0.5

// TransactionFilters defines list filters.
type TransactionFilters struct {
	Search          string
	Equals          map[string]string // column -> exact value
	IncludeArchived bool
	Limit           int
	Offset          int
}

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo { return &TransactionRepo{db: db} }

// WithTx returns a repo bound to tx.
func (r *TransactionRepo) WithTx(tx *sql.Tx) *TransactionRepo { return &TransactionRepo{db: tx} }

const transactionColumns = `id, date, description, amount_cents, currency, classified_entity, accounting_category,
 subcategory, origin, destination, justification, confidence, archived, source_hash, created_at, updated_at`

func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) error {
	if t.Currency == "" {
		t.Currency = "USD"
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transactions(
	 id, date, description, amount_cents, currency, classified_entity, accounting_category,
	 subcategory, origin, destination, justification, confidence, archived, source_hash, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP);
	`,
		t.ID, t.Date, t.Description, t.AmountCents, t.Currency,
		nullable(t.ClassifiedEntity), nullable(t.AccountingCategory), nullable(t.Subcategory),
		nullable(t.Origin), nullable(t.Destination), nullable(t.Justification),
		t.Confidence, t.Archived, nullable(t.SourceHash))
	return err
}

// UpdateColumn writes one column of one row. A nil value clears the column.
func (r *TransactionRepo) UpdateColumn(ctx context.Context, id, col string, value any) error {
	if !IsEditableColumn(col) {
		return fmt.Errorf("column %q is not editable", col)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET `+col+` = ?, updated_at=CURRENT_TIMESTAMP WHERE id = ?`, value, id)
	if err != nil {
		return err
	}
	return expectRow(res, id)
}

func (r *TransactionRepo) SetConfidence(ctx context.Context, id string, confidence float64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET confidence = ? WHERE id = ?`, confidence, id)
	return err
}

// Archive flags ids as archived and returns how many rows changed.
func (r *TransactionRepo) Archive(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET archived = 1, updated_at=CURRENT_TIMESTAMP WHERE archived = 0 AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *TransactionRepo) Get(ctx context.Context, id string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilters) ([]Transaction, error) {
	where, args, err := buildWhere(f)
	if err != nil {
		return nil, err
	}
	query := "SELECT " + transactionColumns + " FROM transactions" + where + " ORDER BY date DESC, created_at DESC, id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Count returns how many rows match f, ignoring Limit and Offset.
func (r *TransactionRepo) Count(ctx context.Context, f TransactionFilters) (int, error) {
	where, args, err := buildWhere(f)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&n)
	return n, err
}

// Summarize aggregates rows matching f. Archived is always the total archived count.
func (r *TransactionRepo) Summarize(ctx context.Context, f TransactionFilters) (TransactionSummary, error) {
	where, args, err := buildWhere(f)
	if err != nil {
		return TransactionSummary{}, err
	}
	var s TransactionSummary
	args = append([]any{ReviewThreshold}, args...)
	row := r.db.QueryRowContext(ctx, `
	SELECT COUNT(*),
	 COALESCE(SUM(amount_cents), 0),
	 COALESCE(SUM(CASE WHEN classified_entity IS NULL OR accounting_category IS NULL OR confidence < ? THEN 1 ELSE 0 END), 0)
	FROM transactions`+where, args...)
	if err := row.Scan(&s.Count, &s.NetCents, &s.NeedsReview); err != nil {
		return TransactionSummary{}, err
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE archived = 1`).Scan(&s.Archived); err != nil {
		return TransactionSummary{}, err
	}
	return s, nil
}

// Candidates returns unarchived rows other than excludeID, newest first.
func (r *TransactionRepo) Candidates(ctx context.Context, excludeID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
	WHERE archived = 0 AND id != ? ORDER BY date DESC LIMIT ?`, excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DistinctValues lists the distinct non-null values of col, most used first.
func (r *TransactionRepo) DistinctValues(ctx context.Context, col string, limit int) ([]string, error) {
	if !IsEditableColumn(col) {
		return nil, fmt.Errorf("column %q is not editable", col)
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+col+` FROM transactions WHERE `+col+` IS NOT NULL
	GROUP BY `+col+` ORDER BY COUNT(*) DESC, `+col+` LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func buildWhere(f TransactionFilters) (string, []any, error) {
	var where []string
	var args []any
	if !f.IncludeArchived {
		where = append(where, "archived = 0")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(description LIKE ? OR classified_entity LIKE ? OR justification LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like, like)
	}
	for col, v := range f.Equals {
		if !IsEditableColumn(col) {
			return "", nil, fmt.Errorf("cannot filter on %q", col)
		}
		where = append(where, col+" = ?")
		args = append(args, v)
	}
	if len(where) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(where, " AND "), args, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanTransaction(row scanner) (Transaction, error) {
	var t Transaction
	var entity, category, sub, origin, dest, just, source sql.NullString
	if err := row.Scan(&t.ID, &t.Date, &t.Description, &t.AmountCents, &t.Currency,
		&entity, &category, &sub, &origin, &dest, &just,
		&t.Confidence, &t.Archived, &source, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transaction{}, err
	}
	t.ClassifiedEntity = ptr(entity)
	t.AccountingCategory = ptr(category)
	t.Subcategory = ptr(sub)
	t.Origin = ptr(origin)
	t.Destination = ptr(dest)
	t.Justification = ptr(just)
	t.SourceHash = ptr(source)
	return t, nil
}
