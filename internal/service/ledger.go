package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jask/ledgergrid/internal/database"
	"github.com/jask/ledgergrid/internal/database/repository"
	"github.com/jask/ledgergrid/internal/grid"
	"github.com/jask/ledgergrid/internal/llm"
	"github.com/jask/ledgergrid/internal/taxonomy"
)

// Ledger is the sqlite-backed grid.Backend.
type Ledger struct {
	db           *sql.DB
	Transactions *repository.TransactionRepo
	Rules        *repository.FieldRuleRepo
	Provider     llm.Provider
	Taxonomy     *taxonomy.Taxonomy

	suggestions *cache.Cache
	log         *zap.Logger
	now         func() time.Time
}

var _ grid.Backend = (*Ledger)(nil)

// LedgerOptions configures NewLedger. Zero values pick defaults.
type LedgerOptions struct {
	Provider llm.Provider
	Taxonomy *taxonomy.Taxonomy
	CacheTTL time.Duration
	Logger   *zap.Logger
}

func NewLedger(db *sql.DB, opts LedgerOptions) *Ledger {
	if opts.Provider == nil {
		opts.Provider = llm.NewHeuristicProvider()
	}
	if opts.Taxonomy == nil {
		opts.Taxonomy = taxonomy.Default()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Ledger{
		db:           db,
		Transactions: repository.NewTransactionRepo(db),
		Rules:        repository.NewFieldRuleRepo(db),
		Provider:     opts.Provider,
		Taxonomy:     opts.Taxonomy,
		suggestions:  cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		log:          opts.Logger,
		now:          time.Now,
	}
}

// UpdateField writes one field and returns the recomputed confidence.
func (l *Ledger) UpdateField(ctx context.Context, txID string, field grid.Field, value string) (grid.UpdateResult, error) {
	col, val, err := columnValue(field, value)
	if err != nil {
		return grid.UpdateResult{}, err
	}
	var conf float64
	err = database.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		repo := l.Transactions.WithTx(tx)
		if err := repo.UpdateColumn(ctx, txID, col, val); err != nil {
			return err
		}
		var err error
		conf, err = l.refreshConfidence(ctx, repo, txID)
		if err != nil {
			return err
		}
		return l.learn(ctx, repository.NewFieldRuleRepo(tx), repo, txID, field, val)
	})
	if err != nil {
		return grid.UpdateResult{}, fmt.Errorf("update %s: %w", field, err)
	}
	l.suggestions.Flush()
	l.log.Debug("field updated", zap.String("tx", txID), zap.String("field", string(field)), zap.Float64("confidence", conf))
	return grid.UpdateResult{Confidence: &conf}, nil
}

// BulkUpdateFields applies every update in one transaction; nothing is written
// when any entry is invalid or targets a missing row.
func (l *Ledger) BulkUpdateFields(ctx context.Context, updates []grid.FieldUpdate) (grid.BulkResult, error) {
	type write struct {
		txID  string
		field grid.Field
		col   string
		val   any
	}
	writes := make([]write, 0, len(updates))
	for _, u := range updates {
		col, val, err := columnValue(u.Field, u.Value)
		if err != nil {
			return grid.BulkResult{}, err
		}
		writes = append(writes, write{txID: u.TxID, field: u.Field, col: col, val: val})
	}
	if len(writes) == 0 {
		return grid.BulkResult{}, nil
	}
	err := database.WithTx(ctx, l.db, func(tx *sql.Tx) error {
		repo := l.Transactions.WithTx(tx)
		rules := repository.NewFieldRuleRepo(tx)
		touched := map[string]struct{}{}
		for _, w := range writes {
			if err := repo.UpdateColumn(ctx, w.txID, w.col, w.val); err != nil {
				return err
			}
			touched[w.txID] = struct{}{}
		}
		for id := range touched {
			if _, err := l.refreshConfidence(ctx, repo, id); err != nil {
				return err
			}
		}
		// one rule per field, learned from the first row
		learned := map[grid.Field]bool{}
		for _, w := range writes {
			if learned[w.field] {
				continue
			}
			learned[w.field] = true
			if err := l.learn(ctx, rules, repo, w.txID, w.field, w.val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return grid.BulkResult{}, fmt.Errorf("bulk update: %w", err)
	}
	l.suggestions.Flush()
	l.log.Info("bulk update", zap.Int("updates", len(writes)))
	return grid.BulkResult{Updated: len(writes)}, nil
}

func (l *Ledger) refreshConfidence(ctx context.Context, repo *repository.TransactionRepo, txID string) (float64, error) {
	t, err := repo.Get(ctx, txID)
	if err != nil {
		return 0, err
	}
	if t == nil {
		return 0, fmt.Errorf("transaction %s: %w", txID, repository.ErrNotFound)
	}
	conf := deriveConfidence(*t)
	return conf, repo.SetConfidence(ctx, txID, conf)
}

// learn remembers classification choices keyed by the normalised description.
func (l *Ledger) learn(ctx context.Context, rules *repository.FieldRuleRepo, repo *repository.TransactionRepo, txID string, field grid.Field, val any) error {
	if !learnable(field) {
		return nil
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := repo.Get(ctx, txID)
	if err != nil || t == nil {
		return err
	}
	pattern := normalizeDescription(t.Description)
	if pattern == "" {
		return nil
	}
	return rules.Upsert(ctx, repository.FieldRule{
		ID:          uuid.NewString(),
		Pattern:     pattern,
		PatternType: "exact",
		Field:       string(field),
		Value:       s,
		Confidence:  0.9,
		Source:      "user",
	})
}

func learnable(f grid.Field) bool {
	switch f {
	case grid.FieldClassifiedEntity, grid.FieldAccountingCategory, grid.FieldSubcategory:
		return true
	}
	return false
}

// ArchiveTransactions hides ids from default listings.
func (l *Ledger) ArchiveTransactions(ctx context.Context, ids []string) (int, error) {
	n, err := l.Transactions.Archive(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("archive: %w", err)
	}
	l.suggestions.Flush()
	return n, nil
}

// ReloadRows returns one page of rows for q. Pages past the end clamp to the last page.
func (l *Ledger) ReloadRows(ctx context.Context, q grid.Query) (grid.Page, error) {
	f, err := filtersFor(q)
	if err != nil {
		return grid.Page{}, err
	}
	total, err := l.Transactions.Count(ctx, f)
	if err != nil {
		return grid.Page{}, fmt.Errorf("count transactions: %w", err)
	}
	size := q.PageSize
	if size <= 0 {
		size = 50
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	f.Limit = size
	f.Offset = (page - 1) * size
	rows, err := l.Transactions.List(ctx, f)
	if err != nil {
		return grid.Page{}, fmt.Errorf("list transactions: %w", err)
	}
	out := grid.Page{
		Records:    make([]grid.Record, 0, len(rows)),
		Pagination: grid.Pagination{Page: page, PageSize: size, Total: total, TotalPages: pages},
	}
	for _, t := range rows {
		out.Records = append(out.Records, toRecord(t))
	}
	return out, nil
}

// FetchSummary aggregates every row matching q, not just the current page.
func (l *Ledger) FetchSummary(ctx context.Context, q grid.Query) (grid.Summary, error) {
	f, err := filtersFor(q)
	if err != nil {
		return grid.Summary{}, err
	}
	s, err := l.Transactions.Summarize(ctx, f)
	if err != nil {
		return grid.Summary{}, fmt.Errorf("summarize: %w", err)
	}
	return grid.Summary{
		Count:       s.Count,
		NetAmount:   float64(s.NetCents) / 100,
		NeedsReview: s.NeedsReview,
		Archived:    s.Archived,
		RefreshedAt: l.now(),
	}, nil
}

func filtersFor(q grid.Query) (repository.TransactionFilters, error) {
	f := repository.TransactionFilters{Search: q.Search, IncludeArchived: q.IncludeArchived}
	for field, v := range q.Filters {
		col, val, err := columnValue(field, v)
		if err != nil {
			return f, fmt.Errorf("filter: %w", err)
		}
		s, ok := val.(string)
		if !ok {
			return f, fmt.Errorf("filter on %s: %w: only text fields can be filtered", field, ErrInvalidValue)
		}
		if f.Equals == nil {
			f.Equals = map[string]string{}
		}
		f.Equals[col] = s
	}
	return f, nil
}
