package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/ledgergrid/internal/database"
	"github.com/jask/ledgergrid/internal/database/repository"
	"github.com/jask/ledgergrid/internal/grid"
	"github.com/jask/ledgergrid/internal/llm"
)

type stubProvider struct {
	calls int
	last  llm.SuggestRequest
	resp  llm.SuggestResponse
	err   error
}

func (p *stubProvider) SuggestFields(_ context.Context, req llm.SuggestRequest) (llm.SuggestResponse, error) {
	p.calls++
	p.last = req
	return p.resp, p.err
}

func str(s string) *string { return &s }

func newLedger(t *testing.T, p llm.Provider) (*Ledger, *sql.DB) {
	t.Helper()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewLedger(db, LedgerOptions{Provider: p}), db
}

func insert(t *testing.T, l *Ledger, id, desc string, day int, cents int64, mod func(*repository.Transaction)) {
	t.Helper()
	tx := repository.Transaction{
		ID:          id,
		Date:        time.Date(2026, 4, day, 0, 0, 0, 0, time.UTC),
		Description: desc,
		AmountCents: cents,
		Currency:    "USD",
	}
	if mod != nil {
		mod(&tx)
	}
	tx.Confidence = deriveConfidence(tx)
	require.NoError(t, l.Transactions.Insert(context.Background(), tx))
}

func TestUpdateFieldRecomputesConfidence(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, &stubProvider{})
	insert(t, l, "tx1", "UBER TRIP 1001", 1, -1250, nil)

	res, err := l.UpdateField(ctx, "tx1", grid.FieldClassifiedEntity, "Uber")
	require.NoError(t, err)
	require.NotNil(t, res.Confidence)
	require.InDelta(t, 0.4, *res.Confidence, 1e-9)

	got, err := l.Transactions.Get(ctx, "tx1")
	require.NoError(t, err)
	require.Equal(t, "Uber", *got.ClassifiedEntity)
	require.InDelta(t, 0.4, got.Confidence, 1e-9)

	res, err = l.UpdateField(ctx, "tx1", grid.FieldClassifiedEntity, grid.Placeholder)
	require.NoError(t, err)
	require.InDelta(t, 0.1, *res.Confidence, 1e-9)
	got, err = l.Transactions.Get(ctx, "tx1")
	require.NoError(t, err)
	require.Nil(t, got.ClassifiedEntity)
}

func TestUpdateFieldConvertsValues(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, &stubProvider{})
	insert(t, l, "tx1", "COFFEE", 1, -450, nil)

	_, err := l.UpdateField(ctx, "tx1", grid.FieldAmount, "-1,234.5")
	require.NoError(t, err)
	_, err = l.UpdateField(ctx, "tx1", grid.FieldDate, "2026-05-02")
	require.NoError(t, err)
	_, err = l.UpdateField(ctx, "tx1", grid.FieldCurrency, "eur")
	require.NoError(t, err)

	got, err := l.Transactions.Get(ctx, "tx1")
	require.NoError(t, err)
	rec := toRecord(*got)
	require.Equal(t, "-1234.50", rec.Value(grid.FieldAmount))
	require.Equal(t, "2026-05-02", rec.Value(grid.FieldDate))
	require.Equal(t, "EUR", rec.Value(grid.FieldCurrency))
}

func TestUpdateFieldRejectsInvalidValues(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, &stubProvider{})
	insert(t, l, "tx1", "COFFEE", 1, -450, nil)

	for _, tc := range []struct {
		field grid.Field
		value string
	}{
		{grid.FieldDate, "02/05/2026"},
		{grid.FieldAmount, "lots"},
		{grid.FieldDescription, grid.Placeholder},
		{grid.FieldConfidence, "0.9"},
	} {
		_, err := l.UpdateField(ctx, "tx1", tc.field, tc.value)
		require.ErrorIs(t, err, ErrInvalidValue, "%s=%q", tc.field, tc.value)
	}

	_, err := l.UpdateField(ctx, "missing", grid.FieldClassifiedEntity, "Acme")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBulkUpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, &stubProvider{})
	insert(t, l, "tx1", "DELTA AIR 1", 1, -100, nil)
	insert(t, l, "tx2", "DELTA AIR 2", 2, -200, nil)

	_, err := l.BulkUpdateFields(ctx, []grid.FieldUpdate{
		{TxID: "tx1", Field: grid.FieldClassifiedEntity, Value: "Delta LLC"},
		{TxID: "gone", Field: grid.FieldClassifiedEntity, Value: "Delta LLC"},
	})
	require.ErrorIs(t, err, repository.ErrNotFound)
	got, err := l.Transactions.Get(ctx, "tx1")
	require.NoError(t, err)
	require.Nil(t, got.ClassifiedEntity, "rolled back")

	res, err := l.BulkUpdateFields(ctx, []grid.FieldUpdate{
		{TxID: "tx1", Field: grid.FieldClassifiedEntity, Value: "Delta LLC"},
		{TxID: "tx2", Field: grid.FieldClassifiedEntity, Value: "Delta LLC"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Updated)
	for _, id := range []string{"tx1", "tx2"} {
		got, err := l.Transactions.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, "Delta LLC", *got.ClassifiedEntity)
		require.InDelta(t, 0.4, got.Confidence, 1e-9)
	}

	_, err = l.BulkUpdateFields(ctx, []grid.FieldUpdate{{TxID: "tx1", Field: grid.FieldAmount, Value: "x"}})
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestLearnedRulesTakePrecedence(t *testing.T) {
	ctx := context.Background()
	p := &stubProvider{resp: llm.SuggestResponse{Suggestions: []llm.FieldSuggestion{
		{Field: "classified_entity", Value: "Someone Else", Confidence: 0.6},
		{Field: "accounting_category", Value: "Travel", Confidence: 0.7, Rationale: "ride"},
	}}}
	l, _ := newLedger(t, p)
	insert(t, l, "tx1", "UBER TRIP 1001", 1, -1250, nil)
	insert(t, l, "tx2", "UBER TRIP 2002", 2, -900, nil)

	_, err := l.UpdateField(ctx, "tx1", grid.FieldClassifiedEntity, "Uber")
	require.NoError(t, err)

	got, err := l.FetchSuggestions(ctx, "tx2", grid.SuggestClassification, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, grid.FieldClassifiedEntity, got[0].Field)
	require.Equal(t, "Uber", got[0].SuggestedValue)
	require.Equal(t, grid.Placeholder, got[0].CurrentValue)
	require.InDelta(t, 0.9, got[0].Confidence, 1e-9)
	require.Equal(t, grid.FieldAccountingCategory, got[1].Field)
	require.Equal(t, "Travel", got[1].SuggestedValue)

	require.Contains(t, p.last.KnownEntities, "Uber")
	require.Equal(t, []string{"classified_entity", "accounting_category", "subcategory"}, p.last.Fields)
	require.NotEmpty(t, p.last.SimilarPastTransactions)
	require.Equal(t, "Uber", p.last.SimilarPastTransactions[0].Entity)
}

func TestFetchSuggestionsProviderFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("provider down")
	p := &stubProvider{err: boom}
	l, _ := newLedger(t, p)
	insert(t, l, "tx1", "UBER TRIP 1001", 1, -1250, nil)
	insert(t, l, "tx2", "UBER TRIP 2002", 2, -900, nil)

	_, err := l.FetchSuggestions(ctx, "tx2", grid.SuggestAll, nil)
	require.ErrorIs(t, err, boom)

	_, err = l.UpdateField(ctx, "tx1", grid.FieldAccountingCategory, "Travel")
	require.NoError(t, err)
	got, err := l.FetchSuggestions(ctx, "tx2", grid.SuggestAll, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Travel", got[0].SuggestedValue)

	_, err = l.FetchSuggestions(ctx, "nope", grid.SuggestAll, nil)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = l.FetchSuggestions(ctx, "tx2", grid.SuggestionKind("weird"), nil)
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestFetchSuggestionsCachedUntilWrite(t *testing.T) {
	ctx := context.Background()
	p := &stubProvider{resp: llm.SuggestResponse{Suggestions: []llm.FieldSuggestion{
		{Field: "justification", Value: "Team lunch", Confidence: 0.5},
		{Field: "origin", Value: "not requested", Confidence: 0.5},
	}}}
	l, _ := newLedger(t, p)
	insert(t, l, "tx1", "CAFE", 1, -2000, nil)

	got, err := l.FetchSuggestions(ctx, "tx1", grid.SuggestAll, map[string]string{"origin": "Checking"})
	require.NoError(t, err)
	require.Len(t, got, 1, "unrequested fields dropped")
	require.Equal(t, grid.FieldJustification, got[0].Field)
	require.Equal(t, "Checking", p.last.Transaction.Current["origin"])

	_, err = l.FetchSuggestions(ctx, "tx1", grid.SuggestAll, nil)
	require.NoError(t, err)
	require.Equal(t, 1, p.calls)

	_, err = l.UpdateField(ctx, "tx1", grid.FieldOrigin, "Checking")
	require.NoError(t, err)
	_, err = l.FetchSuggestions(ctx, "tx1", grid.SuggestAll, nil)
	require.NoError(t, err)
	require.Equal(t, 2, p.calls)
}

func TestFetchSimilarByFields(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, &stubProvider{})
	insert(t, l, "src", "UBER TRIP 1001", 1, -1250, nil)
	insert(t, l, "same", "UBER TRIP 2002", 2, -900, nil)
	insert(t, l, "done", "UBER TRIP 3003", 3, -700, func(tx *repository.Transaction) {
		tx.ClassifiedEntity = str("Uber")
	})
	insert(t, l, "other", "SAFEWAY STORE 22", 4, -5000, nil)
	insert(t, l, "archived", "UBER TRIP 4004", 5, -800, nil)
	_, err := l.ArchiveTransactions(ctx, []string{"archived"})
	require.NoError(t, err)

	got, err := l.FetchSimilarByFields(ctx, "src", map[grid.Field]string{grid.FieldClassifiedEntity: "Uber"})
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	require.Equal(t, []string{"same"}, ids)

	_, err = l.FetchSimilarByFields(ctx, "missing", nil)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDescriptionSimilarityCountsRunes(t *testing.T) {
	require.InDelta(t, 0.75, descriptionSimilarity("Café", "Cafe"), 1e-9)
	require.InDelta(t, 0, descriptionSimilarity("ÉÉÉÉ", "EEEE"), 1e-9)
	require.InDelta(t, 1, descriptionSimilarity("Ünïcode 12", "ÜNÏCODE 99"), 1e-9)
}

func TestReloadRowsClampsPage(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, &stubProvider{})
	for i := 1; i <= 5; i++ {
		insert(t, l, string(rune('a'+i-1)), "ROW", i, int64(-100*i), nil)
	}

	page, err := l.ReloadRows(ctx, grid.Query{Page: 9, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, grid.Pagination{Page: 3, PageSize: 2, Total: 5, TotalPages: 3}, page.Pagination)
	require.Len(t, page.Records, 1)
	require.Equal(t, "a", page.Records[0].ID)

	page, err = l.ReloadRows(ctx, grid.Query{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Pagination.Page)
	require.Equal(t, 50, page.Pagination.PageSize)
	require.Equal(t, "e", page.Records[0].ID)
	require.Equal(t, grid.Placeholder, page.Records[0].Value(grid.FieldClassifiedEntity))
}

func TestReloadRowsFilters(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, &stubProvider{})
	insert(t, l, "tx1", "UBER", 1, -100, func(tx *repository.Transaction) { tx.AccountingCategory = str("Travel") })
	insert(t, l, "tx2", "LUNCH", 2, -200, func(tx *repository.Transaction) { tx.AccountingCategory = str("Meals") })

	page, err := l.ReloadRows(ctx, grid.Query{Filters: map[grid.Field]string{grid.FieldAccountingCategory: "Meals"}})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	require.Equal(t, "tx2", page.Records[0].ID)

	_, err = l.ReloadRows(ctx, grid.Query{Filters: map[grid.Field]string{grid.FieldAmount: "1"}})
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestFetchSummaryAndArchive(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t, &stubProvider{})
	fixed := time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	insert(t, l, "tx1", "UBER", 1, -1000, func(tx *repository.Transaction) {
		tx.ClassifiedEntity = str("Uber")
		tx.AccountingCategory = str("Travel")
	})
	insert(t, l, "tx2", "PAYCHECK", 2, 250000, nil)
	insert(t, l, "tx3", "LUNCH", 3, -1500, nil)

	n, err := l.ArchiveTransactions(ctx, []string{"tx3", "missing"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	s, err := l.FetchSummary(ctx, grid.Query{})
	require.NoError(t, err)
	require.Equal(t, grid.Summary{Count: 2, NetAmount: 2490, NeedsReview: 1, Archived: 1, RefreshedAt: fixed}, s)
}
