package grid

import "context"

// Backend is the data service the grid talks to. A failed request is reported as a
// non-nil error; the grid never retries.
type Backend interface {
	UpdateField(ctx context.Context, txID string, field Field, value string) (UpdateResult, error)
	BulkUpdateFields(ctx context.Context, updates []FieldUpdate) (BulkResult, error)
	FetchSuggestions(ctx context.Context, txID string, kind SuggestionKind, hints map[string]string) ([]Suggestion, error)
	FetchSimilarByFields(ctx context.Context, txID string, applied map[Field]string) ([]Record, error)
	ArchiveTransactions(ctx context.Context, ids []string) (int, error)
	ReloadRows(ctx context.Context, q Query) (Page, error)
	FetchSummary(ctx context.Context, q Query) (Summary, error)
}
