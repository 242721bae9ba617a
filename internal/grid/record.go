package grid

import "time"

// Record is one loaded transaction row.
type Record struct {
	ID         string
	Values     map[Field]string
	Confidence float64
}

// Value returns the stored value of f, or the placeholder.
func (r Record) Value(f Field) string {
	if r.Values == nil {
		return Placeholder
	}
	v, ok := r.Values[f]
	if !ok {
		return Placeholder
	}
	return v
}

// Clone copies the record so registry rows are never shared with callers.
func (r Record) Clone() Record {
	out := Record{ID: r.ID, Confidence: r.Confidence, Values: make(map[Field]string, len(r.Values))}
	for k, v := range r.Values {
		out.Values[k] = v
	}
	return out
}

// Query is passed through to ReloadRows untouched.
type Query struct {
	Page            int
	PageSize        int
	Search          string
	Filters         map[Field]string
	IncludeArchived bool
}

// Pagination is the page metadata returned with a reload.
type Pagination struct {
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// Page is a ReloadRows response.
type Page struct {
	Records    []Record
	Pagination Pagination
}

// Summary holds the statistics shown above the grid.
type Summary struct {
	Count       int
	NetAmount   float64
	NeedsReview int
	Archived    int
	RefreshedAt time.Time
}

// FieldUpdate is one entry of a bulk update.
type FieldUpdate struct {
	TxID  string
	Field Field
	Value string
}

// UpdateResult is the single update response. Confidence is set when the
// backend recomputed the derived confidence score.
type UpdateResult struct {
	Confidence *float64
}

// BulkResult is the bulk update response.
type BulkResult struct {
	Updated int
}

// SuggestionKind selects what the suggestion backend is asked for.
type SuggestionKind string

const (
	SuggestAll            SuggestionKind = "all"
	SuggestClassification SuggestionKind = "classification"
)

// Suggestion is one AI-proposed field value.
type Suggestion struct {
	Field          Field
	CurrentValue   string
	SuggestedValue string
	Rationale      string
	Confidence     float64
}
