package grid

// Response messages. Each is produced by a command returned from this package and
// must be fed back through Grid.Update.

type FieldCommittedMsg struct {
	Cell   Cell
	Value  string
	Result UpdateResult
	Err    error
}

type BulkCommittedMsg struct {
	Cell  Cell
	IDs   []string
	Value string
	Err   error
}

type DragFillAppliedMsg struct {
	Field Field
	Value string
	IDs   []string
	Err   error
}

type RowsLoadedMsg struct {
	Seq  uint64
	Page Page
	Err  error
}

type SummaryMsg struct {
	Summary Summary
	Err     error
}

type ArchivedMsg struct {
	IDs   []string
	Count int
	Err   error
}

type BulkEditedMsg struct {
	Field Field
	Value string
	IDs   []string
	Err   error
}

type SuggestionsMsg struct {
	Token       Token
	TxID        string
	Suggestions []Suggestion
	Err         error
}

type SuggestionsAppliedMsg struct {
	Token    Token
	TxID     string
	Outcomes []FieldOutcome
}

type SimilarFoundMsg struct {
	Token      Token
	TxID       string
	Applied    map[Field]string
	Candidates []Record
	Err        error
}

type SimilarAppliedMsg struct {
	Token    Token
	IDs      []string
	Outcomes []FieldOutcome
}

// FieldOutcome reports one write of a multi-step apply.
type FieldOutcome struct {
	Field      Field
	Value      string
	Confidence *float64
	Err        error
}
