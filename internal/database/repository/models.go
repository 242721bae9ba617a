package repository

import "time"

// Transaction represents a transaction row. Nil classification columns are unset.
type Transaction struct {
	ID                 string
	Date               time.Time
	Description        string
	AmountCents        int64
	Currency           string
	ClassifiedEntity   *string
	AccountingCategory *string
	Subcategory        *string
	Origin             *string
	Destination        *string
	Justification      *string
	Confidence         float64
	Archived           bool
	SourceHash         *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FieldRule maps a description pattern to a value for one column.
type FieldRule struct {
	ID          string
	Pattern     string
	PatternType string
	Field       string
	Value       string
	Confidence  float64
	Source      string
	CreatedAt   time.Time
}

// TransactionSummary aggregates the rows matching a filter.
type TransactionSummary struct {
	Count       int
	NetCents    int64
	NeedsReview int
	Archived    int
}
