package service

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jask/ledgergrid/internal/database/repository"
	"github.com/jask/ledgergrid/internal/grid"
)

// ErrInvalidValue is returned when a field value cannot be stored.
var ErrInvalidValue = errors.New("invalid value")

// DateLayout is the wire format of the date field.
const DateLayout = time.DateOnly

// column maps an editable grid field to its storage column.
func column(f grid.Field) (string, error) {
	if !f.Editable() {
		return "", fmt.Errorf("%s: %w: field is read-only", f, ErrInvalidValue)
	}
	if f == grid.FieldAmount {
		return "amount_cents", nil
	}
	return string(f), nil
}

// columnValue converts a grid value into the column and SQL value to write.
// Placeholders clear optional columns.
func columnValue(f grid.Field, value string) (string, any, error) {
	col, err := column(f)
	if err != nil {
		return "", nil, err
	}
	value = grid.Sanitize(value)
	switch f {
	case grid.FieldDate:
		d, err := time.Parse(DateLayout, value)
		if err != nil {
			return "", nil, fmt.Errorf("date %q: %w: want YYYY-MM-DD", value, ErrInvalidValue)
		}
		return col, d.UTC(), nil
	case grid.FieldAmount:
		cents, err := dollarsToCents(value)
		if err != nil {
			return "", nil, fmt.Errorf("amount %q: %w", value, ErrInvalidValue)
		}
		return col, cents, nil
	case grid.FieldDescription:
		if grid.IsPlaceholder(value) {
			return "", nil, fmt.Errorf("description: %w: required", ErrInvalidValue)
		}
		return col, value, nil
	case grid.FieldCurrency:
		if grid.IsPlaceholder(value) {
			return "", nil, fmt.Errorf("currency: %w: required", ErrInvalidValue)
		}
		return col, strings.ToUpper(value), nil
	}
	if grid.IsPlaceholder(value) {
		return col, nil, nil
	}
	return col, value, nil
}

// toRecord renders a stored row the way the grid displays it.
func toRecord(t repository.Transaction) grid.Record {
	opt := func(p *string) string {
		if p == nil || grid.IsPlaceholder(*p) {
			return grid.Placeholder
		}
		return *p
	}
	return grid.Record{
		ID:         t.ID,
		Confidence: t.Confidence,
		Values: map[grid.Field]string{
			grid.FieldDate:               t.Date.UTC().Format(DateLayout),
			grid.FieldDescription:        t.Description,
			grid.FieldAmount:             formatCents(t.AmountCents),
			grid.FieldCurrency:           t.Currency,
			grid.FieldClassifiedEntity:   opt(t.ClassifiedEntity),
			grid.FieldAccountingCategory: opt(t.AccountingCategory),
			grid.FieldSubcategory:        opt(t.Subcategory),
			grid.FieldOrigin:             opt(t.Origin),
			grid.FieldDestination:        opt(t.Destination),
			grid.FieldJustification:      opt(t.Justification),
			grid.FieldConfidence:         strconv.FormatFloat(t.Confidence, 'f', 2, 64),
		},
	}
}

// deriveConfidence scores how completely a row is classified. Each
// classification column contributes its weight when set.
func deriveConfidence(t repository.Transaction) float64 {
	score := 0.1
	if t.ClassifiedEntity != nil {
		score += 0.3
	}
	if t.AccountingCategory != nil {
		score += 0.3
	}
	if t.Subcategory != nil {
		score += 0.1
	}
	if t.Justification != nil {
		score += 0.1
	}
	if t.Origin != nil || t.Destination != nil {
		score += 0.1
	}
	return math.Round(math.Min(score, 1)*100) / 100
}

func dollarsToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimPrefix(s, "$")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return int64(math.Round(f * 100)), nil
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

var digitsRe = regexp.MustCompile(`[0-9]+`)

// normalizeDescription drops reference numbers and case so recurring payments compare equal.
func normalizeDescription(s string) string {
	s = digitsRe.ReplaceAllString(strings.ToUpper(s), " ")
	return strings.Join(strings.Fields(s), " ")
}
