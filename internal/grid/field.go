package grid

import (
	"strings"
	"unicode"
)

// Field names a column of a transaction record.
type Field string

const (
	FieldDate               Field = "date"
	FieldDescription        Field = "description"
	FieldAmount             Field = "amount"
	FieldCurrency           Field = "currency"
	FieldClassifiedEntity   Field = "classified_entity"
	FieldAccountingCategory Field = "accounting_category"
	FieldSubcategory        Field = "subcategory"
	FieldOrigin             Field = "origin"
	FieldDestination        Field = "destination"
	FieldJustification      Field = "justification"
	FieldConfidence         Field = "confidence"
)

// Placeholder is the canonical "no value" marker the backend stores for empty fields.
const Placeholder = "N/A"

// Columns is the rendered column order.
var Columns = []Field{
	FieldDate,
	FieldDescription,
	FieldAmount,
	FieldCurrency,
	FieldClassifiedEntity,
	FieldAccountingCategory,
	FieldSubcategory,
	FieldOrigin,
	FieldDestination,
	FieldJustification,
	FieldConfidence,
}

// EditMode is the kind of control a cell opens with.
type EditMode int

const (
	ModeText EditMode = iota
	ModeDropdown
	ModeCustomEntry
)

func (m EditMode) String() string {
	switch m {
	case ModeDropdown:
		return "dropdown"
	case ModeCustomEntry:
		return "custom-entry"
	default:
		return "text"
	}
}

// Title is the column header.
func (f Field) Title() string {
	switch f {
	case FieldClassifiedEntity:
		return "Entity"
	case FieldAccountingCategory:
		return "Category"
	case FieldSubcategory:
		return "Subcategory"
	case FieldConfidence:
		return "Conf"
	}
	s := string(f)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Editable reports whether users may edit the field in place.
func (f Field) Editable() bool {
	return f != FieldConfidence && f != ""
}

// Enumerable reports whether the field edits through a dropdown of known options.
func (f Field) Enumerable() bool {
	switch f {
	case FieldCurrency, FieldClassifiedEntity, FieldAccountingCategory, FieldSubcategory:
		return true
	}
	return false
}

// Wallet reports whether the field holds a wallet address that renders abbreviated.
func (f Field) Wallet() bool {
	return f == FieldOrigin || f == FieldDestination
}

// TriggersSimilar reports whether committing the field starts a find-similar follow-up.
func (f Field) TriggersSimilar() bool {
	switch f {
	case FieldDescription, FieldClassifiedEntity, FieldAccountingCategory, FieldSubcategory:
		return true
	}
	return false
}

// IsPlaceholder reports whether v means "no value".
func IsPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, Placeholder)
}

// Sanitize trims input and drops control characters.
func Sanitize(v string) string {
	v = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, v)
	return strings.TrimSpace(v)
}

// Display renders a stored value for a grid cell.
func Display(f Field, v string) string {
	if IsPlaceholder(v) {
		return Placeholder
	}
	if f.Wallet() {
		return AbbreviateWallet(v)
	}
	return v
}

// AbbreviateWallet shortens long wallet addresses to head…tail.
func AbbreviateWallet(v string) string {
	r := []rune(v)
	if len(r) <= 14 {
		return v
	}
	return string(r[:6]) + "…" + string(r[len(r)-4:])
}
