package grid

import "strconv"

// Registry is the in-memory table of loaded rows, in rendered order.
type Registry struct {
	rows       []Record
	index      map[string]int
	pagination Pagination
	summary    Summary
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Replace swaps in a freshly loaded page.
func (r *Registry) Replace(p Page) {
	r.rows = make([]Record, 0, len(p.Records))
	r.index = make(map[string]int, len(p.Records))
	for _, rec := range p.Records {
		if _, dup := r.index[rec.ID]; dup || rec.ID == "" {
			continue
		}
		r.index[rec.ID] = len(r.rows)
		r.rows = append(r.rows, rec.Clone())
	}
	r.pagination = p.Pagination
}

func (r *Registry) Len() int { return len(r.rows) }

func (r *Registry) Pagination() Pagination { return r.pagination }

func (r *Registry) Summary() Summary { return r.summary }

func (r *Registry) SetSummary(s Summary) { r.summary = s }

// Get returns a copy of the row.
func (r *Registry) Get(id string) (Record, bool) {
	i, ok := r.index[id]
	if !ok {
		return Record{}, false
	}
	return r.rows[i].Clone(), true
}

// Value returns the current value of a cell.
func (r *Registry) Value(id string, f Field) (string, bool) {
	i, ok := r.index[id]
	if !ok {
		return "", false
	}
	return r.rows[i].Value(f), true
}

// IndexOf returns the rendered index of id, or -1.
func (r *Registry) IndexOf(id string) int {
	if i, ok := r.index[id]; ok {
		return i
	}
	return -1
}

// At returns the id at rendered index i.
func (r *Registry) At(i int) (string, bool) {
	if i < 0 || i >= len(r.rows) {
		return "", false
	}
	return r.rows[i].ID, true
}

// IDs lists row ids in rendered order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.rows))
	for i, rec := range r.rows {
		out[i] = rec.ID
	}
	return out
}

// Has reports whether id is loaded.
func (r *Registry) Has(id string) bool {
	_, ok := r.index[id]
	return ok
}

// SetValue applies a confirmed value. It returns false for rows that are not loaded.
func (r *Registry) SetValue(id string, f Field, v string) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	if r.rows[i].Values == nil {
		r.rows[i].Values = make(map[Field]string)
	}
	r.rows[i].Values[f] = v
	return true
}

// SetConfidence applies a confidence score reported by the backend to both
// the numeric score and the rendered confidence cell.
func (r *Registry) SetConfidence(id string, c float64) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	r.rows[i].Confidence = c
	if r.rows[i].Values == nil {
		r.rows[i].Values = make(map[Field]string)
	}
	r.rows[i].Values[FieldConfidence] = strconv.FormatFloat(c, 'f', 2, 64)
	return true
}

// DistinctValues lists the distinct non-placeholder values of f in loaded rows.
func (r *Registry) DistinctValues(f Field) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range r.rows {
		v := rec.Value(f)
		if IsPlaceholder(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
