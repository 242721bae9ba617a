package grid

import "sort"

// SelectAllState is the derived state of the header checkbox.
type SelectAllState int

const (
	SelectNone SelectAllState = iota
	SelectSome
	SelectAllRows
)

// Affordances are the bulk controls shown for the current selection.
type Affordances struct {
	Archive  bool
	BulkEdit bool
}

// AffordancesFor is a pure function of the selection size.
func AffordancesFor(count int) Affordances {
	return Affordances{Archive: count >= 1, BulkEdit: count >= 2}
}

// Selection is the set of selected transaction ids.
type Selection struct {
	ids map[string]struct{}
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Toggle flips membership of id and reports whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// SelectAll adds every id.
func (s *Selection) SelectAll(ids []string) {
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
}

// ToggleAll is the header checkbox: clears visible ids when all are selected,
// selects all visible ids otherwise.
func (s *Selection) ToggleAll(visible []string) {
	if s.HeaderState(visible) == SelectAllRows {
		for _, id := range visible {
			delete(s.ids, id)
		}
		return
	}
	s.SelectAll(visible)
}

func (s *Selection) Clear() {
	s.ids = make(map[string]struct{})
}

func (s *Selection) Count() int { return len(s.ids) }

func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs returns selected ids sorted.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Prune drops ids that keep rejects.
func (s *Selection) Prune(keep func(id string) bool) {
	for id := range s.ids {
		if !keep(id) {
			delete(s.ids, id)
		}
	}
}

// HeaderState derives the header checkbox from membership against the visible ids.
func (s *Selection) HeaderState(visible []string) SelectAllState {
	if len(visible) == 0 {
		return SelectNone
	}
	n := 0
	for _, id := range visible {
		if s.Has(id) {
			n++
		}
	}
	switch {
	case n == 0:
		return SelectNone
	case n == len(visible):
		return SelectAllRows
	default:
		return SelectSome
	}
}

// Affordances of the current selection.
func (s *Selection) Affordances() Affordances {
	return AffordancesFor(s.Count())
}
