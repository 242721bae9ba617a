package grid

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// DragFillState is a snapshot of the drag in progress.
type DragFillState struct {
	Active    bool
	SourceRow string
	Field     Field
	Value     string
	Affected  []string
}

// DragFill propagates one cell's value over a contiguous run of rows.
type DragFill struct {
	d        *deps
	reg      *Registry
	summary  func() tea.Cmd
	active   bool
	source   string
	field    Field
	value    string
	affected []string
}

// Active reports whether a drag is in progress.
func (f *DragFill) Active() bool { return f.active }

// State returns a copy of the drag state.
func (f *DragFill) State() DragFillState {
	return DragFillState{
		Active:    f.active,
		SourceRow: f.source,
		Field:     f.field,
		Value:     f.value,
		Affected:  append([]string(nil), f.affected...),
	}
}

// IsAffected reports whether id is inside the current drag range.
func (f *DragFill) IsAffected(id string) bool {
	if !f.active {
		return false
	}
	for _, a := range f.affected {
		if a == id {
			return true
		}
	}
	return false
}

// Begin captures the source cell. The stored value is used, never the
// abbreviated text shown for wallet fields.
func (f *DragFill) Begin(cell Cell) error {
	if f.active {
		return ErrDragActive
	}
	if !cell.Field.Editable() {
		return ErrReadOnlyField
	}
	v, ok := f.reg.Value(cell.TxID, cell.Field)
	if !ok {
		return ErrUnknownRow
	}
	f.active = true
	f.source = cell.TxID
	f.field = cell.Field
	f.value = v
	f.affected = []string{cell.TxID}
	return nil
}

// PointerMove recomputes the affected range for the row under the pointer.
// Rows that are not loaded are ignored.
func (f *DragFill) PointerMove(rowID string) bool {
	if !f.active {
		return false
	}
	target := f.reg.IndexOf(rowID)
	src := f.reg.IndexOf(f.source)
	if target < 0 || src < 0 {
		return false
	}
	lo, hi := src, target
	if lo > hi {
		lo, hi = hi, lo
	}
	affected := make([]string, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		id, _ := f.reg.At(i)
		affected = append(affected, id)
	}
	f.affected = affected
	return true
}

// PointerMoveIndex is PointerMove addressed by rendered row index.
func (f *DragFill) PointerMoveIndex(i int) bool {
	id, ok := f.reg.At(i)
	if !ok {
		return false
	}
	return f.PointerMove(id)
}

// Cancel aborts the drag without writing anything.
func (f *DragFill) Cancel() {
	f.reset()
}

func (f *DragFill) reset() {
	f.active = false
	f.source = ""
	f.field = ""
	f.value = ""
	f.affected = nil
}

// End releases the drag. When more than the source row is covered, one bulk
// update is issued for the whole range. The drag state resets immediately.
func (f *DragFill) End() tea.Cmd {
	if !f.active {
		return nil
	}
	ids := append([]string(nil), f.affected...)
	field, value := f.field, f.value
	f.reset()
	if len(ids) <= 1 {
		return nil
	}
	updates := make([]FieldUpdate, 0, len(ids))
	for _, id := range ids {
		updates = append(updates, FieldUpdate{TxID: id, Field: field, Value: value})
	}
	ctx, backend := f.d.ctx, f.d.backend
	return func() tea.Msg {
		_, err := backend.BulkUpdateFields(ctx, updates)
		return DragFillAppliedMsg{Field: field, Value: value, IDs: ids, Err: err}
	}
}

// handleApplied updates cells in place so sort order and scroll position survive.
func (f *DragFill) handleApplied(m DragFillAppliedMsg) tea.Cmd {
	if m.Err != nil {
		f.d.fail("drag-fill "+string(m.Field), m.Err)
		return nil
	}
	for _, id := range m.IDs {
		f.reg.SetValue(id, m.Field, m.Value)
	}
	f.d.metrics.Commit("drag_fill", len(m.IDs))
	f.d.log.Info("drag-fill applied", zap.String("field", string(m.Field)), zap.Int("rows", len(m.IDs)))
	f.d.notify(NoticeInfo, fmt.Sprintf("Filled %s into %d rows", m.Field.Title(), len(m.IDs)))
	if f.summary == nil {
		return nil
	}
	return f.summary()
}
