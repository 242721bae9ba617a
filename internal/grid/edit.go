package grid

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Cell addresses one (transaction, field) pair.
type Cell struct {
	TxID  string
	Field Field
}

func (c Cell) String() string { return c.TxID + "/" + string(c.Field) }

// SessionState tracks where an edit session is after editing began.
type SessionState int

const (
	StateEditing SessionState = iota
	StateConfirming
	StateCommitting
)

// EditSession is the open editor of one cell.
type EditSession struct {
	Cell        Cell
	Original    string
	Draft       string
	Mode        EditMode
	State       SessionState
	Options     []string
	OptionIndex int
	// Targets is the selection the bulk prompt was raised for.
	Targets []string
}

// CommitOutcome says what CommitEdit did.
type CommitOutcome int

const (
	// OutcomeUnchanged closed the session without a request.
	OutcomeUnchanged CommitOutcome = iota
	// OutcomeCommitting issued a single-row update.
	OutcomeCommitting
	// OutcomeNeedsConfirmation is waiting for ConfirmBulk.
	OutcomeNeedsConfirmation
)

// Confirmation describes a pending bulk prompt.
type Confirmation struct {
	Cell  Cell
	Value string
	IDs   []string
}

// OptionSource lists dropdown options for a field of a given row.
type OptionSource interface {
	Options(f Field, rec Record) []string
}

// EditController owns every open EditSession, keyed by cell.
type EditController struct {
	d        *deps
	reg      *Registry
	sel      *Selection
	drag     *DragFill
	workflow *Workflow
	options  OptionSource
	reload   func() tea.Cmd
	sessions map[Cell]*EditSession
}

// BeginEdit opens an editor seeded with the cell's current value. If the cell
// already has a session it is returned unchanged together with ErrAlreadyEditing.
func (c *EditController) BeginEdit(cell Cell) (EditSession, error) {
	if s, ok := c.sessions[cell]; ok {
		return *s, ErrAlreadyEditing
	}
	if c.drag.Active() {
		return EditSession{}, ErrDragActive
	}
	if !cell.Field.Editable() {
		return EditSession{}, ErrReadOnlyField
	}
	rec, ok := c.reg.Get(cell.TxID)
	if !ok {
		return EditSession{}, ErrUnknownRow
	}
	current := rec.Value(cell.Field)
	s := &EditSession{Cell: cell, Original: current, Mode: ModeText, State: StateEditing}
	if !IsPlaceholder(current) {
		s.Draft = current
	}
	if cell.Field.Enumerable() {
		s.Mode = ModeDropdown
		s.Options, s.OptionIndex = dropdownOptions(c.optionsFor(cell.Field, rec), current)
		s.Draft = s.Options[s.OptionIndex]
	}
	c.sessions[cell] = s
	return *s, nil
}

// dropdownOptions seeds a dropdown. A placeholder current value never becomes a
// selectable option: a blank entry is kept first and selected instead, so the
// first real option is never chosen by default.
func dropdownOptions(opts []string, current string) ([]string, int) {
	out := make([]string, 0, len(opts)+1)
	if IsPlaceholder(current) {
		out = append(out, "")
		for _, o := range opts {
			if !IsPlaceholder(o) {
				out = append(out, o)
			}
		}
		return out, 0
	}
	idx := -1
	for _, o := range opts {
		if IsPlaceholder(o) {
			continue
		}
		if o == current && idx < 0 {
			idx = len(out)
		}
		out = append(out, o)
	}
	if idx < 0 {
		out = append([]string{current}, out...)
		idx = 0
	}
	return out, idx
}

func (c *EditController) optionsFor(f Field, rec Record) []string {
	var opts []string
	if c.options != nil {
		opts = append(opts, c.options.Options(f, rec)...)
	}
	seen := make(map[string]struct{}, len(opts))
	for _, o := range opts {
		seen[o] = struct{}{}
	}
	for _, v := range c.reg.DistinctValues(f) {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			opts = append(opts, v)
		}
	}
	return opts
}

// Session returns a copy of the session open on cell.
func (c *EditController) Session(cell Cell) (EditSession, bool) {
	s, ok := c.sessions[cell]
	if !ok {
		return EditSession{}, false
	}
	return *s, true
}

// IsEditing reports whether cell has a session in any state.
func (c *EditController) IsEditing(cell Cell) bool {
	_, ok := c.sessions[cell]
	return ok
}

func (c *EditController) Count() int { return len(c.sessions) }

// PendingConfirmation returns the first session waiting on a bulk prompt.
func (c *EditController) PendingConfirmation() (Confirmation, bool) {
	for _, s := range c.sessions {
		if s.State == StateConfirming {
			return Confirmation{Cell: s.Cell, Value: s.Draft, IDs: append([]string(nil), s.Targets...)}, true
		}
	}
	return Confirmation{}, false
}

func (c *EditController) editing(cell Cell) (*EditSession, error) {
	s, ok := c.sessions[cell]
	if !ok || s.State != StateEditing {
		return nil, ErrNotEditing
	}
	return s, nil
}

// SetDraft stores typed text.
func (c *EditController) SetDraft(cell Cell, draft string) error {
	s, err := c.editing(cell)
	if err != nil {
		return err
	}
	s.Draft = draft
	return nil
}

// MoveOption moves the dropdown cursor.
func (c *EditController) MoveOption(cell Cell, delta int) error {
	s, err := c.editing(cell)
	if err != nil {
		return err
	}
	if s.Mode != ModeDropdown {
		return ErrNotDropdown
	}
	i := s.OptionIndex + delta
	if i < 0 {
		i = 0
	}
	if i > len(s.Options)-1 {
		i = len(s.Options) - 1
	}
	s.OptionIndex = i
	s.Draft = s.Options[i]
	return nil
}

// EnterCustomEntry switches a dropdown to free-form typing.
func (c *EditController) EnterCustomEntry(cell Cell) error {
	s, err := c.editing(cell)
	if err != nil {
		return err
	}
	if s.Mode != ModeDropdown {
		return ErrNotDropdown
	}
	s.Mode = ModeCustomEntry
	s.Draft = ""
	return nil
}

// Choose commits the highlighted dropdown option.
func (c *EditController) Choose(cell Cell) (CommitOutcome, tea.Cmd, error) {
	s, err := c.editing(cell)
	if err != nil {
		return OutcomeUnchanged, nil, err
	}
	if s.Mode != ModeDropdown {
		return OutcomeUnchanged, nil, ErrNotDropdown
	}
	return c.CommitEdit(cell, s.Options[s.OptionIndex])
}

// CommitEdit validates value and either issues a single update or, when the row
// belongs to a selection of two or more, parks the session for ConfirmBulk.
func (c *EditController) CommitEdit(cell Cell, value string) (CommitOutcome, tea.Cmd, error) {
	s, err := c.editing(cell)
	if err != nil {
		return OutcomeUnchanged, nil, err
	}
	value = Sanitize(value)
	if value == "" {
		c.d.notify(NoticeWarn, fmt.Sprintf("%s: %v", cell.Field.Title(), ErrEmptyValue))
		return OutcomeUnchanged, nil, ErrEmptyValue
	}
	s.Draft = value
	if c.sel.Count() >= 2 && c.sel.Has(cell.TxID) {
		s.State = StateConfirming
		s.Targets = c.sel.IDs()
		return OutcomeNeedsConfirmation, nil, nil
	}
	if value == s.Original {
		delete(c.sessions, cell)
		return OutcomeUnchanged, nil, nil
	}
	return OutcomeCommitting, c.commitSingle(s), nil
}

// ConfirmBulk answers the bulk prompt. Accepting writes value in one request to
// the rows that were selected when the prompt was raised; declining commits it
// to the edited row only.
func (c *EditController) ConfirmBulk(cell Cell, accept bool) (tea.Cmd, error) {
	s, ok := c.sessions[cell]
	if !ok || s.State != StateConfirming {
		return nil, ErrNotEditing
	}
	if !accept {
		if s.Draft == s.Original {
			delete(c.sessions, cell)
			return nil, nil
		}
		return c.commitSingle(s), nil
	}
	ids := s.Targets
	if len(ids) == 0 {
		delete(c.sessions, cell)
		c.d.notify(NoticeWarn, ErrNoSelection.Error())
		return nil, ErrNoSelection
	}
	s.State = StateCommitting
	value := s.Draft
	updates := make([]FieldUpdate, 0, len(ids))
	for _, id := range ids {
		updates = append(updates, FieldUpdate{TxID: id, Field: cell.Field, Value: value})
	}
	ctx, backend := c.d.ctx, c.d.backend
	return func() tea.Msg {
		_, err := backend.BulkUpdateFields(ctx, updates)
		return BulkCommittedMsg{Cell: cell, IDs: ids, Value: value, Err: err}
	}, nil
}

func (c *EditController) commitSingle(s *EditSession) tea.Cmd {
	s.State = StateCommitting
	cell, value := s.Cell, s.Draft
	ctx, backend := c.d.ctx, c.d.backend
	return func() tea.Msg {
		res, err := backend.UpdateField(ctx, cell.TxID, cell.Field, value)
		return FieldCommittedMsg{Cell: cell, Value: value, Result: res, Err: err}
	}
}

// CancelEdit drops the session; the cell keeps showing the value captured at BeginEdit.
func (c *EditController) CancelEdit(cell Cell) error {
	s, ok := c.sessions[cell]
	if !ok {
		return ErrNotEditing
	}
	if s.State == StateCommitting {
		return ErrNotEditing
	}
	delete(c.sessions, cell)
	return nil
}

// Blur handles focus loss. Text and custom entries commit; dropdowns cancel.
// An empty text entry cancels instead of leaving a dangling session.
func (c *EditController) Blur(cell Cell, draft string) (CommitOutcome, tea.Cmd, error) {
	s, err := c.editing(cell)
	if err != nil {
		return OutcomeUnchanged, nil, err
	}
	if s.Mode == ModeDropdown || Sanitize(draft) == "" {
		delete(c.sessions, cell)
		return OutcomeUnchanged, nil, nil
	}
	return c.CommitEdit(cell, draft)
}

// Teardown drops every session.
func (c *EditController) Teardown() {
	c.sessions = make(map[Cell]*EditSession)
}

// TeardownMissing drops sessions whose row is no longer loaded.
func (c *EditController) TeardownMissing() {
	for cell := range c.sessions {
		if !c.reg.Has(cell.TxID) {
			delete(c.sessions, cell)
		}
	}
}

func (c *EditController) handleCommitted(m FieldCommittedMsg) tea.Cmd {
	if s, ok := c.sessions[m.Cell]; ok && s.State == StateCommitting {
		delete(c.sessions, m.Cell)
	}
	if m.Err != nil {
		c.d.fail("update "+string(m.Cell.Field), m.Err)
		return nil
	}
	c.reg.SetValue(m.Cell.TxID, m.Cell.Field, m.Value)
	if m.Result.Confidence != nil {
		c.reg.SetConfidence(m.Cell.TxID, *m.Result.Confidence)
	}
	c.d.metrics.Commit("single", 1)
	c.d.log.Info("field committed", zap.String("cell", m.Cell.String()))
	if m.Cell.Field.TriggersSimilar() {
		return c.workflow.FindSimilar(m.Cell.TxID, map[Field]string{m.Cell.Field: m.Value})
	}
	return nil
}

func (c *EditController) handleBulkCommitted(m BulkCommittedMsg) tea.Cmd {
	if s, ok := c.sessions[m.Cell]; ok && s.State == StateCommitting {
		delete(c.sessions, m.Cell)
	}
	if m.Err != nil {
		c.d.fail("bulk update "+string(m.Cell.Field), m.Err)
		return nil
	}
	for _, id := range m.IDs {
		c.reg.SetValue(id, m.Cell.Field, m.Value)
	}
	c.sel.Clear()
	c.d.metrics.Commit("bulk", len(m.IDs))
	c.d.log.Info("bulk commit", zap.String("field", string(m.Cell.Field)), zap.Int("rows", len(m.IDs)))
	c.d.notify(NoticeInfo, fmt.Sprintf("Updated %s on %d rows", m.Cell.Field.Title(), len(m.IDs)))
	if c.reload == nil {
		return nil
	}
	return c.reload()
}
