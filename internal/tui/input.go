package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jask/ledgergrid/internal/grid"
)

// handleKey routes a key to whatever has focus: the bulk prompt, an open
// editor, a text prompt, a panel, an active drag, then the grid.
func (a *App) handleKey(m tea.KeyMsg) tea.Cmd {
	if m.String() == "ctrl+c" {
		return tea.Quit
	}
	if c, ok := a.grid.Edits().PendingConfirmation(); ok {
		return a.handleConfirmKey(c, m)
	}
	if a.editing != nil {
		return a.handleEditKey(*a.editing, m)
	}
	if a.prompt != promptNone {
		return a.handlePromptKey(m)
	}
	if a.grid.DragFill().Active() {
		return a.handleFillKey(m)
	}
	if _, ok := a.panelLen(); ok {
		return a.handlePanelKey(m)
	}
	return a.handleGridKey(m)
}

func (a *App) handleGridKey(m tea.KeyMsg) tea.Cmd {
	rows := a.grid.Rows()
	switch {
	case key.Matches(m, a.keys.Quit):
		return tea.Quit
	case key.Matches(m, a.keys.Up):
		if a.cursorRow > 0 {
			a.cursorRow--
		}
	case key.Matches(m, a.keys.Down):
		if a.cursorRow < rows.Len()-1 {
			a.cursorRow++
		}
	case key.Matches(m, a.keys.Left):
		if a.cursorCol > 0 {
			a.cursorCol--
		}
	case key.Matches(m, a.keys.Right):
		if a.cursorCol < len(grid.Columns)-1 {
			a.cursorCol++
		}
	case key.Matches(m, a.keys.NextPage):
		p := rows.Pagination()
		if p.Page < p.TotalPages {
			a.query.Page = p.Page + 1
			a.cursorRow = 0
			return a.reload()
		}
	case key.Matches(m, a.keys.PrevPage):
		if p := rows.Pagination(); p.Page > 1 {
			a.query.Page = p.Page - 1
			a.cursorRow = 0
			return a.reload()
		}
	case key.Matches(m, a.keys.Edit):
		return a.beginEdit()
	case key.Matches(m, a.keys.Toggle):
		if id, ok := rows.At(a.cursorRow); ok {
			a.grid.Selection().Toggle(id)
		}
	case key.Matches(m, a.keys.ToggleAll):
		a.grid.Selection().ToggleAll(rows.IDs())
	case key.Matches(m, a.keys.Archive):
		cmd, _ := a.grid.ArchiveSelected()
		return cmd
	case key.Matches(m, a.keys.BulkEdit):
		f := grid.Columns[a.cursorCol]
		if !a.grid.Affordances().BulkEdit {
			a.notices = append(a.notices, grid.Notice{Level: grid.NoticeWarn, Text: "select at least two rows to bulk edit"})
			return nil
		}
		if !f.Editable() {
			a.notices = append(a.notices, grid.Notice{Level: grid.NoticeWarn, Text: f.Title() + " is read-only"})
			return nil
		}
		a.bulkField = f
		a.openPrompt(promptBulk, "")
	case key.Matches(m, a.keys.Fill):
		cell, ok := a.cursorCell()
		if !ok {
			return nil
		}
		if err := a.grid.DragFill().Begin(cell); err != nil {
			a.warn(cell.Field.Title(), err)
		}
	case key.Matches(m, a.keys.Suggest):
		if id, ok := rows.At(a.cursorRow); ok {
			a.panelCursor = 0
			return a.grid.Suggestions().RequestSuggestions(id)
		}
	case key.Matches(m, a.keys.Similar):
		cell, ok := a.cursorCell()
		if !ok || !cell.Field.TriggersSimilar() {
			return nil
		}
		v, _ := rows.Value(cell.TxID, cell.Field)
		if grid.IsPlaceholder(v) {
			return nil
		}
		a.panelCursor = 0
		return a.grid.Suggestions().FindSimilar(cell.TxID, map[grid.Field]string{cell.Field: v})
	case key.Matches(m, a.keys.Search):
		a.openPrompt(promptSearch, a.query.Search)
	case key.Matches(m, a.keys.Archived):
		a.query.IncludeArchived = !a.query.IncludeArchived
		a.query.Page = 1
		return a.reload()
	case key.Matches(m, a.keys.Refresh):
		return a.reload()
	case key.Matches(m, a.keys.Back):
		a.notices = nil
	}
	return nil
}

func (a *App) beginEdit() tea.Cmd {
	cell, ok := a.cursorCell()
	if !ok {
		return nil
	}
	s, err := a.grid.Edits().BeginEdit(cell)
	if err != nil && !errors.Is(err, grid.ErrAlreadyEditing) {
		a.warn(cell.Field.Title(), err)
		return nil
	}
	a.editing = &cell
	a.input.SetValue(s.Draft)
	a.input.CursorEnd()
	if s.Mode == grid.ModeDropdown {
		a.input.Blur()
		return nil
	}
	return a.input.Focus()
}

func (a *App) handleEditKey(cell grid.Cell, m tea.KeyMsg) tea.Cmd {
	edits := a.grid.Edits()
	s, ok := edits.Session(cell)
	if !ok || s.State != grid.StateEditing {
		a.stopEditing()
		return nil
	}
	if key.Matches(m, a.keys.Back) {
		_ = edits.CancelEdit(cell)
		a.stopEditing()
		return nil
	}
	if s.Mode == grid.ModeDropdown {
		switch {
		case key.Matches(m, a.keys.Up):
			_ = edits.MoveOption(cell, -1)
		case key.Matches(m, a.keys.Down):
			_ = edits.MoveOption(cell, 1)
		case key.Matches(m, a.keys.Custom):
			if err := edits.EnterCustomEntry(cell); err == nil {
				a.input.SetValue("")
				return a.input.Focus()
			}
		case m.Type == tea.KeyEnter:
			out, cmd, err := edits.Choose(cell)
			return a.afterCommit(out, cmd, err)
		}
		return nil
	}
	if m.Type == tea.KeyEnter {
		out, cmd, err := edits.CommitEdit(cell, a.input.Value())
		return a.afterCommit(out, cmd, err)
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(m)
	_ = edits.SetDraft(cell, a.input.Value())
	return cmd
}

// afterCommit keeps the editor open when the value was rejected.
func (a *App) afterCommit(out grid.CommitOutcome, cmd tea.Cmd, err error) tea.Cmd {
	if err != nil {
		if !errors.Is(err, grid.ErrEmptyValue) {
			a.log.Debug("commit rejected", zap.Error(err))
			a.stopEditing()
		}
		return cmd
	}
	if out != grid.OutcomeNeedsConfirmation {
		a.stopEditing()
	}
	return cmd
}

// blurEditor commits or cancels the open editor when focus moves away.
func (a *App) blurEditor() tea.Cmd {
	if a.editing == nil {
		return nil
	}
	cell := *a.editing
	out, cmd, err := a.grid.Edits().Blur(cell, a.input.Value())
	if err != nil || out != grid.OutcomeNeedsConfirmation {
		a.stopEditing()
	}
	return cmd
}

func (a *App) handleConfirmKey(c grid.Confirmation, m tea.KeyMsg) tea.Cmd {
	edits := a.grid.Edits()
	switch {
	case key.Matches(m, a.keys.Yes), m.Type == tea.KeyEnter:
		cmd, _ := edits.ConfirmBulk(c.Cell, true)
		a.stopEditing()
		return cmd
	case key.Matches(m, a.keys.No):
		cmd, _ := edits.ConfirmBulk(c.Cell, false)
		a.stopEditing()
		return cmd
	case key.Matches(m, a.keys.Back):
		_ = edits.CancelEdit(c.Cell)
		a.stopEditing()
	}
	return nil
}

func (a *App) openPrompt(kind promptKind, value string) {
	a.prompt = kind
	a.input.SetValue(value)
	a.input.CursorEnd()
	a.input.Focus()
}

func (a *App) handlePromptKey(m tea.KeyMsg) tea.Cmd {
	switch m.Type {
	case tea.KeyEsc:
		a.prompt = promptNone
		a.input.Blur()
		return nil
	case tea.KeyEnter:
		kind, value := a.prompt, strings.TrimSpace(a.input.Value())
		a.prompt = promptNone
		a.input.Blur()
		a.input.SetValue("")
		if kind == promptSearch {
			a.query.Search = value
			a.query.Page = 1
			a.cursorRow = 0
			return a.reload()
		}
		cmd, _ := a.grid.BulkEdit(a.bulkField, value)
		return cmd
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(m)
	return cmd
}

// handleFillKey extends an active drag-fill with the cursor keys.
func (a *App) handleFillKey(m tea.KeyMsg) tea.Cmd {
	fill := a.grid.DragFill()
	switch {
	case key.Matches(m, a.keys.Up):
		if a.cursorRow > 0 {
			a.cursorRow--
		}
		fill.PointerMoveIndex(a.cursorRow)
	case key.Matches(m, a.keys.Down):
		if a.cursorRow < a.grid.Rows().Len()-1 {
			a.cursorRow++
		}
		fill.PointerMoveIndex(a.cursorRow)
	case m.Type == tea.KeyEnter, key.Matches(m, a.keys.Fill):
		return fill.End()
	case key.Matches(m, a.keys.Back):
		fill.Cancel()
	}
	return nil
}

func (a *App) handlePanelKey(m tea.KeyMsg) tea.Cmd {
	w := a.grid.Suggestions()
	_, similar := w.Similar()
	n, _ := a.panelLen()
	switch {
	case key.Matches(m, a.keys.Up):
		if a.panelCursor > 0 {
			a.panelCursor--
		}
	case key.Matches(m, a.keys.Down):
		if a.panelCursor < n-1 {
			a.panelCursor++
		}
	case key.Matches(m, a.keys.Toggle):
		if similar {
			w.ToggleCandidate(a.panelCursor)
		} else {
			w.Toggle(a.panelCursor)
		}
	case key.Matches(m, a.keys.Accept):
		var cmd tea.Cmd
		if similar {
			cmd, _ = w.ApplySimilar()
		} else {
			cmd, _ = w.ApplySelected()
		}
		a.panelCursor = 0
		return cmd
	case key.Matches(m, a.keys.Back):
		w.Close()
		a.panelCursor = 0
	case key.Matches(m, a.keys.Quit):
		return tea.Quit
	}
	return nil
}

func (a *App) warn(what string, err error) {
	a.notices = append(a.notices, grid.Notice{Level: grid.NoticeWarn, Text: what + ": " + err.Error()})
}
