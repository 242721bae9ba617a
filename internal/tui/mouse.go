package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/ledgergrid/internal/grid"
)

// tableTop is the screen line of the first data row; the column header sits just above.
const tableTop = 3

const checkWidth = 4

var columnWidths = map[grid.Field]int{
	grid.FieldDate:               10,
	grid.FieldDescription:        28,
	grid.FieldAmount:             11,
	grid.FieldCurrency:           5,
	grid.FieldClassifiedEntity:   16,
	grid.FieldAccountingCategory: 16,
	grid.FieldSubcategory:        16,
	grid.FieldOrigin:             14,
	grid.FieldDestination:        14,
	grid.FieldJustification:      20,
	grid.FieldConfidence:         5,
}

// columnAt maps a screen x to a column index, or -1 for the checkbox gutter.
func columnAt(x int) (int, bool) {
	if x < checkWidth {
		return -1, true
	}
	left := checkWidth
	for i, f := range grid.Columns {
		w := columnWidths[f]
		if x < left+w {
			return i, true
		}
		left += w + 1
	}
	return 0, false
}

// rowAt maps a screen y to a loaded row index.
func (a *App) rowAt(y int) (int, bool) {
	i := y - tableTop + a.offset
	if y < tableTop || i >= a.grid.Rows().Len() {
		return 0, false
	}
	return i, true
}

// handleMouse implements click-to-focus, checkbox toggles and drag-fill:
// press on a cell then drag across rows with the left button held.
func (a *App) handleMouse(m tea.MouseMsg) tea.Cmd {
	// the bulk prompt is modal; its row set must not change underneath it
	if _, ok := a.grid.Edits().PendingConfirmation(); ok {
		return nil
	}
	switch m.Button {
	case tea.MouseButtonWheelUp:
		if a.cursorRow > 0 {
			a.cursorRow--
		}
		return nil
	case tea.MouseButtonWheelDown:
		if a.cursorRow < a.grid.Rows().Len()-1 {
			a.cursorRow++
		}
		return nil
	}

	switch m.Action {
	case tea.MouseActionPress:
		if m.Button != tea.MouseButtonLeft {
			return nil
		}
		return a.mousePress(m.X, m.Y)
	case tea.MouseActionMotion:
		return a.mouseMotion(m.Y)
	case tea.MouseActionRelease:
		a.pressed = nil
		return a.grid.DragFill().End()
	}
	return nil
}

func (a *App) mousePress(x, y int) tea.Cmd {
	col, okCol := columnAt(x)
	if y == tableTop-1 && okCol && col < 0 {
		a.grid.Selection().ToggleAll(a.grid.Rows().IDs())
		return nil
	}
	row, okRow := a.rowAt(y)
	if !okRow || !okCol {
		return a.blurEditor()
	}
	id, _ := a.grid.Rows().At(row)
	if col < 0 {
		a.grid.Selection().Toggle(id)
		return nil
	}
	cell := grid.Cell{TxID: id, Field: grid.Columns[col]}
	var cmd tea.Cmd
	if a.editing != nil && *a.editing != cell {
		cmd = a.blurEditor()
	}
	a.cursorRow, a.cursorCol = row, col
	if a.editing == nil {
		a.pressed = &cell
	}
	return cmd
}

func (a *App) mouseMotion(y int) tea.Cmd {
	if a.pressed == nil {
		return nil
	}
	row, ok := a.rowAt(y)
	if !ok {
		return nil
	}
	fill := a.grid.DragFill()
	if !fill.Active() {
		if id, _ := a.grid.Rows().At(row); id == a.pressed.TxID {
			return nil
		}
		if err := fill.Begin(*a.pressed); err != nil {
			a.warn(a.pressed.Field.Title(), err)
			a.pressed = nil
			return nil
		}
	}
	a.cursorRow = row
	fill.PointerMoveIndex(row)
	return nil
}
