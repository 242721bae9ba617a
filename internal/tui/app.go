package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jask/ledgergrid/internal/config"
	"github.com/jask/ledgergrid/internal/grid"
)

// App is the bubbletea model around one grid.Grid.
type App struct {
	ctx  context.Context
	grid *grid.Grid
	cfg  config.Config
	log  *zap.Logger
	keys keyMap
	help help.Model

	width, height int
	cursorRow     int
	cursorCol     int
	offset        int

	input   textinput.Model
	prompt  promptKind
	editing *grid.Cell
	// bulkField is the column the bulk-edit prompt writes.
	bulkField grid.Field

	panelCursor int
	pressed     *grid.Cell
	notices     []grid.Notice
	query       grid.Query
}

type promptKind int

const (
	promptNone promptKind = iota
	promptSearch
	promptBulk
)

const maxNotices = 3

func New(ctx context.Context, g *grid.Grid, cfg config.Config, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 256
	// cells render the draft themselves; no blink ticks to route
	ti.Cursor.SetMode(cursor.CursorStatic)
	size := cfg.UI.PageSize
	if size <= 0 {
		size = 50
	}
	return &App{
		ctx:   ctx,
		grid:  g,
		cfg:   cfg,
		log:   log,
		keys:  defaultKeys(),
		help:  help.New(),
		input: ti,
		query: grid.Query{Page: 1, PageSize: size},
	}
}

func (a *App) Init() tea.Cmd {
	return a.grid.Reload(a.query)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if handled, c := a.grid.Update(msg); handled {
		cmd = c
	} else {
		switch m := msg.(type) {
		case tea.WindowSizeMsg:
			a.width, a.height = m.Width, m.Height
			a.help.Width = m.Width
		case tea.KeyMsg:
			cmd = a.handleKey(m)
		case tea.MouseMsg:
			cmd = a.handleMouse(m)
		}
	}
	a.sync()
	return a, cmd
}

// sync reconciles view state with the grid after every message.
func (a *App) sync() {
	a.notices = append(a.notices, a.grid.Notices()...)
	if len(a.notices) > maxNotices {
		a.notices = a.notices[len(a.notices)-maxNotices:]
	}
	if a.editing != nil {
		s, ok := a.grid.Edits().Session(*a.editing)
		if !ok || s.State == grid.StateCommitting {
			a.stopEditing()
		}
	}
	if n := a.grid.Rows().Len(); a.cursorRow >= n {
		a.cursorRow = max(n-1, 0)
	}
	if p, ok := a.panelLen(); ok && a.panelCursor >= p {
		a.panelCursor = max(p-1, 0)
	}
	a.scrollToCursor()
}

func (a *App) stopEditing() {
	a.editing = nil
	a.input.Blur()
	a.input.SetValue("")
}

func (a *App) cursorCell() (grid.Cell, bool) {
	id, ok := a.grid.Rows().At(a.cursorRow)
	if !ok {
		return grid.Cell{}, false
	}
	return grid.Cell{TxID: id, Field: grid.Columns[a.cursorCol]}, true
}

func (a *App) reload() tea.Cmd {
	a.query.PageSize = max(a.query.PageSize, 1)
	return a.grid.Reload(a.query)
}

// panelLen is the row count of the focused panel, if any.
func (a *App) panelLen() (int, bool) {
	w := a.grid.Suggestions()
	if p, ok := w.Similar(); ok {
		return len(p.Candidates), true
	}
	if b, ok := w.Batch(); ok {
		return len(b.Items), true
	}
	return 0, false
}

func (a *App) visibleRows() int {
	if a.height <= 0 {
		return a.grid.Rows().Len()
	}
	// header block, affordances, panel, notices and help share the rest
	return max(a.height-tableTop-8, 3)
}

func (a *App) scrollToCursor() {
	vis := a.visibleRows()
	if a.cursorRow < a.offset {
		a.offset = a.cursorRow
	}
	if a.cursorRow >= a.offset+vis {
		a.offset = a.cursorRow - vis + 1
	}
	if a.offset < 0 {
		a.offset = 0
	}
}
