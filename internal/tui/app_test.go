package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgergrid/internal/config"
	"github.com/jask/ledgergrid/internal/database"
	"github.com/jask/ledgergrid/internal/database/repository"
	"github.com/jask/ledgergrid/internal/grid"
	"github.com/jask/ledgergrid/internal/llm"
	"github.com/jask/ledgergrid/internal/service"
	"github.com/jask/ledgergrid/internal/taxonomy"
)

type cannedProvider struct{ resp llm.SuggestResponse }

func (p cannedProvider) SuggestFields(context.Context, llm.SuggestRequest) (llm.SuggestResponse, error) {
	return p.resp, nil
}

type harness struct {
	t      *testing.T
	app    *App
	ledger *service.Ledger
}

func str(s string) *string { return &s }

// newHarness loads rows r1..rN ordered newest first.
func newHarness(t *testing.T, p llm.Provider, rows ...repository.Transaction) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "tui.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ledger := service.NewLedger(db, service.LedgerOptions{Provider: p})
	for _, tx := range rows {
		require.NoError(t, ledger.Transactions.Insert(ctx, tx))
	}
	g := grid.New(ctx, ledger, grid.WithOptions(taxonomy.Default()))
	cfg := config.Config{UI: config.UIConfig{CurrencySymbol: "$", PageSize: 50}}
	h := &harness{t: t, app: New(ctx, g, cfg, nil), ledger: ledger}
	h.run(h.app.Init())
	return h
}

func row(id, desc string, day int, cents int64) repository.Transaction {
	return repository.Transaction{
		ID:          id,
		Date:        time.Date(2026, 4, day, 0, 0, 0, 0, time.UTC),
		Description: desc,
		AmountCents: cents,
		Currency:    "USD",
		Confidence:  0.1,
	}
}

// run executes cmd and feeds every resulting message back until quiet.
func (h *harness) run(cmd tea.Cmd) {
	h.t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch m := c().(type) {
		case nil, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, m...)
		default:
			_, next := h.app.Update(m)
			queue = append(queue, next)
		}
	}
}

func (h *harness) send(msg tea.Msg) {
	h.t.Helper()
	_, cmd := h.app.Update(msg)
	h.run(cmd)
}

func (h *harness) press(keys ...string) {
	h.t.Helper()
	for _, k := range keys {
		switch k {
		case "enter":
			h.send(tea.KeyMsg{Type: tea.KeyEnter})
		case "esc":
			h.send(tea.KeyMsg{Type: tea.KeyEsc})
		case "tab":
			h.send(tea.KeyMsg{Type: tea.KeyTab})
		case "up":
			h.send(tea.KeyMsg{Type: tea.KeyUp})
		case "down":
			h.send(tea.KeyMsg{Type: tea.KeyDown})
		case "right":
			h.send(tea.KeyMsg{Type: tea.KeyRight})
		case "space":
			h.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
		case "ctrl+u":
			h.send(tea.KeyMsg{Type: tea.KeyCtrlU})
		default:
			h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
		}
	}
}

func (h *harness) typeText(s string) {
	h.t.Helper()
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func (h *harness) moveTo(f grid.Field) {
	h.t.Helper()
	for i, c := range grid.Columns {
		if c == f {
			h.app.cursorCol = i
			return
		}
	}
	h.t.Fatalf("no column %s", f)
}

func (h *harness) stored(id string) repository.Transaction {
	h.t.Helper()
	tx, err := h.ledger.Transactions.Get(context.Background(), id)
	require.NoError(h.t, err)
	require.NotNil(h.t, tx)
	return *tx
}

func (h *harness) noticeText() string {
	var parts []string
	for _, n := range h.app.notices {
		parts = append(parts, n.Text)
	}
	return strings.Join(parts, "\n")
}

// cellX is the screen column of the first character of field f.
func cellX(f grid.Field) int {
	x := checkWidth
	for _, c := range grid.Columns {
		if c == f {
			return x
		}
		x += columnWidths[c] + 1
	}
	return x
}

func TestInitRendersRowsAndSummary(t *testing.T) {
	h := newHarness(t, cannedProvider{},
		row("r1", "UBER TRIP 1", 3, -1250),
		row("r2", "LUNCH", 2, -4000),
	)
	require.Equal(t, 2, h.app.grid.Rows().Len())
	view := h.app.View()
	require.Contains(t, view, "UBER TRIP 1")
	require.Contains(t, view, "2 transactions")
	require.Contains(t, view, "net -$52.50")
	require.Contains(t, view, "Page 1/1")
}

func TestTextEditCommits(t *testing.T) {
	h := newHarness(t, cannedProvider{}, row("r1", "OLD DESC", 3, -100))
	h.moveTo(grid.FieldDescription)

	h.press("enter")
	require.NotNil(t, h.app.editing)
	h.press("ctrl+u")
	h.typeText("NEW DESC")
	require.Contains(t, h.app.View(), "NEW DESC")
	h.press("enter")

	require.Nil(t, h.app.editing)
	require.Equal(t, "NEW DESC", h.stored("r1").Description)
	v, _ := h.app.grid.Rows().Value("r1", grid.FieldDescription)
	require.Equal(t, "NEW DESC", v)
}

func TestEscCancelsEdit(t *testing.T) {
	h := newHarness(t, cannedProvider{}, row("r1", "KEEP ME", 3, -100))
	h.moveTo(grid.FieldDescription)
	h.press("enter", "ctrl+u")
	h.typeText("DISCARD")
	h.press("esc")

	require.Nil(t, h.app.editing)
	require.Zero(t, h.app.grid.Edits().Count())
	require.Equal(t, "KEEP ME", h.stored("r1").Description)
}

func TestEmptyCommitKeepsEditorOpen(t *testing.T) {
	h := newHarness(t, cannedProvider{}, row("r1", "KEEP ME", 3, -100))
	h.moveTo(grid.FieldDescription)
	h.press("enter", "ctrl+u", "enter")

	require.NotNil(t, h.app.editing)
	require.Contains(t, h.noticeText(), "cannot be empty")
}

func TestBulkConfirmFromEditor(t *testing.T) {
	h := newHarness(t, cannedProvider{},
		row("r1", "DELTA AIR 1", 3, -100),
		row("r2", "DELTA AIR 2", 2, -200),
		row("r3", "OTHER", 1, -300),
	)
	h.press("space", "down", "space")
	require.Equal(t, 2, h.app.grid.Selection().Count())

	h.moveTo(grid.FieldClassifiedEntity)
	h.press("enter")
	s, ok := h.app.grid.Edits().Session(grid.Cell{TxID: "r2", Field: grid.FieldClassifiedEntity})
	require.True(t, ok)
	require.Equal(t, grid.ModeDropdown, s.Mode)

	h.press("tab")
	h.typeText("Delta LLC")
	h.press("enter")
	require.Contains(t, h.app.View(), "to all 2 selected rows?")

	h.press("y")
	require.Equal(t, "Delta LLC", *h.stored("r1").ClassifiedEntity)
	require.Equal(t, "Delta LLC", *h.stored("r2").ClassifiedEntity)
	require.Nil(t, h.stored("r3").ClassifiedEntity)
	require.Zero(t, h.app.grid.Selection().Count())
}

func TestBulkDeclineWritesEditedRowOnly(t *testing.T) {
	h := newHarness(t, cannedProvider{},
		row("r1", "DELTA AIR 1", 3, -100),
		row("r2", "DELTA AIR 2", 2, -200),
	)
	h.press("space", "down", "space")
	h.moveTo(grid.FieldJustification)
	h.press("enter")
	h.typeText("Conference")
	h.press("enter", "n")

	require.Equal(t, "Conference", *h.stored("r2").Justification)
	require.Nil(t, h.stored("r1").Justification)
	require.Equal(t, 2, h.app.grid.Selection().Count())
}

func TestCommitRefreshesConfidenceColumn(t *testing.T) {
	h := newHarness(t, cannedProvider{}, row("r1", "DELTA AIR 1", 3, -100))
	require.Contains(t, h.app.View(), "0.10")

	h.moveTo(grid.FieldClassifiedEntity)
	h.press("enter", "tab")
	h.typeText("Delta LLC")
	h.press("enter")

	require.InDelta(t, 0.4, h.stored("r1").Confidence, 1e-9)
	v, _ := h.app.grid.Rows().Value("r1", grid.FieldConfidence)
	require.Equal(t, "0.40", v)
	require.Contains(t, h.app.View(), "0.40")
}

func TestCheckboxesLockedWhileBulkPromptOpen(t *testing.T) {
	h := newHarness(t, cannedProvider{},
		row("r1", "A", 3, -100),
		row("r2", "B", 2, -100),
		row("r3", "C", 1, -100),
	)
	h.press("space", "down", "space")
	h.moveTo(grid.FieldJustification)
	h.press("enter")
	h.typeText("Conference")
	h.press("enter")
	_, ok := h.app.grid.Edits().PendingConfirmation()
	require.True(t, ok)

	h.send(tea.MouseMsg{X: 1, Y: tableTop + 1, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	h.send(tea.MouseMsg{X: 1, Y: tableTop + 2, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	h.send(tea.MouseMsg{X: 1, Y: tableTop - 1, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	require.ElementsMatch(t, []string{"r1", "r2"}, h.app.grid.Selection().IDs())

	h.press("y")
	require.Equal(t, "Conference", *h.stored("r1").Justification)
	require.Equal(t, "Conference", *h.stored("r2").Justification)
	require.Nil(t, h.stored("r3").Justification)
}

func TestKeyboardFill(t *testing.T) {
	first := row("r1", "A", 4, -100)
	first.Origin = str("0x71C7656EC7ab88b098defB751B7401B5f6d8976F")
	h := newHarness(t, cannedProvider{}, first,
		row("r2", "B", 3, -100),
		row("r3", "C", 2, -100),
		row("r4", "D", 1, -100),
	)
	h.moveTo(grid.FieldOrigin)
	require.Contains(t, h.app.View(), "0x71C7…976F")

	h.press("f", "down", "down")
	require.Len(t, h.app.grid.DragFill().State().Affected, 3)
	require.Contains(t, h.app.View(), "over 3 rows")
	h.press("enter")

	require.False(t, h.app.grid.DragFill().Active())
	for _, id := range []string{"r2", "r3"} {
		require.Equal(t, *first.Origin, *h.stored(id).Origin)
	}
	require.Nil(t, h.stored("r4").Origin)
}

func TestMouseDragFill(t *testing.T) {
	first := row("r1", "A", 4, -100)
	first.AccountingCategory = str("Travel")
	h := newHarness(t, cannedProvider{}, first,
		row("r2", "B", 3, -100),
		row("r3", "C", 2, -100),
	)
	x := cellX(grid.FieldAccountingCategory)

	h.send(tea.MouseMsg{X: x, Y: tableTop, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	require.False(t, h.app.grid.DragFill().Active(), "a click alone is not a drag")
	h.send(tea.MouseMsg{X: x, Y: tableTop + 2, Button: tea.MouseButtonLeft, Action: tea.MouseActionMotion})
	require.True(t, h.app.grid.DragFill().Active())
	h.send(tea.MouseMsg{X: x, Y: tableTop + 2, Button: tea.MouseButtonLeft, Action: tea.MouseActionRelease})

	require.Equal(t, "Travel", *h.stored("r2").AccountingCategory)
	require.Equal(t, "Travel", *h.stored("r3").AccountingCategory)
}

func TestMouseCheckboxes(t *testing.T) {
	h := newHarness(t, cannedProvider{}, row("r1", "A", 2, -100), row("r2", "B", 1, -100))

	h.send(tea.MouseMsg{X: 1, Y: tableTop + 1, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	require.True(t, h.app.grid.Selection().Has("r2"))
	require.Equal(t, grid.SelectSome, h.app.grid.HeaderState())
	require.Contains(t, h.app.View(), "[-]")

	h.send(tea.MouseMsg{X: 1, Y: tableTop - 1, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	require.Equal(t, grid.SelectAllRows, h.app.grid.HeaderState())
}

func TestSuggestionPanelApply(t *testing.T) {
	p := cannedProvider{resp: llm.SuggestResponse{Suggestions: []llm.FieldSuggestion{
		{Field: "classified_entity", Value: "Uber", Confidence: 0.8, Rationale: "ride share"},
		{Field: "accounting_category", Value: "Travel", Confidence: 0.7},
	}}}
	h := newHarness(t, p,
		row("r1", "UBER TRIP 1", 3, -1250),
		row("r2", "UBER TRIP 2", 2, -900),
	)
	h.press("s")
	b, ok := h.app.grid.Suggestions().Batch()
	require.True(t, ok)
	require.Len(t, b.Items, 2)
	require.Contains(t, h.app.View(), "ride share")

	h.press("space", "enter")
	require.Equal(t, "Uber", *h.stored("r1").ClassifiedEntity)
	require.Nil(t, h.stored("r1").AccountingCategory)

	panel, ok := h.app.grid.Suggestions().Similar()
	require.True(t, ok, "similar rows offered after applying")
	require.Equal(t, "r2", panel.Candidates[0].Record.ID)
	h.press("enter")
	require.Equal(t, "Uber", *h.stored("r2").ClassifiedEntity)

	h.press("esc")
	_, ok = h.app.grid.Suggestions().Similar()
	require.False(t, ok)
}

func TestSearchPrompt(t *testing.T) {
	h := newHarness(t, cannedProvider{},
		row("r1", "UBER TRIP 1", 3, -1250),
		row("r2", "LUNCH", 2, -4000),
	)
	h.press("/")
	h.typeText("uber")
	h.press("enter")

	require.Equal(t, "uber", h.app.query.Search)
	require.Equal(t, 1, h.app.grid.Rows().Len())
	require.Contains(t, h.app.View(), `search "uber"`)
}

func TestArchiveAndBulkEditKeys(t *testing.T) {
	h := newHarness(t, cannedProvider{},
		row("r1", "A", 3, -100),
		row("r2", "B", 2, -100),
		row("r3", "C", 1, -100),
	)
	h.moveTo(grid.FieldSubcategory)
	h.press("b")
	require.Contains(t, h.noticeText(), "at least two rows")

	h.press("space", "down", "space", "b")
	require.Equal(t, promptBulk, h.app.prompt)
	h.typeText("Lodging")
	h.press("enter")
	require.Equal(t, "Lodging", *h.stored("r1").Subcategory)
	require.Equal(t, "Lodging", *h.stored("r2").Subcategory)

	h.app.cursorRow = 2
	h.press("space", "x")
	require.Contains(t, h.noticeText(), "Archived 1 of 1")
	require.Equal(t, 2, h.app.grid.Rows().Len())

	h.press(".")
	require.Equal(t, 3, h.app.grid.Rows().Len())
}
