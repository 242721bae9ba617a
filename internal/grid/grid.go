package grid

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jask/ledgergrid/internal/metrics"
)

// Grid ties the components together. Each component owns its own state and is
// reached only through its methods.
type Grid struct {
	d         *deps
	registry  *Registry
	selection *Selection
	edits     *EditController
	drag      *DragFill
	arbiter   *Arbiter
	workflow  *Workflow

	query     Query
	reloadSeq uint64
	loading   bool
}

type Option func(*Grid)

func WithLogger(l *zap.Logger) Option {
	return func(g *Grid) {
		if l != nil {
			g.d.log = l
		}
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(g *Grid) { g.d.metrics = c }
}

func WithOptions(src OptionSource) Option {
	return func(g *Grid) { g.edits.options = src }
}

func New(ctx context.Context, backend Backend, opts ...Option) *Grid {
	if ctx == nil {
		ctx = context.Background()
	}
	d := &deps{ctx: ctx, backend: backend, log: zap.NewNop()}
	g := &Grid{
		d:         d,
		registry:  NewRegistry(),
		selection: NewSelection(),
		arbiter:   NewArbiter(),
		query:     Query{Page: 1, PageSize: 50},
	}
	g.workflow = &Workflow{d: d, reg: g.registry, arb: g.arbiter}
	g.drag = &DragFill{d: d, reg: g.registry, summary: g.RefreshSummary}
	g.edits = &EditController{
		d:        d,
		reg:      g.registry,
		sel:      g.selection,
		drag:     g.drag,
		workflow: g.workflow,
		reload:   g.Refresh,
		sessions: make(map[Cell]*EditSession),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Grid) Rows() *Registry             { return g.registry }
func (g *Grid) Selection() *Selection       { return g.selection }
func (g *Grid) Edits() *EditController      { return g.edits }
func (g *Grid) DragFill() *DragFill         { return g.drag }
func (g *Grid) Arbiter() *Arbiter           { return g.arbiter }
func (g *Grid) Suggestions() *Workflow      { return g.workflow }
func (g *Grid) Query() Query                { return g.query }
func (g *Grid) Loading() bool               { return g.loading }
func (g *Grid) Affordances() Affordances    { return g.selection.Affordances() }
func (g *Grid) HeaderState() SelectAllState { return g.selection.HeaderState(g.registry.IDs()) }

// Notices drains the queued notices.
func (g *Grid) Notices() []Notice {
	out := g.d.notices
	g.d.notices = nil
	return out
}

// Reload fetches rows for q. Only the response of the latest reload is applied.
func (g *Grid) Reload(q Query) tea.Cmd {
	g.query = q
	g.reloadSeq++
	g.loading = true
	seq := g.reloadSeq
	ctx, backend := g.d.ctx, g.d.backend
	return func() tea.Msg {
		page, err := backend.ReloadRows(ctx, q)
		return RowsLoadedMsg{Seq: seq, Page: page, Err: err}
	}
}

// Refresh reloads with the current query.
func (g *Grid) Refresh() tea.Cmd {
	return g.Reload(g.query)
}

// RefreshSummary fetches summary statistics without touching the rows.
func (g *Grid) RefreshSummary() tea.Cmd {
	q := g.query
	ctx, backend := g.d.ctx, g.d.backend
	return func() tea.Msg {
		s, err := backend.FetchSummary(ctx, q)
		return SummaryMsg{Summary: s, Err: err}
	}
}

// ArchiveSelected archives every selected row.
func (g *Grid) ArchiveSelected() (tea.Cmd, error) {
	ids := g.selection.IDs()
	if len(ids) == 0 {
		g.d.notify(NoticeWarn, ErrNoSelection.Error())
		return nil, ErrNoSelection
	}
	ctx, backend := g.d.ctx, g.d.backend
	return func() tea.Msg {
		n, err := backend.ArchiveTransactions(ctx, ids)
		return ArchivedMsg{IDs: ids, Count: n, Err: err}
	}, nil
}

// BulkEdit writes one value to every selected row through the bulk-edit control.
func (g *Grid) BulkEdit(f Field, value string) (tea.Cmd, error) {
	ids := g.selection.IDs()
	if !AffordancesFor(len(ids)).BulkEdit {
		g.d.notify(NoticeWarn, "select at least two rows to bulk edit")
		return nil, ErrNoSelection
	}
	if !f.Editable() {
		return nil, ErrReadOnlyField
	}
	value = Sanitize(value)
	if value == "" {
		g.d.notify(NoticeWarn, fmt.Sprintf("%s: %v", f.Title(), ErrEmptyValue))
		return nil, ErrEmptyValue
	}
	updates := make([]FieldUpdate, 0, len(ids))
	for _, id := range ids {
		updates = append(updates, FieldUpdate{TxID: id, Field: f, Value: value})
	}
	ctx, backend := g.d.ctx, g.d.backend
	return func() tea.Msg {
		_, err := backend.BulkUpdateFields(ctx, updates)
		return BulkEditedMsg{Field: f, Value: value, IDs: ids, Err: err}
	}, nil
}

// Update routes a response message to its owner. It reports whether msg was a
// grid message.
func (g *Grid) Update(msg tea.Msg) (bool, tea.Cmd) {
	switch m := msg.(type) {
	case RowsLoadedMsg:
		return true, g.handleRowsLoaded(m)
	case SummaryMsg:
		if m.Err != nil {
			g.d.fail("summary", m.Err)
			return true, nil
		}
		g.registry.SetSummary(m.Summary)
		return true, nil
	case FieldCommittedMsg:
		return true, g.edits.handleCommitted(m)
	case BulkCommittedMsg:
		return true, g.edits.handleBulkCommitted(m)
	case DragFillAppliedMsg:
		return true, g.drag.handleApplied(m)
	case ArchivedMsg:
		return true, g.handleArchived(m)
	case BulkEditedMsg:
		return true, g.handleBulkEdited(m)
	case SuggestionsMsg:
		return true, g.workflow.handleSuggestions(m)
	case SuggestionsAppliedMsg:
		return true, g.workflow.handleApplied(m)
	case SimilarFoundMsg:
		return true, g.workflow.handleSimilarFound(m)
	case SimilarAppliedMsg:
		return true, g.workflow.handleSimilarApplied(m)
	}
	return false, nil
}

func (g *Grid) handleRowsLoaded(m RowsLoadedMsg) tea.Cmd {
	if m.Seq != g.reloadSeq {
		g.d.log.Debug("discarding stale reload", zap.Uint64("seq", m.Seq), zap.Uint64("latest", g.reloadSeq))
		return nil
	}
	g.loading = false
	if m.Err != nil {
		g.d.fail("reload rows", m.Err)
		return nil
	}
	g.registry.Replace(m.Page)
	g.selection.Clear()
	g.edits.TeardownMissing()
	if g.drag.Active() && !g.registry.Has(g.drag.source) {
		g.drag.Cancel()
	}
	return g.RefreshSummary()
}

func (g *Grid) handleArchived(m ArchivedMsg) tea.Cmd {
	if m.Err != nil {
		g.d.fail("archive", m.Err)
		return nil
	}
	g.selection.Clear()
	g.d.metrics.Commit("archive", m.Count)
	g.d.notify(NoticeInfo, fmt.Sprintf("Archived %d of %d transactions", m.Count, len(m.IDs)))
	return g.Refresh()
}

func (g *Grid) handleBulkEdited(m BulkEditedMsg) tea.Cmd {
	if m.Err != nil {
		g.d.fail("bulk edit "+string(m.Field), m.Err)
		return nil
	}
	for _, id := range m.IDs {
		g.registry.SetValue(id, m.Field, m.Value)
	}
	g.selection.Clear()
	g.d.metrics.Commit("bulk", len(m.IDs))
	g.d.notify(NoticeInfo, fmt.Sprintf("Updated %s on %d rows", m.Field.Title(), len(m.IDs)))
	return g.Refresh()
}
