package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// fakeBackend keeps rows in memory and records every call.
type fakeBackend struct {
	mu          sync.Mutex
	order       []string
	rows        map[string]Record
	calls       []string
	bulkBatches [][]FieldUpdate
	failOps     map[string]error
	failFields  map[Field]error
	confidence  *float64
	suggestions map[string][]Suggestion
	similar     []Record
}

func newFakeBackend(n int) *fakeBackend {
	b := &fakeBackend{
		rows:        make(map[string]Record),
		failOps:     make(map[string]error),
		failFields:  make(map[Field]error),
		suggestions: make(map[string][]Suggestion),
	}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("tx%d", i)
		b.order = append(b.order, id)
		b.rows[id] = Record{ID: id, Confidence: 0.5, Values: map[Field]string{
			FieldDescription:        fmt.Sprintf("PAYMENT %d", i),
			FieldAmount:             fmt.Sprintf("-%d.00", i*10),
			FieldCurrency:           "USD",
			FieldClassifiedEntity:   Placeholder,
			FieldAccountingCategory: Placeholder,
			FieldOrigin:             fmt.Sprintf("0xorigin%02dabcdef0123456789", i),
		}}
	}
	return b
}

func (b *fakeBackend) record(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, op)
	return b.failOps[op]
}

func (b *fakeBackend) callCount(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (b *fakeBackend) value(id string, f Field) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rows[id].Value(f)
}

func (b *fakeBackend) set(id string, f Field, v string) {
	rec := b.rows[id]
	rec.Values[f] = v
	b.rows[id] = rec
}

func (b *fakeBackend) UpdateField(_ context.Context, txID string, field Field, value string) (UpdateResult, error) {
	if err := b.record("update"); err != nil {
		return UpdateResult{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failFields[field]; err != nil {
		return UpdateResult{}, err
	}
	if _, ok := b.rows[txID]; !ok {
		return UpdateResult{}, fmt.Errorf("unknown transaction %s", txID)
	}
	b.set(txID, field, value)
	return UpdateResult{Confidence: b.confidence}, nil
}

func (b *fakeBackend) BulkUpdateFields(_ context.Context, updates []FieldUpdate) (BulkResult, error) {
	if err := b.record("bulk"); err != nil {
		return BulkResult{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bulkBatches = append(b.bulkBatches, append([]FieldUpdate(nil), updates...))
	for _, u := range updates {
		if err := b.failFields[u.Field]; err != nil {
			return BulkResult{}, err
		}
	}
	for _, u := range updates {
		b.set(u.TxID, u.Field, u.Value)
	}
	return BulkResult{Updated: len(updates)}, nil
}

func (b *fakeBackend) FetchSuggestions(_ context.Context, txID string, _ SuggestionKind, _ map[string]string) ([]Suggestion, error) {
	if err := b.record("suggest"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suggestions[txID], nil
}

func (b *fakeBackend) FetchSimilarByFields(_ context.Context, _ string, _ map[Field]string) ([]Record, error) {
	if err := b.record("similar"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.similar, nil
}

func (b *fakeBackend) ArchiveTransactions(_ context.Context, ids []string) (int, error) {
	if err := b.record("archive"); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := b.rows[id]; ok {
			delete(b.rows, id)
			n++
		}
	}
	var order []string
	for _, id := range b.order {
		if _, ok := b.rows[id]; ok {
			order = append(order, id)
		}
	}
	b.order = order
	return n, nil
}

func (b *fakeBackend) ReloadRows(_ context.Context, q Query) (Page, error) {
	if err := b.record("reload"); err != nil {
		return Page{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.rows[id].Clone())
	}
	return Page{Records: out, Pagination: Pagination{Page: 1, PageSize: q.PageSize, Total: len(out), TotalPages: 1}}, nil
}

func (b *fakeBackend) FetchSummary(_ context.Context, _ Query) (Summary, error) {
	if err := b.record("summary"); err != nil {
		return Summary{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return Summary{Count: len(b.rows)}, nil
}

// newLoadedGrid returns a grid with n rows already loaded.
func newLoadedGrid(t *testing.T, n int) (*Grid, *fakeBackend) {
	t.Helper()
	b := newFakeBackend(n)
	g := New(context.Background(), b)
	drain(t, g, g.Reload(Query{Page: 1, PageSize: 50}))
	require.Equal(t, n, g.Rows().Len())
	g.Notices()
	return g, b
}

// drain runs cmd and every follow-up command to completion, feeding each
// message through the grid.
func drain(t *testing.T, g *Grid, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 100, "command chain did not settle")
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg := next()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		handled, follow := g.Update(msg)
		require.True(t, handled, "unexpected message %T", msg)
		queue = append(queue, follow)
	}
}

// deliver feeds one message and returns its follow-up without running it.
func deliver(t *testing.T, g *Grid, msg tea.Msg) tea.Cmd {
	t.Helper()
	handled, follow := g.Update(msg)
	require.True(t, handled, "unexpected message %T", msg)
	return follow
}

func hasNotice(notices []Notice, level NoticeLevel) bool {
	for _, n := range notices {
		if n.Level == level {
			return true
		}
	}
	return false
}
