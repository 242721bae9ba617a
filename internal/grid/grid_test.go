package grid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReloadReplacesRowsAndClearsSelection(t *testing.T) {
	g, b := newLoadedGrid(t, 3)
	g.Selection().SelectAll([]string{"tx1", "tx2"})
	require.Equal(t, SelectSome, g.HeaderState())

	drain(t, g, g.Refresh())
	require.Zero(t, g.Selection().Count())
	require.Equal(t, SelectNone, g.HeaderState())
	require.False(t, g.Loading())
	require.Equal(t, 3, g.Rows().Summary().Count)
	require.Equal(t, 2, b.callCount("reload"))
}

func TestStaleReloadIsDiscarded(t *testing.T) {
	g, b := newLoadedGrid(t, 3)
	older := g.Reload(Query{Page: 1, PageSize: 50, Search: "old"})
	olderMsg := older()

	b.order = b.order[:1]
	newer := g.Reload(Query{Page: 1, PageSize: 50, Search: "new"})
	drain(t, g, newer)
	require.Equal(t, 1, g.Rows().Len())

	require.Nil(t, deliver(t, g, olderMsg))
	require.Equal(t, 1, g.Rows().Len())
	require.Equal(t, "new", g.Query().Search)
}

func TestReloadFailureKeepsRows(t *testing.T) {
	g, b := newLoadedGrid(t, 2)
	b.failOps["reload"] = errBoom
	drain(t, g, g.Refresh())
	require.Equal(t, 2, g.Rows().Len())
	require.False(t, g.Loading())
	require.True(t, hasNotice(g.Notices(), NoticeError))
}

func TestCommitThenReloadRoundTrips(t *testing.T) {
	g, _ := newLoadedGrid(t, 2)
	cell := Cell{TxID: "tx2", Field: FieldJustification}
	_, err := g.Edits().BeginEdit(cell)
	require.NoError(t, err)
	_, cmd, err := g.Edits().CommitEdit(cell, "quarterly rent")
	require.NoError(t, err)
	drain(t, g, cmd)

	drain(t, g, g.Refresh())
	v, ok := g.Rows().Value("tx2", FieldJustification)
	require.True(t, ok)
	require.Equal(t, "quarterly rent", v)
}

func TestArchiveSelected(t *testing.T) {
	g, b := newLoadedGrid(t, 3)

	_, err := g.ArchiveSelected()
	require.ErrorIs(t, err, ErrNoSelection)
	require.False(t, g.Affordances().Archive)

	g.Selection().Toggle("tx2")
	require.True(t, g.Affordances().Archive)
	require.False(t, g.Affordances().BulkEdit)
	cmd, err := g.ArchiveSelected()
	require.NoError(t, err)
	drain(t, g, cmd)

	require.Equal(t, 2, g.Rows().Len())
	require.False(t, g.Rows().Has("tx2"))
	require.Zero(t, g.Selection().Count())
	require.Equal(t, 1, b.callCount("archive"))

	notices := g.Notices()
	require.True(t, hasNotice(notices, NoticeInfo))
	require.Contains(t, notices[len(notices)-1].Text, "Archived 1 of 1")
}

func TestBulkEditNeedsTwoRows(t *testing.T) {
	g, b := newLoadedGrid(t, 3)
	g.Selection().Toggle("tx1")
	_, err := g.BulkEdit(FieldAccountingCategory, "Rent")
	require.ErrorIs(t, err, ErrNoSelection)

	g.Selection().Toggle("tx3")
	_, err = g.BulkEdit(FieldConfidence, "1")
	require.ErrorIs(t, err, ErrReadOnlyField)
	_, err = g.BulkEdit(FieldAccountingCategory, "   ")
	require.ErrorIs(t, err, ErrEmptyValue)

	cmd, err := g.BulkEdit(FieldAccountingCategory, "Rent")
	require.NoError(t, err)
	drain(t, g, cmd)
	require.Equal(t, 1, b.callCount("bulk"))
	require.Equal(t, "Rent", b.value("tx1", FieldAccountingCategory))
	require.Equal(t, "Rent", b.value("tx3", FieldAccountingCategory))
	require.Equal(t, Placeholder, b.value("tx2", FieldAccountingCategory))
	require.Zero(t, g.Selection().Count())
}

func TestUpdateIgnoresForeignMessages(t *testing.T) {
	g := New(context.Background(), newFakeBackend(0))
	handled, cmd := g.Update(struct{}{})
	require.False(t, handled)
	require.Nil(t, cmd)
}
