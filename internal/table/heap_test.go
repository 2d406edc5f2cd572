package table_test

import (
	"path/filepath"
	"testing"

	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/pager"
	"github.com/relstore/relstore/internal/record"
	"github.com/relstore/relstore/internal/table"
	"github.com/stretchr/testify/require"
)

func newHeap(t *testing.T) (*table.Heap, *catalog.TableSchema) {
	t.Helper()
	cols := []record.Column{
		{Name: "id", Type: record.TInt},
		{Name: "name", Type: record.TVarchar, Len: 16, Nullable: true},
	}
	schema := catalog.NewTableSchema("widgets", cols)
	schema.Free = catalog.NoPage
	schema.Full = catalog.NoPage

	cache := pager.NewCache(16)
	h, err := cache.Open(filepath.Join(t.TempDir(), "widgets.data"))
	require.NoError(t, err)

	return table.Open(cache, h, schema), schema
}

func row(id int32, name string) record.Record {
	return record.Record{
		Values:    []record.Value{record.Int(id), record.Varchar(name)},
		IndexKeys: 2,
	}
}

func TestHeapInsertAndScan(t *testing.T) {
	h, _ := newHeap(t)

	loc1, err := h.Insert(row(1, "a"))
	require.NoError(t, err)
	loc2, err := h.Insert(row(2, "b"))
	require.NoError(t, err)
	require.NotEqual(t, loc1, loc2)

	rows, err := h.Scan()
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestHeapGetPageSlotReadsExactRow(t *testing.T) {
	h, _ := newHeap(t)
	loc, err := h.Insert(row(7, "widget"))
	require.NoError(t, err)

	got, err := h.GetPageSlot(loc)
	require.NoError(t, err)
	require.Equal(t, int32(7), got.Values[0].I)
	require.Equal(t, "widget", got.Values[1].S)
}

func TestHeapUpdatePageSlotOverwritesRow(t *testing.T) {
	h, _ := newHeap(t)
	loc, err := h.Insert(row(1, "old"))
	require.NoError(t, err)

	require.NoError(t, h.UpdatePageSlot(loc, row(1, "new")))

	got, err := h.GetPageSlot(loc)
	require.NoError(t, err)
	require.Equal(t, "new", got.Values[1].S)
}

func TestHeapDeletePageSlotFreesSlotForReuse(t *testing.T) {
	h, schema := newHeap(t)
	loc, err := h.Insert(row(1, "a"))
	require.NoError(t, err)
	require.NoError(t, h.DeletePageSlot(loc))

	rows, err := h.Scan()
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Equal(t, uint32(0), schema.Free, "page with a freed slot should still be on the free list")
}

func TestHeapFillsAPageThenAllocatesAnother(t *testing.T) {
	h, schema := newHeap(t)
	max := schema.MaxRecords
	for i := 0; i < max; i++ {
		_, err := h.Insert(row(int32(i), "x"))
		require.NoError(t, err)
	}
	// The page that just filled up should have moved off the free list.
	require.Equal(t, catalog.NoPage, schema.Free)

	loc, err := h.Insert(row(int32(max), "overflow"))
	require.NoError(t, err)
	require.Equal(t, uint32(1), loc.Page, "a fresh page should be allocated once the first page is full")

	rows, err := h.Scan()
	require.NoError(t, err)
	require.Len(t, rows, max+1)
}

func TestHeapReclassifiesFullPageBackToFreeOnDelete(t *testing.T) {
	h, schema := newHeap(t)
	max := schema.MaxRecords
	var locs []table.Location
	for i := 0; i < max; i++ {
		loc, err := h.Insert(row(int32(i), "x"))
		require.NoError(t, err)
		locs = append(locs, loc)
	}
	require.Equal(t, catalog.NoPage, schema.Free)
	require.Equal(t, uint32(0), schema.Full)

	require.NoError(t, h.DeletePageSlot(locs[0]))
	require.Equal(t, uint32(0), schema.Free)
	require.Equal(t, catalog.NoPage, schema.Full)
}
