// Package btree implements the on-disk B+-tree index: one node per page, a
// 20-byte header (leaf flag, entry count, sibling links, parent), and
// sorted entries following it — internal entries carrying a child page,
// leaf entries carrying a (page, slot) row location and chained into a
// doubly-linked leaf list for ordered range scans.
package btree

import (
	"encoding/binary"

	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/pager"
	"github.com/relstore/relstore/internal/record"
)

// headerSize is the fixed size of a node header: leaf 1B + pad 3B +
// size 4B + prev 4B + next 4B + parent 4B.
const headerSize = 20

// Sentinel page id meaning "no page" for prev/next/parent links, matching
// catalog.NoPage so the two packages agree on the absent-page encoding.
const noPage = catalog.NoPage

type header struct {
	leaf   bool
	size   int
	prev   uint32
	next   uint32
	parent uint32
}

func readHeader(buf []byte) header {
	return header{
		leaf:   buf[0] == 1,
		size:   int(binary.LittleEndian.Uint32(buf[4:8])),
		prev:   binary.LittleEndian.Uint32(buf[8:12]),
		next:   binary.LittleEndian.Uint32(buf[12:16]),
		parent: binary.LittleEndian.Uint32(buf[16:20]),
	}
}

func writeHeader(buf []byte, h header) {
	buf[0] = 0
	if h.leaf {
		buf[0] = 1
	}
	buf[1], buf[2], buf[3] = 0, 0, 0
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.size))
	binary.LittleEndian.PutUint32(buf[8:12], h.prev)
	binary.LittleEndian.PutUint32(buf[12:16], h.next)
	binary.LittleEndian.PutUint32(buf[16:20], h.parent)
}

// Tree drives one index's file: node storage, descent, insertion with
// splitting, and deletion, all addressed through the shared page cache.
type Tree struct {
	cache  *pager.Cache
	handle pager.FileHandle
	schema *catalog.IndexSchema
}

// Open attaches a Tree to an open file handle and its index schema.
func Open(cache *pager.Cache, handle pager.FileHandle, schema *catalog.IndexSchema) *Tree {
	return &Tree{cache: cache, handle: handle, schema: schema}
}

func (t *Tree) leafEntrySize() int     { return t.schema.Layout.Size }
func (t *Tree) internalEntrySize() int { return t.schema.InternalLayout().Size }

func (t *Tree) entrySize(leaf bool) int {
	if leaf {
		return t.leafEntrySize()
	}
	return t.internalEntrySize()
}

func entryOffset(idx, entrySize int) int { return headerSize + idx*entrySize }

// allocPage reserves a fresh page id, preferring the index's free list
// before growing the file.
func (t *Tree) allocPage() (uint32, error) {
	if t.schema.Free != noPage {
		id := t.schema.Free
		buf, err := t.cache.Get(t.handle, pager.PageID(id))
		if err != nil {
			return 0, err
		}
		t.schema.Free = binary.LittleEndian.Uint32(buf[0:4])
		return id, nil
	}
	id := uint32(t.schema.PageCount)
	t.schema.PageCount++
	return id, nil
}

func (t *Tree) freePage(id uint32) error {
	buf, err := t.cache.GetMut(t.handle, pager.PageID(id))
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[0:4], t.schema.Free)
	t.schema.Free = id
	return nil
}

// newNode formats page id as an empty node of the given kind.
func (t *Tree) newNode(id uint32, leaf bool) ([]byte, error) {
	buf, err := t.cache.GetMut(t.handle, pager.PageID(id))
	if err != nil {
		return nil, err
	}
	for i := range buf {
		buf[i] = 0
	}
	writeHeader(buf, header{leaf: leaf, prev: noPage, next: noPage, parent: noPage})
	return buf, nil
}

// Entry is a decoded node entry: a key record plus, for leaf entries, the
// row location, or, for internal entries, the child page.
type Entry struct {
	Key   record.Record
	Child uint32 // internal entries only
}

func (t *Tree) decodeEntry(buf []byte, idx int, leaf bool) record.Record {
	layout := t.schema.Layout
	if !leaf {
		layout = t.schema.InternalLayout()
	}
	off := entryOffset(idx, t.entrySize(leaf))
	rec, _ := layout.Decode(buf[off:])
	return rec
}

func (t *Tree) encodeEntry(buf []byte, idx int, leaf bool, rec record.Record) {
	layout := t.schema.Layout
	if !leaf {
		layout = t.schema.InternalLayout()
	}
	off := entryOffset(idx, t.entrySize(leaf))
	layout.Encode(rec, buf[off:])
}

// keyCompare compares two entries' key prefixes using the index's key layout.
func (t *Tree) keyCompare(a, b record.Record) int {
	return t.schema.Layout.Compare(a, b)
}

// fullCompare orders by key then by (page, slot), used to make duplicate
// keys totally ordered at the leaf level.
func (t *Tree) fullCompare(a, b record.Record) int {
	if c := t.keyCompare(a, b); c != 0 {
		return c
	}
	switch {
	case a.Page != b.Page:
		if a.Page < b.Page {
			return -1
		}
		return 1
	case a.Slot != b.Slot:
		if a.Slot < b.Slot {
			return -1
		}
		return 1
	default:
		return 0
	}
}
