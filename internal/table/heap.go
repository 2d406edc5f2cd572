// Package table implements the slotted-page heap store used for table rows:
// fixed-size record slots inside fixed-size pages, tracked by a per-page
// occupancy bitmap and organized into two intrusive singly-linked lists
// (free pages with room, full pages without) for O(1) insertion-point
// location.
package table

import (
	"encoding/binary"
	"fmt"

	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/pager"
	"github.com/relstore/relstore/internal/record"
	"github.com/relstore/relstore/internal/relerr"
)

// linkFieldSize is the width of a heap page's "next_free_or_full" pointer.
const linkFieldSize = 4

// Location identifies a stored row by page and slot.
type Location struct {
	Page uint32
	Slot uint32
}

// Heap is the slotted-page store for one table's data file.
type Heap struct {
	cache  *pager.Cache
	handle pager.FileHandle
	schema *catalog.TableSchema
}

// Open attaches a Heap to an already-open file handle and its schema.
func Open(cache *pager.Cache, handle pager.FileHandle, schema *catalog.TableSchema) *Heap {
	return &Heap{cache: cache, handle: handle, schema: schema}
}

func (h *Heap) bitmapLen() int { return (h.schema.MaxRecords + 7) / 8 }

func (h *Heap) slotOffset(slot int) int {
	return linkFieldSize + h.bitmapLen() + slot*h.schema.Layout.Size
}

func (h *Heap) bitSet(buf []byte, slot int) bool {
	byteIdx := linkFieldSize + slot/8
	return buf[byteIdx]&(1<<uint(slot%8)) != 0
}

func (h *Heap) setBit(buf []byte, slot int, v bool) {
	byteIdx := linkFieldSize + slot/8
	mask := byte(1) << uint(slot%8)
	if v {
		buf[byteIdx] |= mask
	} else {
		buf[byteIdx] &^= mask
	}
}

func link(buf []byte) uint32       { return binary.LittleEndian.Uint32(buf[0:4]) }
func setLink(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf[0:4], v) }

// newPage allocates page id p as an empty heap page (zero bitmap, no link).
func (h *Heap) newPage(p uint32) ([]byte, error) {
	buf, err := h.cache.GetMut(h.handle, pager.PageID(p))
	if err != nil {
		return nil, err
	}
	for i := range buf {
		buf[i] = 0
	}
	setLink(buf, catalog.NoPage)
	h.schema.PageCount++
	return buf, nil
}

func (h *Heap) firstZeroBit(buf []byte) (int, bool) {
	for slot := 0; slot < h.schema.MaxRecords; slot++ {
		if !h.bitSet(buf, slot) {
			return slot, true
		}
	}
	return 0, false
}

func (h *Heap) isFull(buf []byte) bool {
	_, ok := h.firstZeroBit(buf)
	return !ok
}

// Insert stores rec, following the free/full insertion rule. It does not
// validate rec: the caller is expected to have already applied defaults,
// checked types and checked constraints.
func (h *Heap) Insert(rec record.Record) (Location, error) {
	var pageID uint32
	var buf []byte
	var err error

	if h.schema.Free == catalog.NoPage {
		pageID = uint32(h.schema.PageCount)
		buf, err = h.newPage(pageID)
		if err != nil {
			return Location{}, err
		}
		h.schema.Free = pageID
	} else {
		pageID = h.schema.Free
		buf, err = h.cache.GetMut(h.handle, pager.PageID(pageID))
		if err != nil {
			return Location{}, err
		}
	}

	slot, ok := h.firstZeroBit(buf)
	if !ok {
		return Location{}, relerr.New(relerr.IO, "insert", "") // should not happen: page was on the free list
	}
	if err := h.schema.Layout.Encode(rec, buf[h.slotOffset(slot):]); err != nil {
		return Location{}, relerr.Wrap(relerr.IO, "insert", h.schema.Name, err)
	}
	h.setBit(buf, slot, true)

	if h.isFull(buf) {
		if err := h.unlinkFromFree(pageID, buf); err != nil {
			return Location{}, err
		}
		if err := h.pushFull(pageID, buf); err != nil {
			return Location{}, err
		}
	}
	return Location{Page: pageID, Slot: uint32(slot)}, nil
}

func (h *Heap) unlinkFromFree(pageID uint32, buf []byte) error {
	if h.schema.Free == pageID {
		h.schema.Free = link(buf)
		return nil
	}
	cur := h.schema.Free
	for cur != catalog.NoPage {
		cbuf, err := h.cache.Get(h.handle, pager.PageID(cur))
		if err != nil {
			return err
		}
		next := link(cbuf)
		if next == pageID {
			mut, err := h.cache.GetMut(h.handle, pager.PageID(cur))
			if err != nil {
				return err
			}
			setLink(mut, link(buf))
			return nil
		}
		cur = next
	}
	return fmt.Errorf("table: page %d not found on free list", pageID)
}

func (h *Heap) pushFull(pageID uint32, buf []byte) error {
	setLink(buf, h.schema.Full)
	h.schema.Full = pageID
	return nil
}

func (h *Heap) unlinkFromFull(pageID uint32, buf []byte) error {
	if h.schema.Full == pageID {
		h.schema.Full = link(buf)
		return nil
	}
	cur := h.schema.Full
	for cur != catalog.NoPage {
		cbuf, err := h.cache.Get(h.handle, pager.PageID(cur))
		if err != nil {
			return err
		}
		next := link(cbuf)
		if next == pageID {
			mut, err := h.cache.GetMut(h.handle, pager.PageID(cur))
			if err != nil {
				return err
			}
			setLink(mut, link(buf))
			return nil
		}
		cur = next
	}
	return fmt.Errorf("table: page %d not found on full list", pageID)
}

func (h *Heap) pushFree(pageID uint32, buf []byte) {
	setLink(buf, h.schema.Free)
	h.schema.Free = pageID
}

// Row pairs a decoded record with its stored location.
type Row struct {
	Record record.Record
	Loc    Location
}

// forEachPage walks the free list then the full list.
func (h *Heap) forEachPage(fn func(pageID uint32, buf []byte) error) error {
	for _, head := range []uint32{h.schema.Free, h.schema.Full} {
		cur := head
		for cur != catalog.NoPage {
			buf, err := h.cache.Get(h.handle, pager.PageID(cur))
			if err != nil {
				return err
			}
			next := link(buf)
			if err := fn(cur, buf); err != nil {
				return err
			}
			cur = next
		}
	}
	return nil
}

// Scan returns every live row, in free-list-then-full-list traversal order.
func (h *Heap) Scan() ([]Row, error) {
	var rows []Row
	err := h.forEachPage(func(pageID uint32, buf []byte) error {
		for slot := 0; slot < h.schema.MaxRecords; slot++ {
			if !h.bitSet(buf, slot) {
				continue
			}
			rec, err := h.schema.Layout.Decode(buf[h.slotOffset(slot):])
			if err != nil {
				return err
			}
			rows = append(rows, Row{Record: rec, Loc: Location{Page: pageID, Slot: uint32(slot)}})
		}
		return nil
	})
	return rows, err
}

// GetPageSlot reads the row at an exact location, used when an index has
// already pinpointed it and scanning the page list can be skipped.
func (h *Heap) GetPageSlot(loc Location) (record.Record, error) {
	buf, err := h.cache.Get(h.handle, pager.PageID(loc.Page))
	if err != nil {
		return record.Record{}, err
	}
	if !h.bitSet(buf, int(loc.Slot)) {
		return record.Record{}, fmt.Errorf("table: slot %d of page %d is empty", loc.Slot, loc.Page)
	}
	return h.schema.Layout.Decode(buf[h.slotOffset(int(loc.Slot)):])
}

// UpdatePageSlot overwrites the row at loc with rec.
func (h *Heap) UpdatePageSlot(loc Location, rec record.Record) error {
	buf, err := h.cache.GetMut(h.handle, pager.PageID(loc.Page))
	if err != nil {
		return err
	}
	return h.schema.Layout.Encode(rec, buf[h.slotOffset(int(loc.Slot)):])
}

// DeletePageSlot clears the slot at loc and applies the free/full
// reclassification rule.
func (h *Heap) DeletePageSlot(loc Location) error {
	buf, err := h.cache.GetMut(h.handle, pager.PageID(loc.Page))
	if err != nil {
		return err
	}
	wasFull := h.isFull(buf)
	h.setBit(buf, int(loc.Slot), false)
	if wasFull {
		if err := h.unlinkFromFull(loc.Page, buf); err != nil {
			return err
		}
		h.pushFree(loc.Page, buf)
	}
	return nil
}
