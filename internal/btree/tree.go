package btree

import (
	"fmt"

	"github.com/relstore/relstore/internal/pager"
	"github.com/relstore/relstore/internal/record"
)

// decodeEntries reads every entry of a node into memory. Nodes are
// manipulated as in-memory entry slices during insert/split rather than
// byte-shifted in place on the page, since a node already at capacity M has
// no spare room for the M+1th entry a pending split needs to hold.
func (t *Tree) decodeEntries(buf []byte) (header, []record.Record) {
	h := readHeader(buf)
	entries := make([]record.Record, h.size)
	for i := 0; i < h.size; i++ {
		entries[i] = t.decodeEntry(buf, i, h.leaf)
	}
	return h, entries
}

func (t *Tree) encodeNode(id uint32, h header, entries []record.Record) error {
	buf, err := t.cache.GetMut(t.handle, pager.PageID(id))
	if err != nil {
		return err
	}
	for i := range buf {
		buf[i] = 0
	}
	h.size = len(entries)
	writeHeader(buf, h)
	for i, e := range entries {
		t.encodeEntry(buf, i, h.leaf, e)
	}
	return nil
}

func (t *Tree) readNode(id uint32) (header, []record.Record, error) {
	buf, err := t.cache.Get(t.handle, pager.PageID(id))
	if err != nil {
		return header{}, nil, err
	}
	h, entries := t.decodeEntries(buf)
	return h, entries, nil
}

func (t *Tree) setParent(id, parent uint32) error {
	h, entries, err := t.readNode(id)
	if err != nil {
		return err
	}
	h.parent = parent
	return t.encodeNode(id, h, entries)
}

// searchInternal returns the index of the entry to follow: the largest
// entry with key <= search key, or 0 if search key precedes all keys.
func (t *Tree) searchInternal(entries []record.Record, key record.Record) int {
	best := 0
	for i, e := range entries {
		if t.keyCompare(e, key) <= 0 {
			best = i
		} else {
			break
		}
	}
	return best
}

// descend walks from the root to the leaf that should contain key,
// returning the chain of internal page ids visited (root first, leaf's
// immediate parent last).
func (t *Tree) descend(key record.Record) (path []uint32, leaf uint32, err error) {
	if t.schema.Root == noPage {
		return nil, noPage, nil
	}
	cur := t.schema.Root
	for {
		h, entries, e := t.readNode(cur)
		if e != nil {
			return nil, noPage, e
		}
		if h.leaf {
			return path, cur, nil
		}
		path = append(path, cur)
		idx := t.searchInternal(entries, key)
		cur = entries[idx].Child
	}
}

// Position names an entry inside a leaf, used both as a lookup result and
// as an iterator cursor.
type Position struct {
	Leaf uint32
	Idx  int
}

// Lookup descends to the leaf covering key and returns the position of the
// first entry with key >= the search key, scanning into following leaves
// if the covering leaf's own entries are all smaller (possible once
// deletions have emptied part of it). ok is false if no such entry exists.
func (t *Tree) Lookup(key record.Record) (pos Position, ok bool, err error) {
	_, leaf, err := t.descend(key)
	if err != nil || leaf == noPage {
		return Position{}, false, err
	}
	for leaf != noPage {
		h, entries, e := t.readNode(leaf)
		if e != nil {
			return Position{}, false, e
		}
		for i, entry := range entries {
			if t.keyCompare(entry, key) >= 0 {
				return Position{Leaf: leaf, Idx: i}, true, nil
			}
		}
		leaf = h.next
	}
	return Position{}, false, nil
}

// At returns the entry at a cursor position.
func (t *Tree) At(pos Position) (record.Record, error) {
	_, entries, err := t.readNode(pos.Leaf)
	if err != nil {
		return record.Record{}, err
	}
	if pos.Idx >= len(entries) {
		return record.Record{}, fmt.Errorf("btree: position out of range")
	}
	return entries[pos.Idx], nil
}

// Next advances a cursor, following the leaf chain at page boundaries.
// ok is false once past the last entry of the last leaf.
func (t *Tree) Next(pos Position) (next Position, ok bool, err error) {
	h, entries, err := t.readNode(pos.Leaf)
	if err != nil {
		return Position{}, false, err
	}
	if pos.Idx+1 < len(entries) {
		return Position{Leaf: pos.Leaf, Idx: pos.Idx + 1}, true, nil
	}
	if h.next == noPage {
		return Position{}, false, nil
	}
	return Position{Leaf: h.next, Idx: 0}, true, nil
}

// Contains reports whether the exact (key, page, slot) triple is present.
func (t *Tree) Contains(entry record.Record) (bool, error) {
	pos, ok, err := t.Lookup(entry)
	if err != nil || !ok {
		return false, err
	}
	for ok {
		found, err := t.At(pos)
		if err != nil {
			return false, err
		}
		if t.keyCompare(found, entry) != 0 {
			return false, nil
		}
		if t.fullCompare(found, entry) == 0 {
			return true, nil
		}
		if pos, ok, err = t.Next(pos); err != nil {
			return false, err
		}
	}
	return false, nil
}

func ceilDiv(n, d int) int { return (n + d - 1) / d }

// Insert adds a leaf entry (a key record carrying a (page, slot) payload),
// splitting nodes up the ancestry chain as needed.
func (t *Tree) Insert(entry record.Record) error {
	if t.schema.Root == noPage {
		id, err := t.allocPage()
		if err != nil {
			return err
		}
		if _, err := t.newNode(id, true); err != nil {
			return err
		}
		t.schema.Root = id
	}

	path, leaf, err := t.descend(entry)
	if err != nil {
		return err
	}
	leafHeader, entries, err := t.readNode(leaf)
	if err != nil {
		return err
	}
	insertAt := 0
	for insertAt < len(entries) && t.fullCompare(entries[insertAt], entry) < 0 {
		insertAt++
	}
	entries = append(entries, record.Record{})
	copy(entries[insertAt+1:], entries[insertAt:])
	entries[insertAt] = entry

	if len(entries) <= t.schema.M {
		return t.encodeNode(leaf, leafHeader, entries)
	}
	return t.splitLeaf(leaf, leafHeader, path, entries)
}

func (t *Tree) splitLeaf(leafID uint32, leafHeader header, path []uint32, entries []record.Record) error {
	mid := ceilDiv(t.schema.M, 2)
	left := entries[:mid]
	right := append([]record.Record(nil), entries[mid:]...)

	rightID, err := t.allocPage()
	if err != nil {
		return err
	}
	oldNext := leafHeader.next
	parent := noPage
	if len(path) > 0 {
		parent = path[len(path)-1]
	}

	if err := t.encodeNode(leafID, header{leaf: true, prev: leafHeader.prev, next: rightID, parent: parent}, left); err != nil {
		return err
	}
	if err := t.encodeNode(rightID, header{leaf: true, prev: leafID, next: oldNext, parent: parent}, right); err != nil {
		return err
	}
	if oldNext != noPage {
		if err := t.relinkPrev(oldNext, rightID); err != nil {
			return err
		}
	}

	upEntry := record.Record{Values: right[0].Values, IndexKeys: right[0].IndexKeys, Child: rightID}
	return t.insertIntoParent(path, leafID, upEntry)
}

func (t *Tree) relinkPrev(id, prev uint32) error {
	h, entries, err := t.readNode(id)
	if err != nil {
		return err
	}
	h.prev = prev
	return t.encodeNode(id, h, entries)
}

// insertIntoParent inserts upEntry (key + right child page) into the
// parent of leftID named by path, creating a new root if leftID was the
// root, and recursing into splitInternal if the parent itself overflows.
func (t *Tree) insertIntoParent(path []uint32, leftID uint32, upEntry record.Record) error {
	if len(path) == 0 {
		_, leftEntries, err := t.readNode(leftID)
		if err != nil {
			return err
		}
		leftMin := leftEntries[0]
		rootID, err := t.allocPage()
		if err != nil {
			return err
		}
		leftEntry := record.Record{Values: leftMin.Values, IndexKeys: leftMin.IndexKeys, Child: leftID}
		rootEntries := []record.Record{leftEntry, upEntry}
		if err := t.encodeNode(rootID, header{leaf: false, prev: noPage, next: noPage, parent: noPage}, rootEntries); err != nil {
			return err
		}
		t.schema.Root = rootID
		if err := t.setParent(leftID, rootID); err != nil {
			return err
		}
		return t.setParent(upEntry.Child, rootID)
	}

	parentID := path[len(path)-1]
	grandPath := path[:len(path)-1]
	parentHeader, entries, err := t.readNode(parentID)
	if err != nil {
		return err
	}
	insertAt := 0
	for insertAt < len(entries) && t.keyCompare(entries[insertAt], upEntry) < 0 {
		insertAt++
	}
	entries = append(entries, record.Record{})
	copy(entries[insertAt+1:], entries[insertAt:])
	entries[insertAt] = upEntry

	if len(entries) <= t.schema.M {
		return t.encodeNode(parentID, parentHeader, entries)
	}
	return t.splitInternal(parentID, parentHeader, grandPath, entries)
}

func (t *Tree) splitInternal(nodeID uint32, nodeHeader header, path []uint32, entries []record.Record) error {
	mid := ceilDiv(t.schema.M, 2)
	left := entries[:mid]
	right := append([]record.Record(nil), entries[mid:]...)

	rightID, err := t.allocPage()
	if err != nil {
		return err
	}
	parent := noPage
	if len(path) > 0 {
		parent = path[len(path)-1]
	}

	if err := t.encodeNode(nodeID, header{leaf: false, prev: noPage, next: noPage, parent: parent}, left); err != nil {
		return err
	}
	if err := t.encodeNode(rightID, header{leaf: false, prev: noPage, next: noPage, parent: parent}, right); err != nil {
		return err
	}
	for _, e := range right {
		if err := t.setParent(e.Child, rightID); err != nil {
			return err
		}
	}

	upEntry := record.Record{Values: right[0].Values, IndexKeys: right[0].IndexKeys, Child: rightID}
	return t.insertIntoParent(path, nodeID, upEntry)
}

// Remove deletes the exact (key, page, slot) leaf entry. Underflow is not
// rebalanced — under-filled nodes are left as-is, with space reclaimed only
// on an overall rebuild; empty leaves still unlink from the sibling chain
// and empty internal roots collapse to their sole remaining child.
func (t *Tree) Remove(entry record.Record) error {
	path, leaf, err := t.descend(entry)
	if err != nil {
		return err
	}
	if leaf == noPage {
		return fmt.Errorf("btree: remove from empty tree")
	}
	h, entries, err := t.readNode(leaf)
	if err != nil {
		return err
	}
	idx := -1
	for i, e := range entries {
		if t.fullCompare(e, entry) == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("btree: entry not found")
	}
	entries = append(entries[:idx], entries[idx+1:]...)

	if len(entries) == 0 && leaf != t.schema.Root {
		if h.prev != noPage {
			if err := t.relinkNext(h.prev, h.next); err != nil {
				return err
			}
		}
		if h.next != noPage {
			if err := t.relinkPrev(h.next, h.prev); err != nil {
				return err
			}
		}
		if err := t.freePage(leaf); err != nil {
			return err
		}
		return t.collapseIfEmpty(path, leaf)
	}
	return t.encodeNode(leaf, h, entries)
}

func (t *Tree) relinkNext(id, next uint32) error {
	h, entries, err := t.readNode(id)
	if err != nil {
		return err
	}
	h.next = next
	return t.encodeNode(id, h, entries)
}

// collapseIfEmpty removes a now-empty child from its parent's entry list,
// recursing upward, and replaces an emptied root with its sole remaining
// child, or marks the tree empty if none remains.
func (t *Tree) collapseIfEmpty(path []uint32, emptiedChild uint32) error {
	if len(path) == 0 {
		t.schema.Root = noPage
		return nil
	}
	parentID := path[len(path)-1]
	grandPath := path[:len(path)-1]
	h, entries, err := t.readNode(parentID)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.Child == emptiedChild {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		if err := t.freePage(parentID); err != nil {
			return err
		}
		return t.collapseIfEmpty(grandPath, parentID)
	}
	if len(entries) == 1 && parentID == t.schema.Root {
		t.schema.Root = entries[0].Child
		if err := t.setParent(entries[0].Child, noPage); err != nil {
			return err
		}
		return t.freePage(parentID)
	}
	return t.encodeNode(parentID, h, entries)
}
