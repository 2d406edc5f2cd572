// Package pager implements the paged buffer cache that mediates all disk
// I/O for table and index files: a map of opaque file handles to open
// descriptors, and an LRU pool of fixed-size page buffers with dirty
// tracking and write-back.
//
// The cache is exclusively owned by a single System instance and expects
// single-threaded, synchronous use — it carries no locking of its own.
package pager

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// PageSize is the fixed size in bytes of every page in every table and
// index file.
const PageSize = 8192

// CacheSize is the default number of page buffers the cache keeps resident.
const CacheSize = 256

// PageID identifies a page within a single file. Page 0 is an ordinary
// data page; no page is reserved for metadata.
type PageID uint32

// FileHandle is an opaque, copyable identifier for an open file, so that
// table and index stores can name the same file without coordinating the
// lifetime of an *os.File directly.
type FileHandle uuid.UUID

func (h FileHandle) String() string { return uuid.UUID(h).String() }

type pageKey struct {
	h FileHandle
	p PageID
}

type frame struct {
	key   pageKey
	buf   []byte
	dirty bool
	prev  *frame
	next  *frame
}

type openFile struct {
	f    *os.File
	path string
}

// Cache is the LRU-managed page buffer pool. Capacity is fixed at
// construction.
type Cache struct {
	capacity int
	files    map[FileHandle]*openFile
	frames   map[pageKey]*frame
	head     *frame // most recently used
	tail     *frame // least recently used
}

// NewCache creates a page cache holding up to capacity pages. A
// non-positive capacity selects CacheSize.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = CacheSize
	}
	return &Cache{
		capacity: capacity,
		files:    make(map[FileHandle]*openFile),
		frames:   make(map[pageKey]*frame),
	}
}

// Open registers path as a fresh file handle, creating the file if it does
// not already exist.
func (c *Cache) Open(path string) (FileHandle, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return FileHandle{}, fmt.Errorf("pager: open %s: %w", path, err)
	}
	h := FileHandle(uuid.New())
	c.files[h] = &openFile{f: f, path: path}
	return h, nil
}

// Close flushes and evicts every page cached for h, then closes the file.
func (c *Cache) Close(h FileHandle) error {
	of, ok := c.files[h]
	if !ok {
		return nil
	}
	if err := c.flushHandle(h); err != nil {
		return err
	}
	for k := range c.frames {
		if k.h == h {
			c.unlinkAndDelete(c.frames[k])
		}
	}
	err := of.f.Close()
	delete(c.files, h)
	if err != nil {
		return fmt.Errorf("pager: close %s: %w", of.path, err)
	}
	return nil
}

// Get returns the current bytes of page p of file h. The slice is owned by
// the cache; callers that need to mutate must go through GetMut.
func (c *Cache) Get(h FileHandle, p PageID) ([]byte, error) {
	f, err := c.fetch(h, p)
	if err != nil {
		return nil, err
	}
	return f.buf, nil
}

// GetMut returns a writable view of page p of file h and marks it dirty.
// Any previously returned reference to the same page is invalidated by the
// next GetMut call that causes eviction; callers should fetch, mutate, and
// not retain the slice across further cache calls.
func (c *Cache) GetMut(h FileHandle, p PageID) ([]byte, error) {
	f, err := c.fetch(h, p)
	if err != nil {
		return nil, err
	}
	f.dirty = true
	return f.buf, nil
}

func (c *Cache) fetch(h FileHandle, p PageID) (*frame, error) {
	key := pageKey{h, p}
	if f, ok := c.frames[key]; ok {
		c.moveToFront(f)
		return f, nil
	}
	of, ok := c.files[h]
	if !ok {
		return nil, fmt.Errorf("pager: unknown file handle %s", h)
	}
	buf := make([]byte, PageSize)
	off := int64(p) * int64(PageSize)
	if _, err := of.f.ReadAt(buf, off); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("pager: read %s page %d: %w", of.path, p, err)
	}
	// Reads past end-of-file return io.EOF (or a short read); buf is left
	// zero-filled, which is exactly the content of a page never written.
	f := &frame{key: key}
	f.buf = buf
	c.insert(f)
	return f, nil
}

func (c *Cache) insert(f *frame) {
	for len(c.frames) >= c.capacity {
		if c.tail == nil {
			break
		}
		c.evict(c.tail)
	}
	c.frames[f.key] = f
	c.pushFront(f)
}

func (c *Cache) evict(f *frame) {
	if f.dirty {
		c.writeBack(f) // best-effort: error is swallowed on eviction, surfaced on Close/Clear.
	}
	c.unlinkAndDelete(f)
}

func (c *Cache) unlinkAndDelete(f *frame) {
	c.unlink(f)
	delete(c.frames, f.key)
}

func (c *Cache) writeBack(f *frame) error {
	of, ok := c.files[f.key.h]
	if !ok {
		return fmt.Errorf("pager: write back: unknown file handle %s", f.key.h)
	}
	off := int64(f.key.p) * int64(PageSize)
	if _, err := of.f.WriteAt(f.buf, off); err != nil {
		return fmt.Errorf("pager: write %s page %d: %w", of.path, f.key.p, err)
	}
	f.dirty = false
	return nil
}

// flushHandle writes back every dirty page belonging to h.
func (c *Cache) flushHandle(h FileHandle) error {
	for k, f := range c.frames {
		if k.h == h && f.dirty {
			if err := c.writeBack(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clear flushes and closes every open file, and empties the cache.
func (c *Cache) Clear() error {
	for h := range c.files {
		if err := c.Close(h); err != nil {
			return err
		}
	}
	return nil
}

// ── LRU list: head = most recently used, tail = least recently used ──

func (c *Cache) pushFront(f *frame) {
	f.prev = nil
	f.next = c.head
	if c.head != nil {
		c.head.prev = f
	}
	c.head = f
	if c.tail == nil {
		c.tail = f
	}
}

func (c *Cache) unlink(f *frame) {
	if f.prev != nil {
		f.prev.next = f.next
	} else if c.head == f {
		c.head = f.next
	}
	if f.next != nil {
		f.next.prev = f.prev
	} else if c.tail == f {
		c.tail = f.prev
	}
	f.prev, f.next = nil, nil
}

func (c *Cache) moveToFront(f *frame) {
	if c.head == f {
		return
	}
	c.unlink(f)
	c.pushFront(f)
}
