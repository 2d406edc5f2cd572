// Package catalog holds the persisted metadata for tables and indexes:
// column and constraint declarations, free/full page-list heads, and index
// key descriptions. Each table and index is backed by a JSON sidecar file
// ("<table>.json", "<table>.<index>.json") that is the sole authoritative
// source of this metadata; the binary data file carries no metadata of its
// own — page 0 of a table or index file is an ordinary data page.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/relstore/relstore/internal/record"
)

// NoPage marks an absent page reference (an empty free list, an index with
// no root yet). Page id 0 is a valid data page, so it cannot double as the
// sentinel the way some pagers use it.
const NoPage uint32 = 0xFFFFFFFF

// pagerPageSize mirrors pager.PageSize. It is duplicated here (rather than
// imported) so that catalog, the lowest metadata layer above record, stays
// free of a dependency on the storage packages that in turn depend on it.
const pagerPageSize = 8192

// ConstraintKind enumerates the constraint kinds a table may declare.
type ConstraintKind int

const (
	PrimaryKey ConstraintKind = iota
	Unique
	ForeignKey
)

func (k ConstraintKind) String() string {
	switch k {
	case PrimaryKey:
		return "PRIMARY KEY"
	case Unique:
		return "UNIQUE"
	case ForeignKey:
		return "FOREIGN KEY"
	default:
		return "?"
	}
}

// Constraint is a declared PRIMARY KEY, UNIQUE, or FOREIGN KEY constraint.
// Every constraint is backed by a supporting index, named Index.
type Constraint struct {
	Kind    ConstraintKind `json:"kind"`
	Columns []string       `json:"columns"`
	Index   string         `json:"index"`

	// RefTable/RefColumns are set only for ForeignKey constraints.
	RefTable   string   `json:"ref_table,omitempty"`
	RefColumns []string `json:"ref_columns,omitempty"`
}

// ReferredConstraint records an incoming foreign key from another table,
// kept on the referenced table so RESTRICT checks don't need to scan every
// table in the database.
type ReferredConstraint struct {
	ReferringTable   string   `json:"referring_table"`
	ReferringColumns []string `json:"referring_columns"`
	Columns          []string `json:"columns"` // local columns being referenced
}

// IndexRef names an index belonging to a table; the index's own metadata
// lives in its own sidecar file (<table>.<index>.json).
type IndexRef struct {
	Name     string `json:"name"`
	Explicit bool   `json:"explicit"`
}

// TableSchema is the persisted metadata for one table.
type TableSchema struct {
	Name        string               `json:"name"`
	Columns     []record.Column      `json:"columns"`
	Constraints []Constraint         `json:"constraints"`
	Referred    []ReferredConstraint `json:"referred"`
	Indexes     []IndexRef           `json:"indexes"`
	Free        uint32               `json:"free"`
	Full        uint32               `json:"full"`
	PageCount   int                  `json:"page_count"`

	// Derived at load time, never persisted.
	Layout     *record.Layout `json:"-"`
	MaxRecords int            `json:"-"`
}

// pageHeaderSize is the size in bytes of a heap page's link field
// (the next-free-or-full page pointer).
const pageHeaderSize = 4

// prepare (re)computes the derived Layout and MaxRecords from Columns. It
// must be called once after construction or JSON load, since offsets within
// a table record are precomputed once and reused for every Encode/Decode.
func (t *TableSchema) prepare() {
	t.Layout = record.NewLayout(t.Columns, len(t.Columns), record.PayloadNone)
	t.MaxRecords = maxRecords(t.Layout.Size)
}

// maxRecords computes the number of record+bitmap-bit slots that fit in one
// page after the link field.
//
//	get_max_records(page) = floor((PAGE_SIZE - page_header) / (record_size + 1/8))
//
// computed in integer arithmetic as floor(8*avail / (8*record_size + 1)),
// with a defensive decrement in case of rounding that would overflow the
// page once the per-page bitmap (ceil(n/8) bytes) is counted exactly.
func maxRecords(recordSize int) int {
	avail := pagerPageSize - pageHeaderSize
	n := (8 * avail) / (8*recordSize + 1)
	for n > 0 && pageHeaderSize+(n+7)/8+n*recordSize > pagerPageSize {
		n--
	}
	return n
}

// NewTableSchema builds a fresh TableSchema with empty free/full lists.
func NewTableSchema(name string, columns []record.Column) *TableSchema {
	t := &TableSchema{
		Name:    name,
		Columns: columns,
		Free:    NoPage,
		Full:    NoPage,
	}
	t.prepare()
	return t
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *TableSchema) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SaveTableSchema writes t as JSON to path.
func SaveTableSchema(path string, t *TableSchema) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: marshal table %q: %w", t.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	return nil
}

// LoadTableSchema reads and prepares a TableSchema from path.
func LoadTableSchema(path string) (*TableSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var t TableSchema
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	t.prepare()
	return &t, nil
}

// IndexSchema is the persisted metadata for one index.
type IndexSchema struct {
	Name       string   `json:"name"`
	Table      string   `json:"table"`
	KeyColumns []string `json:"key_columns"`
	Explicit   bool     `json:"explicit"`
	Unique     bool     `json:"unique"`
	Root       uint32   `json:"root"`
	Free       uint32   `json:"free"`
	PageCount  int      `json:"page_count"`
	M          int      `json:"m"` // max entries per node, fixed at creation

	// Columns carries the resolved type info for KeyColumns so a reopened
	// index can rebuild its key Layout without consulting the table schema.
	Columns []record.Column `json:"key_column_types"`

	Layout *record.Layout `json:"-"`
}

func (ix *IndexSchema) prepare() {
	ix.Layout = record.NewLayout(ix.Columns, len(ix.Columns), record.PayloadPageSlot)
}

// InternalLayout returns the Layout for internal-node entries (same keys,
// child-page payload instead of (page, slot)).
func (ix *IndexSchema) InternalLayout() *record.Layout {
	return record.NewLayout(ix.Columns, len(ix.Columns), record.PayloadChild)
}

// NewIndexSchema builds a fresh IndexSchema with an empty tree.
func NewIndexSchema(name, table string, keyCols []string, columns []record.Column, explicit, unique bool) *IndexSchema {
	ix := &IndexSchema{
		Name:       name,
		Table:      table,
		KeyColumns: keyCols,
		Columns:    columns,
		Explicit:   explicit,
		Unique:     unique,
		Root:       NoPage,
		Free:       NoPage,
	}
	ix.prepare()
	ix.M = nodeCapacity(ix.Layout.Size, ix.InternalLayout().Size)
	return ix
}

// nodeCapacity derives the max number of entries a B+-tree node of this
// index can hold, using the larger of the leaf and internal entry sizes so
// a single M bounds both.
func nodeCapacity(leafEntrySize, internalEntrySize int) int {
	entry := leafEntrySize
	if internalEntrySize > entry {
		entry = internalEntrySize
	}
	const btreeHeaderSize = 20
	avail := pagerPageSize - btreeHeaderSize
	m := avail / entry
	if m < 3 {
		m = 3 // degenerate but keeps split arithmetic well-defined
	}
	return m
}

// SaveIndexSchema writes ix as JSON to path.
func SaveIndexSchema(path string, ix *IndexSchema) error {
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return fmt.Errorf("catalog: marshal index %q: %w", ix.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	return nil
}

// LoadIndexSchema reads and prepares an IndexSchema from path.
func LoadIndexSchema(path string) (*IndexSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var ix IndexSchema
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	ix.prepare()
	return &ix, nil
}
