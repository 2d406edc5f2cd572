// Package system owns the on-disk directory layout and the lazily-opened
// registry of table and index stores for the active database:
//
//	<data_root>/<database>/<table>.json       table schema
//	<data_root>/<database>/<table>.data       table pages
//	<data_root>/<database>/<table>.<index>.json  index schema
//	<data_root>/<database>/<table>.<index>.data  index pages
package system

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/relstore/relstore/internal/btree"
	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/pager"
	"github.com/relstore/relstore/internal/relerr"
	"github.com/relstore/relstore/internal/table"
)

// openTable bundles a table's schema with its open heap store and the
// file handle backing it, plus its open indexes.
type openTable struct {
	schema  *catalog.TableSchema
	heap    *table.Heap
	handle  pager.FileHandle
	indexes map[string]*openIndex
}

type openIndex struct {
	schema *catalog.IndexSchema
	tree   *btree.Tree
	handle pager.FileHandle
}

// System is the root object a CLI or embedding program creates once. It
// owns the page cache and the active database's open tables; switching
// databases (USE DATABASE) closes the previous one's open files first.
type System struct {
	Root  string
	Cache *pager.Cache

	currentDB string
	tables    map[string]*openTable
}

// New creates a System rooted at dataRoot, creating the directory if
// needed, with a page cache of the given capacity (0 selects the default).
func New(dataRoot string, cacheSize int) (*System, error) {
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, relerr.Wrap(relerr.IO, "open system", dataRoot, err)
	}
	return &System{
		Root:   dataRoot,
		Cache:  pager.NewCache(cacheSize),
		tables: make(map[string]*openTable),
	}, nil
}

func (s *System) dbDir(name string) string { return filepath.Join(s.Root, name) }

// CreateDatabase makes a new database directory.
func (s *System) CreateDatabase(name string) error {
	dir := s.dbDir(name)
	if _, err := os.Stat(dir); err == nil {
		return relerr.New(relerr.DuplicateName, "create database", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return relerr.Wrap(relerr.IO, "create database", name, err)
	}
	return nil
}

// DropDatabase removes a database directory and everything in it. If it is
// the selected database, its open tables are closed first and no database
// remains selected.
func (s *System) DropDatabase(name string) error {
	dir := s.dbDir(name)
	if _, err := os.Stat(dir); err != nil {
		return relerr.New(relerr.UnknownDatabase, "drop database", name)
	}
	if name == s.currentDB {
		if err := s.closeAll(); err != nil {
			return err
		}
		s.currentDB = ""
	}
	if err := os.RemoveAll(dir); err != nil {
		return relerr.Wrap(relerr.IO, "drop database", name, err)
	}
	return nil
}

// ShowDatabases lists every database directory under the data root.
func (s *System) ShowDatabases() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, relerr.Wrap(relerr.IO, "show databases", s.Root, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// UseDatabase closes whatever database is currently open and selects name.
func (s *System) UseDatabase(name string) error {
	dir := s.dbDir(name)
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return relerr.New(relerr.UnknownDatabase, "use database", name)
	}
	if err := s.closeAll(); err != nil {
		return err
	}
	s.currentDB = name
	return nil
}

func (s *System) requireDB(op string) error {
	if s.currentDB == "" {
		return relerr.New(relerr.UnknownDatabase, op, "")
	}
	return nil
}

// closeAll flushes and closes every open table and index of the current
// database, persisting their JSON sidecars first so metadata is on disk
// before the next statement begins observing it.
func (s *System) closeAll() error {
	for name, ot := range s.tables {
		if err := s.closeTable(ot); err != nil {
			return err
		}
		delete(s.tables, name)
	}
	return nil
}

func (s *System) closeTable(ot *openTable) error {
	for _, oi := range ot.indexes {
		if err := catalog.SaveIndexSchema(s.indexJSONPath(ot.schema.Name, oi.schema.Name), oi.schema); err != nil {
			return err
		}
		if err := s.Cache.Close(oi.handle); err != nil {
			return relerr.Wrap(relerr.IO, "close index", oi.schema.Name, err)
		}
	}
	if err := catalog.SaveTableSchema(s.tableJSONPath(ot.schema.Name), ot.schema); err != nil {
		return err
	}
	return relerr.Wrap(relerr.IO, "close table", ot.schema.Name, s.Cache.Close(ot.handle))
}

func (s *System) tableJSONPath(table string) string {
	return filepath.Join(s.dbDir(s.currentDB), table+".json")
}
func (s *System) tableDataPath(table string) string {
	return filepath.Join(s.dbDir(s.currentDB), table+".data")
}
func (s *System) indexJSONPath(table, index string) string {
	return filepath.Join(s.dbDir(s.currentDB), table+"."+index+".json")
}
func (s *System) indexDataPath(table, index string) string {
	return filepath.Join(s.dbDir(s.currentDB), table+"."+index+".data")
}

// CreateTable persists a new table schema and opens it.
func (s *System) CreateTable(schema *catalog.TableSchema) error {
	if err := s.requireDB("create table"); err != nil {
		return err
	}
	if _, err := os.Stat(s.tableJSONPath(schema.Name)); err == nil {
		return relerr.New(relerr.DuplicateName, "create table", schema.Name)
	}
	if err := catalog.SaveTableSchema(s.tableJSONPath(schema.Name), schema); err != nil {
		return err
	}
	return s.openTableInto(schema)
}

// DropTable removes a table's schema, data file, and every index file.
func (s *System) DropTable(name string) error {
	if err := s.requireDB("drop table"); err != nil {
		return err
	}
	ot, err := s.Table(name)
	if err != nil {
		return err
	}
	for _, oi := range ot.indexes {
		s.Cache.Close(oi.handle)
		os.Remove(s.indexJSONPath(name, oi.schema.Name))
		os.Remove(s.indexDataPath(name, oi.schema.Name))
	}
	s.Cache.Close(ot.handle)
	delete(s.tables, name)
	os.Remove(s.tableJSONPath(name))
	return relerr.Wrap(relerr.IO, "drop table", name, os.Remove(s.tableDataPath(name)))
}

// ShowTables lists every table in the current database by scanning for
// "<name>.json" sidecars that are not themselves index sidecars
// ("<table>.<index>.json" has two dots).
func (s *System) ShowTables() ([]string, error) {
	if err := s.requireDB("show tables"); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dbDir(s.currentDB))
	if err != nil {
		return nil, relerr.Wrap(relerr.IO, "show tables", s.currentDB, err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if !strings.HasSuffix(n, ".json") {
			continue
		}
		base := strings.TrimSuffix(n, ".json")
		if strings.Contains(base, ".") {
			continue // "<table>.<index>.json"
		}
		names = append(names, base)
	}
	sort.Strings(names)
	return names, nil
}

// Table returns the open table named name, opening it from its sidecar
// files on first reference.
func (s *System) Table(name string) (*openTable, error) {
	if err := s.requireDB("table lookup"); err != nil {
		return nil, err
	}
	if ot, ok := s.tables[name]; ok {
		return ot, nil
	}
	schema, err := catalog.LoadTableSchema(s.tableJSONPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, relerr.New(relerr.UnknownTable, "open table", name)
		}
		return nil, err
	}
	if err := s.openTableInto(schema); err != nil {
		return nil, err
	}
	return s.tables[name], nil
}

func (s *System) openTableInto(schema *catalog.TableSchema) error {
	handle, err := s.Cache.Open(s.tableDataPath(schema.Name))
	if err != nil {
		return relerr.Wrap(relerr.IO, "open table", schema.Name, err)
	}
	ot := &openTable{
		schema:  schema,
		heap:    table.Open(s.Cache, handle, schema),
		handle:  handle,
		indexes: make(map[string]*openIndex),
	}
	for _, ref := range schema.Indexes {
		if err := s.openIndexInto(ot, ref.Name); err != nil {
			return err
		}
	}
	s.tables[schema.Name] = ot
	return nil
}

func (s *System) openIndexInto(ot *openTable, name string) error {
	ix, err := catalog.LoadIndexSchema(s.indexJSONPath(ot.schema.Name, name))
	if err != nil {
		return relerr.Wrap(relerr.IO, "open index", name, err)
	}
	handle, err := s.Cache.Open(s.indexDataPath(ot.schema.Name, name))
	if err != nil {
		return relerr.Wrap(relerr.IO, "open index", name, err)
	}
	ot.indexes[name] = &openIndex{schema: ix, tree: btree.Open(s.Cache, handle, ix), handle: handle}
	return nil
}

// CreateIndex builds and persists a new index over table, populated from
// every existing row.
func (s *System) CreateIndex(tableName string, ix *catalog.IndexSchema) error {
	ot, err := s.Table(tableName)
	if err != nil {
		return err
	}
	if _, exists := ot.indexes[ix.Name]; exists {
		return relerr.New(relerr.DuplicateName, "create index", ix.Name)
	}
	handle, err := s.Cache.Open(s.indexDataPath(tableName, ix.Name))
	if err != nil {
		return relerr.Wrap(relerr.IO, "create index", ix.Name, err)
	}
	tree := btree.Open(s.Cache, handle, ix)

	rows, err := ot.heap.Scan()
	if err != nil {
		return err
	}
	colIdx := make([]int, len(ix.KeyColumns))
	for i, c := range ix.KeyColumns {
		colIdx[i] = ot.schema.ColumnIndex(c)
	}
	for _, row := range rows {
		key := ot.schema.Layout.Select(row.Record, colIdx)
		key.Page, key.Slot = row.Loc.Page, row.Loc.Slot
		if err := tree.Insert(key); err != nil {
			return err
		}
	}

	ot.indexes[ix.Name] = &openIndex{schema: ix, tree: tree, handle: handle}
	ot.schema.Indexes = append(ot.schema.Indexes, catalog.IndexRef{Name: ix.Name, Explicit: ix.Explicit})
	if err := catalog.SaveIndexSchema(s.indexJSONPath(tableName, ix.Name), ix); err != nil {
		return err
	}
	return catalog.SaveTableSchema(s.tableJSONPath(tableName), ot.schema)
}

// DropIndex removes an index from a table. DROP INDEX on an unknown index
// is idempotent in the sense that state never partially changes: it fails
// with UnknownIndex both times.
func (s *System) DropIndex(tableName, indexName string) error {
	ot, err := s.Table(tableName)
	if err != nil {
		return err
	}
	oi, ok := ot.indexes[indexName]
	if !ok {
		return relerr.New(relerr.UnknownIndex, "drop index", indexName)
	}
	s.Cache.Close(oi.handle)
	os.Remove(s.indexJSONPath(tableName, indexName))
	os.Remove(s.indexDataPath(tableName, indexName))
	delete(ot.indexes, indexName)
	for i, ref := range ot.schema.Indexes {
		if ref.Name == indexName {
			ot.schema.Indexes = append(ot.schema.Indexes[:i], ot.schema.Indexes[i+1:]...)
			break
		}
	}
	return catalog.SaveTableSchema(s.tableJSONPath(tableName), ot.schema)
}

// Flush persists every open schema without closing the underlying files,
// for callers that need an explicit mid-session durability barrier.
func (s *System) Flush() error {
	for _, ot := range s.tables {
		if err := catalog.SaveTableSchema(s.tableJSONPath(ot.schema.Name), ot.schema); err != nil {
			return err
		}
		for _, oi := range ot.indexes {
			if err := catalog.SaveIndexSchema(s.indexJSONPath(ot.schema.Name, oi.schema.Name), oi.schema); err != nil {
				return err
			}
		}
	}
	return nil
}

// Shutdown flushes and closes everything, including the page cache.
func (s *System) Shutdown() error {
	if err := s.closeAll(); err != nil {
		return err
	}
	return s.Cache.Clear()
}
