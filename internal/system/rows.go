package system

import (
	"github.com/relstore/relstore/internal/btree"
	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/record"
	"github.com/relstore/relstore/internal/relerr"
	"github.com/relstore/relstore/internal/table"
)

// TableSchema returns the schema of an opened (or newly opened) table.
func (s *System) TableSchema(name string) (*catalog.TableSchema, error) {
	ot, err := s.Table(name)
	if err != nil {
		return nil, err
	}
	return ot.schema, nil
}

// IndexSchema returns the schema of one of a table's indexes.
func (s *System) IndexSchema(tableName, indexName string) (*catalog.IndexSchema, error) {
	ot, err := s.Table(tableName)
	if err != nil {
		return nil, err
	}
	oi, ok := ot.indexes[indexName]
	if !ok {
		return nil, relerr.New(relerr.UnknownIndex, "index lookup", indexName)
	}
	return oi.schema, nil
}

// Indexes returns every index schema currently open on a table.
func (s *System) Indexes(tableName string) ([]*catalog.IndexSchema, error) {
	ot, err := s.Table(tableName)
	if err != nil {
		return nil, err
	}
	var out []*catalog.IndexSchema
	for _, oi := range ot.indexes {
		out = append(out, oi.schema)
	}
	return out, nil
}

// IndexTree returns the B+-tree for one of a table's indexes.
func (s *System) IndexTree(tableName, indexName string) (*btree.Tree, error) {
	ot, err := s.Table(tableName)
	if err != nil {
		return nil, err
	}
	oi, ok := ot.indexes[indexName]
	if !ok {
		return nil, relerr.New(relerr.UnknownIndex, "index lookup", indexName)
	}
	return oi.tree, nil
}

// Scan returns every row of a table in heap traversal order.
func (s *System) Scan(tableName string) ([]table.Row, error) {
	ot, err := s.Table(tableName)
	if err != nil {
		return nil, err
	}
	return ot.heap.Scan()
}

// GetRow reads the row at an exact location.
func (s *System) GetRow(tableName string, loc table.Location) (record.Record, error) {
	ot, err := s.Table(tableName)
	if err != nil {
		return record.Record{}, err
	}
	return ot.heap.GetPageSlot(loc)
}

// keyFor projects rec onto an index's key columns and stamps the row
// location onto the resulting key record, ready for insertion into (or
// lookup against) that index's tree.
func keyFor(schema *catalog.TableSchema, ix *catalog.IndexSchema, rec record.Record, loc table.Location) record.Record {
	idx := make([]int, len(ix.KeyColumns))
	for i, c := range ix.KeyColumns {
		idx[i] = schema.ColumnIndex(c)
	}
	key := schema.Layout.Select(rec, idx)
	key.Page, key.Slot = loc.Page, loc.Slot
	return key
}

// InsertRow stores rec in the table's heap and inserts its key into every
// index maintained on the table: build the key record from the new row's
// indexed columns and insert it with the row's (page, slot).
func (s *System) InsertRow(tableName string, rec record.Record) (table.Location, error) {
	ot, err := s.Table(tableName)
	if err != nil {
		return table.Location{}, err
	}
	loc, err := ot.heap.Insert(rec)
	if err != nil {
		return table.Location{}, err
	}
	for _, oi := range ot.indexes {
		key := keyFor(ot.schema, oi.schema, rec, loc)
		if err := oi.tree.Insert(key); err != nil {
			return loc, err
		}
	}
	return loc, nil
}

// UpdateRow overwrites the row at loc with newRec, removing and
// re-inserting keys only in indexes whose key actually changed: compute the
// old and new key, and if they're equal, skip that index entirely.
func (s *System) UpdateRow(tableName string, loc table.Location, oldRec, newRec record.Record) error {
	ot, err := s.Table(tableName)
	if err != nil {
		return err
	}
	if err := ot.heap.UpdatePageSlot(loc, newRec); err != nil {
		return err
	}
	for _, oi := range ot.indexes {
		oldKey := keyFor(ot.schema, oi.schema, oldRec, loc)
		newKey := keyFor(ot.schema, oi.schema, newRec, loc)
		if keysIdentical(oldKey, newKey) {
			continue
		}
		if err := oi.tree.Remove(oldKey); err != nil {
			return err
		}
		if err := oi.tree.Insert(newKey); err != nil {
			return err
		}
	}
	return nil
}

// keysIdentical reports whether two index keys are the same value-for-value,
// treating Null as equal to Null (unlike Value.Equal's SQL semantics) since
// this only decides whether index maintenance work can be skipped.
func keysIdentical(a, b record.Record) bool {
	for i := range a.Values {
		av, bv := a.Values[i], b.Values[i]
		if av.Null != bv.Null {
			return false
		}
		if !av.Null && av.Compare(bv) != 0 {
			return false
		}
	}
	return true
}

// DeleteRow removes rec (stored at loc) from the heap and from every
// index's tree, using the old key and the same (page, slot).
func (s *System) DeleteRow(tableName string, loc table.Location, rec record.Record) error {
	ot, err := s.Table(tableName)
	if err != nil {
		return err
	}
	for _, oi := range ot.indexes {
		key := keyFor(ot.schema, oi.schema, rec, loc)
		if err := oi.tree.Remove(key); err != nil {
			return err
		}
	}
	return ot.heap.DeletePageSlot(loc)
}
