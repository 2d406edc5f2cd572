package engine

import (
	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/record"
	"github.com/relstore/relstore/internal/relerr"
	"github.com/relstore/relstore/internal/table"
)

// checkInsertConstraints validates rec against every PRIMARY KEY/UNIQUE/
// FOREIGN KEY constraint on schema before it is written.
func (e *Executor) checkInsertConstraints(schema *catalog.TableSchema, rec record.Record) error {
	return e.checkConstraints(schema, rec, nil)
}

// checkConstraints is checkInsertConstraints with an exclusion: excludeLoc,
// when non-nil, is the row being updated, which is allowed to keep its own
// key.
func (e *Executor) checkConstraints(schema *catalog.TableSchema, rec record.Record, excludeLoc *table.Location) error {
	for _, c := range schema.Constraints {
		switch c.Kind {
		case catalog.PrimaryKey, catalog.Unique:
			if err := e.checkUnique(schema, c, rec, excludeLoc); err != nil {
				return err
			}
		case catalog.ForeignKey:
			if err := e.checkForeignKey(schema, c, rec); err != nil {
				return err
			}
		}
	}
	for i, col := range schema.Columns {
		if rec.Values[i].Null && !col.Nullable {
			return relerr.New(relerr.NullViolation, "insert", col.Name)
		}
	}
	return nil
}

func (e *Executor) checkUnique(schema *catalog.TableSchema, c catalog.Constraint, rec record.Record, excludeLoc *table.Location) error {
	tree, err := e.sys.IndexTree(schema.Name, c.Index)
	if err != nil {
		return err
	}
	idx := make([]int, len(c.Columns))
	for i, name := range c.Columns {
		idx[i] = schema.ColumnIndex(name)
	}
	key := schema.Layout.Select(rec, idx)
	pos, ok, err := tree.Lookup(key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	entry, err := tree.At(pos)
	if err != nil {
		return err
	}
	keyLayout := record.NewLayout(columnSubset(schema.Columns, c.Columns), len(idx), record.PayloadPageSlot)
	if keyLayout.Compare(entry, key) != 0 {
		return nil
	}
	if excludeLoc != nil && entry.Page == excludeLoc.Page && entry.Slot == excludeLoc.Slot {
		return nil
	}
	return relerr.New(relerr.UniqueViolation, "insert", c.Index)
}

// checkForeignKey enforces MATCH SIMPLE semantics: a row whose FK columns
// contain any Null skips the check entirely.
func (e *Executor) checkForeignKey(schema *catalog.TableSchema, c catalog.Constraint, rec record.Record) error {
	idx := make([]int, len(c.Columns))
	for i, name := range c.Columns {
		idx[i] = schema.ColumnIndex(name)
	}
	for _, i := range idx {
		if rec.Values[i].Null {
			return nil
		}
	}
	refSchema, err := e.sys.TableSchema(c.RefTable)
	if err != nil {
		return err
	}
	refIndexName := findSupportingIndex(refSchema, c.RefColumns)
	if refIndexName == "" {
		return relerr.New(relerr.NoSuitableIndex, "foreign key", c.Index)
	}
	tree, err := e.sys.IndexTree(c.RefTable, refIndexName)
	if err != nil {
		return err
	}
	key := schema.Layout.Select(rec, idx)
	keyLayout := record.NewLayout(columnSubset(schema.Columns, c.Columns), len(idx), record.PayloadPageSlot)
	pos, ok, err := tree.Lookup(key)
	if err != nil {
		return err
	}
	if ok {
		entry, err := tree.At(pos)
		if err == nil && keyLayout.Compare(entry, key) == 0 {
			return nil
		}
	}
	return relerr.New(relerr.ForeignKeyViolation, "insert", c.Index)
}

// findSupportingIndex returns the name of a PK/UNIQUE index on refSchema
// whose key columns are exactly cols, or "" if none exists.
func findSupportingIndex(refSchema *catalog.TableSchema, cols []string) string {
	for _, c := range refSchema.Constraints {
		if (c.Kind == catalog.PrimaryKey || c.Kind == catalog.Unique) && sameColumns(c.Columns, cols) {
			return c.Index
		}
	}
	return ""
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// checkRestrict rejects a delete/update of rec if any referring table has a
// row whose foreign key still points at it.
func (e *Executor) checkRestrict(schema *catalog.TableSchema, rec record.Record) error {
	for _, ref := range schema.Referred {
		referringSchema, err := e.sys.TableSchema(ref.ReferringTable)
		if err != nil {
			return err
		}
		indexName := findReferringIndex(referringSchema, ref.ReferringColumns)
		if indexName == "" {
			continue
		}
		tree, err := e.sys.IndexTree(ref.ReferringTable, indexName)
		if err != nil {
			return err
		}
		idx := make([]int, len(ref.Columns))
		for i, name := range ref.Columns {
			idx[i] = schema.ColumnIndex(name)
		}
		key := schema.Layout.Select(rec, idx)
		keyLayout := record.NewLayout(columnSubset(referringSchema.Columns, ref.ReferringColumns), len(idx), record.PayloadPageSlot)
		pos, ok, err := tree.Lookup(key)
		if err != nil {
			return err
		}
		if ok {
			entry, err := tree.At(pos)
			if err == nil && keyLayout.Compare(entry, key) == 0 {
				return relerr.New(relerr.ReferencedByForeignKey, "delete", ref.ReferringTable)
			}
		}
	}
	return nil
}

func findReferringIndex(schema *catalog.TableSchema, cols []string) string {
	for _, c := range schema.Constraints {
		if c.Kind == catalog.ForeignKey && sameColumns(c.Columns, cols) {
			return c.Index
		}
	}
	return ""
}
