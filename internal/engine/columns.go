package engine

import (
	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/record"
	"github.com/relstore/relstore/internal/relerr"
)

// resolveOwner finds which table in tables owns column, honoring an
// explicit qualifier when given.
func resolveOwner(tableQ, column string, tables []string, schemas map[string]*catalog.TableSchema) (string, error) {
	if tableQ != "" {
		if _, ok := schemas[tableQ]; !ok {
			return "", relerr.New(relerr.UnknownTable, "resolve column", tableQ)
		}
		if schemas[tableQ].ColumnIndex(column) < 0 {
			return "", relerr.New(relerr.UnknownColumn, "resolve column", column)
		}
		return tableQ, nil
	}
	for _, t := range tables {
		if schemas[t].ColumnIndex(column) >= 0 {
			return t, nil
		}
	}
	return "", relerr.New(relerr.UnknownColumn, "resolve column", column)
}

// resolveColumn resolves a (possibly qualified) column reference to its
// owning table, position, and declared type.
func resolveColumn(tableQ, column string, tables []string, schemas map[string]*catalog.TableSchema) (owner string, idx int, typ record.Type, err error) {
	owner, err = resolveOwner(tableQ, column, tables, schemas)
	if err != nil {
		return "", 0, 0, err
	}
	idx = schemas[owner].ColumnIndex(column)
	return owner, idx, schemas[owner].Columns[idx].Type, nil
}

// mirrorOp flips a comparison operator for swapping which side of `col OP
// col` is treated as the subject, used when a join predicate's left-hand
// column belongs to a table bound earlier than its right-hand column.
func mirrorOp(op CompareOp) CompareOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return op
	}
}
