package table

import (
	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/record"
	"github.com/relstore/relstore/internal/relerr"
)

// PrepareRow validates user-supplied values against the table schema and
// applies column defaults, returning a Record ready for Insert. An INT value
// for a FLOAT column is converted to FLOAT, and text for a DATE column is
// parsed as a date (a malformed date is a TypeMismatch). It does not
// check PRIMARY KEY/UNIQUE/FOREIGN KEY constraints — those require index
// lookups the caller (the executor) drives.
func PrepareRow(schema *catalog.TableSchema, values []record.Value) (record.Record, error) {
	if len(values) != len(schema.Columns) {
		return record.Record{}, relerr.New(relerr.TypeMismatch, "insert", schema.Name)
	}
	out := make([]record.Value, len(values))
	for i, col := range schema.Columns {
		v := values[i]
		if v.Null {
			if !col.Nullable {
				if col.Default == nil {
					return record.Record{}, relerr.New(relerr.NullViolation, "insert", col.Name)
				}
				v = *col.Default
			}
		} else if col.Type == record.TFloat && v.Type == record.TInt {
			v = record.Float(float64(v.I))
		} else if col.Type == record.TDate && v.Type == record.TVarchar {
			d, err := record.DateFromText(v.S)
			if err != nil {
				return record.Record{}, relerr.Wrap(relerr.TypeMismatch, "insert", col.Name, err)
			}
			v = d
		}
		if err := checkValue(col, v); err != nil {
			return record.Record{}, err
		}
		out[i] = v
	}
	return record.Record{Values: out, IndexKeys: len(out)}, nil
}

// CheckRow validates an already-built record's values against schema's
// column types and lengths — used after UPDATE recomputes a row, which
// does not go through PrepareRow's default substitution.
func CheckRow(schema *catalog.TableSchema, rec record.Record) error {
	for i, col := range schema.Columns {
		v := rec.Values[i]
		if v.Null && !col.Nullable {
			return relerr.New(relerr.NullViolation, "update", col.Name)
		}
		if err := checkValue(col, v); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(col record.Column, v record.Value) error {
	if v.Null {
		return nil
	}
	if v.Type != col.Type {
		return relerr.New(relerr.TypeMismatch, "insert", col.Name)
	}
	if col.Type == record.TVarchar && len(v.S) > col.Len {
		return relerr.New(relerr.OutOfRange, "insert", col.Name)
	}
	return nil
}
