package table_test

import (
	"testing"

	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/record"
	"github.com/relstore/relstore/internal/relerr"
	"github.com/relstore/relstore/internal/table"
	"github.com/stretchr/testify/require"
)

func widgetSchema() *catalog.TableSchema {
	defName := record.Varchar("unnamed")
	return catalog.NewTableSchema("widgets", []record.Column{
		{Name: "id", Type: record.TInt},
		{Name: "name", Type: record.TVarchar, Len: 16, Default: &defName},
		{Name: "weight", Type: record.TFloat, Nullable: true},
	})
}

func TestPrepareRowAppliesDefaultForMissingNonNullable(t *testing.T) {
	schema := widgetSchema()
	rec, err := table.PrepareRow(schema, []record.Value{
		record.Int(1),
		record.NullValue(record.TVarchar),
		record.NullValue(record.TFloat),
	})
	require.NoError(t, err)
	require.Equal(t, "unnamed", rec.Values[1].S)
}

func TestPrepareRowRejectsNullWithoutDefault(t *testing.T) {
	schema := widgetSchema()
	_, err := table.PrepareRow(schema, []record.Value{
		record.NullValue(record.TInt),
		record.Varchar("x"),
		record.NullValue(record.TFloat),
	})
	require.True(t, relerr.Is(err, relerr.NullViolation))
}

func TestPrepareRowRejectsTypeMismatch(t *testing.T) {
	schema := widgetSchema()
	_, err := table.PrepareRow(schema, []record.Value{
		record.Varchar("not an int"),
		record.Varchar("x"),
		record.NullValue(record.TFloat),
	})
	require.True(t, relerr.Is(err, relerr.TypeMismatch))
}

func TestPrepareRowRejectsOversizedVarchar(t *testing.T) {
	schema := widgetSchema()
	_, err := table.PrepareRow(schema, []record.Value{
		record.Int(1),
		record.Varchar("this name is definitely too long"),
		record.NullValue(record.TFloat),
	})
	require.True(t, relerr.Is(err, relerr.OutOfRange))
}

func TestPrepareRowRejectsWrongArity(t *testing.T) {
	schema := widgetSchema()
	_, err := table.PrepareRow(schema, []record.Value{record.Int(1)})
	require.True(t, relerr.Is(err, relerr.TypeMismatch))
}

func TestCheckRowRejectsNullOnNonNullableColumn(t *testing.T) {
	schema := widgetSchema()
	rec := record.Record{Values: []record.Value{
		record.NullValue(record.TInt),
		record.Varchar("x"),
		record.NullValue(record.TFloat),
	}}
	err := table.CheckRow(schema, rec)
	require.True(t, relerr.Is(err, relerr.NullViolation))
}

func TestCheckRowAcceptsValidRow(t *testing.T) {
	schema := widgetSchema()
	rec := record.Record{Values: []record.Value{
		record.Int(1),
		record.Varchar("ok"),
		record.Float(2.5),
	}}
	require.NoError(t, table.CheckRow(schema, rec))
}
