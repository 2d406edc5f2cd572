package engine

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/record"
	"github.com/relstore/relstore/internal/relerr"
	"github.com/relstore/relstore/internal/system"
	"github.com/relstore/relstore/internal/table"
)

// Executor drives a System through parsed statements.
type Executor struct {
	sys *system.System
}

func New(sys *system.System) *Executor { return &Executor{sys: sys} }

// Execute parses and runs one statement.
func (e *Executor) Execute(src string) (Result, error) {
	stmt, err := Parse(src)
	if err != nil {
		return Result{}, err
	}
	return e.Run(stmt)
}

// Run executes an already-parsed statement.
func (e *Executor) Run(stmt Statement) (Result, error) {
	switch s := stmt.(type) {
	case CreateDatabase:
		return Result{Message: "database created"}, e.sys.CreateDatabase(s.Name)
	case DropDatabase:
		return Result{Message: "database dropped"}, e.sys.DropDatabase(s.Name)
	case UseDatabase:
		return Result{Message: "database selected"}, e.sys.UseDatabase(s.Name)
	case ShowDatabases:
		return e.runShowDatabases()
	case ShowTables:
		return e.runShowTables()
	case ShowIndexes:
		return e.runShowIndexes(s)
	case CreateTable:
		return Result{Message: "table created"}, e.runCreateTable(s)
	case DropTable:
		return Result{Message: "table dropped"}, e.sys.DropTable(s.Name)
	case DescTable:
		return e.runDescTable(s)
	case LoadDataInfile:
		return e.runLoadData(s)
	case InsertInto:
		return e.runInsert(s)
	case DeleteFrom:
		return e.runDelete(s)
	case UpdateTable:
		return e.runUpdate(s)
	case SelectStatement:
		return e.runSelect(s)
	case AlterAddIndex:
		return Result{Message: "index added"}, e.runAddIndex(s)
	case AlterDropIndex:
		return Result{Message: "index dropped"}, e.sys.DropIndex(s.Table, s.Index)
	case AlterAddForeignKey:
		return Result{Message: "foreign key added"}, e.runAddForeignKey(s)
	case AlterAddPrimaryKey:
		return Result{Message: "primary key added"}, e.runAddPrimaryKey(s)
	case AlterDropPrimaryKey:
		return Result{Message: "primary key dropped"}, e.runDropPrimaryKey(s)
	case AlterDropForeignKey:
		return Result{Message: "foreign key dropped"}, e.runDropForeignKey(s)
	case AlterDropUnique:
		return Result{Message: "unique constraint dropped"}, e.runDropUnique(s)
	default:
		return Result{}, relerr.New(relerr.Parse, "execute", fmt.Sprintf("%T", stmt))
	}
}

func (e *Executor) runShowDatabases() (Result, error) {
	names, err := e.sys.ShowDatabases()
	if err != nil {
		return Result{}, err
	}
	rows := make([][]record.Value, len(names))
	for i, n := range names {
		rows[i] = []record.Value{record.Varchar(n)}
	}
	return Result{Columns: []string{"database"}, Rows: rows}, nil
}

func (e *Executor) runShowTables() (Result, error) {
	names, err := e.sys.ShowTables()
	if err != nil {
		return Result{}, err
	}
	rows := make([][]record.Value, len(names))
	for i, n := range names {
		rows[i] = []record.Value{record.Varchar(n)}
	}
	return Result{Columns: []string{"table"}, Rows: rows}, nil
}

func (e *Executor) runShowIndexes(s ShowIndexes) (Result, error) {
	indexes, err := e.sys.Indexes(s.Table)
	if err != nil {
		return Result{}, err
	}
	rows := make([][]record.Value, len(indexes))
	for i, ix := range indexes {
		unique := "NO"
		if ix.Unique {
			unique = "YES"
		}
		rows[i] = []record.Value{record.Varchar(ix.Name), record.Varchar(fmt.Sprint(ix.KeyColumns)), record.Varchar(unique)}
	}
	return Result{Columns: []string{"index", "columns", "unique"}, Rows: rows}, nil
}

func (e *Executor) runDescTable(s DescTable) (Result, error) {
	schema, err := e.sys.TableSchema(s.Name)
	if err != nil {
		return Result{}, err
	}
	rows := make([][]record.Value, len(schema.Columns))
	for i, c := range schema.Columns {
		nullable := "YES"
		if !c.Nullable {
			nullable = "NO"
		}
		rows[i] = []record.Value{record.Varchar(c.Name), record.Varchar(c.Type.String()), record.Varchar(nullable)}
	}
	return Result{Columns: []string{"column", "type", "nullable"}, Rows: rows}, nil
}

func (e *Executor) runCreateTable(s CreateTable) error {
	cols := make([]record.Column, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = record.Column{Name: c.Name, Type: c.Type, Len: c.Len, Nullable: c.Nullable, Default: c.Default}
	}
	schema := catalog.NewTableSchema(s.Name, cols)

	for _, c := range s.Constraints {
		var kind catalog.ConstraintKind
		switch c.Kind {
		case "PRIMARY KEY":
			kind = catalog.PrimaryKey
		case "UNIQUE":
			kind = catalog.Unique
		case "FOREIGN KEY":
			kind = catalog.ForeignKey
		}
		indexName := "idx_" + s.Name + "_" + joinCols(c.Columns)
		schema.Constraints = append(schema.Constraints, catalog.Constraint{
			Kind: kind, Columns: c.Columns, Index: indexName,
			RefTable: c.RefTable, RefColumns: c.RefColumns,
		})
	}
	if err := e.sys.CreateTable(schema); err != nil {
		return err
	}
	for _, c := range schema.Constraints {
		unique := c.Kind == catalog.PrimaryKey || c.Kind == catalog.Unique
		ix := catalog.NewIndexSchema(c.Index, s.Name, c.Columns, columnSubset(schema.Columns, c.Columns), false, unique)
		if err := e.sys.CreateIndex(s.Name, ix); err != nil {
			return err
		}
		if c.Kind == catalog.ForeignKey {
			if err := e.registerReferred(s.Name, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Executor) registerReferred(referringTable string, c catalog.Constraint) error {
	refSchema, err := e.sys.TableSchema(c.RefTable)
	if err != nil {
		return err
	}
	refSchema.Referred = append(refSchema.Referred, catalog.ReferredConstraint{
		ReferringTable: referringTable, ReferringColumns: c.Columns, Columns: c.RefColumns,
	})
	return nil
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += "_"
		}
		out += c
	}
	return out
}

func columnSubset(cols []record.Column, names []string) []record.Column {
	out := make([]record.Column, len(names))
	for i, n := range names {
		for _, c := range cols {
			if c.Name == n {
				out[i] = c
				break
			}
		}
	}
	return out
}

func (e *Executor) runAddIndex(s AlterAddIndex) error {
	schema, err := e.sys.TableSchema(s.Table)
	if err != nil {
		return err
	}
	if s.Unique {
		schema.Constraints = append(schema.Constraints, catalog.Constraint{Kind: catalog.Unique, Columns: s.Columns, Index: s.Index})
	}
	ix := catalog.NewIndexSchema(s.Index, s.Table, s.Columns, columnSubset(schema.Columns, s.Columns), true, s.Unique)
	return e.sys.CreateIndex(s.Table, ix)
}

func (e *Executor) runAddForeignKey(s AlterAddForeignKey) error {
	schema, err := e.sys.TableSchema(s.Table)
	if err != nil {
		return err
	}
	indexName := "idx_" + s.Table + "_" + joinCols(s.Columns)
	c := catalog.Constraint{Kind: catalog.ForeignKey, Columns: s.Columns, Index: indexName, RefTable: s.RefTable, RefColumns: s.RefColumns}
	schema.Constraints = append(schema.Constraints, c)
	ix := catalog.NewIndexSchema(indexName, s.Table, s.Columns, columnSubset(schema.Columns, s.Columns), false, false)
	if err := e.sys.CreateIndex(s.Table, ix); err != nil {
		return err
	}
	return e.registerReferred(s.Table, c)
}

func (e *Executor) runAddPrimaryKey(s AlterAddPrimaryKey) error {
	schema, err := e.sys.TableSchema(s.Table)
	if err != nil {
		return err
	}
	indexName := "idx_" + s.Table + "_" + joinCols(s.Columns)
	schema.Constraints = append(schema.Constraints, catalog.Constraint{Kind: catalog.PrimaryKey, Columns: s.Columns, Index: indexName})
	ix := catalog.NewIndexSchema(indexName, s.Table, s.Columns, columnSubset(schema.Columns, s.Columns), false, true)
	return e.sys.CreateIndex(s.Table, ix)
}

func (e *Executor) runDropPrimaryKey(s AlterDropPrimaryKey) error {
	schema, err := e.sys.TableSchema(s.Table)
	if err != nil {
		return err
	}
	i := constraintIndex(schema.Constraints, catalog.PrimaryKey, nil)
	if i < 0 {
		return relerr.New(relerr.UnknownIndex, "drop primary key", s.Table)
	}
	indexName := schema.Constraints[i].Index
	schema.Constraints = append(schema.Constraints[:i], schema.Constraints[i+1:]...)
	return e.sys.DropIndex(s.Table, indexName)
}

func (e *Executor) runDropForeignKey(s AlterDropForeignKey) error {
	schema, err := e.sys.TableSchema(s.Table)
	if err != nil {
		return err
	}
	i := constraintIndex(schema.Constraints, catalog.ForeignKey, s.Columns)
	if i < 0 {
		return relerr.New(relerr.UnknownIndex, "drop foreign key", joinCols(s.Columns))
	}
	c := schema.Constraints[i]
	schema.Constraints = append(schema.Constraints[:i], schema.Constraints[i+1:]...)
	e.unregisterReferred(s.Table, c)
	return e.sys.DropIndex(s.Table, c.Index)
}

func (e *Executor) runDropUnique(s AlterDropUnique) error {
	schema, err := e.sys.TableSchema(s.Table)
	if err != nil {
		return err
	}
	i := constraintIndex(schema.Constraints, catalog.Unique, s.Columns)
	if i < 0 {
		return relerr.New(relerr.UnknownIndex, "drop unique", joinCols(s.Columns))
	}
	indexName := schema.Constraints[i].Index
	schema.Constraints = append(schema.Constraints[:i], schema.Constraints[i+1:]...)
	return e.sys.DropIndex(s.Table, indexName)
}

// constraintIndex finds the position of the constraint of the given kind,
// optionally matching an exact column list (nil matches the first of that
// kind, used for PRIMARY KEY, of which a table has at most one).
func constraintIndex(constraints []catalog.Constraint, kind catalog.ConstraintKind, cols []string) int {
	for i, c := range constraints {
		if c.Kind != kind {
			continue
		}
		if cols == nil || sameColumns(c.Columns, cols) {
			return i
		}
	}
	return -1
}

// unregisterReferred removes the bookkeeping registerReferred added, so a
// dropped foreign key no longer restricts deletes/updates on its parent
// table. Mirrors registerReferred's in-memory-only update: the referenced
// table's schema is persisted the next time it is saved.
func (e *Executor) unregisterReferred(referringTable string, c catalog.Constraint) {
	refSchema, err := e.sys.TableSchema(c.RefTable)
	if err != nil {
		return
	}
	for i, r := range refSchema.Referred {
		if r.ReferringTable == referringTable && sameColumns(r.ReferringColumns, c.Columns) {
			refSchema.Referred = append(refSchema.Referred[:i], refSchema.Referred[i+1:]...)
			return
		}
	}
}

// resolveExpr turns a parsed Expr into a concrete value: literals pass
// through; bare column references are not valid in INSERT/SET position and
// are rejected here with a Parse error.
func resolveExpr(expr Expr) (record.Value, error) {
	if expr.Literal == nil {
		return record.Value{}, relerr.New(relerr.Parse, "expression", expr.Column)
	}
	return *expr.Literal, nil
}

func (e *Executor) runInsert(s InsertInto) (Result, error) {
	schema, err := e.sys.TableSchema(s.Table)
	if err != nil {
		return Result{}, err
	}

	// Validate every row before applying any, so a single INSERT ... VALUES
	// (...) batch never leaves earlier rows partially applied.
	prepared := make([]record.Record, len(s.Rows))
	for i, row := range s.Rows {
		values := make([]record.Value, len(row))
		for j, expr := range row {
			v, err := resolveExpr(expr)
			if err != nil {
				return Result{}, err
			}
			values[j] = v
		}
		rec, err := table.PrepareRow(schema, values)
		if err != nil {
			return Result{}, err
		}
		if err := e.checkInsertConstraints(schema, rec); err != nil {
			return Result{}, err
		}
		prepared[i] = rec
	}

	for _, rec := range prepared {
		if _, err := e.sys.InsertRow(s.Table, rec); err != nil {
			return Result{}, err
		}
	}
	return Result{RowsAffected: len(prepared)}, nil
}

// matchingRows scans a single table and returns the rows satisfying every
// WHERE predicate, reusing the join predicate evaluator with a one-table
// binding.
func matchingRows(sys *system.System, tableName string, where []WherePredicate, schemas map[string]*catalog.TableSchema) ([]table.Row, error) {
	scanned, err := sys.Scan(tableName)
	if err != nil {
		return nil, err
	}
	var out []table.Row
	for _, r := range scanned {
		row := joinRow{tableName: r.Record}
		ok, err := evalApplicablePredicates(row, where, []string{tableName}, schemas)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (e *Executor) runDelete(s DeleteFrom) (Result, error) {
	schema, err := e.sys.TableSchema(s.Table)
	if err != nil {
		return Result{}, err
	}
	schemas := map[string]*catalog.TableSchema{s.Table: schema}
	rows, err := matchingRows(e.sys, s.Table, s.Where, schemas)
	if err != nil {
		return Result{}, err
	}
	for _, r := range rows {
		if err := e.checkRestrict(schema, r.Record); err != nil {
			return Result{}, err
		}
	}
	for _, r := range rows {
		if err := e.sys.DeleteRow(s.Table, r.Loc, r.Record); err != nil {
			return Result{}, err
		}
	}
	return Result{RowsAffected: len(rows)}, nil
}

func (e *Executor) runUpdate(s UpdateTable) (Result, error) {
	schema, err := e.sys.TableSchema(s.Table)
	if err != nil {
		return Result{}, err
	}
	schemas := map[string]*catalog.TableSchema{s.Table: schema}
	rows, err := matchingRows(e.sys, s.Table, s.Where, schemas)
	if err != nil {
		return Result{}, err
	}

	sets := make(map[int]record.Value, len(s.Sets))
	referredCols := referredColumnSet(schema)
	touchesReferred := false
	for _, set := range s.Sets {
		idx := schema.ColumnIndex(set.Column)
		if idx < 0 {
			return Result{}, relerr.New(relerr.UnknownColumn, "update", set.Column)
		}
		v, err := resolveExpr(set.Value)
		if err != nil {
			return Result{}, err
		}
		sets[idx] = v
		if referredCols[set.Column] {
			touchesReferred = true
		}
	}

	// Validate every row's new values before applying any, the same
	// validate-before-apply rule INSERT uses, extended to UPDATE's affected
	// rows.
	type planned struct {
		loc    table.Location
		oldRec record.Record
		newRec record.Record
	}
	var plan []planned
	for _, r := range rows {
		newRec, changed := schema.Layout.Update(r.Record, sets)
		if !changed {
			continue
		}
		if err := table.CheckRow(schema, newRec); err != nil {
			return Result{}, err
		}
		if err := e.checkConstraints(schema, newRec, &r.Loc); err != nil {
			return Result{}, err
		}
		if touchesReferred {
			if err := e.checkRestrict(schema, r.Record); err != nil {
				return Result{}, err
			}
		}
		plan = append(plan, planned{loc: r.Loc, oldRec: r.Record, newRec: newRec})
	}

	for _, p := range plan {
		if err := e.sys.UpdateRow(s.Table, p.loc, p.oldRec, p.newRec); err != nil {
			return Result{}, err
		}
	}
	return Result{RowsAffected: len(plan)}, nil
}

// referredColumnSet is the set of column names other tables hold foreign
// keys against, used to decide whether an UPDATE needs a RESTRICT check.
func referredColumnSet(schema *catalog.TableSchema) map[string]bool {
	out := make(map[string]bool)
	for _, ref := range schema.Referred {
		for _, c := range ref.Columns {
			out[c] = true
		}
	}
	return out
}

func (e *Executor) runLoadData(s LoadDataInfile) (Result, error) {
	schema, err := e.sys.TableSchema(s.Table)
	if err != nil {
		return Result{}, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return Result{}, relerr.Wrap(relerr.IO, "load data", s.Path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if s.Delimiter != "" {
		r := []rune(s.Delimiter)
		reader.Comma = r[0]
	}
	reader.FieldsPerRecord = len(schema.Columns)

	records, err := reader.ReadAll()
	if err != nil {
		return Result{}, relerr.Wrap(relerr.BadFormat, "load data", s.Path, err)
	}

	prepared := make([]record.Record, 0, len(records))
	for _, fields := range records {
		values := make([]record.Value, len(fields))
		for i, col := range schema.Columns {
			v, err := parseFieldValue(col, fields[i])
			if err != nil {
				return Result{}, relerr.Wrap(relerr.BadFormat, "load data", s.Path, err)
			}
			values[i] = v
		}
		rec, err := table.PrepareRow(schema, values)
		if err != nil {
			return Result{}, err
		}
		if err := e.checkInsertConstraints(schema, rec); err != nil {
			return Result{}, err
		}
		prepared = append(prepared, rec)
	}

	for _, rec := range prepared {
		if _, err := e.sys.InsertRow(s.Table, rec); err != nil {
			return Result{}, err
		}
	}
	return Result{RowsAffected: len(prepared)}, nil
}

// parseFieldValue parses one CSV field into a typed Value according to
// col's declared type. An empty field means Null.
func parseFieldValue(col record.Column, field string) (record.Value, error) {
	if field == "" {
		return record.NullValue(col.Type), nil
	}
	switch col.Type {
	case record.TInt:
		n, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return record.Value{}, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return record.Int(int32(n)), nil
	case record.TFloat:
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return record.Value{}, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return record.Float(f), nil
	case record.TDate:
		v, err := record.DateFromText(field)
		if err != nil {
			return record.Value{}, fmt.Errorf("column %s: %w", col.Name, err)
		}
		return v, nil
	default:
		return record.Varchar(field), nil
	}
}
