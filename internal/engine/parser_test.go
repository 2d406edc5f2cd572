package engine_test

import (
	"testing"

	"github.com/relstore/relstore/internal/engine"
	"github.com/stretchr/testify/require"
)

func TestParseCreateTableWithConstraints(t *testing.T) {
	stmt, err := engine.Parse(`CREATE TABLE employees (
		id INT,
		dept_id INT NULL,
		name VARCHAR(32) NOT NULL,
		PRIMARY KEY (id),
		FOREIGN KEY (dept_id) REFERENCES departments (id)
	)`)
	require.NoError(t, err)
	ct, ok := stmt.(engine.CreateTable)
	require.True(t, ok)
	require.Equal(t, "employees", ct.Name)
	require.Len(t, ct.Columns, 3)
	require.False(t, ct.Columns[2].Nullable)
	require.Len(t, ct.Constraints, 2)
	require.Equal(t, "FOREIGN KEY", ct.Constraints[1].Kind)
	require.Equal(t, "departments", ct.Constraints[1].RefTable)
}

func TestParseCreateTableDefaultVarcharLength(t *testing.T) {
	stmt, err := engine.Parse(`CREATE TABLE widgets (name VARCHAR)`)
	require.NoError(t, err)
	ct := stmt.(engine.CreateTable)
	require.Equal(t, 255, ct.Columns[0].Len)
}

func TestParseInsertMultiRow(t *testing.T) {
	stmt, err := engine.Parse(`INSERT INTO widgets VALUES (1, 'a'), (2, 'b')`)
	require.NoError(t, err)
	ins := stmt.(engine.InsertInto)
	require.Equal(t, "widgets", ins.Table)
	require.Len(t, ins.Rows, 2)
	require.Equal(t, int32(1), ins.Rows[0][0].Literal.I)
	require.Equal(t, "b", ins.Rows[1][1].Literal.S)
}

func TestParseDeleteWithWhere(t *testing.T) {
	stmt, err := engine.Parse(`DELETE FROM widgets WHERE id = 5`)
	require.NoError(t, err)
	del := stmt.(engine.DeleteFrom)
	require.Equal(t, "widgets", del.Table)
	require.Len(t, del.Where, 1)
	require.Equal(t, engine.OpEq, del.Where[0].Op)
}

func TestParseUpdateSetsMultipleColumns(t *testing.T) {
	stmt, err := engine.Parse(`UPDATE widgets SET name = 'x', price = 9 WHERE id = 1`)
	require.NoError(t, err)
	upd := stmt.(engine.UpdateTable)
	require.Len(t, upd.Sets, 2)
	require.Equal(t, "name", upd.Sets[0].Column)
	require.Equal(t, "price", upd.Sets[1].Column)
}

func TestParseWherePredicateVariants(t *testing.T) {
	stmt, err := engine.Parse(`SELECT * FROM widgets WHERE name IS NULL`)
	require.NoError(t, err)
	sel := stmt.(engine.SelectStatement)
	require.Equal(t, engine.OpIsNull, sel.Where[0].Op)

	stmt, err = engine.Parse(`SELECT * FROM widgets WHERE name IS NOT NULL`)
	require.NoError(t, err)
	sel = stmt.(engine.SelectStatement)
	require.Equal(t, engine.OpIsNotNull, sel.Where[0].Op)

	stmt, err = engine.Parse(`SELECT * FROM widgets WHERE name LIKE 'sp%'`)
	require.NoError(t, err)
	sel = stmt.(engine.SelectStatement)
	require.Equal(t, engine.OpLike, sel.Where[0].Op)

	stmt, err = engine.Parse(`SELECT * FROM widgets WHERE id IN (1, 2, 3)`)
	require.NoError(t, err)
	sel = stmt.(engine.SelectStatement)
	require.Equal(t, engine.OpIn, sel.Where[0].Op)
	require.Len(t, sel.Where[0].List, 3)
}

func TestParseSelectWithJoinGroupOrderLimitOffset(t *testing.T) {
	stmt, err := engine.Parse(`SELECT a.id, COUNT(*) FROM a, b WHERE a.id = b.a_id GROUP BY region ORDER BY id DESC LIMIT 10 OFFSET 5`)
	require.NoError(t, err)
	sel := stmt.(engine.SelectStatement)
	require.Equal(t, []string{"a", "b"}, sel.Tables)
	require.Equal(t, "COUNT", sel.Selectors[1].Aggregate)
	require.Equal(t, "region", sel.GroupBy)
	require.NotNil(t, sel.OrderBy)
	require.True(t, sel.OrderBy.Desc)
	require.Equal(t, 10, *sel.Limit)
	require.Equal(t, 5, *sel.Offset)
}

func TestParseSelectStarAndAggregateSelector(t *testing.T) {
	stmt, err := engine.Parse(`SELECT *, SUM(amount) FROM sales`)
	require.NoError(t, err)
	sel := stmt.(engine.SelectStatement)
	require.True(t, sel.Selectors[0].Star)
	require.Equal(t, "SUM", sel.Selectors[1].Aggregate)
	require.Equal(t, "amount", sel.Selectors[1].Column)
}

func TestParseAlterAddIndexAndUnique(t *testing.T) {
	stmt, err := engine.Parse(`ALTER TABLE widgets ADD INDEX by_name (name)`)
	require.NoError(t, err)
	ix := stmt.(engine.AlterAddIndex)
	require.Equal(t, "by_name", ix.Index)
	require.False(t, ix.Unique)

	stmt, err = engine.Parse(`ALTER TABLE widgets ADD UNIQUE INDEX uq_name (name)`)
	require.NoError(t, err)
	ix = stmt.(engine.AlterAddIndex)
	require.True(t, ix.Unique)
}

func TestParseAlterAddForeignKey(t *testing.T) {
	stmt, err := engine.Parse(`ALTER TABLE employees ADD FOREIGN KEY (dept_id) REFERENCES departments (id)`)
	require.NoError(t, err)
	fk := stmt.(engine.AlterAddForeignKey)
	require.Equal(t, "employees", fk.Table)
	require.Equal(t, "departments", fk.RefTable)
}

func TestParseAlterDropIndex(t *testing.T) {
	stmt, err := engine.Parse(`ALTER TABLE widgets DROP INDEX by_name`)
	require.NoError(t, err)
	drop := stmt.(engine.AlterDropIndex)
	require.Equal(t, "by_name", drop.Index)
}

func TestParseAlterAddPrimaryKey(t *testing.T) {
	stmt, err := engine.Parse(`ALTER TABLE widgets ADD PRIMARY KEY (id)`)
	require.NoError(t, err)
	pk := stmt.(engine.AlterAddPrimaryKey)
	require.Equal(t, "widgets", pk.Table)
	require.Equal(t, []string{"id"}, pk.Columns)
}

func TestParseAlterDropPrimaryKey(t *testing.T) {
	stmt, err := engine.Parse(`ALTER TABLE widgets DROP PRIMARY KEY`)
	require.NoError(t, err)
	drop := stmt.(engine.AlterDropPrimaryKey)
	require.Equal(t, "widgets", drop.Table)
}

func TestParseAlterDropForeignKey(t *testing.T) {
	stmt, err := engine.Parse(`ALTER TABLE employees DROP FOREIGN KEY (dept_id)`)
	require.NoError(t, err)
	drop := stmt.(engine.AlterDropForeignKey)
	require.Equal(t, "employees", drop.Table)
	require.Equal(t, []string{"dept_id"}, drop.Columns)
}

func TestParseAlterDropUnique(t *testing.T) {
	stmt, err := engine.Parse(`ALTER TABLE widgets DROP UNIQUE (name)`)
	require.NoError(t, err)
	drop := stmt.(engine.AlterDropUnique)
	require.Equal(t, "widgets", drop.Table)
	require.Equal(t, []string{"name"}, drop.Columns)
}

func TestParseLoadDataInfileWithCustomDelimiter(t *testing.T) {
	stmt, err := engine.Parse(`LOAD DATA INFILE '/tmp/widgets.csv' INTO TABLE widgets FIELDS TERMINATED BY ';'`)
	require.NoError(t, err)
	ld := stmt.(engine.LoadDataInfile)
	require.Equal(t, "/tmp/widgets.csv", ld.Path)
	require.Equal(t, "widgets", ld.Table)
	require.Equal(t, ";", ld.Delimiter)
}

func TestParseShowVariants(t *testing.T) {
	stmt, err := engine.Parse(`SHOW DATABASES`)
	require.NoError(t, err)
	_, ok := stmt.(engine.ShowDatabases)
	require.True(t, ok)

	stmt, err = engine.Parse(`SHOW INDEXES FROM widgets`)
	require.NoError(t, err)
	idx := stmt.(engine.ShowIndexes)
	require.Equal(t, "widgets", idx.Table)
}

func TestParseTrimsTrailingSemicolon(t *testing.T) {
	stmt, err := engine.Parse(`USE DATABASE shop;`)
	require.NoError(t, err)
	use := stmt.(engine.UseDatabase)
	require.Equal(t, "shop", use.Name)
}

func TestParseRejectsGarbageInput(t *testing.T) {
	_, err := engine.Parse(`NOT A REAL STATEMENT`)
	require.Error(t, err)
}
