package engine_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/relstore/relstore/internal/engine"
	"github.com/relstore/relstore/internal/relerr"
	"github.com/relstore/relstore/internal/system"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T) *engine.Executor {
	t.Helper()
	sys, err := system.New(t.TempDir(), 64)
	require.NoError(t, err)
	ex := engine.New(sys)
	_, err = ex.Execute("CREATE DATABASE shop")
	require.NoError(t, err)
	_, err = ex.Execute("USE DATABASE shop")
	require.NoError(t, err)
	return ex
}

func TestCreateTableInsertAndSelect(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, name VARCHAR(16), PRIMARY KEY (id))`)
	require.NoError(t, err)

	res, err := ex.Execute(`INSERT INTO widgets VALUES (1, 'sprocket'), (2, 'gear')`)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsAffected)

	res, err = ex.Execute(`SELECT id, name FROM widgets WHERE id = 1`)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name"}, res.Columns)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "sprocket", res.Rows[0][1].S)
}

func TestInsertRejectsDuplicatePrimaryKey(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, name VARCHAR(16), PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO widgets VALUES (1, 'a')`)
	require.NoError(t, err)

	_, err = ex.Execute(`INSERT INTO widgets VALUES (1, 'b')`)
	require.True(t, relerr.Is(err, relerr.UniqueViolation))

	res, err := ex.Execute(`SELECT id FROM widgets`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1, "the duplicate-key row must not have been partially applied")
}

func TestInsertBatchIsAllOrNothing(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, name VARCHAR(16) NOT NULL)`)
	require.NoError(t, err)

	_, err = ex.Execute(`INSERT INTO widgets VALUES (1, 'a'), (2, NULL)`)
	require.True(t, relerr.Is(err, relerr.NullViolation))

	res, err := ex.Execute(`SELECT id FROM widgets`)
	require.NoError(t, err)
	require.Empty(t, res.Rows, "no row from a failing batch should have been inserted")
}

func TestRangeScanUsesIndexOrdering(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, price FLOAT, PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`ALTER TABLE widgets ADD INDEX by_price (price)`)
	require.NoError(t, err)

	for i, price := range []float64{30, 10, 20, 40} {
		_, err := ex.Execute(insertRow(i+1, price))
		require.NoError(t, err)
	}

	res, err := ex.Execute(`SELECT id FROM widgets WHERE price >= 20`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	// Rows come back in by_price order: 20 (id 3), 30 (id 1), 40 (id 4).
	require.Equal(t, int32(3), res.Rows[0][0].I)
	require.Equal(t, int32(1), res.Rows[1][0].I)
	require.Equal(t, int32(4), res.Rows[2][0].I)
}

func insertRow(id int, price float64) string {
	return "INSERT INTO widgets VALUES (" + strconv.Itoa(id) + ", " + strconv.FormatFloat(price, 'f', -1, 64) + ")"
}

func TestAlterAddUniqueIndexRejectsDuplicateValues(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, name VARCHAR(16), PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`ALTER TABLE widgets ADD UNIQUE INDEX uq_name (name)`)
	require.NoError(t, err)

	_, err = ex.Execute(`INSERT INTO widgets VALUES (1, 'a')`)
	require.NoError(t, err)

	_, err = ex.Execute(`INSERT INTO widgets VALUES (2, 'a')`)
	require.True(t, relerr.Is(err, relerr.UniqueViolation))

	res, err := ex.Execute(`SELECT id FROM widgets`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1, "the duplicate-value row must not have been inserted")
}

func TestAlterAddAndDropPrimaryKey(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, name VARCHAR(16))`)
	require.NoError(t, err)
	_, err = ex.Execute(`ALTER TABLE widgets ADD PRIMARY KEY (id)`)
	require.NoError(t, err)

	_, err = ex.Execute(`INSERT INTO widgets VALUES (1, 'a')`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO widgets VALUES (1, 'b')`)
	require.True(t, relerr.Is(err, relerr.UniqueViolation))

	_, err = ex.Execute(`ALTER TABLE widgets DROP PRIMARY KEY`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO widgets VALUES (1, 'b')`)
	require.NoError(t, err, "duplicate id must be allowed once the primary key is dropped")
}

func TestAlterDropPrimaryKeyRejectsWhenNoneExists(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, name VARCHAR(16))`)
	require.NoError(t, err)

	_, err = ex.Execute(`ALTER TABLE widgets DROP PRIMARY KEY`)
	require.True(t, relerr.Is(err, relerr.UnknownIndex))
}

func TestAlterDropForeignKeyAllowsDeleteOfFormerlyReferencedRow(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE departments (id INT, name VARCHAR(16), PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`CREATE TABLE employees (id INT, dept_id INT, PRIMARY KEY (id), FOREIGN KEY (dept_id) REFERENCES departments (id))`)
	require.NoError(t, err)

	_, err = ex.Execute(`INSERT INTO departments VALUES (1, 'eng')`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO employees VALUES (1, 1)`)
	require.NoError(t, err)

	_, err = ex.Execute(`ALTER TABLE employees DROP FOREIGN KEY (dept_id)`)
	require.NoError(t, err)

	_, err = ex.Execute(`DELETE FROM departments WHERE id = 1`)
	require.NoError(t, err, "the row must no longer be restricted once the foreign key is dropped")
}

func TestAlterAddAndDropUnique(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, name VARCHAR(16), PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`ALTER TABLE widgets ADD UNIQUE INDEX uq_name (name)`)
	require.NoError(t, err)

	_, err = ex.Execute(`INSERT INTO widgets VALUES (1, 'a')`)
	require.NoError(t, err)

	_, err = ex.Execute(`ALTER TABLE widgets DROP UNIQUE (name)`)
	require.NoError(t, err)

	_, err = ex.Execute(`INSERT INTO widgets VALUES (2, 'a')`)
	require.NoError(t, err, "duplicate name must be allowed once the unique constraint is dropped")
}

func TestForeignKeyRestrictsDeleteOfReferencedRow(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE departments (id INT, name VARCHAR(16), PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`CREATE TABLE employees (id INT, dept_id INT, PRIMARY KEY (id), FOREIGN KEY (dept_id) REFERENCES departments (id))`)
	require.NoError(t, err)

	_, err = ex.Execute(`INSERT INTO departments VALUES (1, 'eng')`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO employees VALUES (1, 1)`)
	require.NoError(t, err)

	_, err = ex.Execute(`DELETE FROM departments WHERE id = 1`)
	require.True(t, relerr.Is(err, relerr.ReferencedByForeignKey))
}

func TestForeignKeyRejectsInsertWithNoMatchingParent(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE departments (id INT, PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`CREATE TABLE employees (id INT, dept_id INT, PRIMARY KEY (id), FOREIGN KEY (dept_id) REFERENCES departments (id))`)
	require.NoError(t, err)

	_, err = ex.Execute(`INSERT INTO employees VALUES (1, 99)`)
	require.True(t, relerr.Is(err, relerr.ForeignKeyViolation))
}

func TestForeignKeyAllowsNullReference(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE departments (id INT, PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`CREATE TABLE employees (id INT, dept_id INT NULL, PRIMARY KEY (id), FOREIGN KEY (dept_id) REFERENCES departments (id))`)
	require.NoError(t, err)

	_, err = ex.Execute(`INSERT INTO employees VALUES (1, NULL)`)
	require.NoError(t, err)
}

func TestGroupByAndAggregates(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE sales (region VARCHAR(16), amount INT)`)
	require.NoError(t, err)
	type salesRow struct {
		region string
		amount int
	}
	for _, r := range []salesRow{{"east", 10}, {"east", 20}, {"west", 5}} {
		_, err := ex.Execute("INSERT INTO sales VALUES ('" + r.region + "', " + strconv.Itoa(r.amount) + ")")
		require.NoError(t, err)
	}

	res, err := ex.Execute(`SELECT region, SUM(amount) FROM sales GROUP BY region ORDER BY region`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.Equal(t, "east", res.Rows[0][0].S)
	require.Equal(t, int32(30), res.Rows[0][1].I)
	require.Equal(t, "west", res.Rows[1][0].S)
	require.Equal(t, int32(5), res.Rows[1][1].I)
}

func TestAggregateIgnoresNullAndCountIncludesIt(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE sales (region VARCHAR(16), amount INT NULL)`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO sales VALUES ('east', 10), ('east', NULL)`)
	require.NoError(t, err)

	res, err := ex.Execute(`SELECT COUNT(*), SUM(amount) FROM sales`)
	require.NoError(t, err)
	require.Equal(t, int32(2), res.Rows[0][0].I)
	require.Equal(t, int32(10), res.Rows[0][1].I)
}

func TestOrderByLimitOffset(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, PRIMARY KEY (id))`)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		_, err := ex.Execute("INSERT INTO widgets VALUES (" + strconv.Itoa(i) + ")")
		require.NoError(t, err)
	}

	res, err := ex.Execute(`SELECT id FROM widgets ORDER BY id DESC LIMIT 2 OFFSET 1`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.Equal(t, int32(4), res.Rows[0][0].I)
	require.Equal(t, int32(3), res.Rows[1][0].I)
}

func TestLikeMatchesWildcardPattern(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, name VARCHAR(16))`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO widgets VALUES (1, 'sprocket'), (2, 'gear'), (3, 'spoon')`)
	require.NoError(t, err)

	res, err := ex.Execute(`SELECT name FROM widgets WHERE name LIKE 'sp%'`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
}

func TestJoinAcrossTwoTables(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE departments (id INT, name VARCHAR(16), PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`CREATE TABLE employees (id INT, dept_id INT, name VARCHAR(16), PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO departments VALUES (1, 'eng')`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO employees VALUES (1, 1, 'ada')`)
	require.NoError(t, err)

	res, err := ex.Execute(`SELECT employees.name, departments.name FROM employees, departments WHERE employees.dept_id = departments.id`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "ada", res.Rows[0][0].S)
	require.Equal(t, "eng", res.Rows[0][1].S)
}

func TestUpdateAppliesValidatedChangesOnly(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, name VARCHAR(16) NOT NULL, PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO widgets VALUES (1, 'old')`)
	require.NoError(t, err)

	res, err := ex.Execute(`UPDATE widgets SET name = 'new' WHERE id = 1`)
	require.NoError(t, err)
	require.Equal(t, 1, res.RowsAffected)

	got, err := ex.Execute(`SELECT name FROM widgets WHERE id = 1`)
	require.NoError(t, err)
	require.Equal(t, "new", got.Rows[0][0].S)
}

func TestUpdateRestrictsWhenReferredColumnChangesAndRowIsReferenced(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE departments (id INT, PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`CREATE TABLE employees (id INT, dept_id INT, PRIMARY KEY (id), FOREIGN KEY (dept_id) REFERENCES departments (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO departments VALUES (1)`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO employees VALUES (1, 1)`)
	require.NoError(t, err)

	_, err = ex.Execute(`UPDATE departments SET id = 2 WHERE id = 1`)
	require.True(t, relerr.Is(err, relerr.ReferencedByForeignKey))
}

func TestDeleteRemovesMatchingRows(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, PRIMARY KEY (id))`)
	require.NoError(t, err)
	_, err = ex.Execute(`INSERT INTO widgets VALUES (1), (2), (3)`)
	require.NoError(t, err)

	res, err := ex.Execute(`DELETE FROM widgets WHERE id < 3`)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsAffected)

	got, err := ex.Execute(`SELECT id FROM widgets`)
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)
	require.Equal(t, int32(3), got.Rows[0][0].I)
}

func TestLoadDataInfileInsertsCSVRows(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "widgets.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("1,sprocket\n2,gear\n"), 0o644))

	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, name VARCHAR(16))`)
	require.NoError(t, err)

	res, err := ex.Execute(`LOAD DATA INFILE '` + csvPath + `' INTO TABLE widgets`)
	require.NoError(t, err)
	require.Equal(t, 2, res.RowsAffected)
}

func TestShowTablesAndDescTable(t *testing.T) {
	ex := newExecutor(t)
	_, err := ex.Execute(`CREATE TABLE widgets (id INT, name VARCHAR(16) NOT NULL)`)
	require.NoError(t, err)

	res, err := ex.Execute(`SHOW TABLES`)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "widgets", res.Rows[0][0].S)

	desc, err := ex.Execute(`DESC widgets`)
	require.NoError(t, err)
	require.Len(t, desc.Rows, 2)
	require.Equal(t, "id", desc.Rows[0][0].S)
	require.Equal(t, "NO", desc.Rows[1][2].S)
}

