package engine

import "github.com/relstore/relstore/internal/record"

// Result is what Execute returns for any statement. Rows/Columns are set
// only for SELECT, SHOW, and DESC; RowsAffected is set for INSERT, UPDATE,
// DELETE, and LOAD DATA INFILE.
type Result struct {
	Columns      []string
	Rows         [][]record.Value
	RowsAffected int
	Message      string
}
