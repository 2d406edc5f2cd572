package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/relstore/relstore/internal/engine"
)

// printResult renders a statement's Result the way an interactive session
// expects: a simple column-aligned table for rows, a one-line summary
// otherwise. Row and affected-row counts are humanized; full result-set pretty-printing
// beyond that stays out of scope.
func printResult(r engine.Result, batch bool) {
	switch {
	case len(r.Columns) > 0 && r.Rows != nil:
		printTable(r)
	case r.Message != "":
		fmt.Println(r.Message)
	case r.RowsAffected > 0 || !batch:
		fmt.Printf("%s affected\n", humanize.Comma(int64(r.RowsAffected)))
	}
}

func printTable(r engine.Result) {
	widths := make([]int, len(r.Columns))
	for i, c := range r.Columns {
		widths[i] = len(c)
	}
	rendered := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		rendered[i] = make([]string, len(row))
		for j, v := range row {
			s := v.String()
			rendered[i][j] = s
			if j < len(widths) && len(s) > widths[j] {
				widths[j] = len(s)
			}
		}
	}

	printRow(r.Columns, widths)
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	printRow(sep, widths)
	for _, row := range rendered {
		printRow(row, widths)
	}
	fmt.Printf("(%s rows)\n", humanize.Comma(int64(len(r.Rows))))
}

func printRow(cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		w := 0
		if i < len(widths) {
			w = widths[i]
		}
		parts[i] = c + strings.Repeat(" ", w-len(c))
	}
	fmt.Println(strings.Join(parts, " | "))
}
