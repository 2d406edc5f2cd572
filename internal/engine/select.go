package engine

import (
	"sort"

	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/record"
	"github.com/relstore/relstore/internal/relerr"
	"github.com/relstore/relstore/internal/table"
)

// joinRow is one row of the join's running product: the bound record for
// every table joined so far, keyed by table name.
type joinRow map[string]record.Record

func (e *Executor) runSelect(s SelectStatement) (Result, error) {
	schemas := make(map[string]*catalog.TableSchema)
	for _, t := range s.Tables {
		schema, err := e.sys.TableSchema(t)
		if err != nil {
			return Result{}, err
		}
		schemas[t] = schema
	}

	rows, err := e.joinScan(s, schemas)
	if err != nil {
		return Result{}, err
	}

	grouped := s.GroupBy != "" || hasAggregate(s.Selectors)
	var groups []joinRow // representative row per group
	var groupRows [][]joinRow

	if grouped {
		index := make(map[any]int)
		for _, row := range rows {
			var key any = struct{}{}
			if s.GroupBy != "" {
				owner, idx, _, err := resolveColumn("", s.GroupBy, s.Tables, schemas)
				if err != nil {
					return Result{}, err
				}
				key = row[owner].Values[idx].Hash()
			}
			gi, ok := index[key]
			if !ok {
				gi = len(groups)
				index[key] = gi
				groups = append(groups, row)
				groupRows = append(groupRows, nil)
			}
			groupRows[gi] = append(groupRows[gi], row)
		}
	} else {
		for _, row := range rows {
			groups = append(groups, row)
			groupRows = append(groupRows, []joinRow{row})
		}
	}

	type built struct {
		values   []record.Value
		orderKey record.Value
	}
	out := make([]built, len(groups))
	for i := range groups {
		vals, err := projectSelectors(s.Selectors, groupRows[i], s.Tables, schemas)
		if err != nil {
			return Result{}, err
		}
		b := built{values: vals}
		if s.OrderBy != nil {
			owner, idx, _, err := resolveColumn("", s.OrderBy.Column, s.Tables, schemas)
			if err != nil {
				return Result{}, err
			}
			b.orderKey = groups[i][owner].Values[idx]
		}
		out[i] = b
	}

	if s.OrderBy != nil {
		sort.SliceStable(out, func(a, b int) bool {
			c := out[a].orderKey.Compare(out[b].orderKey)
			if s.OrderBy.Desc {
				return c > 0
			}
			return c < 0
		})
	}

	start := 0
	if s.Offset != nil {
		start = *s.Offset
	}
	if start > len(out) {
		start = len(out)
	}
	end := len(out)
	if s.Limit != nil && start+*s.Limit < end {
		end = start + *s.Limit
	}
	out = out[start:end]

	result := Result{Columns: columnNames(s.Selectors, s.Tables, schemas)}
	for _, b := range out {
		result.Rows = append(result.Rows, b.values)
	}
	return result, nil
}

func hasAggregate(sels []Selector) bool {
	for _, s := range sels {
		if s.Aggregate != "" {
			return true
		}
	}
	return false
}

func columnNames(sels []Selector, tables []string, schemas map[string]*catalog.TableSchema) []string {
	var names []string
	for _, sel := range sels {
		switch {
		case sel.Star:
			for _, t := range tables {
				for _, c := range schemas[t].Columns {
					names = append(names, c.Name)
				}
			}
		case sel.Alias != "":
			names = append(names, sel.Alias)
		case sel.Aggregate != "":
			names = append(names, sel.Aggregate+"("+sel.Column+")")
		default:
			names = append(names, sel.Column)
		}
	}
	return names
}

func projectSelectors(sels []Selector, rows []joinRow, tables []string, schemas map[string]*catalog.TableSchema) ([]record.Value, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	rep := rows[0]
	var out []record.Value
	for _, sel := range sels {
		switch {
		case sel.Star:
			for _, t := range tables {
				for _, c := range schemas[t].Columns {
					out = append(out, rep[t].Values[schemas[t].ColumnIndex(c.Name)])
				}
			}
		case sel.Aggregate == "COUNT":
			out = append(out, record.Int(int32(len(rows))))
		case sel.Aggregate != "":
			owner, idx, typ, err := resolveColumn(sel.Table, sel.Column, tables, schemas)
			if err != nil {
				return nil, err
			}
			vals := make([]record.Value, len(rows))
			for i, r := range rows {
				vals[i] = r[owner].Values[idx]
			}
			out = append(out, computeAggregate(sel.Aggregate, vals, typ))
		default:
			owner, idx, _, err := resolveColumn(sel.Table, sel.Column, tables, schemas)
			if err != nil {
				return nil, err
			}
			out = append(out, rep[owner].Values[idx])
		}
	}
	return out, nil
}

// computeAggregate implements the aggregator rules: AVG/SUM/MIN/MAX ignore
// Null; each is Null if every input was Null; AVG is sum/count, promoted to
// float.
func computeAggregate(kind string, values []record.Value, typ record.Type) record.Value {
	var nonNull []record.Value
	for _, v := range values {
		if !v.Null {
			nonNull = append(nonNull, v)
		}
	}
	if len(nonNull) == 0 {
		if kind == "AVG" {
			return record.NullValue(record.TFloat)
		}
		return record.NullValue(typ)
	}
	switch kind {
	case "SUM":
		if typ == record.TFloat {
			var sum float64
			for _, v := range nonNull {
				sum += v.F
			}
			return record.Float(sum)
		}
		var sum int32
		for _, v := range nonNull {
			sum += v.I
		}
		return record.Int(sum)
	case "AVG":
		var sum float64
		for _, v := range nonNull {
			if typ == record.TFloat {
				sum += v.F
			} else {
				sum += float64(v.I)
			}
		}
		return record.Float(sum / float64(len(nonNull)))
	case "MIN":
		best := nonNull[0]
		for _, v := range nonNull[1:] {
			if v.Compare(best) < 0 {
				best = v
			}
		}
		return best
	case "MAX":
		best := nonNull[0]
		for _, v := range nonNull[1:] {
			if v.Compare(best) > 0 {
				best = v
			}
		}
		return best
	default:
		return record.NullValue(typ)
	}
}

// joinScan performs a nested-loop join: the outer table's filtered
// (possibly index-assisted) scan, then for each subsequent table a scan
// filtered by every predicate whose references are bound so far, using an
// index when match_index finds one.
func (e *Executor) joinScan(s SelectStatement, schemas map[string]*catalog.TableSchema) ([]joinRow, error) {
	rows := []joinRow{{}}
	for _, tname := range s.Tables {
		indexes, err := e.sys.Indexes(tname)
		if err != nil {
			return nil, err
		}
		var next []joinRow
		for _, outer := range rows {
			dyn := dynamicPredicates(tname, s.Where, outer, s.Tables, schemas)
			if match, ok := matchIndex(dyn, indexes); ok {
				recs, err := e.indexRangeScan(tname, match)
				if err != nil {
					return nil, err
				}
				for _, rec := range recs {
					if err := appendJoined(&next, outer, tname, rec, s.Where, s.Tables, schemas); err != nil {
						return nil, err
					}
				}
				continue
			}
			scanned, err := e.sys.Scan(tname)
			if err != nil {
				return nil, err
			}
			for _, r := range scanned {
				if err := appendJoined(&next, outer, tname, r.Record, s.Where, s.Tables, schemas); err != nil {
					return nil, err
				}
			}
		}
		rows = next
	}
	return rows, nil
}

// indexRangeScan walks match's index starting at the seed key built from
// its equality prefix and optional range bound, returning every matching
// table row. The matched index's leaf order gives the scan its order:
// Lt/Le stop scanning once the bound is passed, Gt/Ge skip forward to the
// bound and then scan to the end.
func (e *Executor) indexRangeScan(tableName string, match indexMatch) ([]record.Record, error) {
	tree, err := e.sys.IndexTree(tableName, match.Index.Name)
	if err != nil {
		return nil, err
	}

	seed := record.Record{IndexKeys: len(match.Index.KeyColumns)}
	seed.Values = make([]record.Value, len(match.Index.KeyColumns))
	for i, col := range match.Index.Columns {
		seed.Values[i] = record.NullValue(col.Type)
	}
	for i, v := range match.EqValues {
		seed.Values[i] = v
	}
	boundIdx := len(match.EqValues)
	if (match.Range == rangeGt || match.Range == rangeGe) && boundIdx < len(seed.Values) {
		seed.Values[boundIdx] = match.RangeValue
	}

	pos, ok, err := tree.Lookup(seed)
	if err != nil {
		return nil, err
	}
	var out []record.Record
	for ok {
		entry, err := tree.At(pos)
		if err != nil {
			return nil, err
		}
		if len(match.EqValues) > 0 {
			eqLayout := record.NewLayout(columnSubset(match.Index.Columns, match.Index.KeyColumns[:len(match.EqValues)]), len(match.EqValues), record.PayloadNone)
			prefix := record.Record{Values: entry.Values[:len(match.EqValues)], IndexKeys: len(match.EqValues)}
			seedPrefix := record.Record{Values: seed.Values[:len(match.EqValues)], IndexKeys: len(match.EqValues)}
			if eqLayout.Compare(prefix, seedPrefix) != 0 {
				break
			}
		}
		include, stop := true, false
		if match.Range != rangeNone && boundIdx < len(entry.Values) {
			c := entry.Values[boundIdx].Compare(match.RangeValue)
			switch match.Range {
			case rangeLt:
				stop = c >= 0
			case rangeLe:
				stop = c > 0
			case rangeGt:
				include = c > 0
			case rangeGe:
				include = c >= 0
			}
		}
		if stop {
			break
		}
		if include {
			rec, err := e.sys.GetRow(tableName, table.Location{Page: entry.Page, Slot: entry.Slot})
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		pos, ok, err = tree.Next(pos)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func appendJoined(next *[]joinRow, outer joinRow, tname string, rec record.Record, preds []WherePredicate, tables []string, schemas map[string]*catalog.TableSchema) error {
	combined := make(joinRow, len(outer)+1)
	for k, v := range outer {
		combined[k] = v
	}
	combined[tname] = rec
	ok, err := evalApplicablePredicates(combined, preds, tables, schemas)
	if err != nil {
		return err
	}
	if ok {
		*next = append(*next, combined)
	}
	return nil
}

// evalApplicablePredicates evaluates every predicate whose referenced
// tables are already bound in row, treating not-yet-applicable predicates
// (referencing a table later in the join order) as passing for now — they
// are re-checked once that table is bound.
func evalApplicablePredicates(row joinRow, preds []WherePredicate, tables []string, schemas map[string]*catalog.TableSchema) (bool, error) {
	for _, pred := range preds {
		applicable, result, err := evalPredicate(row, pred, tables, schemas)
		if err != nil {
			return false, err
		}
		if applicable && !result {
			return false, nil
		}
	}
	return true, nil
}

func evalPredicate(row joinRow, pred WherePredicate, tables []string, schemas map[string]*catalog.TableSchema) (applicable, result bool, err error) {
	lhsTable, err := resolveOwner(pred.Table, pred.Column, tables, schemas)
	if err != nil {
		return true, false, err
	}
	lhsRow, ok := row[lhsTable]
	if !ok {
		return false, false, nil
	}
	lhsIdx := schemas[lhsTable].ColumnIndex(pred.Column)
	lhsVal := lhsRow.Values[lhsIdx]

	switch pred.Op {
	case OpIsNull:
		return true, lhsVal.Null, nil
	case OpIsNotNull:
		return true, !lhsVal.Null, nil
	case OpLike:
		re, err := likeToRegexp(pred.Value.Literal.S)
		if err != nil {
			return true, false, relerr.Wrap(relerr.Parse, "like", pred.Value.Literal.S, err)
		}
		return true, !lhsVal.Null && re.MatchString(lhsVal.S), nil
	case OpIn:
		for _, v := range pred.List {
			if lhsVal.Equal(v) {
				return true, true, nil
			}
		}
		return true, false, nil
	default:
		var rhsVal record.Value
		if pred.Value.Literal != nil {
			rhsVal = *pred.Value.Literal
		} else {
			rhsTable, err := resolveOwner(pred.Value.Table, pred.Value.Column, tables, schemas)
			if err != nil {
				return true, false, err
			}
			rhsRow, ok := row[rhsTable]
			if !ok {
				return false, false, nil
			}
			rhsIdx := schemas[rhsTable].ColumnIndex(pred.Value.Column)
			rhsVal = rhsRow.Values[rhsIdx]
		}
		if lhsVal.Null || rhsVal.Null {
			return true, false, nil
		}
		cmp := lhsVal.Compare(rhsVal)
		switch pred.Op {
		case OpEq:
			return true, cmp == 0, nil
		case OpNe:
			return true, cmp != 0, nil
		case OpLt:
			return true, cmp < 0, nil
		case OpLe:
			return true, cmp <= 0, nil
		case OpGt:
			return true, cmp > 0, nil
		case OpGe:
			return true, cmp >= 0, nil
		}
		return true, false, nil
	}
}

// dynamicPredicates builds, for the table about to be scanned, a list of
// literal-valued predicates suitable for match_index: predicates with a
// constant on tname directly, plus join-equality/inequality predicates
// against a table already bound in outer, resolved to a literal using
// outer's value and mirrored so tname's column is always the subject.
func dynamicPredicates(tname string, preds []WherePredicate, outer joinRow, tables []string, schemas map[string]*catalog.TableSchema) []WherePredicate {
	var dyn []WherePredicate
	for _, pred := range preds {
		if pred.Value.Literal == nil && pred.Value.Column == "" {
			continue
		}
		lhsTable, err := resolveOwner(pred.Table, pred.Column, tables, schemas)
		if err != nil {
			continue
		}
		if lhsTable == tname {
			if pred.Value.Literal != nil {
				dyn = append(dyn, WherePredicate{Column: pred.Column, Op: pred.Op, Value: pred.Value})
				continue
			}
			rhsTable, err := resolveOwner(pred.Value.Table, pred.Value.Column, tables, schemas)
			if err != nil {
				continue
			}
			rhsRow, ok := outer[rhsTable]
			if !ok {
				continue
			}
			rhsIdx := schemas[rhsTable].ColumnIndex(pred.Value.Column)
			v := rhsRow.Values[rhsIdx]
			dyn = append(dyn, WherePredicate{Column: pred.Column, Op: pred.Op, Value: Expr{Literal: &v}})
			continue
		}
		if pred.Value.Column != "" {
			rhsTable, err := resolveOwner(pred.Value.Table, pred.Value.Column, tables, schemas)
			if err != nil || rhsTable != tname {
				continue
			}
			lhsRow, ok := outer[lhsTable]
			if !ok {
				continue
			}
			lhsIdx := schemas[lhsTable].ColumnIndex(pred.Column)
			v := lhsRow.Values[lhsIdx]
			dyn = append(dyn, WherePredicate{Column: pred.Value.Column, Op: mirrorOp(pred.Op), Value: Expr{Literal: &v}})
		}
	}
	return dyn
}
