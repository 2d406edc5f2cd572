package engine

import (
	"sort"

	"github.com/relstore/relstore/internal/catalog"
	"github.com/relstore/relstore/internal/record"
)

// rangeKind distinguishes the single trailing range predicate an index
// match may use after its covered equality prefix.
type rangeKind int

const (
	rangeNone rangeKind = iota
	rangeLt
	rangeLe
	rangeGt
	rangeGe
)

// indexMatch is the result of match_index: the chosen index, the literal
// values covering its leading key columns, and an optional trailing range
// bound on the next column.
type indexMatch struct {
	Index      *catalog.IndexSchema
	EqValues   []record.Value
	Range      rangeKind
	RangeValue record.Value
	Consumed   []int // indices into the predicate slice this match covers
}

// matchIndex examines preds (only literal-valued predicates on table's own
// columns participate) and returns the index whose leading key columns are
// covered by the longest equality prefix, optionally followed by one range
// predicate on the next column. Returns ok=false if no index matches any
// prefix.
func matchIndex(preds []WherePredicate, indexes []*catalog.IndexSchema) (indexMatch, bool) {
	var best indexMatch
	bestScore := -1
	// Sort candidates by name for a deterministic choice among equal scores.
	sorted := append([]*catalog.IndexSchema(nil), indexes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, ix := range sorted {
		used := make(map[int]bool)
		var eqValues []record.Value
		var consumed []int
		for _, col := range ix.KeyColumns {
			pi, ok := findUnusedPredicate(preds, used, col, OpEq)
			if !ok {
				break
			}
			used[pi] = true
			consumed = append(consumed, pi)
			eqValues = append(eqValues, *preds[pi].Value.Literal)
		}
		m := indexMatch{Index: ix, EqValues: eqValues, Consumed: consumed}
		score := len(eqValues) * 2

		if len(eqValues) < len(ix.KeyColumns) {
			nextCol := ix.KeyColumns[len(eqValues)]
			if pi, rk, ok := findRangePredicate(preds, used, nextCol); ok {
				m.Range = rk
				m.RangeValue = *preds[pi].Value.Literal
				m.Consumed = append(m.Consumed, pi)
				score++
			}
		}

		if score > bestScore && (len(eqValues) > 0 || m.Range != rangeNone) {
			bestScore = score
			best = m
		}
	}
	return best, bestScore >= 0
}

func findUnusedPredicate(preds []WherePredicate, used map[int]bool, col string, op CompareOp) (int, bool) {
	for i, p := range preds {
		if used[i] || p.Column != col || p.Op != op || p.Value.Literal == nil {
			continue
		}
		return i, true
	}
	return 0, false
}

func findRangePredicate(preds []WherePredicate, used map[int]bool, col string) (int, rangeKind, bool) {
	for i, p := range preds {
		if used[i] || p.Column != col || p.Value.Literal == nil {
			continue
		}
		switch p.Op {
		case OpLt:
			return i, rangeLt, true
		case OpLe:
			return i, rangeLe, true
		case OpGt:
			return i, rangeGt, true
		case OpGe:
			return i, rangeGe, true
		}
	}
	return 0, rangeNone, false
}
