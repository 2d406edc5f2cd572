// Package record implements the typed value tuple shared by table rows and
// index entries, and the fixed-length binary codec used to move them to and
// from page buffers.
//
// A Value is a tagged sum over {Null, Int, Float, Varchar, Date}. A Record is
// an ordered tuple of Values plus an optional trailing payload (a child page
// pointer for B+-tree internal entries, or a (page, slot) pair for B+-tree
// leaf entries; table rows carry none). The binary layout is fixed-length: every record
// described by the same Layout occupies exactly Layout.Size bytes, which is
// what lets the heap and B+-tree store records in flat, pre-sized slots
// instead of tracking per-record lengths.
package record

import (
	"fmt"
	"time"
)

// Type identifies the declared type of a column.
type Type int

const (
	TInt Type = iota
	TFloat
	TVarchar
	TDate
)

// dateLayout is the fixed ISO-8601 text encoding used for Date values
// on disk (10 bytes: "2006-01-02").
const dateLayout = "2006-01-02"

// Size returns the fixed on-disk size in bytes of a value of this type
// declared with the given length (only meaningful for TVarchar).
func (t Type) Size(length int) int {
	switch t {
	case TInt:
		return 4
	case TFloat:
		return 8
	case TVarchar:
		return length
	case TDate:
		return 10
	default:
		panic(fmt.Sprintf("record: unknown type %d", t))
	}
}

func (t Type) String() string {
	switch t {
	case TInt:
		return "INT"
	case TFloat:
		return "FLOAT"
	case TVarchar:
		return "VARCHAR"
	case TDate:
		return "DATE"
	default:
		return "UNKNOWN"
	}
}

// Column describes one column of a table or index key.
type Column struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Len      int    `json:"len,omitempty"`
	Nullable bool   `json:"nullable"`
	Default  *Value `json:"default,omitempty"`
}

// Size returns the fixed encoded width of this column.
func (c Column) Size() int { return c.Type.Size(c.Len) }

// Value is a tagged value: Null, Int (int32), Float (float64), Varchar, or
// Date (stored as ISO-8601 text internally).
type Value struct {
	Type Type    `json:"type"`
	Null bool    `json:"null,omitempty"`
	I    int32   `json:"i,omitempty"`
	F    float64 `json:"f,omitempty"`
	S    string  `json:"s,omitempty"`
}

// NullValue builds a Null value carrying the given declared type, so a
// decoded Null still knows which column it belongs to.
func NullValue(t Type) Value { return Value{Type: t, Null: true} }

// Int builds a non-null integer value.
func Int(v int32) Value { return Value{Type: TInt, I: v} }

// Float builds a non-null float value.
func Float(v float64) Value { return Value{Type: TFloat, F: v} }

// Varchar builds a non-null varchar value.
func Varchar(s string) Value { return Value{Type: TVarchar, S: s} }

// Date builds a non-null date value from a calendar date.
func Date(t time.Time) Value { return Value{Type: TDate, S: t.Format(dateLayout)} }

// DateFromText builds a non-null date value from ISO-8601 text, validating
// the layout. Malformed dates are a TypeMismatch at the caller's discretion.
func DateFromText(s string) (Value, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return Value{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Value{Type: TDate, S: s}, nil
}

// String renders the value the way the CLI prints it.
func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	switch v.Type {
	case TInt:
		return fmt.Sprintf("%d", v.I)
	case TFloat:
		return fmt.Sprintf("%g", v.F)
	case TVarchar, TDate:
		return v.S
	default:
		return "?"
	}
}

// Equal implements SQL `=` semantics: Null is never equal to anything,
// including another Null.
func (v Value) Equal(o Value) bool {
	if v.Null || o.Null {
		return false
	}
	return v.Compare(o) == 0
}

// Compare orders values for index keys and ORDER BY. Null sorts strictly
// before any non-null value of the same column, and Null compares equal to
// Null under this comparator (unlike Equal) so that B+-tree key ordering
// stays total. An INT and a FLOAT compare by numeric value.
func (v Value) Compare(o Value) int {
	if v.Null && o.Null {
		return 0
	}
	if v.Null {
		return -1
	}
	if o.Null {
		return 1
	}
	if (v.Type == TInt && o.Type == TFloat) || (v.Type == TFloat && o.Type == TInt) {
		a, b := v.F, o.F
		if v.Type == TInt {
			a = float64(v.I)
		}
		if o.Type == TInt {
			b = float64(o.I)
		}
		return Float(a).Compare(Float(b))
	}
	switch v.Type {
	case TInt:
		switch {
		case v.I < o.I:
			return -1
		case v.I > o.I:
			return 1
		default:
			return 0
		}
	case TFloat:
		switch {
		case v.F < o.F:
			return -1
		case v.F > o.F:
			return 1
		default:
			return 0
		}
	case TVarchar, TDate:
		switch {
		case v.S < o.S:
			return -1
		case v.S > o.S:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// Hash returns a value usable as a Go map key for GROUP BY partitioning.
// Null values of a given type hash identically so NULL forms its own group.
func (v Value) Hash() any {
	if v.Null {
		return fmt.Sprintf("\x00null:%d", v.Type)
	}
	switch v.Type {
	case TInt:
		return v.I
	case TFloat:
		return v.F
	default:
		return v.S
	}
}
