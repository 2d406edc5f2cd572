// Package relerr defines the error kinds surfaced at statement boundaries.
//
// The engine never returns a bare error for a constraint violation or a
// missing name — it wraps the underlying cause in an *Error carrying a
// Kind, so callers (the CLI, embedding programs, tests) can distinguish
// "table not found" from "unique violation" with errors.As, and so the
// CLI can print one line identifying the kind and the offending name.
package relerr

import "fmt"

// Kind enumerates the user-visible error categories.
type Kind int

const (
	IO Kind = iota
	Parse
	UnknownDatabase
	UnknownTable
	UnknownColumn
	UnknownIndex
	DuplicateName
	TypeMismatch
	NullViolation
	UniqueViolation
	ForeignKeyViolation
	ReferencedByForeignKey
	NoSuitableIndex
	OutOfRange
	BadFormat
)

// String renders the kind the way it should appear in a user-facing line.
func (k Kind) String() string {
	switch k {
	case IO:
		return "IO"
	case Parse:
		return "Parse"
	case UnknownDatabase:
		return "UnknownDatabase"
	case UnknownTable:
		return "UnknownTable"
	case UnknownColumn:
		return "UnknownColumn"
	case UnknownIndex:
		return "UnknownIndex"
	case DuplicateName:
		return "DuplicateName"
	case TypeMismatch:
		return "TypeMismatch"
	case NullViolation:
		return "NullViolation"
	case UniqueViolation:
		return "UniqueViolation"
	case ForeignKeyViolation:
		return "ForeignKeyViolation"
	case ReferencedByForeignKey:
		return "ReferencedByForeignKey"
	case NoSuitableIndex:
		return "NoSuitableIndex"
	case OutOfRange:
		return "OutOfRange"
	case BadFormat:
		return "BadFormat"
	default:
		return "Unknown"
	}
}

// Error is the structured error type returned at statement boundaries.
type Error struct {
	Kind Kind
	Op   string // operation in progress, e.g. "insert", "create table"
	Name string // offending name or value, if any
	Err  error  // wrapped cause, if any
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Name != "":
		return fmt.Sprintf("%s: %s %q: %v", e.Kind, e.Op, e.Name, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Name != "":
		return fmt.Sprintf("%s: %s %q", e.Kind, e.Op, e.Name)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, op, name string) *Error {
	return &Error{Kind: kind, Op: op, Name: name}
}

// Wrap builds an *Error around an existing cause.
func Wrap(kind Kind, op, name string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == kind {
				return true
			}
			err = e.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
