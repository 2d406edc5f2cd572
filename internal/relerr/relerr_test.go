package relerr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/relstore/relstore/internal/relerr"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsErrorWithoutCause(t *testing.T) {
	err := relerr.New(relerr.UnknownTable, "select", "widgets")
	require.EqualError(t, err, `UnknownTable: select "widgets"`)
	require.Nil(t, err.Unwrap())
}

func TestWrapNilReturnsNil(t *testing.T) {
	require.Nil(t, relerr.Wrap(relerr.IO, "flush", "", nil))
}

func TestWrapCarriesCauseInMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := relerr.Wrap(relerr.IO, "write", "data.bin", cause)
	require.Contains(t, err.Error(), "disk full")
	require.ErrorIs(t, err, cause)
}

func TestIsMatchesDirectKind(t *testing.T) {
	err := relerr.New(relerr.UniqueViolation, "insert", "id")
	require.True(t, relerr.Is(err, relerr.UniqueViolation))
	require.False(t, relerr.Is(err, relerr.NullViolation))
}

func TestIsUnwrapsThroughWrappedErrors(t *testing.T) {
	inner := relerr.New(relerr.ForeignKeyViolation, "insert", "dept_id")
	outer := fmt.Errorf("executing statement: %w", inner)
	require.True(t, relerr.Is(outer, relerr.ForeignKeyViolation))
}

func TestKindStringRendersName(t *testing.T) {
	require.Equal(t, "UniqueViolation", relerr.UniqueViolation.String())
	require.Equal(t, "ReferencedByForeignKey", relerr.ReferencedByForeignKey.String())
}
