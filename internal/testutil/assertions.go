package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertRanBefore checks that task first finished before task second started.
func AssertRanBefore(t *testing.T, rec *RecorderPlugin, first, second string) {
	t.Helper()

	a, ok := rec.Record(first)
	require.True(t, ok, "expected task '%s' to have run", first)
	b, ok := rec.Record(second)
	require.True(t, ok, "expected task '%s' to have run", second)
	require.False(t, b.Start.Before(a.End),
		"expected '%s' (ended %s) to finish before '%s' started (%s)", first, a.End, second, b.Start)
}
