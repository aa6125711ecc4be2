package endpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolAdvanceWraps(t *testing.T) {
	pool, err := New([]string{"a", "b", "c"})
	require.NoError(t, err)

	require.Equal(t, "a", pool.Current())
	require.Equal(t, "b", pool.Advance())
	require.Equal(t, "b", pool.Current())
	require.Equal(t, "c", pool.Advance())
	require.Equal(t, "a", pool.Advance())
	require.Equal(t, 0, pool.Index())
}

func TestPoolAdvanceCyclic(t *testing.T) {
	for n := 1; n <= 7; n++ {
		endpoints := make([]string, n)
		for i := range endpoints {
			endpoints[i] = string(rune('a' + i))
		}
		pool, err := New(endpoints)
		require.NoError(t, err)

		for start := 0; start < n; start++ {
			origin := pool.Current()
			for i := 0; i < n; i++ {
				pool.Advance()
			}
			require.Equalf(t, origin, pool.Current(), "pool of %d did not cycle", n)
			pool.Advance()
		}
	}
}

func TestPoolSingleEndpoint(t *testing.T) {
	pool, err := New([]string{"only"})
	require.NoError(t, err)
	require.Equal(t, "only", pool.Advance())
	require.Equal(t, 1, pool.Len())
}

func TestPoolEmpty(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestPoolCopiesInput(t *testing.T) {
	input := []string{"a", "b"}
	pool, err := New(input)
	require.NoError(t, err)
	input[0] = "z"
	require.Equal(t, "a", pool.Current())
}
