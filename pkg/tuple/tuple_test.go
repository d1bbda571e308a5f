package tuple

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
)

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		name     string
		elems    []int64
		expected string
	}{
		{
			name:     "empty",
			expected: "()",
		},
		{
			name:     "single",
			elems:    []int64{4},
			expected: "(4)",
		},
		{
			name:     "pair",
			elems:    []int64{4, 5},
			expected: "(4, 5)",
		},
		{
			name:     "ternary",
			elems:    []int64{1, 0, 9},
			expected: "(1, 0, 9)",
		},
		{
			name:     "wide",
			elems:    []int64{1, 2, 3, 4, 5, 6},
			expected: "(1, 2, 3, 4, 5, 6)",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tup := New(tc.elems...)
			require.Equal(t, len(tc.elems), tup.Size())
			require.Equal(t, tc.expected, tup.String())
			if len(tc.elems) == 0 {
				require.Empty(t, tup.Elements())
			} else {
				require.Equal(t, tc.elems, tup.Elements())
			}
			for i, e := range tc.elems {
				got, err := tup.Get(i)
				require.NoError(t, err)
				require.Equal(t, e, got)
			}
		})
	}
}

func TestGetOutOfRange(t *testing.T) {
	for _, tup := range []Tuple{Empty, Of1(1), Of2(1, 2), New(1, 2, 3)} {
		_, err := tup.Get(tup.Size())
		require.ErrorIs(t, err, tferrors.ErrContractViolation)

		var rangeErr *IndexOutOfRangeError
		require.ErrorAs(t, err, &rangeErr)
		require.Equal(t, tup.Size(), rangeErr.Size)

		_, err = tup.Get(-1)
		require.Error(t, err)
	}
}

func TestEquality(t *testing.T) {
	t.Run("canonical_representation", func(t *testing.T) {
		require.Equal(t, Of1(3), New(3))
		require.True(t, Equal(Of2(3, 4), New(3, 4)))
		require.True(t, Equal(New(1, 2, 3), New(1, 2, 3)))
		require.False(t, Equal(New(1, 2, 3), New(1, 2, 4)))
		require.False(t, Equal(Of2(1, 2), Of2(2, 1)))
	})

	t.Run("usable_as_map_key", func(t *testing.T) {
		m := map[Tuple]int{}
		m[New(1, 2, 3)]++
		m[New(1, 2, 3)]++
		m[Of2(1, 2)]++
		require.Equal(t, 2, m[New(1, 2, 3)])
		require.Equal(t, 1, m[New(1, 2)])
		require.Len(t, m, 2)
	})

	t.Run("hash_follows_content", func(t *testing.T) {
		require.Equal(t, New(7, 8, 9).Hash(), New(7, 8, 9).Hash())
		require.Equal(t, Of2(7, 8).Hash(), New(7, 8).Hash())
		require.NotEqual(t, Of2(7, 8).Hash(), Of2(8, 7).Hash())
	})
}

func TestConcat(t *testing.T) {
	require.Equal(t, Of2(1, 2), Concat(Of1(1), Of1(2)))
	require.Equal(t, New(1, 2, 3, 4), Concat(Of2(1, 2), Of2(3, 4)))
	require.Equal(t, Of1(5), Concat(Empty, Of1(5)))
	require.Equal(t, Of1(5), Concat(Of1(5), Empty))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(New(0, 1, 2)))
	err := Validate(New(0, -1))
	require.ErrorIs(t, err, tferrors.ErrContractViolation)

	var invalid *InvalidElementError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, 1, invalid.Position)
}

func TestCache(t *testing.T) {
	t.Run("returns_equal_values", func(t *testing.T) {
		c := NewCache(16)
		require.Equal(t, 16, c.Size())
		require.Equal(t, Of1(3), c.Of(3))
		require.Equal(t, Of1(99), c.Of(99))
		require.Equal(t, Of1(-1), c.Of(-1))
	})

	t.Run("reset_keeps_taken_references_valid", func(t *testing.T) {
		c := NewCache(8)
		before := c.Of(5)
		require.Equal(t, uint64(0), c.Generation())

		c.Reset()
		require.Equal(t, uint64(1), c.Generation())

		after := c.Of(5)
		require.Equal(t, before, after)
		v, err := before.Get(0)
		require.NoError(t, err)
		require.Equal(t, int64(5), v)
	})

	t.Run("default_size", func(t *testing.T) {
		require.Equal(t, DefaultCacheSize, NewCache(0).Size())
	})

	t.Run("nil_cache_falls_back", func(t *testing.T) {
		var c *Cache
		require.Equal(t, Of1(2), c.Of(2))
	})

	t.Run("concurrent_reset", func(t *testing.T) {
		c := NewCache(64)
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 100 {
					if j%10 == 0 {
						c.Reset()
					}
					assert.Equal(t, Of1(int64(i)), c.Of(int64(i)))
				}
			}()
		}
		wg.Wait()
		require.Equal(t, uint64(80), c.Generation())
	})
}

func TestSort(t *testing.T) {
	ts := []Tuple{Of2(2, 1), New(1, 2, 3), Of1(9), Of2(1, 5), Empty}
	Sort(ts)
	require.Equal(t, []Tuple{Empty, New(1, 2, 3), Of2(1, 5), Of2(2, 1), Of1(9)}, ts)
	require.Zero(t, Compare(New(4, 4, 4), New(4, 4, 4)))
}

func TestDirection(t *testing.T) {
	require.Equal(t, Retract, Insert.Opposite())
	require.Equal(t, Insert, Retract.Opposite())
	require.Equal(t, 1, Insert.Sign())
	require.Equal(t, -1, Retract.Sign())
	require.True(t, Insert.Valid())
	require.False(t, Direction(0).Valid())
	require.Equal(t, "INSERT", Insert.String())
	require.Equal(t, "Direction(3)", Direction(3).String())
}
