package quadtree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRectOverlaps(t *testing.T) {
	r := NewRect(0, 0, 10, 10)

	t.Run("overlapping rectangles", func(t *testing.T) {
		require.True(t, r.Overlaps(NewRect(5, 5, 10, 10)))
		require.True(t, r.Overlaps(NewRect(-5, -5, 10, 10)))
		require.True(t, r.Overlaps(NewRect(2, 2, 1, 1)))
		require.True(t, NewRect(2, 2, 1, 1).Overlaps(r))
	})

	t.Run("touching rectangles do not overlap", func(t *testing.T) {
		require.False(t, r.Overlaps(NewRect(10, 0, 5, 5)))
		require.False(t, r.Overlaps(NewRect(0, 10, 5, 5)))
		require.False(t, r.Overlaps(NewRect(-5, 0, 5, 5)))
	})

	t.Run("distant rectangles do not overlap", func(t *testing.T) {
		require.False(t, r.Overlaps(NewRect(100, 100, 1, 1)))
	})
}

func TestRectContains(t *testing.T) {
	r := NewRect(0, 0, 10, 10)

	require.True(t, r.Contains(r))
	require.True(t, r.Contains(NewRect(1, 1, 2, 2)))
	require.False(t, r.Contains(NewRect(9, 9, 2, 2)))
}

func TestRectEdges(t *testing.T) {
	r := NewRect(1, 2, 3, 4)

	require.Equal(t, float32(4), r.Right())
	require.Equal(t, float32(6), r.Top())
	require.False(t, r.Empty())
	require.True(t, NewRect(0, 0, 0, 4).Empty())
	require.Equal(t, "[1,2,3,4]", r.String())
}
