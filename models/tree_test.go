package models

import (
	"testing"

	"github.com/aukilabs/hagall-spatial/quadtree"
	"github.com/stretchr/testify/require"
)

func TestSpaceTree(t *testing.T) {
	s := newTestSpace(SpaceOptions{})

	t.Run("empty space", func(t *testing.T) {
		out := s.Tree().String()
		require.Contains(t, out, "space 1 [0,0,100,100]")
		require.NotContains(t, out, "entity")
	})

	t.Run("split space", func(t *testing.T) {
		addTestEntity(t, s, quadtree.NewRect(10, 10, 5, 5))
		addTestEntity(t, s, quadtree.NewRect(60, 60, 5, 5))
		addTestEntity(t, s, quadtree.NewRect(45, 45, 10, 10))

		out := s.Tree().String()
		require.Contains(t, out, "bottom_left [0,0,50,50]")
		require.Contains(t, out, "top_right [50,50,50,50]")
		require.Contains(t, out, "entity 1 [10,10,5,5]")
		require.Contains(t, out, "entity 2 [60,60,5,5]")
		require.Contains(t, out, "entity 3 [45,45,10,10]")
	})
}
