package dagaz

import (
	"testing"

	"github.com/aukilabs/hagall-spatial/quadtree"
	"github.com/stretchr/testify/require"
)

func newTestPartition() *QuadTreePartition {
	return NewQuadTreePartition(quadtree.NewRect(-10, -10, 20, 20), 2)
}

func TestQuadTreePartitionCreation(t *testing.T) {
	p := NewQuadTreePartition(quadtree.NewRect(-10, -10, 20, 20), 0)

	info := p.GetDebugInfo()
	require.Equal(t, uint32(quadtree.DefaultCapacity), info.Capacity)
	require.Zero(t, info.PlaneCount)
	require.Zero(t, info.MergeCount)
	require.Equal(t, uint32(1), info.LeafCount)
	require.Equal(t, []uint32{0}, info.Occupancy)
	require.Equal(t, NewVector3f(-10, 0, -10), info.MinPoint)
	require.Equal(t, NewVector3f(10, 0, 10), info.MaxPoint)
}

func TestQuadTreePartitionInsertion(t *testing.T) {
	p := newTestPartition()
	quad := NewQuad(NewVector3f(0, 0, 0), NewVector3f(1, 0, 1))

	p.InsertQuad(quad)
	info := p.GetDebugInfo()
	require.Equal(t, uint32(1), info.PlaneCount)
	require.Zero(t, info.MergeCount)

	t.Run("same quad is merged", func(t *testing.T) {
		p.InsertQuad(quad)
		info := p.GetDebugInfo()
		require.Equal(t, uint32(1), info.PlaneCount)
		require.Equal(t, uint32(1), info.MergeCount)

		quads := p.GetRegion(NewVector3f(-10, 0, -10), NewVector3f(10, 0, 10))
		require.Len(t, quads, 1)
		require.Equal(t, uint32(1), quads[0].MergeCount)
		require.Equal(t, quad.Center, quads[0].Center)
	})

	t.Run("distinct quad is added", func(t *testing.T) {
		p.InsertQuad(NewQuad(NewVector3f(5, 0, 0), NewVector3f(0.1, 0, 0.1)))
		info := p.GetDebugInfo()
		require.Equal(t, uint32(2), info.PlaneCount)
		require.Equal(t, uint32(1), info.MergeCount)
	})

	t.Run("quad at a different height is added", func(t *testing.T) {
		p.InsertQuad(NewQuad(NewVector3f(0, 2, 0), NewVector3f(1, 0, 1)))
		info := p.GetDebugInfo()
		require.Equal(t, uint32(3), info.PlaneCount)
		require.Equal(t, uint32(1), info.MergeCount)
	})
}

func TestQuadTreePartitionMerging(t *testing.T) {
	p := newTestPartition()
	p.InsertQuad(NewQuad(NewVector3f(0, 0, 0), NewVector3f(1, 0, 1)))
	p.InsertQuad(NewQuad(NewVector3f(1, 0.5, 0), NewVector3f(2, 0, 1)))

	quads := p.GetRegion(NewVector3f(-10, 0, -10), NewVector3f(10, 0, 10))
	require.Len(t, quads, 1)

	merged := quads[0]
	require.True(t, merged.Center.EqualWithEpsilon(NewVector3f(0.2, 0.1, 0), 0.0001))
	require.True(t, merged.Extents.EqualWithEpsilon(NewVector3f(1.2, 0, 1), 0.0001))
	require.True(t, merged.Normal.EqualWithEpsilon(NewVector3f(0, 1, 0), 0.0001))
	require.Equal(t, uint32(1), merged.MergeCount)

	t.Run("merged quad is still found by its new footprint", func(t *testing.T) {
		q, _ := p.IntersectQuad(Ray{
			From: NewVector3f(1.3, 1, 0),
			To:   NewVector3f(1.3, -1, 0),
		})
		require.NotNil(t, q)
		require.Equal(t, merged.Center, q.Center)
	})
}

func TestQuadTreePartitionIntersection(t *testing.T) {
	p := newTestPartition()
	ground := NewQuad(NewVector3f(0, 0, 0), NewVector3f(1, 0, 1))
	table := NewQuad(NewVector3f(0, 2, 0), NewVector3f(0.5, 0, 0.5))
	p.InsertQuad(ground)
	p.InsertQuad(table)

	t.Run("hit", func(t *testing.T) {
		q, at := p.IntersectQuad(Ray{
			From: NewVector3f(0.8, 1, 0),
			To:   NewVector3f(0.8, -1, 0),
		})
		require.NotNil(t, q)
		require.Equal(t, ground, *q)
		require.Equal(t, float32(0.5), at)
	})

	t.Run("nearest hit", func(t *testing.T) {
		q, at := p.IntersectQuad(Ray{
			From: NewVector3f(0, 3, 0),
			To:   NewVector3f(0, -1, 0),
		})
		require.NotNil(t, q)
		require.Equal(t, table, *q)
		require.Equal(t, float32(0.25), at)
	})

	t.Run("miss", func(t *testing.T) {
		q, at := p.IntersectQuad(Ray{
			From: NewVector3f(8, 1, 8),
			To:   NewVector3f(8, -1, 8),
		})
		require.Nil(t, q)
		require.Equal(t, float32(-1), at)
	})

	t.Run("returned quad is a copy", func(t *testing.T) {
		q, _ := p.IntersectQuad(Ray{
			From: NewVector3f(0.8, 1, 0),
			To:   NewVector3f(0.8, -1, 0),
		})
		q.MergeCount = 42

		q, _ = p.IntersectQuad(Ray{
			From: NewVector3f(0.8, 1, 0),
			To:   NewVector3f(0.8, -1, 0),
		})
		require.Zero(t, q.MergeCount)
	})
}

func TestQuadTreePartitionOutsideBounds(t *testing.T) {
	p := newTestPartition()
	far := NewQuad(NewVector3f(50, 0, 50), NewVector3f(1, 0, 1))
	edge := NewQuad(NewVector3f(10, 0, 0), NewVector3f(1, 0, 1))
	p.InsertQuad(far)
	p.InsertQuad(edge)

	q, _ := p.IntersectQuad(Ray{
		From: NewVector3f(50, 1, 50),
		To:   NewVector3f(50, -1, 50),
	})
	require.NotNil(t, q)
	require.Equal(t, far, *q)

	q, _ = p.IntersectQuad(Ray{
		From: NewVector3f(10.5, 1, 0),
		To:   NewVector3f(10.5, -1, 0),
	})
	require.NotNil(t, q)
	require.Equal(t, edge, *q)

	require.Len(t, p.GetRegion(NewVector3f(40, 0, 40), NewVector3f(60, 0, 60)), 1)

	p.InsertQuad(far)
	info := p.GetDebugInfo()
	require.Equal(t, uint32(2), info.PlaneCount)
	require.Equal(t, uint32(1), info.MergeCount)
	require.Equal(t, []uint32{0}, info.Occupancy)
}

func TestQuadTreePartitionGetRegion(t *testing.T) {
	p := newTestPartition()
	a := NewQuad(NewVector3f(-5, 0, -5), NewVector3f(1, 0, 1))
	b := NewQuad(NewVector3f(5, 0, -5), NewVector3f(1, 0, 1))
	c := NewQuad(NewVector3f(5, 0, 5), NewVector3f(1, 0, 1))
	p.InsertQuad(a)
	p.InsertQuad(b)
	p.InsertQuad(c)

	t.Run("region", func(t *testing.T) {
		quads := p.GetRegion(NewVector3f(-10, -10, -10), NewVector3f(10, 10, 0))
		require.Len(t, quads, 2)
		require.ElementsMatch(t, []Quad{a, b}, []Quad{*quads[0], *quads[1]})
	})

	t.Run("swapped corners", func(t *testing.T) {
		quads := p.GetRegion(NewVector3f(10, 0, 10), NewVector3f(0, 0, 0))
		require.Len(t, quads, 1)
		require.Equal(t, c, *quads[0])
	})

	t.Run("empty region", func(t *testing.T) {
		require.Empty(t, p.GetRegion(NewVector3f(-1, 0, -1), NewVector3f(1, 0, 1)))
	})

	t.Run("debug info", func(t *testing.T) {
		info := p.GetDebugInfo()
		require.Equal(t, SpatialDebugInfo{
			Capacity:   2,
			Depth:      1,
			LeafCount:  4,
			PlaneCount: 3,
			MinPoint:   NewVector3f(-10, 0, -10),
			MaxPoint:   NewVector3f(10, 0, 10),
			Occupancy:  []uint32{1, 1, 1, 0},
		}, info)
	})
}
