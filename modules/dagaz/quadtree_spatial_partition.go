package dagaz

import (
	"math"
	"slices"
	"sync"

	"github.com/aukilabs/hagall-spatial/quadtree"
)

// Quadtree Spatial Partition
//
// Planes are indexed by their footprint on the xz plane in a quadtree covering
// the space bounds. Planes that are not fully within the space bounds are kept
// in a list that is scanned on every lookup.

// MergeEpsilon is the maximum height difference between two overlapping planes
// for them to be merged.
const MergeEpsilon = float32(0.6)

type QuadTreePartition struct {
	mutex      sync.RWMutex
	capacity   int
	index      *quadtree.Node[*Quad]
	outside    []*Quad
	planeCount uint32
	mergeCount uint32
}

func NewQuadTreePartition(bounds quadtree.Rect, capacity int) *QuadTreePartition {
	if capacity < 1 {
		capacity = quadtree.DefaultCapacity
	}

	return &QuadTreePartition{
		capacity: capacity,
		index:    quadtree.New[*Quad](bounds, quadtree.WithCapacity(capacity)),
	}
}

// InsertQuad merges the sample into the overlapping plane with the closest
// height within MergeEpsilon, or adds it as a new plane. A merged plane is not
// merged again with its neighbors.
func (p *QuadTreePartition) InsertQuad(q Quad) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var closest *Quad
	closestDistance := float32(math.Inf(1))

	p.intersect(q.Hitbox(), func(plane *Quad) {
		distance := float32(math.Abs(float64(plane.Center.y - q.Center.y)))
		if distance <= MergeEpsilon && distance < closestDistance {
			closest = plane
			closestDistance = distance
		}
	})

	if closest == nil {
		plane := q
		plane.Normal = calculateNormal(plane.Center, plane.Extents)
		p.place(&plane)
		p.planeCount++
		return
	}

	p.remove(closest)
	closest.mergeSample(q)
	p.place(closest)
	p.mergeCount++
}

// IntersectQuad returns a copy of the plane hit first by the ray.
func (p *QuadTreePartition) IntersectQuad(r Ray) (*Quad, float32) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	var nearest *Quad
	tMin := float32(math.Inf(1))

	p.intersect(r.Footprint(), func(plane *Quad) {
		if hit, t := IntersectQuad(r, *plane); hit && t < tMin {
			nearest = plane
			tMin = t
		}
	})

	if nearest == nil {
		return nil, -1
	}

	res := *nearest
	return &res, tMin
}

// GetRegion returns copies of the planes overlapping the xz area between min
// and max.
func (p *QuadTreePartition) GetRegion(min Vector3f, max Vector3f) []*Quad {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	var quads []*Quad
	p.intersect(footprint(min, max), func(plane *Quad) {
		res := *plane
		quads = append(quads, &res)
	})
	return quads
}

func (p *QuadTreePartition) GetDebugInfo() SpatialDebugInfo {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	bounds := p.index.Bounds()
	info := SpatialDebugInfo{
		Capacity:   uint32(p.capacity),
		PlaneCount: p.planeCount,
		MergeCount: p.mergeCount,
		MinPoint:   NewVector3f(bounds.X, 0, bounds.Y),
		MaxPoint:   NewVector3f(bounds.Right(), 0, bounds.Top()),
	}

	p.index.Walk(func(n *quadtree.Node[*Quad], depth int) bool {
		info.Depth = max(info.Depth, uint32(depth))
		if n.IsLeaf() {
			info.LeafCount++
			info.Occupancy = append(info.Occupancy, uint32(n.TotalObjectCount()))
		}
		return true
	})
	return info
}

func (p *QuadTreePartition) intersect(r quadtree.Rect, fn func(*Quad)) {
	p.index.Intersect(r, fn)

	for _, plane := range p.outside {
		if plane.Hitbox().Overlaps(r) {
			fn(plane)
		}
	}
}

func (p *QuadTreePartition) place(plane *Quad) {
	if hitbox := plane.Hitbox(); !hitbox.Empty() && p.index.Bounds().Contains(hitbox) {
		p.index.Insert(plane)
		return
	}
	p.outside = append(p.outside, plane)
}

func (p *QuadTreePartition) remove(plane *Quad) {
	if p.index.Remove(plane) {
		return
	}

	if i := slices.Index(p.outside, plane); i >= 0 {
		p.outside = slices.Delete(p.outside, i, i+1)
	}
}
