package dagaz

import (
	"math"

	"github.com/aukilabs/hagall-common/messages/dagazpb"
	"github.com/aukilabs/hagall-spatial/quadtree"
)

// The tolerance used when checking whether a hit point lies on a quad.
const hitEpsilon = 0.0001

func EqualWithEpsilon(a, b float32, epsilon float64) bool {
	return math.Abs(float64(a-b)) <= epsilon
}

func InRangeWithEpsilon(value, min, max, epsilon float32) bool {
	return value+epsilon >= min && value-epsilon <= max
}

type Vector3f struct {
	x float32
	y float32
	z float32
}

func NewVector3f(x, y, z float32) Vector3f {
	return Vector3f{x, y, z}
}

func NewVector3fFromProtobuf(p *dagazpb.Point) Vector3f {
	if p == nil {
		return Vector3f{}
	}
	return Vector3f{x: p.X, y: p.Y, z: p.Z}
}

func (v Vector3f) ToProtobuf() *dagazpb.Point {
	return &dagazpb.Point{X: v.x, Y: v.y, Z: v.z}
}

func (v Vector3f) EqualWithEpsilon(o Vector3f, epsilon float64) bool {
	return EqualWithEpsilon(v.x, o.x, epsilon) &&
		EqualWithEpsilon(v.y, o.y, epsilon) &&
		EqualWithEpsilon(v.z, o.z, epsilon)
}

func (v Vector3f) Length() float64 {
	return math.Sqrt(float64(v.x*v.x + v.y*v.y + v.z*v.z))
}

func (v Vector3f) Dot(o Vector3f) float32 {
	return v.x*o.x + v.y*o.y + v.z*o.z
}

// Normalized returns the unit vector with the same direction. The zero vector
// is returned unchanged.
func (v Vector3f) Normalized() Vector3f {
	l := float32(v.Length())
	if l == 0 {
		return v
	}
	return Vector3f{v.x / l, v.y / l, v.z / l}
}

func Add(a, b Vector3f) Vector3f {
	return Vector3f{a.x + b.x, a.y + b.y, a.z + b.z}
}

func Sub(a, b Vector3f) Vector3f {
	return Vector3f{a.x - b.x, a.y - b.y, a.z - b.z}
}

func Mul(a Vector3f, s float32) Vector3f {
	return Vector3f{a.x * s, a.y * s, a.z * s}
}

func Cross(a, b Vector3f) Vector3f {
	return Vector3f{a.y*b.z - a.z*b.y, a.z*b.x - a.x*b.z, a.x*b.y - a.y*b.x}
}

// footprint returns the projection of the box between the given corners on
// the xz plane. Quadtree rectangles map x to X and z to Y.
func footprint(a, b Vector3f) quadtree.Rect {
	minX, maxX := min(a.x, b.x), max(a.x, b.x)
	minZ, maxZ := min(a.z, b.z), max(a.z, b.z)
	return quadtree.NewRect(minX, minZ, maxX-minX, maxZ-minZ)
}

// Quad is a sampled plane.
type Quad struct {
	Center Vector3f

	// Half extents.
	Extents Vector3f

	Normal     Vector3f
	MergeCount uint32
}

func NewQuad(center, extents Vector3f) Quad {
	return Quad{
		Center:  center,
		Extents: extents,
		Normal:  calculateNormal(center, extents),
	}
}

func NewQuadFromProtobuf(q *dagazpb.Quad) Quad {
	quad := NewQuad(
		NewVector3fFromProtobuf(q.GetCenter()),
		NewVector3fFromProtobuf(q.GetExtents()),
	)
	quad.MergeCount = q.GetMergeCount()
	return quad
}

func (q *Quad) ToProtobuf() *dagazpb.Quad {
	return &dagazpb.Quad{
		Center:     q.Center.ToProtobuf(),
		Extents:    q.Extents.ToProtobuf(),
		MergeCount: q.MergeCount,
	}
}

func (q *Quad) Min() Vector3f {
	return Sub(q.Center, q.Extents)
}

func (q *Quad) Max() Vector3f {
	return Add(q.Center, q.Extents)
}

// Hitbox returns the quad footprint on the xz plane.
func (q *Quad) Hitbox() quadtree.Rect {
	return footprint(q.Min(), q.Max())
}

// mergeSample moves the quad 20% of the way toward the sample.
func (q *Quad) mergeSample(sample Quad) {
	q.Center = Add(q.Center, Mul(Sub(sample.Center, q.Center), 0.2))
	q.Extents = Add(q.Extents, Mul(Sub(sample.Extents, q.Extents), 0.2))
	q.Normal = calculateNormal(q.Center, q.Extents)
	q.MergeCount++
}

func doHorizontalPlanesOverlap(a, b Quad) bool {
	minA, maxA := a.Min(), a.Max()
	minB, maxB := b.Min(), b.Max()

	return minA.x < maxB.x &&
		maxA.x > minB.x &&
		minA.z < maxB.z &&
		maxA.z > minB.z
}

func calculateNormal(c, e Vector3f) Vector3f {
	alongX := Sub(Add(c, Vector3f{e.x, e.y, 0}), c)
	alongZ := Sub(Add(c, Vector3f{0, e.y, e.z}), c)
	return Cross(alongZ, alongX).Normalized()
}

// Ray is a segment cast from From to To.
type Ray struct {
	From Vector3f
	To   Vector3f
}

func NewRayFromProtobuf(r *dagazpb.Ray) Ray {
	return Ray{
		From: NewVector3fFromProtobuf(r.GetFrom()),
		To:   NewVector3fFromProtobuf(r.GetTo()),
	}
}

// Footprint returns the area crossed by the ray on the xz plane, padded so
// that vertical rays still overlap the quads they hit.
func (r Ray) Footprint() quadtree.Rect {
	f := footprint(r.From, r.To)
	f.X -= hitEpsilon
	f.Y -= hitEpsilon
	f.Width += 2 * hitEpsilon
	f.Height += 2 * hitEpsilon
	return f
}

// IntersectQuad returns whether the ray hits the quad, and where along the
// ray as a factor between 0 and 1.
func IntersectQuad(r Ray, q Quad) (bool, float32) {
	dir := Sub(r.To, r.From)

	denominator := q.Normal.Dot(dir)
	if denominator == 0 {
		return false, -1
	}

	t := (q.Normal.Dot(q.Center) - q.Normal.Dot(r.From)) / denominator
	if t < 0 || t > 1 {
		return false, -1
	}

	hit := Add(r.From, Mul(dir, t))
	lo, hi := q.Min(), q.Max()
	if InRangeWithEpsilon(hit.x, lo.x, hi.x, hitEpsilon) &&
		InRangeWithEpsilon(hit.y, lo.y, hi.y, hitEpsilon) &&
		InRangeWithEpsilon(hit.z, lo.z, hi.z, hitEpsilon) {
		return true, t
	}
	return false, -1
}
