package dagaz

// SpatialDebugInfo describes the state of a spatial partition.
type SpatialDebugInfo struct {
	// The number of planes a partition cell holds before it is subdivided.
	Capacity   uint32
	Depth      uint32
	LeafCount  uint32
	PlaneCount uint32
	MergeCount uint32
	MinPoint   Vector3f
	MaxPoint   Vector3f

	// The number of planes in each cell.
	Occupancy []uint32
}

// SpatialPartition indexes the horizontal planes sampled by clients.
type SpatialPartition interface {
	// Adds a sampled plane, merging it into an existing plane when they are
	// close enough.
	InsertQuad(q Quad)

	// Returns the plane closest to the ray origin that is hit by the ray,
	// with the hit position along the ray.
	IntersectQuad(r Ray) (*Quad, float32)

	// Returns the planes overlapping the xz area between min and max.
	GetRegion(min Vector3f, max Vector3f) []*Quad

	GetDebugInfo() SpatialDebugInfo
}
