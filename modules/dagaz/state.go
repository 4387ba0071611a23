package dagaz

// State is the dagaz state shared by the clients of a space.
type State struct {
	SpatialPartition SpatialPartition
}
