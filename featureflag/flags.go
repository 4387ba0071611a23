package featureflag

type Flag string

const (
	// Searches the whole space index when an entity is not found by its
	// hitbox on removal.
	FlagVerifiedRemoval Flag = "VERIFIED_REMOVAL"

	// Rejects entities out of their space bounds instead of keeping them
	// unindexed.
	FlagStrictBounds Flag = "STRICT_BOUNDS"

	FlagDisableDagaz Flag = "DISABLE_DAGAZ"
)
