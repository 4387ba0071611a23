package models

// Error types attached to the errors returned by spaces.
const (
	ErrTypeSpaceNotFound  = "space_not_found"
	ErrTypeEntityNotFound = "entity_not_found"
	ErrTypeEntityExists   = "entity_exists"
	ErrTypeOutOfBounds    = "out_of_bounds"
)
