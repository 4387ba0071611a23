package http

// Error types returned by the space API in addition to the models ones.
const (
	ErrTypeBadRequest   = "bad_request"
	ErrTypeInvalidRect  = "invalid_rect"
	ErrTypeInvalidQuery = "invalid_query"
)
