package ride

import "errors"

// Error taxonomy for the dispatch core. Handlers map these to HTTP
// status codes with errors.Is; everything else is a 500.
var (
	ErrNotFound          = errors.New("ride not found")
	ErrForbidden         = errors.New("actor not allowed")
	ErrInvalidTransition = errors.New("invalid ride transition")
	ErrValidation        = errors.New("invalid input")
)
