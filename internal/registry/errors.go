package registry

import "errors"

// Registry error types. Not-found and full surface to the requesting caller as
// structured replies; exhaustion is fatal for the single request only.
var (
	ErrGameNotFound     = errors.New("game not found")
	ErrGameFull         = errors.New("game not found or full")
	ErrIDSpaceExhausted = errors.New("game ID space exhausted")
)
