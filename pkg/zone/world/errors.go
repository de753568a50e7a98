package world

import "github.com/rotisserie/eris"

var (
	// ErrUnresolvedReference marks a lookup that came back empty where the caller expected an
	// entity. It is absorbed where it is detected: entities vanish between scheduling and execution.
	ErrUnresolvedReference = eris.New("entity reference no longer resolves")
	// ErrPartialLoadTimeout means the startup load did not reach the expected object count in time.
	ErrPartialLoadTimeout = eris.New("zone load did not complete before the timeout")
	// ErrTaskRefused is returned when an entity may not be opted into a family right now.
	ErrTaskRefused   = eris.New("entity cannot be scheduled")
	ErrNotRunning    = eris.New("zone is not running")
	ErrMissingDep    = eris.New("missing world dependency")
	ErrInvalidBuff   = eris.New("buff needs a tick length and a duration")
	ErrInvalidOption = eris.New("invalid world option")
)
