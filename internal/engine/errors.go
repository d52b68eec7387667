package engine

import (
	"errors"
	"fmt"
)

// ErrSuperseded is returned by SwitchCharacter when a newer switch request
// arrived while this one was loading; the stale result is discarded and the
// active pointer is left to the newer request.
var ErrSuperseded = errors.New("engine: switch superseded by a newer request")

// LoadError wraps a model-loader failure during a character switch. The
// engine also captures a human-readable form of it into its error state so
// the UI can show a retry affordance without the caller rethrowing.
type LoadError struct {
	// CharacterID is the id of the character whose model failed to load.
	CharacterID string

	// Err is the underlying loader error.
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("engine: load model for character %q: %v", e.CharacterID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DispatchError wraps an animation-renderer failure. It is caught at the
// dispatcher boundary: runtime state is left untouched and the error is
// logged and returned for optional local handling.
type DispatchError struct {
	// CharacterID is the id of the character the animation targeted.
	CharacterID string

	// Request is the animation request that failed.
	Request AnimationRequest

	// Err is the underlying renderer error.
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("engine: dispatch animation %q for character %q: %v", e.Request.Group, e.CharacterID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
