// Package renderer declares the collaborator interfaces the Aikata engine
// drives: the model loader that brings a character's avatar model on screen
// and the animation renderer that plays motions and expressions on it.
//
// The engine only dispatches intents through these interfaces — rendering
// itself happens in an external process (see the vts sub-package for a
// websocket-backed reference implementation, and mock for test doubles).
package renderer

import "context"

// ModelConfig is the opaque model reference the loader consumes. It mirrors
// character.ModelConfig without importing it, keeping this package free of
// engine-side dependencies.
type ModelConfig struct {
	// Ref identifies the model to load (file path, model ID, or URL).
	Ref string

	// Format names the model format (e.g., "live2d", "vrm").
	Format string

	// Options holds renderer-specific configuration values.
	Options map[string]any
}

// ModelLoader loads and unloads avatar models. Invoked by the switch
// coordinator when the active character changes.
type ModelLoader interface {
	// Load brings the model described by cfg on screen. Blocking; respects
	// context cancellation. Returns an error when the model cannot be
	// loaded, in which case no visible state may have changed.
	Load(ctx context.Context, cfg ModelConfig) error

	// Unload releases the model resources held for characterID.
	// Unloading a character that holds no model is a no-op.
	Unload(ctx context.Context, characterID string) error
}

// AnimationRequest describes a single animation intent.
type AnimationRequest struct {
	// Group is the animation group (e.g., "idle", "tap", "greeting").
	Group string

	// Name optionally selects a specific motion within the group. When
	// empty, the renderer picks one (typically at random).
	Name string

	// Priority is passed through to the renderer; higher values may
	// interrupt lower ones depending on the renderer's own policy.
	Priority int
}

// Expression describes a facial expression intent derived from an emotion
// change.
type Expression struct {
	// Name is the renderer-side expression identifier (e.g., "happy").
	Name string

	// Intensity is the normalized [0,1] strength of the expression.
	Intensity float64
}

// NopLoader is a [ModelLoader] whose loads always succeed without doing
// anything. Used for headless operation when no renderer is configured.
type NopLoader struct{}

var _ ModelLoader = NopLoader{}

func (NopLoader) Load(context.Context, ModelConfig) error { return nil }

func (NopLoader) Unload(context.Context, string) error { return nil }

// AnimationRenderer plays animations and expressions on the currently
// loaded model. Invoked by the animation dispatcher and by switch cleanup.
type AnimationRenderer interface {
	// PlayAnimation issues an animation intent. Blocking until the request
	// is accepted by the renderer, not until playback finishes.
	PlayAnimation(ctx context.Context, req AnimationRequest) error

	// SetExpression applies a facial expression.
	SetExpression(ctx context.Context, expr Expression) error

	// Stop cancels pending animations for characterID. Used as best-effort
	// cleanup when switching away from a character.
	Stop(ctx context.Context, characterID string) error
}
