// Package character provides definition management for Aikata avatar
// characters.
//
// A [Definition] is the full declarative configuration for a character —
// identity, personality traits, avatar artwork reference, and the model
// configuration consumed by the model-loader collaborator. Definitions can
// be loaded from YAML roster files, stored in a PostgreSQL database, or
// both; the engine consumes them through the [Store] interface and keeps
// all live behavioural state separately (see internal/engine).
//
// All store operations are safe for concurrent use.
package character

import (
	"errors"
	"fmt"
	"time"
)

// Definition is the static configuration for a single character.
// It is distinct from the character's live runtime state, which exists only
// for characters that have been activated at least once.
type Definition struct {
	// ID is a unique identifier. Auto-generated if empty during Add.
	ID string `yaml:"id" json:"id"`

	// Name is the character's canonical name (e.g., "mira").
	Name string `yaml:"name" json:"name"`

	// DisplayName is the name shown in the UI. Defaults to Name when empty.
	DisplayName string `yaml:"display_name" json:"display_name"`

	// Description is a free-text description of the character.
	Description string `yaml:"description" json:"description"`

	// AvatarRef points at the character's avatar artwork (thumbnail, icon).
	AvatarRef string `yaml:"avatar_ref" json:"avatar_ref"`

	// PersonalityTraits are searchable labels describing the character
	// ("cheerful", "sarcastic", "sleepy"). Order is not significant and
	// duplicates are ignored.
	PersonalityTraits []string `yaml:"personality_traits,omitempty" json:"personality_traits,omitempty"`

	// Model is the opaque model configuration handed to the model loader
	// when this character is activated.
	Model ModelConfig `yaml:"model" json:"model"`

	// Enabled controls whether the character is offered for activation in
	// the UI. Disabled characters keep their definition and any accumulated
	// stats.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// CreatedAt is the time the definition was first persisted.
	CreatedAt time.Time `json:"created_at" yaml:"-"`

	// UpdatedAt is the time the definition was last modified.
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// ModelConfig is the renderer-facing model reference. The engine never
// interprets it; it is passed verbatim to the model-loader collaborator.
type ModelConfig struct {
	// Ref identifies the model to load (a file path, model ID, or URL,
	// depending on the renderer).
	Ref string `yaml:"ref" json:"ref"`

	// Format names the model format (e.g., "live2d", "vrm"). Optional.
	Format string `yaml:"format" json:"format"`

	// Options holds renderer-specific configuration values.
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// Validate checks the Definition for logical consistency. It returns a
// joined error describing every violation found, or nil if the definition
// is valid.
func (d *Definition) Validate() error {
	var errs []error

	if d.Name == "" {
		errs = append(errs, fmt.Errorf("character: name must not be empty"))
	}
	if d.Model.Ref == "" {
		errs = append(errs, fmt.Errorf("character: model.ref must not be empty"))
	}

	return errors.Join(errs...)
}

// Display returns the name to show in the UI: DisplayName when set,
// otherwise Name.
func (d *Definition) Display() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Name
}

// Patch is a merge-patch applied by [Store.Update] semantics at the engine
// layer: nil fields are left untouched.
type Patch struct {
	Name              *string
	DisplayName       *string
	Description       *string
	AvatarRef         *string
	PersonalityTraits *[]string
	Model             *ModelConfig
	Enabled           *bool
}

// Apply merges p into def, leaving nil fields untouched.
func (p Patch) Apply(def *Definition) {
	if p.Name != nil {
		def.Name = *p.Name
	}
	if p.DisplayName != nil {
		def.DisplayName = *p.DisplayName
	}
	if p.Description != nil {
		def.Description = *p.Description
	}
	if p.AvatarRef != nil {
		def.AvatarRef = *p.AvatarRef
	}
	if p.PersonalityTraits != nil {
		def.PersonalityTraits = *p.PersonalityTraits
	}
	if p.Model != nil {
		def.Model = *p.Model
	}
	if p.Enabled != nil {
		def.Enabled = *p.Enabled
	}
}
