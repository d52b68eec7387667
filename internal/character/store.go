package character

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Update when the requested character does not exist.
var ErrNotFound = errors.New("character not found")

// ErrDuplicateID is returned by Add when a character with the same ID already exists.
var ErrDuplicateID = errors.New("character with that ID already exists")

// Store manages character definitions.
//
// It holds only the static configuration side of a character — live
// behavioural state is owned by the engine and cascades independently.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// Add creates a new character. The definition is validated first and a
	// fresh ID is generated when the provided one is empty.
	// Returns [ErrDuplicateID] if a character with the same non-empty ID exists.
	Add(ctx context.Context, def Definition) (Definition, error)

	// Get retrieves a character by ID.
	// Returns [ErrNotFound] when no character with that ID exists.
	Get(ctx context.Context, id string) (Definition, error)

	// List returns all characters, optionally filtered.
	// An empty [ListOptions] returns all characters.
	// Results order is not guaranteed.
	List(ctx context.Context, opts ListOptions) ([]Definition, error)

	// Update replaces an existing character definition after validating it.
	// The definition's ID must be non-empty.
	// Returns [ErrNotFound] when no character with that ID exists.
	Update(ctx context.Context, def Definition) error

	// Remove deletes a character by ID.
	// Returns [ErrNotFound] when no character with that ID exists.
	Remove(ctx context.Context, id string) error

	// BulkImport adds multiple characters one at a time.
	// Each character without an ID gets one auto-generated.
	// Returns the number of characters successfully imported and the first
	// error that aborted the import, if any.
	BulkImport(ctx context.Context, defs []Definition) (int, error)
}

// ListOptions narrows the result set of [Store.List].
// All non-zero fields are applied as AND conditions.
type ListOptions struct {
	// EnabledOnly restricts results to characters with Enabled set.
	EnabledOnly bool

	// Traits restricts results to characters that carry all of the
	// specified personality traits. An empty slice matches all characters.
	Traits []string
}
