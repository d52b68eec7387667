package character

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It backs the default single-user desktop deployment and all tests.
// The zero value is ready to use.
type MemStore struct {
	mu         sync.RWMutex
	characters map[string]Definition
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		characters: make(map[string]Definition),
	}
}

// Add implements [Store.Add].
func (s *MemStore) Add(ctx context.Context, def Definition) (Definition, error) {
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}

	if def.ID == "" {
		id, err := generateID()
		if err != nil {
			return Definition{}, fmt.Errorf("character: generate id: %w", err)
		}
		def.ID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.characters == nil {
		s.characters = make(map[string]Definition)
	}

	if _, exists := s.characters[def.ID]; exists {
		return Definition{}, ErrDuplicateID
	}

	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now

	s.characters[def.ID] = def
	return def, nil
}

// Get implements [Store.Get].
func (s *MemStore) Get(ctx context.Context, id string) (Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.characters[id]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return d, nil
}

// List implements [Store.List].
func (s *MemStore) List(ctx context.Context, opts ListOptions) ([]Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Definition, 0, len(s.characters))
	for _, d := range s.characters {
		if !matchesOpts(d, opts) {
			continue
		}
		result = append(result, d)
	}
	return result, nil
}

// Update implements [Store.Update].
func (s *MemStore) Update(ctx context.Context, def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.characters[def.ID]
	if !ok {
		return ErrNotFound
	}

	def.CreatedAt = prev.CreatedAt
	def.UpdatedAt = time.Now().UTC()
	s.characters[def.ID] = def
	return nil
}

// Remove implements [Store.Remove].
func (s *MemStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.characters[id]; !ok {
		return ErrNotFound
	}

	delete(s.characters, id)
	return nil
}

// BulkImport implements [Store.BulkImport].
// The import is best-effort: characters are added one at a time and the count
// of successfully added characters is returned along with the first error
// encountered.
func (s *MemStore) BulkImport(ctx context.Context, defs []Definition) (int, error) {
	count := 0
	for _, d := range defs {
		if _, err := s.Add(ctx, d); err != nil {
			return count, fmt.Errorf("character: bulk import at index %d (name %q): %w", count, d.Name, err)
		}
		count++
	}
	return count, nil
}

// generateID produces a random 16-byte hex string using crypto/rand.
// The resulting string is 32 hex characters and is statistically unique.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// matchesOpts reports whether d satisfies all conditions in opts.
func matchesOpts(d Definition, opts ListOptions) bool {
	if opts.EnabledOnly && !d.Enabled {
		return false
	}
	for _, want := range opts.Traits {
		if !slices.Contains(d.PersonalityTraits, want) {
			return false
		}
	}
	return true
}
