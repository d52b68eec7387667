// Package engine implements the character interaction state engine at the
// heart of Aikata: the live behavioural state of every activated character,
// a bounded interaction log, per-character statistics, animation dispatch,
// and the coordination needed to switch the active character without
// leaking renderer resources.
//
// The engine is an explicit state container constructed once and passed to
// its callers. There is no package-level singleton: all runtime state is
// exclusively owned by the Engine, and the UI layer and chat pipeline only
// read snapshots and call the documented mutators. All synchronous mutators
// apply atomically with respect to each other, and all exported methods are
// safe for concurrent use.
//
// The two asynchronous boundaries — model loading during a switch and
// animation dispatch — await external collaborators declared in
// internal/renderer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aikata-app/aikata/internal/character"
	"github.com/aikata-app/aikata/internal/observe"
	"github.com/aikata-app/aikata/internal/renderer"
)

const (
	// defaultInteractionLogCapacity bounds the single global interaction
	// log shared by all characters.
	defaultInteractionLogCapacity = 100

	// defaultEmotionHistoryCapacity bounds each character's emotion history.
	defaultEmotionHistoryCapacity = 50
)

// Config holds all dependencies for an [Engine].
//
// Store and Loader are required. Renderer is optional; a nil renderer means
// animation and expression intents are logged and dropped, which is useful
// for headless operation and tests. Metrics is optional.
type Config struct {
	// Store holds the character definitions the engine operates on.
	Store character.Store

	// Loader is the model-loader collaborator invoked on switches.
	Loader renderer.ModelLoader

	// Renderer is the animation-renderer collaborator driven by the
	// dispatcher. May be nil.
	Renderer renderer.AnimationRenderer

	// Metrics receives engine counters. May be nil.
	Metrics *observe.Metrics

	// InteractionLogCapacity bounds the global interaction log.
	// Defaults to 100 when zero.
	InteractionLogCapacity int

	// EmotionHistoryCapacity bounds each character's emotion history.
	// Defaults to 50 when zero.
	EmotionHistoryCapacity int
}

// Engine is the character interaction state container.
type Engine struct {
	store      character.Store
	loader     renderer.ModelLoader
	dispatcher *Dispatcher
	metrics    *observe.Metrics

	mu           sync.Mutex
	runtime      map[string]*RuntimeState
	stats        map[string]*Stats
	interactions *Ring[InteractionEvent]
	active       string
	loading      bool
	lastError    string
	emotionCap   int

	// switchMu serialises SwitchCharacter calls; switchSeq issues the
	// monotonically increasing request tokens used to discard stale loads.
	switchMu  sync.Mutex
	switchSeq atomic.Uint64
}

// New creates an Engine from the given configuration and starts its
// animation dispatch worker. Call [Engine.Close] to stop the worker.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine: Store must not be nil")
	}
	if cfg.Loader == nil {
		return nil, errors.New("engine: Loader must not be nil")
	}

	logCap := cfg.InteractionLogCapacity
	if logCap <= 0 {
		logCap = defaultInteractionLogCapacity
	}
	emotionCap := cfg.EmotionHistoryCapacity
	if emotionCap <= 0 {
		emotionCap = defaultEmotionHistoryCapacity
	}

	e := &Engine{
		store:        cfg.Store,
		loader:       cfg.Loader,
		metrics:      cfg.Metrics,
		runtime:      make(map[string]*RuntimeState),
		stats:        make(map[string]*Stats),
		interactions: NewRing[InteractionEvent](logCap),
		emotionCap:   emotionCap,
	}
	e.dispatcher = newDispatcher(e, cfg.Renderer)
	return e, nil
}

// Close stops the animation dispatch worker, draining queued intents first.
// Safe to call multiple times.
func (e *Engine) Close() error {
	e.dispatcher.close()
	return nil
}

// Dispatcher returns the engine's animation dispatcher.
func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// AddCharacter validates and stores a new character definition, generating
// a fresh id when none is given. The new character has no runtime state
// until it is first switched to.
func (e *Engine) AddCharacter(ctx context.Context, def character.Definition) (character.Definition, error) {
	stored, err := e.store.Add(ctx, def)
	if err != nil {
		return character.Definition{}, fmt.Errorf("engine: add character: %w", err)
	}
	slog.Info("character added", "character_id", stored.ID, "name", stored.Name)
	return stored, nil
}

// UpdateCharacter merge-patches the definition identified by id. Unknown
// ids are a logged no-op.
func (e *Engine) UpdateCharacter(ctx context.Context, id string, patch character.Patch) error {
	def, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, character.ErrNotFound) {
			slog.Warn("update character: unknown id", "character_id", id)
			return nil
		}
		return fmt.Errorf("engine: update character: %w", err)
	}

	patch.Apply(&def)
	if err := e.store.Update(ctx, def); err != nil {
		return fmt.Errorf("engine: update character: %w", err)
	}
	return nil
}

// ToggleEnabled flips the Enabled flag of the character identified by id.
// Unknown ids are a logged no-op.
func (e *Engine) ToggleEnabled(ctx context.Context, id string) error {
	def, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, character.ErrNotFound) {
			slog.Warn("toggle character: unknown id", "character_id", id)
			return nil
		}
		return fmt.Errorf("engine: toggle character: %w", err)
	}

	def.Enabled = !def.Enabled
	if err := e.store.Update(ctx, def); err != nil {
		return fmt.Errorf("engine: toggle character: %w", err)
	}
	slog.Info("character toggled", "character_id", id, "enabled", def.Enabled)
	return nil
}

// DeleteCharacter removes the character's definition and cascades removal
// of its runtime state and stats. When id is the active character, the
// active pointer resets to empty; there is no automatic fallback to another
// character. Unknown ids are a logged no-op.
func (e *Engine) DeleteCharacter(ctx context.Context, id string) error {
	if err := e.store.Remove(ctx, id); err != nil {
		if errors.Is(err, character.ErrNotFound) {
			slog.Warn("delete character: unknown id", "character_id", id)
			return nil
		}
		return fmt.Errorf("engine: delete character: %w", err)
	}

	e.mu.Lock()
	delete(e.runtime, id)
	delete(e.stats, id)
	wasActive := e.active == id
	if wasActive {
		e.active = ""
	}
	e.mu.Unlock()

	if wasActive && e.metrics != nil {
		e.metrics.SetActiveCharacter(ctx, "")
	}

	slog.Info("character deleted", "character_id", id, "was_active", wasActive)
	return nil
}

// GetCharacter retrieves a character definition by id.
func (e *Engine) GetCharacter(ctx context.Context, id string) (character.Definition, error) {
	return e.store.Get(ctx, id)
}

// ListCharacters returns the character definitions matching opts.
func (e *Engine) ListCharacters(ctx context.Context, opts character.ListOptions) ([]character.Definition, error) {
	return e.store.List(ctx, opts)
}

// CurrentCharacter resolves the active pointer against the registry. The
// second return value is false when no character is active.
func (e *Engine) CurrentCharacter(ctx context.Context) (character.Definition, bool, error) {
	e.mu.Lock()
	id := e.active
	e.mu.Unlock()

	if id == "" {
		return character.Definition{}, false, nil
	}
	def, err := e.store.Get(ctx, id)
	if err != nil {
		return character.Definition{}, false, fmt.Errorf("engine: current character: %w", err)
	}
	return def, true, nil
}

// SetActivityState sets the character's behavioural mode. Any state is
// reachable from any other. Entering [ActivityIdle] triggers a default idle
// animation intent as a side effect. Unknown ids and unrecognised states
// are logged no-ops.
func (e *Engine) SetActivityState(ctx context.Context, id string, state ActivityState) {
	if !state.IsValid() {
		slog.Warn("set activity: unrecognised state", "character_id", id, "state", state)
		return
	}

	e.mu.Lock()
	rs, ok := e.runtime[id]
	if !ok {
		e.mu.Unlock()
		slog.Warn("set activity: character has no runtime state", "character_id", id)
		return
	}
	rs.Activity = state
	e.mu.Unlock()

	if state == ActivityIdle {
		e.dispatcher.enqueueIdle(ctx, id)
	}
}

// SetEmotion sets the character's displayed emotion, clamping intensity to
// [0,1], and appends a sample to the character's bounded emotion history.
// A matching expression intent is forwarded to the renderer best-effort.
// Unknown ids are a logged no-op.
func (e *Engine) SetEmotion(ctx context.Context, id string, emotion Emotion, intensity float64) {
	intensity = clamp01(intensity)

	e.mu.Lock()
	rs, ok := e.runtime[id]
	if !ok {
		e.mu.Unlock()
		slog.Warn("set emotion: character has no runtime state", "character_id", id)
		return
	}
	rs.Emotion = emotion
	rs.EmotionIntensity = intensity
	e.stats[id].emotionHistory.Push(EmotionSample{
		Emotion:   emotion,
		Intensity: intensity,
		Timestamp: time.Now().UTC(),
	})
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordEmotionChange(ctx, id, string(emotion))
	}

	e.dispatcher.enqueueExpression(ctx, id, renderer.Expression{
		Name:      string(emotion),
		Intensity: intensity,
	})
}

// UpdateState merge-patches the transform and interactivity fields of the
// character's runtime state. Unknown ids are a logged no-op.
func (e *Engine) UpdateState(id string, patch StatePatch) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, ok := e.runtime[id]
	if !ok {
		slog.Warn("update state: character has no runtime state", "character_id", id)
		return
	}
	patch.apply(rs)
}

// StateFor returns a copy of the character's runtime state. The second
// return value is false when the character has never been activated.
func (e *Engine) StateFor(id string) (RuntimeState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, ok := e.runtime[id]
	if !ok {
		return RuntimeState{}, false
	}
	return *rs, true
}

// CurrentState returns a copy of the active character's runtime state. The
// second return value is false when no character is active.
func (e *Engine) CurrentState() (RuntimeState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == "" {
		return RuntimeState{}, false
	}
	rs, ok := e.runtime[e.active]
	if !ok {
		return RuntimeState{}, false
	}
	return *rs, true
}

// ActiveCharacterID returns the active pointer, empty when no character is
// active.
func (e *Engine) ActiveCharacterID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// IsLoading reports whether a character switch is in flight.
func (e *Engine) IsLoading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// LastError returns the captured human-readable message of the most recent
// switch failure, empty after a successful switch.
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// RecordInteraction appends an interaction event to the global bounded log
// and increments the character's interaction counter. Events for characters
// that were never switched to are dropped with a logged warning.
func (e *Engine) RecordInteraction(ctx context.Context, id string, typ InteractionType, target string, metadata map[string]any) {
	e.mu.Lock()
	s, ok := e.stats[id]
	if !ok {
		e.mu.Unlock()
		slog.Warn("record interaction: character was never activated", "character_id", id, "type", typ)
		return
	}
	e.interactions.Push(InteractionEvent{
		CharacterID: id,
		Type:        typ,
		Target:      target,
		Metadata:    metadata,
		Timestamp:   time.Now().UTC(),
	})
	s.TotalInteractions++
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordInteraction(ctx, id, string(typ))
	}
}

// EventsByCharacter returns all retained interaction events for the given
// character, oldest first.
func (e *Engine) EventsByCharacter(id string) []InteractionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []InteractionEvent
	for _, ev := range e.interactions.Items() {
		if ev.CharacterID == id {
			out = append(out, ev)
		}
	}
	return out
}

// RecentEvents returns up to n most recent interaction events across all
// characters, oldest of the selection first.
func (e *Engine) RecentEvents(n int) []InteractionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interactions.Last(n)
}
