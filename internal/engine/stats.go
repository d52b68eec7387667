package engine

import "time"

// Stats accumulates per-character counters and the bounded emotion history.
// A Stats entry is created alongside the character's RuntimeState on first
// activation and survives deactivation (but not deletion).
type Stats struct {
	// TotalInteractions counts recorded user interactions.
	TotalInteractions int64 `json:"total_interactions"`

	// TotalAnimations counts dispatched animation requests. Dispatch, not
	// playback completion, is what is counted.
	TotalAnimations int64 `json:"total_animations"`

	// CreatedAt is when the character was first activated.
	CreatedAt time.Time `json:"created_at"`

	emotionHistory *Ring[EmotionSample]
}

// StatsView is the read-only copy of a character's [Stats] handed to
// callers; the emotion history is materialised as a slice.
type StatsView struct {
	TotalInteractions int64           `json:"total_interactions"`
	TotalAnimations   int64           `json:"total_animations"`
	CreatedAt         time.Time       `json:"created_at"`
	EmotionHistory    []EmotionSample `json:"emotion_history"`
}

// view produces a detached copy of s.
func (s *Stats) view() StatsView {
	return StatsView{
		TotalInteractions: s.TotalInteractions,
		TotalAnimations:   s.TotalAnimations,
		CreatedAt:         s.CreatedAt,
		EmotionHistory:    s.emotionHistory.Items(),
	}
}

// Snapshot is a consistent read-only view over all engine statistics,
// taken under a single lock acquisition.
type Snapshot struct {
	// ActiveCharacterID is the current active pointer, empty when none.
	ActiveCharacterID string `json:"active_character_id"`

	// Characters maps character id to its stats view, for every character
	// that has been activated at least once.
	Characters map[string]StatsView `json:"characters"`

	// InteractionLogLen is the current length of the global interaction log.
	InteractionLogLen int `json:"interaction_log_len"`

	// TakenAt is when the snapshot was taken.
	TakenAt time.Time `json:"taken_at"`
}

// Snapshot returns a consistent view over all per-character stats and the
// global interaction log. It never mutates engine state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	chars := make(map[string]StatsView, len(e.stats))
	for id, s := range e.stats {
		chars[id] = s.view()
	}

	return Snapshot{
		ActiveCharacterID: e.active,
		Characters:        chars,
		InteractionLogLen: e.interactions.Len(),
		TakenAt:           time.Now().UTC(),
	}
}

// StatsFor returns the stats view for the given character id. The second
// return value is false when the character has never been activated.
func (e *Engine) StatsFor(id string) (StatsView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.stats[id]
	if !ok {
		return StatsView{}, false
	}
	return s.view(), true
}

// CurrentStats returns the stats view for the active character. The second
// return value is false when no character is active.
func (e *Engine) CurrentStats() (StatsView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == "" {
		return StatsView{}, false
	}
	s, ok := e.stats[e.active]
	if !ok {
		return StatsView{}, false
	}
	return s.view(), true
}
