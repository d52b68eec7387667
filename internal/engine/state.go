package engine

import "time"

// ActivityState is the coarse behavioural mode of a character. The
// transition graph is fully connected: any state is reachable from any
// other, driven entirely by external triggers (chat pipeline, UI events).
type ActivityState string

const (
	// ActivityIdle is the resting state. Entering it triggers a default
	// idle animation intent.
	ActivityIdle ActivityState = "idle"

	// ActivityListening means the character is receiving user input.
	ActivityListening ActivityState = "listening"

	// ActivityThinking means a response is being generated.
	ActivityThinking ActivityState = "thinking"

	// ActivitySpeaking means a response is being presented.
	ActivitySpeaking ActivityState = "speaking"

	// ActivityInteracting means the user is directly manipulating the
	// avatar (dragging, petting, clicking).
	ActivityInteracting ActivityState = "interacting"
)

// IsValid reports whether s is a recognised activity state.
func (s ActivityState) IsValid() bool {
	switch s {
	case ActivityIdle, ActivityListening, ActivityThinking, ActivitySpeaking, ActivityInteracting:
		return true
	}
	return false
}

// Emotion names the displayed emotion of a character.
type Emotion string

const (
	EmotionNeutral   Emotion = "neutral"
	EmotionHappy     Emotion = "happy"
	EmotionSad       Emotion = "sad"
	EmotionSurprised Emotion = "surprised"
	EmotionAngry     Emotion = "angry"
	EmotionCurious   Emotion = "curious"
	EmotionSleepy    Emotion = "sleepy"
)

// IsValid reports whether e is a recognised emotion.
func (e Emotion) IsValid() bool {
	switch e {
	case EmotionNeutral, EmotionHappy, EmotionSad, EmotionSurprised,
		EmotionAngry, EmotionCurious, EmotionSleepy:
		return true
	}
	return false
}

// Transform holds the avatar's on-screen placement.
type Transform struct {
	// X, Y are screen coordinates in logical pixels.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Scale is the model scale factor. 1.0 means native size.
	Scale float64 `json:"scale"`

	// Opacity is in [0,1]. 1.0 means fully opaque.
	Opacity float64 `json:"opacity"`
}

// RuntimeState is the live behavioural and visual state of one character.
// It exists only for characters that have been activated at least once and
// is distinct from the static character.Definition.
type RuntimeState struct {
	// Activity is the current behavioural mode.
	Activity ActivityState `json:"activity"`

	// Emotion is the displayed emotion.
	Emotion Emotion `json:"emotion"`

	// EmotionIntensity is the normalized [0,1] strength of Emotion.
	EmotionIntensity float64 `json:"emotion_intensity"`

	// Interactive controls whether the avatar reacts to pointer input.
	Interactive bool `json:"interactive"`

	// Transform is the avatar's on-screen placement.
	Transform Transform `json:"transform"`

	// LastAnimation is the group/name of the most recently dispatched
	// animation, "group/name" or just the group when no name was given.
	LastAnimation string `json:"last_animation"`
}

// defaultRuntimeState is the state a character receives on its first
// successful activation.
func defaultRuntimeState() RuntimeState {
	return RuntimeState{
		Activity:         ActivityIdle,
		Emotion:          EmotionNeutral,
		EmotionIntensity: 0,
		Interactive:      true,
		Transform:        Transform{Scale: 1, Opacity: 1},
	}
}

// StatePatch is a merge-patch for the transform and interactivity fields of
// a [RuntimeState]. Nil fields are left untouched.
type StatePatch struct {
	Interactive *bool
	X           *float64
	Y           *float64
	Scale       *float64
	Opacity     *float64
}

// apply merges p into rs.
func (p StatePatch) apply(rs *RuntimeState) {
	if p.Interactive != nil {
		rs.Interactive = *p.Interactive
	}
	if p.X != nil {
		rs.Transform.X = *p.X
	}
	if p.Y != nil {
		rs.Transform.Y = *p.Y
	}
	if p.Scale != nil {
		rs.Transform.Scale = *p.Scale
	}
	if p.Opacity != nil {
		rs.Transform.Opacity = *p.Opacity
	}
}

// InteractionType classifies a user interaction with the avatar.
type InteractionType string

const (
	InteractionClick InteractionType = "click"
	InteractionDrag  InteractionType = "drag"
	InteractionHover InteractionType = "hover"
	InteractionPet   InteractionType = "pet"
)

// InteractionEvent is one recorded user interaction. Events from all
// characters share a single bounded log.
type InteractionEvent struct {
	// CharacterID identifies the character that was interacted with.
	CharacterID string `json:"character_id"`

	// Type classifies the interaction.
	Type InteractionType `json:"type"`

	// Target names the UI region hit ("head", "body", ...). Optional.
	Target string `json:"target,omitempty"`

	// Metadata holds arbitrary extra values from the UI layer.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Timestamp records when the interaction occurred.
	Timestamp time.Time `json:"timestamp"`
}

// EmotionSample is one entry in a character's bounded emotion history.
type EmotionSample struct {
	// Emotion is the emotion that was set.
	Emotion Emotion `json:"emotion"`

	// Intensity is the clamped [0,1] intensity it was set with.
	Intensity float64 `json:"intensity"`

	// Timestamp records when the emotion was set.
	Timestamp time.Time `json:"timestamp"`
}

// clamp01 clamps v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
