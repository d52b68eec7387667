package control

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aikata-app/aikata/internal/character"
	"github.com/aikata-app/aikata/internal/engine"
)

// SwitchCharacterInput selects the character to activate. Query accepts an
// exact id, an exact name, or a fuzzy name ("switch to mira").
type SwitchCharacterInput struct {
	Query string `json:"query" jsonschema:"character id or (fuzzy) name to switch to"`
}

// SwitchCharacterResult reports the character that became active.
type SwitchCharacterResult struct {
	CharacterID string `json:"character_id" jsonschema:"id of the now-active character"`
	Name        string `json:"name" jsonschema:"name of the now-active character"`
}

// SwitchCharacterTool defines the MCP tool schema for switching characters.
func SwitchCharacterTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "switch_character",
		Description: "Makes another companion character active, unloading the previous one. Accepts ids and fuzzy names.",
	}
}

// SwitchCharacterHandler resolves the query against the roster and performs
// the switch.
func (s *Server) SwitchCharacterHandler() mcp.ToolHandlerFor[SwitchCharacterInput, SwitchCharacterResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SwitchCharacterInput) (*mcp.CallToolResult, SwitchCharacterResult, error) {
		def, err := s.resolve(ctx, input.Query)
		if err != nil {
			return nil, SwitchCharacterResult{}, err
		}
		if err := s.eng.SwitchCharacter(ctx, def.ID); err != nil {
			return nil, SwitchCharacterResult{}, fmt.Errorf("switch to %q failed: %w", def.Display(), err)
		}
		return nil, SwitchCharacterResult{CharacterID: def.ID, Name: def.Display()}, nil
	}
}

// SetEmotionInput sets the displayed emotion of a character.
type SetEmotionInput struct {
	CharacterID string  `json:"character_id,omitempty" jsonschema:"target character id (defaults to the active character)"`
	Emotion     string  `json:"emotion" jsonschema:"emotion name: neutral, happy, sad, surprised, angry, curious, sleepy"`
	Intensity   float64 `json:"intensity" jsonschema:"emotion intensity in [0,1]"`
}

// SetEmotionResult echoes the applied emotion.
type SetEmotionResult struct {
	CharacterID string  `json:"character_id" jsonschema:"target character id"`
	Emotion     string  `json:"emotion" jsonschema:"applied emotion"`
	Intensity   float64 `json:"intensity" jsonschema:"applied (clamped) intensity"`
}

// SetEmotionTool defines the MCP tool schema for emotion updates.
func SetEmotionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_emotion",
		Description: "Sets the displayed emotion of a character. Intensity is clamped to [0,1].",
	}
}

// SetEmotionHandler applies an emotion update.
func (s *Server) SetEmotionHandler() mcp.ToolHandlerFor[SetEmotionInput, SetEmotionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetEmotionInput) (*mcp.CallToolResult, SetEmotionResult, error) {
		id, err := s.targetID(input.CharacterID)
		if err != nil {
			return nil, SetEmotionResult{}, err
		}
		emotion := engine.Emotion(input.Emotion)
		if !emotion.IsValid() {
			return nil, SetEmotionResult{}, fmt.Errorf("unknown emotion %q", input.Emotion)
		}
		s.eng.SetEmotion(ctx, id, emotion, input.Intensity)

		rs, ok := s.eng.StateFor(id)
		if !ok {
			return nil, SetEmotionResult{}, fmt.Errorf("character %q has no runtime state; switch to it first", id)
		}
		return nil, SetEmotionResult{
			CharacterID: id,
			Emotion:     string(rs.Emotion),
			Intensity:   rs.EmotionIntensity,
		}, nil
	}
}

// SetActivityInput sets the behavioural mode of a character.
type SetActivityInput struct {
	CharacterID string `json:"character_id,omitempty" jsonschema:"target character id (defaults to the active character)"`
	State       string `json:"state" jsonschema:"activity state: idle, listening, thinking, speaking, interacting"`
}

// SetActivityResult echoes the applied state.
type SetActivityResult struct {
	CharacterID string `json:"character_id" jsonschema:"target character id"`
	State       string `json:"state" jsonschema:"applied activity state"`
}

// SetActivityTool defines the MCP tool schema for activity updates.
func SetActivityTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_activity",
		Description: "Sets the behavioural mode of a character. Entering idle triggers the default idle animation.",
	}
}

// SetActivityHandler applies an activity-state update.
func (s *Server) SetActivityHandler() mcp.ToolHandlerFor[SetActivityInput, SetActivityResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetActivityInput) (*mcp.CallToolResult, SetActivityResult, error) {
		id, err := s.targetID(input.CharacterID)
		if err != nil {
			return nil, SetActivityResult{}, err
		}
		state := engine.ActivityState(input.State)
		if !state.IsValid() {
			return nil, SetActivityResult{}, fmt.Errorf("unknown activity state %q", input.State)
		}
		s.eng.SetActivityState(ctx, id, state)
		return nil, SetActivityResult{CharacterID: id, State: input.State}, nil
	}
}

// PlayAnimationInput dispatches an animation intent.
type PlayAnimationInput struct {
	CharacterID string `json:"character_id,omitempty" jsonschema:"target character id (defaults to the active character)"`
	Group       string `json:"group" jsonschema:"animation group, e.g. idle or tap_body"`
	Name        string `json:"name,omitempty" jsonschema:"specific animation within the group"`
	Priority    int    `json:"priority,omitempty" jsonschema:"renderer priority, passed through untouched"`
	Queue       bool   `json:"queue,omitempty" jsonschema:"queue behind pending animations instead of playing directly"`
}

// PlayAnimationResult reports the dispatched animation.
type PlayAnimationResult struct {
	CharacterID string `json:"character_id" jsonschema:"target character id"`
	Animation   string `json:"animation" jsonschema:"dispatched animation label (group/name)"`
	Queued      bool   `json:"queued" jsonschema:"whether the intent was queued"`
}

// PlayAnimationTool defines the MCP tool schema for animation dispatch.
func PlayAnimationTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "play_animation",
		Description: "Dispatches an animation to the avatar renderer, either directly or queued in submission order.",
	}
}

// PlayAnimationHandler dispatches one animation intent.
func (s *Server) PlayAnimationHandler() mcp.ToolHandlerFor[PlayAnimationInput, PlayAnimationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input PlayAnimationInput) (*mcp.CallToolResult, PlayAnimationResult, error) {
		id, err := s.targetID(input.CharacterID)
		if err != nil {
			return nil, PlayAnimationResult{}, err
		}
		if input.Group == "" {
			return nil, PlayAnimationResult{}, fmt.Errorf("animation group is required")
		}
		req := engine.AnimationRequest{
			Group:    input.Group,
			Name:     input.Name,
			Priority: input.Priority,
			Queue:    input.Queue,
		}
		if err := s.eng.Dispatcher().PlayAnimation(ctx, id, req); err != nil {
			return nil, PlayAnimationResult{}, err
		}
		label := input.Group
		if input.Name != "" {
			label = input.Group + "/" + input.Name
		}
		return nil, PlayAnimationResult{CharacterID: id, Animation: label, Queued: input.Queue}, nil
	}
}

// RecordInteractionInput records one user interaction with the avatar.
type RecordInteractionInput struct {
	CharacterID string `json:"character_id,omitempty" jsonschema:"target character id (defaults to the active character)"`
	Type        string `json:"type" jsonschema:"interaction type: click, drag, hover, pet"`
	Target      string `json:"target,omitempty" jsonschema:"UI region hit, e.g. head or body"`
}

// RecordInteractionResult reports the updated interaction counter.
type RecordInteractionResult struct {
	CharacterID       string `json:"character_id" jsonschema:"target character id"`
	TotalInteractions int64  `json:"total_interactions" jsonschema:"character's interaction counter after recording"`
}

// RecordInteractionTool defines the MCP tool schema for interaction recording.
func RecordInteractionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "record_interaction",
		Description: "Records a user interaction with the avatar into the bounded interaction log.",
	}
}

// RecordInteractionHandler records one interaction event.
func (s *Server) RecordInteractionHandler() mcp.ToolHandlerFor[RecordInteractionInput, RecordInteractionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RecordInteractionInput) (*mcp.CallToolResult, RecordInteractionResult, error) {
		id, err := s.targetID(input.CharacterID)
		if err != nil {
			return nil, RecordInteractionResult{}, err
		}
		s.eng.RecordInteraction(ctx, id, engine.InteractionType(input.Type), input.Target, nil)

		stats, ok := s.eng.StatsFor(id)
		if !ok {
			return nil, RecordInteractionResult{}, fmt.Errorf("character %q has never been activated", id)
		}
		return nil, RecordInteractionResult{CharacterID: id, TotalInteractions: stats.TotalInteractions}, nil
	}
}

// CharacterStatsInput selects the character whose stats to read.
type CharacterStatsInput struct {
	CharacterID string `json:"character_id,omitempty" jsonschema:"target character id (defaults to the active character)"`
}

// CharacterStatsResult is a read-only view of one character's statistics.
type CharacterStatsResult struct {
	CharacterID       string `json:"character_id" jsonschema:"target character id"`
	TotalInteractions int64  `json:"total_interactions" jsonschema:"recorded user interactions"`
	TotalAnimations   int64  `json:"total_animations" jsonschema:"dispatched animation intents"`
	FirstActivatedAt  string `json:"first_activated_at" jsonschema:"RFC3339 timestamp of the character's first activation"`
	LastEmotion       string `json:"last_emotion,omitempty" jsonschema:"most recent emotion from the history, if any"`
}

// CharacterStatsTool defines the MCP tool schema for stats reads.
func CharacterStatsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "character_stats",
		Description: "Reads a character's interaction and animation counters and emotion history summary.",
	}
}

// CharacterStatsHandler reads one character's stats view.
func (s *Server) CharacterStatsHandler() mcp.ToolHandlerFor[CharacterStatsInput, CharacterStatsResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input CharacterStatsInput) (*mcp.CallToolResult, CharacterStatsResult, error) {
		id, err := s.targetID(input.CharacterID)
		if err != nil {
			return nil, CharacterStatsResult{}, err
		}
		stats, ok := s.eng.StatsFor(id)
		if !ok {
			return nil, CharacterStatsResult{}, fmt.Errorf("character %q has never been activated", id)
		}
		result := CharacterStatsResult{
			CharacterID:       id,
			TotalInteractions: stats.TotalInteractions,
			TotalAnimations:   stats.TotalAnimations,
			FirstActivatedAt:  stats.CreatedAt.Format(time.RFC3339),
		}
		if n := len(stats.EmotionHistory); n > 0 {
			result.LastEmotion = string(stats.EmotionHistory[n-1].Emotion)
		}
		return nil, result, nil
	}
}

// ListCharactersInput filters the roster listing.
type ListCharactersInput struct {
	EnabledOnly bool `json:"enabled_only,omitempty" jsonschema:"list only enabled characters"`
}

// ListCharactersResult is the roster listing.
type ListCharactersResult struct {
	Characters []CharacterSummary `json:"characters" jsonschema:"registered characters"`
}

// CharacterSummary is one roster entry in a listing.
type CharacterSummary struct {
	CharacterID string `json:"character_id" jsonschema:"character id"`
	Name        string `json:"name" jsonschema:"display name"`
	Enabled     bool   `json:"enabled" jsonschema:"whether the character can be activated"`
	Active      bool   `json:"active" jsonschema:"whether this is the active character"`
}

// ListCharactersTool defines the MCP tool schema for roster listing.
func ListCharactersTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_characters",
		Description: "Lists the registered companion characters and marks the active one.",
	}
}

// ListCharactersHandler lists the roster.
func (s *Server) ListCharactersHandler() mcp.ToolHandlerFor[ListCharactersInput, ListCharactersResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListCharactersInput) (*mcp.CallToolResult, ListCharactersResult, error) {
		defs, err := s.eng.ListCharacters(ctx, character.ListOptions{EnabledOnly: input.EnabledOnly})
		if err != nil {
			return nil, ListCharactersResult{}, fmt.Errorf("list characters: %w", err)
		}
		active := s.eng.ActiveCharacterID()

		result := ListCharactersResult{Characters: make([]CharacterSummary, 0, len(defs))}
		for _, def := range defs {
			result.Characters = append(result.Characters, CharacterSummary{
				CharacterID: def.ID,
				Name:        def.Display(),
				Enabled:     def.Enabled,
				Active:      def.ID == active,
			})
		}
		return nil, result, nil
	}
}
