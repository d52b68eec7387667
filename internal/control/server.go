// Package control exposes the state engine to chat agents over the Model
// Context Protocol. The chat pipeline stays external to the engine: agents
// call in through these tools, the engine never calls out.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aikata-app/aikata/internal/character"
	"github.com/aikata-app/aikata/internal/engine"
)

const (
	serverName    = "aikata"
	serverVersion = "0.1.0"
)

// Server wires the engine's operations into an MCP server.
type Server struct {
	eng            *engine.Engine
	fuzzyThreshold float64
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithFuzzyThreshold sets the minimum Jaro-Winkler similarity for fuzzy
// character name resolution in switch_character. Zero keeps the resolver
// default.
func WithFuzzyThreshold(t float64) Option {
	return func(s *Server) {
		s.fuzzyThreshold = t
	}
}

// NewServer creates a control server around the given engine.
func NewServer(eng *engine.Engine, opts ...Option) *Server {
	s := &Server{eng: eng}
	for _, o := range opts {
		o(s)
	}
	return s
}

// MCPServer builds the MCP server with all tools registered.
func (s *Server) MCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	mcp.AddTool(server, SwitchCharacterTool(), s.SwitchCharacterHandler())
	mcp.AddTool(server, SetEmotionTool(), s.SetEmotionHandler())
	mcp.AddTool(server, SetActivityTool(), s.SetActivityHandler())
	mcp.AddTool(server, PlayAnimationTool(), s.PlayAnimationHandler())
	mcp.AddTool(server, RecordInteractionTool(), s.RecordInteractionHandler())
	mcp.AddTool(server, CharacterStatsTool(), s.CharacterStatsHandler())
	mcp.AddTool(server, ListCharactersTool(), s.ListCharactersHandler())

	return server
}

// Run serves the MCP protocol on stdin/stdout until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("mcp control surface listening on stdio")
	return s.MCPServer().Run(ctx, &mcp.StdioTransport{})
}

// resolve turns a query (id, exact name, or fuzzy name) into a definition.
// The resolver is rebuilt from the current roster on every call so renames
// and additions are picked up immediately.
func (s *Server) resolve(ctx context.Context, query string) (character.Definition, error) {
	defs, err := s.eng.ListCharacters(ctx, character.ListOptions{})
	if err != nil {
		return character.Definition{}, fmt.Errorf("list characters: %w", err)
	}

	var opts []character.ResolverOption
	if s.fuzzyThreshold > 0 {
		opts = append(opts, character.WithFuzzyThreshold(s.fuzzyThreshold))
	}
	def, err := character.NewResolver(defs, opts...).Resolve(query)
	if err != nil {
		return character.Definition{}, fmt.Errorf("no character matches %q: %w", query, err)
	}
	return def, nil
}

// targetID defaults an empty character id to the active character.
func (s *Server) targetID(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	active := s.eng.ActiveCharacterID()
	if active == "" {
		return "", fmt.Errorf("no character is active; pass character_id or switch first")
	}
	return active, nil
}
