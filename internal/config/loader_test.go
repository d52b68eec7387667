package config

import (
	"strings"
	"testing"
)

const sampleConfig = `
server:
  listen_addr: ":8420"
  log_level: "debug"
renderer:
  endpoint: "ws://127.0.0.1:8001"
storage:
  postgres_dsn: "postgres://aikata@localhost:5432/aikata"
engine:
  interaction_log_capacity: 200
  emotion_history_capacity: 25
characters:
  roster_path: "characters.yaml"
  fuzzy_threshold: 0.9
mcp:
  enabled: true
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8420" {
		t.Errorf("ListenAddr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Renderer.Endpoint != "ws://127.0.0.1:8001" {
		t.Errorf("Endpoint = %q", cfg.Renderer.Endpoint)
	}
	if cfg.Engine.InteractionLogCapacity != 200 {
		t.Errorf("InteractionLogCapacity = %d, want 200", cfg.Engine.InteractionLogCapacity)
	}
	if cfg.Characters.FuzzyThreshold != 0.9 {
		t.Errorf("FuzzyThreshold = %v, want 0.9", cfg.Characters.FuzzyThreshold)
	}
	if !cfg.MCP.Enabled {
		t.Error("MCP.Enabled = false, want true")
	}
}

func TestLoadFromReaderEmpty(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != "" {
		t.Errorf("ListenAddr = %q, want empty", cfg.Server.ListenAddr)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	const bad = `
server:
  listen_adr: ":8420"
`
	if _, err := LoadFromReader(strings.NewReader(bad)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AIKATA_LISTEN_ADDR", ":9999")
	t.Setenv("AIKATA_RENDERER_ENDPOINT", "wss://renderer.local:8001")
	t.Setenv("AIKATA_MCP_ENABLED", "true")

	cfg, err := LoadFromReader(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, want env override :9999", cfg.Server.ListenAddr)
	}
	if cfg.Renderer.Endpoint != "wss://renderer.local:8001" {
		t.Errorf("Endpoint = %q, want env override", cfg.Renderer.Endpoint)
	}
	if !cfg.MCP.Enabled {
		t.Error("MCP.Enabled = false, want env override true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "server.log_level",
		},
		{
			name:    "non-websocket renderer endpoint",
			mutate:  func(c *Config) { c.Renderer.Endpoint = "http://127.0.0.1:8001" },
			wantErr: "renderer.endpoint",
		},
		{
			name:    "negative log capacity",
			mutate:  func(c *Config) { c.Engine.InteractionLogCapacity = -1 },
			wantErr: "interaction_log_capacity",
		},
		{
			name:    "fuzzy threshold out of range",
			mutate:  func(c *Config) { c.Characters.FuzzyThreshold = 1.5 },
			wantErr: "fuzzy_threshold",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}

	if err := Validate(Default()); err != nil {
		t.Errorf("default config rejected: %v", err)
	}
}

func TestValidateJoinsAllFailures(t *testing.T) {
	cfg := Default()
	cfg.Server.LogLevel = "verbose"
	cfg.Engine.EmotionHistoryCapacity = -5

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.log_level", "emotion_history_capacity"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q does not mention %q", err, want)
		}
	}
}

func TestLogLevelSlogLevel(t *testing.T) {
	if LogDebug.SlogLevel().String() != "DEBUG" {
		t.Errorf("debug maps to %v", LogDebug.SlogLevel())
	}
	if LogLevel("").SlogLevel().String() != "INFO" {
		t.Errorf("empty maps to %v", LogLevel("").SlogLevel())
	}
}
