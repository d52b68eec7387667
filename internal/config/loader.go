package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, applies AIKATA_*
// environment overrides, and returns a validated [Config]. It is a
// convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: apply environment overrides: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no config file exists:
// a local-only, headless, in-memory setup.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8420",
			LogLevel:   LogInfo,
		},
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Renderer.Endpoint != "" && !isWebsocketURL(cfg.Renderer.Endpoint) {
		errs = append(errs, fmt.Errorf("renderer.endpoint %q must be a ws:// or wss:// URL", cfg.Renderer.Endpoint))
	}

	if cfg.Engine.InteractionLogCapacity < 0 {
		errs = append(errs, fmt.Errorf("engine.interaction_log_capacity %d must not be negative", cfg.Engine.InteractionLogCapacity))
	}
	if cfg.Engine.EmotionHistoryCapacity < 0 {
		errs = append(errs, fmt.Errorf("engine.emotion_history_capacity %d must not be negative", cfg.Engine.EmotionHistoryCapacity))
	}

	if t := cfg.Characters.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("characters.fuzzy_threshold %.2f is out of range [0, 1]", t))
	}

	return errors.Join(errs...)
}
