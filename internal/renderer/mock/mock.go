// Package mock provides in-memory mock implementations of the renderer
// collaborator interfaces for use in unit tests.
//
// The mocks record every method call and allow the test to configure return
// values via exported fields. They are safe for concurrent use.
//
// Example:
//
//	loader := &mock.ModelLoader{LoadError: errors.New("model file corrupt")}
//	err := loader.Load(ctx, renderer.ModelConfig{Ref: "models/mira.model3.json"})
package mock

import (
	"context"
	"sync"

	"github.com/aikata-app/aikata/internal/renderer"
)

// Compile-time interface assertions.
var (
	_ renderer.ModelLoader       = (*ModelLoader)(nil)
	_ renderer.AnimationRenderer = (*AnimationRenderer)(nil)
)

// ModelLoader is a mock implementation of [renderer.ModelLoader].
type ModelLoader struct {
	mu sync.Mutex

	// LoadError is returned by [ModelLoader.Load].
	LoadError error

	// UnloadError is returned by [ModelLoader.Unload].
	UnloadError error

	// LoadHook, when non-nil, runs inside Load before the error is
	// returned. Useful for blocking a load until the test releases it.
	LoadHook func(ctx context.Context, cfg renderer.ModelConfig) error

	// LoadCalls records the config of every Load invocation.
	LoadCalls []renderer.ModelConfig

	// UnloadCalls records the character ID of every Unload invocation.
	UnloadCalls []string
}

// Load implements [renderer.ModelLoader.Load].
func (m *ModelLoader) Load(ctx context.Context, cfg renderer.ModelConfig) error {
	m.mu.Lock()
	m.LoadCalls = append(m.LoadCalls, cfg)
	hook := m.LoadHook
	err := m.LoadError
	m.mu.Unlock()

	if hook != nil {
		return hook(ctx, cfg)
	}
	return err
}

// Unload implements [renderer.ModelLoader.Unload].
func (m *ModelLoader) Unload(ctx context.Context, characterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UnloadCalls = append(m.UnloadCalls, characterID)
	return m.UnloadError
}

// Loads returns a copy of the recorded Load configs.
func (m *ModelLoader) Loads() []renderer.ModelConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]renderer.ModelConfig, len(m.LoadCalls))
	copy(out, m.LoadCalls)
	return out
}

// Unloads returns a copy of the recorded Unload character IDs.
func (m *ModelLoader) Unloads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.UnloadCalls))
	copy(out, m.UnloadCalls)
	return out
}

// AnimationRenderer is a mock implementation of [renderer.AnimationRenderer].
type AnimationRenderer struct {
	mu sync.Mutex

	// PlayError is returned by [AnimationRenderer.PlayAnimation].
	PlayError error

	// ExpressionError is returned by [AnimationRenderer.SetExpression].
	ExpressionError error

	// StopError is returned by [AnimationRenderer.Stop].
	StopError error

	// PlayCalls records every PlayAnimation request in call order.
	PlayCalls []renderer.AnimationRequest

	// ExpressionCalls records every SetExpression call in call order.
	ExpressionCalls []renderer.Expression

	// StopCalls records the character ID of every Stop invocation.
	StopCalls []string
}

// PlayAnimation implements [renderer.AnimationRenderer.PlayAnimation].
func (m *AnimationRenderer) PlayAnimation(ctx context.Context, req renderer.AnimationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlayCalls = append(m.PlayCalls, req)
	return m.PlayError
}

// SetExpression implements [renderer.AnimationRenderer.SetExpression].
func (m *AnimationRenderer) SetExpression(ctx context.Context, expr renderer.Expression) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExpressionCalls = append(m.ExpressionCalls, expr)
	return m.ExpressionError
}

// Stop implements [renderer.AnimationRenderer.Stop].
func (m *AnimationRenderer) Stop(ctx context.Context, characterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls = append(m.StopCalls, characterID)
	return m.StopError
}

// Plays returns a copy of the recorded PlayAnimation requests.
func (m *AnimationRenderer) Plays() []renderer.AnimationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]renderer.AnimationRequest, len(m.PlayCalls))
	copy(out, m.PlayCalls)
	return out
}

// Expressions returns a copy of the recorded SetExpression calls.
func (m *AnimationRenderer) Expressions() []renderer.Expression {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]renderer.Expression, len(m.ExpressionCalls))
	copy(out, m.ExpressionCalls)
	return out
}

// Stops returns a copy of the recorded Stop character IDs.
func (m *AnimationRenderer) Stops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.StopCalls))
	copy(out, m.StopCalls)
	return out
}
