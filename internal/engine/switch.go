package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aikata-app/aikata/internal/observe"
	"github.com/aikata-app/aikata/internal/renderer"
)

// SwitchCharacter makes the character identified by id the active one. It
// is the only asynchronous, failable mutator: switches are serialised (one
// in flight at a time), the previous character's resources are torn down
// best-effort in the background, and the target's model is loaded through
// the configured [renderer.ModelLoader].
//
// Each call takes a monotonically increasing request token before queueing
// behind any in-flight switch; when the load completes, a stale token means
// a newer switch superseded this one and the result is discarded with
// [ErrSuperseded]. Switching to the already-active character is a
// successful no-op.
//
// On loader failure the active pointer is left unchanged, the failure is
// captured into [Engine.LastError], and a [*LoadError] is returned. There
// is no automatic retry.
//
// A switch that loses either race releases the model it loaded: superseded
// results and targets deleted mid-load are both torn down in the
// background, and neither commits the active pointer or runtime state.
func (e *Engine) SwitchCharacter(ctx context.Context, id string) error {
	def, err := e.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("engine: switch character: %w", err)
	}

	// Token before the lock: a caller queued behind an in-flight switch
	// already supersedes it.
	token := e.switchSeq.Add(1)

	e.switchMu.Lock()
	defer e.switchMu.Unlock()

	e.mu.Lock()
	if e.active == id {
		e.mu.Unlock()
		return nil
	}
	prev := e.active
	e.loading = true
	e.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "engine.switch_character")
	defer span.End()

	if prev != "" {
		e.teardown(context.WithoutCancel(ctx), prev)
	}

	start := time.Now()
	loadErr := e.loader.Load(ctx, renderer.ModelConfig{
		Ref:     def.Model.Ref,
		Format:  def.Model.Format,
		Options: def.Model.Options,
	})
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = false

	if token != e.switchSeq.Load() {
		// A newer request owns the pointer now. The model this stale load
		// brought up never belonged to an active character; release it.
		if loadErr == nil {
			e.teardown(context.WithoutCancel(ctx), id)
		}
		slog.Info("switch superseded", "character_id", id)
		return ErrSuperseded
	}

	if loadErr != nil {
		lerr := &LoadError{CharacterID: id, Err: loadErr}
		e.lastError = lerr.Error()
		if e.metrics != nil {
			e.metrics.RecordSwitch(ctx, id, elapsed, false)
		}
		slog.Error("switch failed", "character_id", id, "error", loadErr)
		return lerr
	}

	// The registry stays live during the load, so the target may have been
	// deleted meanwhile. Re-checking under mu pins DeleteCharacter's map
	// cleanup behind this commit: either the row is already gone here and
	// the switch aborts, or the delete runs after the commit and clears the
	// pointer itself.
	if _, err := e.store.Get(ctx, id); err != nil {
		e.teardown(context.WithoutCancel(ctx), id)
		if e.metrics != nil {
			e.metrics.RecordSwitch(ctx, id, elapsed, false)
		}
		slog.Warn("switch target deleted while loading", "character_id", id)
		return fmt.Errorf("engine: switch character: %w", err)
	}

	e.active = id
	e.lastError = ""
	if _, ok := e.runtime[id]; !ok {
		rs := defaultRuntimeState()
		e.runtime[id] = &rs
		e.stats[id] = &Stats{
			CreatedAt:      time.Now().UTC(),
			emotionHistory: NewRing[EmotionSample](e.emotionCap),
		}
	}

	if e.metrics != nil {
		e.metrics.RecordSwitch(ctx, id, elapsed, true)
		e.metrics.SetActiveCharacter(ctx, id)
	}
	slog.Info("character switched", "character_id", id, "previous", prev, "load_ms", elapsed.Milliseconds())
	return nil
}

// teardown releases a character's renderer resources in the background:
// pending animations are stopped and the model is unloaded, in parallel.
// Used for the previous character on a switch and for models loaded by
// switches that lost a race. Failures are logged only; teardown never
// blocks or fails the switch that triggered it.
func (e *Engine) teardown(ctx context.Context, id string) {
	go func() {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return e.dispatcher.stop(ctx, id)
		})
		g.Go(func() error {
			return e.loader.Unload(ctx, id)
		})
		if err := g.Wait(); err != nil {
			slog.Warn("previous character teardown incomplete", "character_id", id, "error", err)
		}
	}()
}
