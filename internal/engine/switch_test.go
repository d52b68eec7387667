package engine_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/aikata-app/aikata/internal/character"
	"github.com/aikata-app/aikata/internal/engine"
	"github.com/aikata-app/aikata/internal/renderer"
)

func TestSwitchUnknownCharacter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	err := f.eng.SwitchCharacter(context.Background(), "ghost")
	if !errors.Is(err, character.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if f.eng.ActiveCharacterID() != "" {
		t.Error("active pointer must stay empty")
	}
}

func TestSwitchToActiveCharacterIsNoOp(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	id := f.activate(t, "mira")

	if err := f.eng.SwitchCharacter(context.Background(), id); err != nil {
		t.Fatalf("re-switch: %v", err)
	}
	if loads := f.loader.Loads(); len(loads) != 1 {
		t.Errorf("got %d loads, want 1 (no-op must not reload)", len(loads))
	}
}

func TestSwitchTearsDownPreviousCharacter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	mira := f.activate(t, "mira")
	f.activate(t, "yuki")

	waitFor(t, func() bool {
		return slices.Contains(f.loader.Unloads(), mira)
	}, "previous model never unloaded")
	waitFor(t, func() bool {
		return slices.Contains(f.rend.Stops(), mira)
	}, "previous animations never stopped")
}

func TestSwitchSequenceKeepsIndependentStates(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	a := f.activate(t, "mira")
	f.eng.SetEmotion(ctx, a, engine.EmotionHappy, 0.9)

	b := f.activate(t, "yuki")
	f.eng.SetEmotion(ctx, b, engine.EmotionSleepy, 0.2)

	c := f.activate(t, "rin")
	f.eng.SetActivityState(ctx, c, engine.ActivitySpeaking)

	if got := f.eng.ActiveCharacterID(); got != c {
		t.Fatalf("active = %q, want %q", got, c)
	}

	// Each previously-activated character keeps its own addressable state.
	rsA, ok := f.eng.StateFor(a)
	if !ok || rsA.Emotion != engine.EmotionHappy || rsA.EmotionIntensity != 0.9 {
		t.Errorf("state A = %+v, ok=%v", rsA, ok)
	}
	rsB, ok := f.eng.StateFor(b)
	if !ok || rsB.Emotion != engine.EmotionSleepy || rsB.EmotionIntensity != 0.2 {
		t.Errorf("state B = %+v, ok=%v", rsB, ok)
	}
	rsC, ok := f.eng.StateFor(c)
	if !ok || rsC.Activity != engine.ActivitySpeaking {
		t.Errorf("state C = %+v, ok=%v", rsC, ok)
	}
}

func TestSwitchLoaderFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	mira := f.activate(t, "mira")
	yuki := f.addCharacter(t, "yuki")

	f.loader.LoadError = errors.New("model file corrupt")
	err := f.eng.SwitchCharacter(ctx, yuki)

	var lerr *engine.LoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *LoadError, got %v", err)
	}
	if lerr.CharacterID != yuki {
		t.Errorf("LoadError.CharacterID = %q, want %q", lerr.CharacterID, yuki)
	}

	if got := f.eng.ActiveCharacterID(); got != mira {
		t.Errorf("active = %q, want previous %q", got, mira)
	}
	if f.eng.IsLoading() {
		t.Error("loading flag must be cleared after failure")
	}
	if msg := f.eng.LastError(); !strings.Contains(msg, "model file corrupt") {
		t.Errorf("LastError = %q, want the loader failure", msg)
	}
	if _, ok := f.eng.StateFor(yuki); ok {
		t.Error("failed switch must not create runtime state")
	}

	// A later successful switch clears the captured error.
	f.loader.LoadError = nil
	if err := f.eng.SwitchCharacter(ctx, yuki); err != nil {
		t.Fatalf("retry switch: %v", err)
	}
	if msg := f.eng.LastError(); msg != "" {
		t.Errorf("LastError = %q, want empty after success", msg)
	}
}

func TestSwitchSupersededByNewerRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	slow := f.addCharacter(t, "mira")
	fast := f.addCharacter(t, "yuki")

	slowDef, err := f.store.Get(ctx, slow)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	release := make(chan struct{})
	f.loader.LoadHook = func(_ context.Context, cfg renderer.ModelConfig) error {
		if cfg.Ref == slowDef.Model.Ref {
			<-release
		}
		return nil
	}

	slowErr := make(chan error, 1)
	go func() {
		slowErr <- f.eng.SwitchCharacter(ctx, slow)
	}()

	// Wait for the slow load to start, then issue the superseding switch
	// from this goroutine. It claims its request token immediately and then
	// queues behind the in-flight switch; the release fires once it is
	// safely queued.
	waitFor(t, func() bool { return len(f.loader.Loads()) == 1 }, "slow load never started")

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()
	if err := f.eng.SwitchCharacter(ctx, fast); err != nil {
		t.Errorf("superseding switch returned %v", err)
	}

	if err := <-slowErr; !errors.Is(err, engine.ErrSuperseded) {
		t.Errorf("stale switch returned %v, want ErrSuperseded", err)
	}

	if got := f.eng.ActiveCharacterID(); got != fast {
		t.Errorf("active = %q, want the newer request %q", got, fast)
	}
	if _, ok := f.eng.StateFor(slow); ok {
		t.Error("discarded switch must not create runtime state")
	}

	// The stale load completed successfully, so its model must be released.
	waitFor(t, func() bool {
		return slices.Contains(f.loader.Unloads(), slow)
	}, "superseded model never unloaded")
}

func TestDeleteDuringSwitchLeavesNoActivePointer(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	id := f.addCharacter(t, "mira")

	release := make(chan struct{})
	f.loader.LoadHook = func(context.Context, renderer.ModelConfig) error {
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- f.eng.SwitchCharacter(ctx, id)
	}()

	waitFor(t, func() bool { return len(f.loader.Loads()) == 1 }, "load never started")

	if err := f.eng.DeleteCharacter(ctx, id); err != nil {
		t.Fatalf("DeleteCharacter: %v", err)
	}
	close(release)

	if err := <-done; !errors.Is(err, character.ErrNotFound) {
		t.Errorf("switch returned %v, want ErrNotFound", err)
	}
	if got := f.eng.ActiveCharacterID(); got != "" {
		t.Errorf("active = %q, want empty after deleting the switch target", got)
	}
	if _, ok := f.eng.StateFor(id); ok {
		t.Error("aborted switch must not create runtime state")
	}

	// The load succeeded before the abort, so the model must be released.
	waitFor(t, func() bool {
		return slices.Contains(f.loader.Unloads(), id)
	}, "loaded model never released after delete")
}
