package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aikata-app/aikata/internal/renderer"
)

// idleAnimationGroup is the default intent dispatched when a character
// enters [ActivityIdle].
const idleAnimationGroup = "idle"

// queueCapacity bounds the dispatch queue; intents beyond it are dropped
// with a warning rather than blocking the caller.
const queueCapacity = 64

// AnimationRequest is an engine-level animation intent. Queue selects the
// dispatch path: false plays directly and reports renderer failures to the
// caller, true enqueues for the background worker, which preserves strict
// submission order across all queued intents.
type AnimationRequest struct {
	// Group is the animation group ("idle", "tap_body", ...). Required.
	Group string `json:"group"`

	// Name optionally selects a specific animation within the group.
	Name string `json:"name,omitempty"`

	// Priority is passed through to the renderer untouched.
	Priority int `json:"priority,omitempty"`

	// Queue selects queued instead of direct dispatch.
	Queue bool `json:"queue,omitempty"`
}

// label is the "group/name" form recorded as a character's LastAnimation.
func (r AnimationRequest) label() string {
	if r.Name == "" {
		return r.Group
	}
	return r.Group + "/" + r.Name
}

// Dispatcher forwards animation and expression intents to the configured
// [renderer.AnimationRenderer]. A nil renderer turns every intent into a
// logged drop, which keeps the engine fully functional headless.
//
// Queued intents run on a single worker goroutine, so they reach the
// renderer in exactly the order they were submitted.
type Dispatcher struct {
	eng      *Engine
	renderer renderer.AnimationRenderer

	mu     sync.Mutex // guards closed and sends on jobs
	closed bool
	jobs   chan func()
	done   chan struct{}
}

func newDispatcher(eng *Engine, r renderer.AnimationRenderer) *Dispatcher {
	d := &Dispatcher{
		eng:      eng,
		renderer: r,
		jobs:     make(chan func(), queueCapacity),
		done:     make(chan struct{}),
	}
	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for job := range d.jobs {
		job()
	}
}

// close drains the queue and stops the worker. Safe to call multiple times.
func (d *Dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	<-d.done
}

// enqueue hands a job to the worker. Returns false when the dispatcher is
// closed or the queue is full; the intent is dropped either way.
func (d *Dispatcher) enqueue(job func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.jobs <- job:
		return true
	default:
		return false
	}
}

// PlayAnimation dispatches an animation intent for the given character.
// The dispatch is counted into the character's stats at this point, whether
// or not the renderer later succeeds; LastAnimation is updated only on
// successful playback. Characters without runtime state are a logged no-op.
//
// Direct dispatch returns a [*DispatchError] on renderer failure, leaving
// all runtime state intact. Queued dispatch returns nil once the intent is
// accepted; renderer failures are then logged by the worker.
func (d *Dispatcher) PlayAnimation(ctx context.Context, characterID string, req AnimationRequest) error {
	if !d.eng.countDispatch(ctx, characterID, req) {
		slog.Warn("dispatch animation: character has no runtime state", "character_id", characterID, "animation", req.label())
		return nil
	}

	if req.Queue {
		ctx := context.WithoutCancel(ctx)
		ok := d.enqueue(func() {
			if err := d.play(ctx, characterID, req); err != nil {
				slog.Error("queued animation failed", "character_id", characterID, "animation", req.label(), "error", err)
			}
		})
		if !ok {
			slog.Warn("dispatch queue full, intent dropped", "character_id", characterID, "animation", req.label())
		}
		return nil
	}

	if err := d.play(ctx, characterID, req); err != nil {
		slog.Error("animation failed", "character_id", characterID, "animation", req.label(), "error", err)
		return err
	}
	return nil
}

// play performs the renderer call and records LastAnimation on success.
func (d *Dispatcher) play(ctx context.Context, characterID string, req AnimationRequest) error {
	if d.renderer == nil {
		slog.Debug("no renderer configured, animation dropped", "character_id", characterID, "animation", req.label())
		d.eng.setLastAnimation(characterID, req.label())
		return nil
	}
	err := d.renderer.PlayAnimation(ctx, renderer.AnimationRequest{
		Group:    req.Group,
		Name:     req.Name,
		Priority: req.Priority,
	})
	if err != nil {
		return &DispatchError{CharacterID: characterID, Request: req, Err: err}
	}
	d.eng.setLastAnimation(characterID, req.label())
	return nil
}

// enqueueIdle queues the default idle animation intent.
func (d *Dispatcher) enqueueIdle(ctx context.Context, characterID string) {
	if err := d.PlayAnimation(ctx, characterID, AnimationRequest{Group: idleAnimationGroup, Queue: true}); err != nil {
		slog.Warn("idle animation dispatch failed", "character_id", characterID, "error", err)
	}
}

// enqueueExpression queues a best-effort expression intent.
func (d *Dispatcher) enqueueExpression(ctx context.Context, characterID string, expr renderer.Expression) {
	if d.renderer == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	ok := d.enqueue(func() {
		if err := d.renderer.SetExpression(ctx, expr); err != nil {
			slog.Warn("expression update failed", "character_id", characterID, "expression", expr.Name, "error", err)
		}
	})
	if !ok {
		slog.Warn("dispatch queue full, expression dropped", "character_id", characterID, "expression", expr.Name)
	}
}

// stop asks the renderer to cancel everything pending for the character.
func (d *Dispatcher) stop(ctx context.Context, characterID string) error {
	if d.renderer == nil {
		return nil
	}
	return d.renderer.Stop(ctx, characterID)
}

// countDispatch increments the character's animation counter at dispatch
// time. Reports false when the character has never been activated.
func (e *Engine) countDispatch(ctx context.Context, id string, req AnimationRequest) bool {
	e.mu.Lock()
	s, ok := e.stats[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	s.TotalAnimations++
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordAnimation(ctx, id, req.Group)
	}
	return true
}

// setLastAnimation records the most recently played animation label.
func (e *Engine) setLastAnimation(id, label string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rs, ok := e.runtime[id]; ok {
		rs.LastAnimation = label
	}
}
