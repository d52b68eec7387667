// Package observe provides application-wide observability primitives for
// Aikata: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Aikata metrics.
const meterName = "github.com/aikata-app/aikata"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// Interactions counts recorded user interactions. Use with attributes:
	//   attribute.String("character_id", ...), attribute.String("type", ...)
	Interactions metric.Int64Counter

	// Animations counts dispatched animation intents. Use with attributes:
	//   attribute.String("character_id", ...), attribute.String("group", ...)
	Animations metric.Int64Counter

	// EmotionChanges counts emotion updates. Use with attributes:
	//   attribute.String("character_id", ...), attribute.String("emotion", ...)
	EmotionChanges metric.Int64Counter

	// SwitchDuration tracks model-load latency during character switches.
	// Use with attributes:
	//   attribute.String("character_id", ...), attribute.String("status", ...)
	SwitchDuration metric.Float64Histogram

	// SwitchFailures counts failed character switches by character ID.
	SwitchFailures metric.Int64Counter

	// ActiveCharacters tracks whether a character is currently active
	// (0 or 1, the engine holds at most one active character).
	ActiveCharacters metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram

	// activeMu guards activeID so SetActiveCharacter can translate the
	// active pointer into up/down counter adjustments.
	activeMu sync.Mutex
	activeID string
}

// switchBuckets defines histogram bucket boundaries (in seconds) sized for
// avatar model loads, which range from instant (cached) to several seconds
// (large VRM models).
var switchBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Interactions, err = m.Int64Counter("aikata.interactions",
		metric.WithDescription("Total recorded user interactions by character and type."),
	); err != nil {
		return nil, err
	}
	if met.Animations, err = m.Int64Counter("aikata.animations",
		metric.WithDescription("Total dispatched animation intents by character and group."),
	); err != nil {
		return nil, err
	}
	if met.EmotionChanges, err = m.Int64Counter("aikata.emotion_changes",
		metric.WithDescription("Total emotion updates by character and emotion."),
	); err != nil {
		return nil, err
	}

	if met.SwitchDuration, err = m.Float64Histogram("aikata.switch.duration",
		metric.WithDescription("Model-load latency during character switches."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(switchBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SwitchFailures, err = m.Int64Counter("aikata.switch.failures",
		metric.WithDescription("Total failed character switches by character ID."),
	); err != nil {
		return nil, err
	}

	if met.ActiveCharacters, err = m.Int64UpDownCounter("aikata.active_characters",
		metric.WithDescription("Whether a character is currently active (0 or 1)."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("aikata.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordInteraction records one user interaction with the standard
// attribute set.
func (m *Metrics) RecordInteraction(ctx context.Context, characterID, interactionType string) {
	m.Interactions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("character_id", characterID),
			attribute.String("type", interactionType),
		),
	)
}

// RecordAnimation records one dispatched animation intent.
func (m *Metrics) RecordAnimation(ctx context.Context, characterID, group string) {
	m.Animations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("character_id", characterID),
			attribute.String("group", group),
		),
	)
}

// RecordEmotionChange records one emotion update.
func (m *Metrics) RecordEmotionChange(ctx context.Context, characterID, emotion string) {
	m.EmotionChanges.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("character_id", characterID),
			attribute.String("emotion", emotion),
		),
	)
}

// RecordSwitch records the duration of one character switch and, on
// failure, increments the failure counter.
func (m *Metrics) RecordSwitch(ctx context.Context, characterID string, elapsed time.Duration, success bool) {
	status := "ok"
	if !success {
		status = "error"
		m.SwitchFailures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("character_id", characterID)),
		)
	}
	m.SwitchDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("character_id", characterID),
			attribute.String("status", status),
		),
	)
}

// SetActiveCharacter reconciles the active-character gauge with the given
// pointer value; pass the empty string when no character is active.
func (m *Metrics) SetActiveCharacter(ctx context.Context, characterID string) {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()

	switch {
	case m.activeID == "" && characterID != "":
		m.ActiveCharacters.Add(ctx, 1)
	case m.activeID != "" && characterID == "":
		m.ActiveCharacters.Add(ctx, -1)
	}
	m.activeID = characterID
}
