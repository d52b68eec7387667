package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics creates a Metrics instance backed by a manual reader so
// tests can collect recorded data points without an exporter.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			t.Errorf("meter provider shutdown: %v", err)
		}
	})

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all currently recorded metrics, keyed by instrument name.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, met := range scope.Metrics {
			out[met.Name] = met
		}
	}
	return out
}

func sumValue(t *testing.T, met metricdata.Metrics) int64 {
	t.Helper()

	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("instrument %q is %T, want Sum[int64]", met.Name, met.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)

	if m.Interactions == nil || m.Animations == nil || m.EmotionChanges == nil {
		t.Error("counter instruments not initialised")
	}
	if m.SwitchDuration == nil || m.SwitchFailures == nil {
		t.Error("switch instruments not initialised")
	}
	if m.ActiveCharacters == nil || m.HTTPRequestDuration == nil {
		t.Error("gauge/http instruments not initialised")
	}
}

func TestRecordCountersAccumulate(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordInteraction(ctx, "char-1", "pet")
	m.RecordInteraction(ctx, "char-1", "click")
	m.RecordAnimation(ctx, "char-1", "greeting")
	m.RecordEmotionChange(ctx, "char-1", "happy")

	metrics := collect(t, reader)

	if got := sumValue(t, metrics["aikata.interactions"]); got != 2 {
		t.Errorf("interactions = %d, want 2", got)
	}
	if got := sumValue(t, metrics["aikata.animations"]); got != 1 {
		t.Errorf("animations = %d, want 1", got)
	}
	if got := sumValue(t, metrics["aikata.emotion_changes"]); got != 1 {
		t.Errorf("emotion_changes = %d, want 1", got)
	}
}

func TestRecordSwitchFailureBumpsFailureCounter(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSwitch(ctx, "char-1", 120*time.Millisecond, true)
	m.RecordSwitch(ctx, "char-2", 80*time.Millisecond, false)

	metrics := collect(t, reader)

	if got := sumValue(t, metrics["aikata.switch.failures"]); got != 1 {
		t.Errorf("switch.failures = %d, want 1", got)
	}

	hist, ok := metrics["aikata.switch.duration"].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("switch.duration is %T, want Histogram[float64]", metrics["aikata.switch.duration"].Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("switch.duration count = %d, want 2 (recorded on success and failure)", count)
	}
}

func TestSetActiveCharacterReconcilesGauge(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// empty -> active: +1
	m.SetActiveCharacter(ctx, "char-1")
	// active -> different active: gauge stays at 1
	m.SetActiveCharacter(ctx, "char-2")
	if got := sumValue(t, collect(t, reader)["aikata.active_characters"]); got != 1 {
		t.Errorf("gauge = %d after two activations, want 1", got)
	}

	// active -> empty: -1
	m.SetActiveCharacter(ctx, "")
	if got := sumValue(t, collect(t, reader)["aikata.active_characters"]); got != 0 {
		t.Errorf("gauge = %d after deactivation, want 0", got)
	}

	// empty -> empty: no change
	m.SetActiveCharacter(ctx, "")
	if got := sumValue(t, collect(t, reader)["aikata.active_characters"]); got != 0 {
		t.Errorf("gauge = %d after repeated deactivation, want 0", got)
	}
}

func TestDefaultMetricsReturnsSameInstance(t *testing.T) {
	t.Parallel()

	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics must return a stable pointer")
	}
}
