package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// defaultServiceName is reported in telemetry when the config names none.
const defaultServiceName = "aikata"

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry.
	// Default: "aikata".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string

	// TraceExporter optionally exports spans. Nil keeps spans in-process
	// only, which suits a single-user desktop deployment; point it at an
	// OTLP exporter when traces should leave the machine.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider registers the global OTel providers: a meter provider backed
// by a Prometheus exporter (scraped through the sidecar's /metrics route)
// and a tracer provider with the configured span exporter, if any.
//
// The returned shutdown function flushes and closes both providers; call it
// during application teardown.
func InitProvider(ctx context.Context, cfg ProviderConfig) (func(context.Context) error, error) {
	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(name),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}, nil
}
