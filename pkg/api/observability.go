package api

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/soteria-labs/soteria/pkg/config"
)

// Observability bundles the tracer and the detection metrics instruments.
type Observability struct {
	Tracer oteltrace.Tracer
	Meter  metric.Meter

	traceProvider  *sdktrace.TracerProvider
	VerdictCounter metric.Int64Counter
	DetectLatency  metric.Int64Histogram
	CacheHits      metric.Int64Counter
}

// SetupObservability configures tracing and metrics. Without an OTLP
// endpoint a local no-export tracer provider is used, so instrumentation
// calls stay cheap and valid either way.
func SetupObservability(ctx context.Context, cfg config.ObserverConfig) (*Observability, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "soteria"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	if cfg.OTLPEndpoint != "" {
		exporter, exportErr := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if exportErr != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", exportErr)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		)
	} else {
		slog.Info("otel trace exporter not configured; using local tracer provider")
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	meter := otel.Meter(serviceName)
	verdictCounter, _ := meter.Int64Counter("soteria_verdicts_total")
	detectLatency, _ := meter.Int64Histogram("soteria_detect_duration_ms")
	cacheHits, _ := meter.Int64Counter("soteria_cache_hits_total")

	return &Observability{
		Tracer:         otel.Tracer(serviceName),
		Meter:          meter,
		traceProvider:  tp,
		VerdictCounter: verdictCounter,
		DetectLatency:  detectLatency,
		CacheHits:      cacheHits,
	}, nil
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.traceProvider == nil {
		return nil
	}
	return o.traceProvider.Shutdown(ctx)
}

// MarkVerdict counts one verdict by outcome and serving tier.
func (o *Observability) MarkVerdict(ctx context.Context, blocked bool, tier string, latencyMS int64) {
	if o == nil {
		return
	}
	outcome := "allowed"
	if blocked {
		outcome = "blocked"
	}
	o.VerdictCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("tier", tier),
	))
	o.DetectLatency.Record(ctx, latencyMS, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
	if tier != "" {
		o.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
	}
}
