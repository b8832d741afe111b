// Package observability provides logging, metrics, and tracing for the
// evaluator's HTTP server and worker.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
)

// SetupTracing exports spans over OTLP gRPC when OTEL_EXPORTER_OTLP_ENDPOINT is
// set and returns the provider's shutdown func. Without an endpoint it returns nil.
func SetupTracing(cfg config.Config) (func(context.Context) error, error) {
	// trace context travels over HTTP and Kafka headers even when nothing is exported
	otel.SetTextMapPropagator(newPropagator())
	if cfg.OTLPEndpoint == "" {
		slog.Info("OTLP endpoint not set; tracing disabled")
		return nil, nil
	}

	ctx := context.Background()
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("op=tracing.exporter: %w", err)
	}
	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("op=tracing.resource: %w", err)
	}

	tp := newTracerProvider(cfg, res, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	slog.Info("tracing configured",
		slog.String("endpoint", cfg.OTLPEndpoint),
		slog.Float64("sampling_ratio", SamplingRatio(cfg)))
	return tp.Shutdown, nil
}

// SamplingRatio is OTEL_SAMPLING_RATIO clamped to [0,1].
func SamplingRatio(cfg config.Config) float64 {
	switch r := cfg.OTELSamplingRatio; {
	case r < 0:
		return 0
	case r > 1:
		return 1
	default:
		return r
	}
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}

func serviceResource(ctx context.Context, cfg config.Config) (*resource.Resource, error) {
	return resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.OTELServiceName),
		semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentKey.String(cfg.AppEnv),
	))
}

// newTracerProvider samples root spans at the configured ratio and follows the
// parent's decision otherwise.
func newTracerProvider(cfg config.Config, res *resource.Resource, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(SamplingRatio(cfg)))),
	)
	return sdktrace.NewTracerProvider(opts...)
}
