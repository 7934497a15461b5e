// Package tracing exports batch, test and engine phase spans over OTLP.
//
// Spans nest as batch > test > trial > warm-up | measure. Attribute keys are
// the Key* constants of this package.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/crankbench/internal/config"
)

// ScopeName names the crankbench tracer and is the default service name.
const ScopeName = "crankbench"

const (
	envEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envServiceName = "OTEL_SERVICE_NAME"
)

// exporterFactory builds a span exporter for one OTLP protocol.
type exporterFactory func(ctx context.Context, endpoint string, insecureTransport bool) (sdktrace.SpanExporter, error)

var exporters = map[string]exporterFactory{
	"grpc": func(ctx context.Context, endpoint string, insecureTransport bool) (sdktrace.SpanExporter, error) {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if insecureTransport {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	},
	"http": func(ctx context.Context, endpoint string, insecureTransport bool) (sdktrace.SpanExporter, error) {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if insecureTransport {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	},
}

// Provider owns the SDK tracer provider of one CLI run. The zero value and a
// nil *Provider are disabled and hand out no-op tracers.
type Provider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init builds a batching OTLP provider and installs it globally. Without an
// endpoint, in cfg or the environment, it returns a disabled provider.
func Init(ctx context.Context, cfg config.TracingConfig) (*Provider, error) {
	if !cfg.Enabled() {
		return &Provider{}, nil
	}

	sampler, err := newSampler(cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	protocol := strings.ToLower(strings.TrimSpace(cfg.Protocol))
	if protocol == "" {
		protocol = "grpc"
	}
	factory, ok := exporters[protocol]
	if !ok {
		return nil, fmt.Errorf("tracing exporter: unsupported OTLP protocol %q: use \"grpc\" or \"http\"", protocol)
	}
	exporter, err := factory(ctx, endpoint(cfg), cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName(cfg))))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(sdk)
	if cfg.ShouldPropagate() {
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	return &Provider{sdk: sdk, tracer: sdk.Tracer(ScopeName)}, nil
}

func endpoint(cfg config.TracingConfig) string {
	if ep := strings.TrimSpace(cfg.Endpoint); ep != "" {
		return ep
	}
	return os.Getenv(envEndpoint)
}

func serviceName(cfg config.TracingConfig) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	if name := os.Getenv(envServiceName); name != "" {
		return name
	}
	return ScopeName
}

// newSampler samples whole batches: 0 never, 1 always, anything between by
// trace ID ratio.
func newSampler(rate float64) (sdktrace.Sampler, error) {
	switch {
	case rate < 0 || rate > 1:
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", rate)
	case rate == 0:
		return sdktrace.NeverSample(), nil
	case rate == 1:
		return sdktrace.AlwaysSample(), nil
	default:
		return sdktrace.TraceIDRatioBased(rate), nil
	}
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.sdk != nil
}

// Tracer returns the crankbench tracer, or a no-op tracer when disabled.
func (p *Provider) Tracer() trace.Tracer {
	if !p.Enabled() {
		return noop.NewTracerProvider().Tracer(ScopeName)
	}
	return p.tracer
}

// Shutdown flushes pending spans. It is a no-op when disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
