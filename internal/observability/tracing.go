package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/rfcascade/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporter names accepted in TracingConfig.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const defaultOTLPEndpoint = "localhost:4317"

// ErrInvalidTracingConfig is returned by InitTracing for configurations it
// can't honour.
var ErrInvalidTracingConfig = errors.New("invalid tracing config")

// TracingConfig selects the span exporter and sampling for a process.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	// Exporter is ExporterStdout or ExporterOTLP.
	Exporter string
	// Endpoint is the OTLP collector address.
	Endpoint string
	// SampleRatio is the fraction of root spans kept, in [0, 1].
	SampleRatio float64
	// Output receives stdout-exporter spans; stderr when nil so reports on
	// stdout stay parseable.
	Output io.Writer
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// TracingConfigFromEnv reads RFCASCADE_TRACING_ENABLED,
// RFCASCADE_TRACING_EXPORTER, RFCASCADE_TRACING_SERVICE_NAME,
// RFCASCADE_TRACING_SAMPLE_RATIO and RFCASCADE_OTLP_ENDPOINT.
// Malformed ratios fall back to 1.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("RFCASCADE_TRACING_ENABLED"), "true"),
		ServiceName: envDefault("RFCASCADE_TRACING_SERVICE_NAME", "rfcascade"),
		Exporter:    strings.ToLower(envDefault("RFCASCADE_TRACING_EXPORTER", ExporterStdout)),
		Endpoint:    os.Getenv("RFCASCADE_OTLP_ENDPOINT"),
		SampleRatio: 1,
	}
	if raw := os.Getenv("RFCASCADE_TRACING_SAMPLE_RATIO"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
			cfg.SampleRatio = v
		}
	}
	return cfg
}

func envDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (c TracingConfig) sampler() sdktrace.Sampler {
	switch {
	case c.SampleRatio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case c.SampleRatio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

// InitTracing installs the global tracer provider and W3C propagators.
// Disabled configs install a no-op provider and a no-op shutdown.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (ShutdownFunc, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("%w: sample ratio %v outside [0, 1]", ErrInvalidTracingConfig, cfg.SampleRatio)
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.namespace", "rfcascade"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(cfg.sampler()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "", ExporterStdout:
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	case ExporterOTLP, "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		exp, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
		if err != nil {
			return nil, fmt.Errorf("otlp exporter for %s: %w", endpoint, err)
		}
		return exp, nil
	}
	return nil, fmt.Errorf("%w: unsupported exporter %q", ErrInvalidTracingConfig, cfg.Exporter)
}

// ShutdownWithTimeout runs shutdown bounded by timeout and logs, rather than
// returns, any failure.
func ShutdownWithTimeout(ctx context.Context, shutdown ShutdownFunc, timeout time.Duration, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
