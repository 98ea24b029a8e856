package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

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

	"github.com/signalsfoundry/vessel-systems/internal/logging"
)

// TickSpanPrefix marks the root span of a distribution update. Those roots
// are sampled with TracingConfig.TickSampleRatio.
const TickSpanPrefix = "DistributionManager."

// TracingConfig controls tracer provider setup.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // otlp only
	// SampleRatio applies to RPC and other root spans.
	SampleRatio float64
	// TickSampleRatio applies to tick roots, which arrive once per vessel
	// per tick.
	TickSampleRatio float64
}

// TracingConfigFromEnv reads the VESSEL_TRACING_* variables.
func TracingConfigFromEnv() TracingConfig {
	cfg := TracingConfig{
		Enabled:         strings.EqualFold(os.Getenv("VESSEL_TRACING_ENABLED"), "true"),
		ServiceName:     envOr("VESSEL_TRACING_SERVICE_NAME", "vessel-systems"),
		Exporter:        strings.ToLower(envOr("VESSEL_TRACING_EXPORTER", "stdout")),
		Endpoint:        os.Getenv("VESSEL_OTLP_ENDPOINT"),
		SampleRatio:     envRatio("VESSEL_TRACING_SAMPLE_RATIO", 1),
		TickSampleRatio: envRatio("VESSEL_TRACING_TICK_SAMPLE_RATIO", 0.01),
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envRatio parses a ratio in [0,1], falling back to def.
func envRatio(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return def
	}
	return v
}

// tickSampler routes root spans to one of two ratio samplers by name.
type tickSampler struct {
	ticks sdktrace.Sampler
	other sdktrace.Sampler
}

func newTickSampler(cfg TracingConfig) sdktrace.Sampler {
	return sdktrace.ParentBased(tickSampler{
		ticks: sdktrace.TraceIDRatioBased(cfg.TickSampleRatio),
		other: sdktrace.TraceIDRatioBased(cfg.SampleRatio),
	})
}

func (s tickSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if strings.HasPrefix(p.Name, TickSpanPrefix) {
		return s.ticks.ShouldSample(p)
	}
	return s.other.ShouldSample(p)
}

func (s tickSampler) Description() string {
	return fmt.Sprintf("TickSampler{ticks:%s,other:%s}", s.ticks.Description(), s.other.Description())
}

// InitTracing installs the global tracer provider and propagators. The
// returned function flushes and stops the provider.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := exporterFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "vessel"),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	sampler := newTickSampler(cfg)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.String("sampler", sampler.Description()),
	)
	return tp.Shutdown, nil
}

func exporterFromConfig(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		return stdouttrace.New(
			stdouttrace.WithWriter(os.Stdout),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}

// ShutdownWithTimeout flushes spans within five seconds. Errors are logged.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.String("error", err.Error()))
	}
}
