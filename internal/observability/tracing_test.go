package observability

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("VESSEL_TRACING_ENABLED", "TRUE")
	t.Setenv("VESSEL_TRACING_EXPORTER", "OTLP")
	t.Setenv("VESSEL_TRACING_SAMPLE_RATIO", "0.5")
	t.Setenv("VESSEL_TRACING_TICK_SAMPLE_RATIO", "7")
	t.Setenv("VESSEL_TRACING_SERVICE_NAME", "")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.ServiceName != "vessel-systems" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SampleRatio != 0.5 {
		t.Fatalf("SampleRatio = %v, want 0.5", cfg.SampleRatio)
	}
	if cfg.TickSampleRatio != 0.01 {
		t.Fatalf("TickSampleRatio = %v, want default for out-of-range input", cfg.TickSampleRatio)
	}
}

func TestTickSamplerRoutesByName(t *testing.T) {
	sampler := newTickSampler(TracingConfig{SampleRatio: 1, TickSampleRatio: 0})
	traceID := trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	cases := map[string]sdktrace.SamplingDecision{
		"DistributionManager.UpdateSystems":            sdktrace.Drop,
		"VesselAPI/vessel.v1.VesselService/GetDetails": sdktrace.RecordAndSample,
	}
	for name, want := range cases {
		got := sampler.ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			TraceID:       traceID,
			Name:          name,
		})
		if got.Decision != want {
			t.Fatalf("%s: decision = %v, want %v", name, got.Decision, want)
		}
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	ShutdownWithTimeout(context.Background(), nil, nil)
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil)
	if err == nil {
		t.Fatalf("unknown exporter accepted")
	}
}
