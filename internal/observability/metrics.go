package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// NBICollector holds the Prometheus metrics of the gRPC surface and the
// scenario-wide gauges.
type NBICollector struct {
	gatherer prometheus.Gatherer

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec

	ScenarioVessels       prometheus.Gauge
	ScenarioDockedVessels prometheus.Gauge
	ScenarioClasses       prometheus.Gauge
}

// NewNBICollector registers the NBI metrics on reg, or on the default
// registry when reg is nil.
func NewNBICollector(reg prometheus.Registerer) (*NBICollector, error) {
	reg, gatherer := resolveRegistry(reg)

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nbi_requests_total",
		Help: "Handled NBI RPCs by service, method and gRPC status code.",
	}, []string{"service", "method", "code"}), "nbi_requests_total")
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nbi_request_duration_seconds",
		Help:    "NBI RPC latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	}, []string{"service", "method"}), "nbi_request_duration_seconds")
	if err != nil {
		return nil, err
	}
	vessels, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_vessels",
		Help: "Vessels currently spawned.",
	}), "scenario_vessels")
	if err != nil {
		return nil, err
	}
	docked, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_docked_vessels",
		Help: "Vessels currently docked under another vessel.",
	}), "scenario_docked_vessels")
	if err != nil {
		return nil, err
	}
	classes, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_structure_classes",
		Help: "Structure classes in the catalog.",
	}), "scenario_structure_classes")
	if err != nil {
		return nil, err
	}

	return &NBICollector{
		gatherer:              gatherer,
		RPCRequests:           requests,
		RPCDurations:          durations,
		ScenarioVessels:       vessels,
		ScenarioDockedVessels: docked,
		ScenarioClasses:       classes,
	}, nil
}

// UnaryServerInterceptor counts and times unary RPCs.
func (c *NBICollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		if c.RPCRequests != nil {
			c.RPCRequests.WithLabelValues(service, method, status.Code(err).String()).Inc()
		}
		if c.RPCDurations != nil {
			c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
		}
		return resp, err
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *NBICollector) Handler() http.Handler {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetScenarioCounts lets ScenarioState drive the scenario gauges from its
// mutators.
func (c *NBICollector) SetScenarioCounts(vessels, docked, classes int) {
	if c == nil {
		return
	}
	setGauge(c.ScenarioVessels, vessels)
	setGauge(c.ScenarioDockedVessels, docked)
	setGauge(c.ScenarioClasses, classes)
}

func setGauge(g prometheus.Gauge, v int) {
	if g != nil {
		g.Set(float64(v))
	}
}

// SplitMethod turns "/pkg.Service/Method" into ("Service", "Method"),
// falling back to "unknown" for anything it cannot parse.
func SplitMethod(fullMethod string) (string, string) {
	parts := strings.Split(strings.TrimPrefix(fullMethod, "/"), "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service, method := parts[len(parts)-2], parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func resolveRegistry(reg prometheus.Registerer) (prometheus.Registerer, prometheus.Gatherer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	return reg, gatherer
}

// register adds c to reg. When an equal collector is already registered
// the existing one is returned, so collectors can be rebuilt against a
// shared registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var zero T
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return zero, err
		}
		existing, ok := are.ExistingCollector.(T)
		if !ok {
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return existing, nil
	}
	return c, nil
}
