package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/vessel-systems/core"
	"github.com/signalsfoundry/vessel-systems/model"
)

func TestUnaryInterceptorRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewNBICollector(reg)
	if err != nil {
		t.Fatalf("NewNBICollector: %v", err)
	}

	interceptor := collector.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/vessel.v1.DetailsService/GetDetails"}
	_, err = interceptor(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		time.Sleep(time.Millisecond)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("interceptor handler returned error: %v", err)
	}

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("DetailsService", "GetDetails", "OK")); got != 1 {
		t.Fatalf("nbi_requests_total = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "nbi_request_duration_seconds", map[string]string{
		"service": "DetailsService",
		"method":  "GetDetails",
	}); count != 1 {
		t.Fatalf("nbi_request_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestUnaryInterceptorRecordsErrorCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewNBICollector(reg)
	if err != nil {
		t.Fatalf("NewNBICollector: %v", err)
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/vessel.v1.CommandService/SetDoorOpen"}
	_, _ = collector.UnaryServerInterceptor()(context.Background(), struct{}{}, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.FailedPrecondition, "door is locked")
	})

	if got := testutil.ToFloat64(collector.RPCRequests.WithLabelValues("CommandService", "SetDoorOpen", "FailedPrecondition")); got != 1 {
		t.Fatalf("nbi_requests_total error label = %v, want 1", got)
	}
}

func TestNewNBICollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewNBICollector(reg)
	if err != nil {
		t.Fatalf("first NewNBICollector: %v", err)
	}
	second, err := NewNBICollector(reg)
	if err != nil {
		t.Fatalf("second NewNBICollector: %v", err)
	}
	first.RPCRequests.WithLabelValues("s", "m", "OK").Inc()
	if got := testutil.ToFloat64(second.RPCRequests.WithLabelValues("s", "m", "OK")); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
}

func TestMetricsHandlerExposesScenarioGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewNBICollector(reg)
	if err != nil {
		t.Fatalf("NewNBICollector: %v", err)
	}
	collector.SetScenarioCounts(7, 2, 3)

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, line := range []string{
		"scenario_vessels 7",
		"scenario_docked_vessels 2",
		"scenario_structure_classes 3",
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("expected %q in /metrics output:\n%s", line, body)
		}
	}
}

func TestSplitMethod(t *testing.T) {
	cases := map[string][2]string{
		"/vessel.v1.DetailsService/GetDetails": {"DetailsService", "GetDetails"},
		"Svc/Method":                           {"Svc", "Method"},
		"":                                     {"unknown", "unknown"},
		"/broken":                              {"unknown", "unknown"},
	}
	for in, want := range cases {
		svc, method := SplitMethod(in)
		if svc != want[0] || method != want[1] {
			t.Fatalf("SplitMethod(%q) = (%q, %q), want (%q, %q)", in, svc, method, want[0], want[1])
		}
	}
}

func TestSystemsCollectorObservesTicks(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSystemsCollector(reg)
	if err != nil {
		t.Fatalf("NewSystemsCollector: %v", err)
	}

	stats := core.TickStats{
		VesselID:            42,
		Tick:                1,
		Duration:            200 * time.Microsecond,
		ComponentsOnline:    3,
		CompoundRooms:       2,
		ReservationFailures: 1,
		UnusedCapacity:      map[model.ResourceType]float64{model.ResourcePower: 6.5},
		UnusedQuantity:      map[model.ResourceType]float64{model.ResourceAir: 40},
	}
	collector.ObserveTick(stats)
	stats.Tick = 2
	stats.ReservationFailures = 2
	collector.ObserveTick(stats)

	if got := testutil.ToFloat64(collector.Ticks.WithLabelValues("42")); got != 2 {
		t.Fatalf("vessel_ticks_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.ReservationFailures.WithLabelValues("42")); got != 3 {
		t.Fatalf("vessel_reservation_failures_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.ComponentsOnline.WithLabelValues("42")); got != 3 {
		t.Fatalf("vessel_components_online = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.CompoundRooms.WithLabelValues("42")); got != 2 {
		t.Fatalf("vessel_compound_rooms = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.UnusedCapacity.WithLabelValues("42", "power")); got != 6.5 {
		t.Fatalf("vessel_unused_capacity{power} = %v, want 6.5", got)
	}
	if got := testutil.ToFloat64(collector.UnusedQuantity.WithLabelValues("42", "air")); got != 40 {
		t.Fatalf("vessel_unused_quantity{air} = %v, want 40", got)
	}
	if got := testutil.ToFloat64(collector.UnusedCapacity.WithLabelValues("42", "nitro")); got != 0 {
		t.Fatalf("vessel_unused_capacity{nitro} = %v, want 0", got)
	}
	if count := histogramSampleCount(t, collector.Gatherer(), "vessel_tick_duration_seconds", map[string]string{"vessel": "42"}); count != 2 {
		t.Fatalf("vessel_tick_duration_seconds sample_count = %d, want 2", count)
	}

	collector.ForgetVessel(42)
	if n := testutil.CollectAndCount(collector.ComponentsOnline); n != 0 {
		t.Fatalf("components online series after ForgetVessel = %d, want 0", n)
	}
}

func TestSystemsCollectorRecordsEngineTicks(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSystemsCollector(reg)
	if err != nil {
		t.Fatalf("NewSystemsCollector: %v", err)
	}

	catalog := core.NewStructureCatalog()
	if err := catalog.Add(&model.VesselStructure{
		Class: "lamp",
		Rooms: []model.RoomData{{InSceneID: 1, Volume: 10, AirPressure: 1, AirQuality: 1}},
		Generators: []model.GeneratorData{{
			ComponentData: model.ComponentData{InSceneID: 2, StartOnline: true},
			Type:          model.GeneratorSolar,
			NominalOutput: 10,
		}},
	}); err != nil {
		t.Fatalf("catalog.Add: %v", err)
	}
	engine := core.NewSimulationEngine(catalog, core.WithTickRecorder(collector))
	if _, err := engine.Spawn(&model.VesselDefinition{ID: 5, Class: "lamp", SunExposure: 1}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	engine.Run(context.Background(), 4, 1)

	if got := testutil.ToFloat64(collector.Ticks.WithLabelValues("5")); got != 4 {
		t.Fatalf("vessel_ticks_total = %v, want 4", got)
	}
	if got := testutil.ToFloat64(collector.CompoundRooms.WithLabelValues("5")); got != 1 {
		t.Fatalf("vessel_compound_rooms = %v, want 1", got)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
