package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/vessel-systems/core"
	"github.com/signalsfoundry/vessel-systems/model"
)

// SystemsCollector exposes per-vessel distribution metrics. It implements
// core.TickRecorder and is passed to vessels with core.WithTickRecorder.
type SystemsCollector struct {
	gatherer prometheus.Gatherer

	TickDuration        *prometheus.HistogramVec
	Ticks               *prometheus.CounterVec
	ComponentsOnline    *prometheus.GaugeVec
	CompoundRooms       *prometheus.GaugeVec
	ReservationFailures *prometheus.CounterVec
	UnusedCapacity      *prometheus.GaugeVec
	UnusedQuantity      *prometheus.GaugeVec
}

// NewSystemsCollector registers the distribution metrics on reg, or on
// the default registry when reg is nil.
func NewSystemsCollector(reg prometheus.Registerer) (*SystemsCollector, error) {
	reg, gatherer := resolveRegistry(reg)

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vessel_tick_duration_seconds",
		Help:    "Wall time of one distribution update of a root vessel.",
		Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
	}, []string{"vessel"}), "vessel_tick_duration_seconds")
	if err != nil {
		return nil, err
	}
	ticks, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vessel_ticks_total",
		Help: "Distribution updates run per root vessel.",
	}, []string{"vessel"}), "vessel_ticks_total")
	if err != nil {
		return nil, err
	}
	online, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vessel_components_online",
		Help: "Generators and subsystems currently online in the docking tree.",
	}, []string{"vessel"}), "vessel_components_online")
	if err != nil {
		return nil, err
	}
	compounds, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vessel_compound_rooms",
		Help: "Compound rooms in the docking tree.",
	}, []string{"vessel"}), "vessel_compound_rooms")
	if err != nil {
		return nil, err
	}
	failures, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vessel_reservation_failures_total",
		Help: "Resource checks that could not be satisfied.",
	}, []string{"vessel"}), "vessel_reservation_failures_total")
	if err != nil {
		return nil, err
	}
	capacity, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vessel_unused_capacity",
		Help: "Provider rate left unreserved after the last update, per resource.",
	}, []string{"vessel", "resource"}), "vessel_unused_capacity")
	if err != nil {
		return nil, err
	}
	quantity, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vessel_unused_quantity",
		Help: "Stored quantity left unreserved after the last update, per resource.",
	}, []string{"vessel", "resource"}), "vessel_unused_quantity")
	if err != nil {
		return nil, err
	}

	return &SystemsCollector{
		gatherer:            gatherer,
		TickDuration:        duration,
		Ticks:               ticks,
		ComponentsOnline:    online,
		CompoundRooms:       compounds,
		ReservationFailures: failures,
		UnusedCapacity:      capacity,
		UnusedQuantity:      quantity,
	}, nil
}

// Gatherer returns the gatherer the collector registered with.
func (c *SystemsCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records one update.
func (c *SystemsCollector) ObserveTick(stats core.TickStats) {
	if c == nil {
		return
	}
	vessel := strconv.FormatInt(stats.VesselID, 10)
	c.TickDuration.WithLabelValues(vessel).Observe(stats.Duration.Seconds())
	c.Ticks.WithLabelValues(vessel).Inc()
	c.ComponentsOnline.WithLabelValues(vessel).Set(float64(stats.ComponentsOnline))
	c.CompoundRooms.WithLabelValues(vessel).Set(float64(stats.CompoundRooms))
	c.ReservationFailures.WithLabelValues(vessel).Add(float64(stats.ReservationFailures))

	for _, r := range model.ResourceTypes() {
		c.UnusedCapacity.WithLabelValues(vessel, r.String()).Set(stats.UnusedCapacity[r])
		c.UnusedQuantity.WithLabelValues(vessel, r.String()).Set(stats.UnusedQuantity[r])
	}
}

// ForgetVessel drops every series of a removed vessel.
func (c *SystemsCollector) ForgetVessel(id int64) {
	if c == nil {
		return
	}
	vessel := strconv.FormatInt(id, 10)
	match := prometheus.Labels{"vessel": vessel}
	c.TickDuration.DeletePartialMatch(match)
	c.Ticks.DeletePartialMatch(match)
	c.ComponentsOnline.DeletePartialMatch(match)
	c.CompoundRooms.DeletePartialMatch(match)
	c.ReservationFailures.DeletePartialMatch(match)
	c.UnusedCapacity.DeletePartialMatch(match)
	c.UnusedQuantity.DeletePartialMatch(match)
}
