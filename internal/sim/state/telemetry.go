package state

import (
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/vessel-systems/core"
	"github.com/signalsfoundry/vessel-systems/model"
)

// VesselTelemetry is the last distribution update seen for a root vessel.
type VesselTelemetry struct {
	VesselID int64 `json:"vessel_id"`

	// Tick is the manager's own update count.
	Tick uint64 `json:"tick"`

	// ObservedAt is the wall time the update was recorded.
	ObservedAt time.Time `json:"observed_at"`

	Duration            time.Duration `json:"duration_ns"`
	ComponentsOnline    int           `json:"components_online"`
	CompoundRooms       int           `json:"compound_rooms"`
	ReservationFailures int           `json:"reservation_failures"`

	UnusedCapacity map[model.ResourceType]float64 `json:"unused_capacity,omitempty"`
	UnusedQuantity map[model.ResourceType]float64 `json:"unused_quantity,omitempty"`
}

// TelemetryState keeps the latest VesselTelemetry per vessel. It implements
// core.TickRecorder and is safe for concurrent use.
type TelemetryState struct {
	mu       sync.RWMutex
	byVessel map[int64]*VesselTelemetry
	now      func() time.Time
}

// NewTelemetryState creates an empty store.
func NewTelemetryState() *TelemetryState {
	return &TelemetryState{
		byVessel: make(map[int64]*VesselTelemetry),
		now:      time.Now,
	}
}

// ObserveTick stores a copy of stats, replacing the previous entry.
func (t *TelemetryState) ObserveTick(stats core.TickStats) {
	entry := &VesselTelemetry{
		VesselID:            stats.VesselID,
		Tick:                stats.Tick,
		ObservedAt:          t.now(),
		Duration:            stats.Duration,
		ComponentsOnline:    stats.ComponentsOnline,
		CompoundRooms:       stats.CompoundRooms,
		ReservationFailures: stats.ReservationFailures,
		UnusedCapacity:      maps.Clone(stats.UnusedCapacity),
		UnusedQuantity:      maps.Clone(stats.UnusedQuantity),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.byVessel[stats.VesselID] = entry
}

// Get returns a copy of the vessel's latest telemetry, or nil.
func (t *TelemetryState) Get(vesselID int64) *VesselTelemetry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m, ok := t.byVessel[vesselID]
	if !ok {
		return nil
	}
	return m.clone()
}

// ListAll returns copies of every entry ordered by vessel id.
func (t *TelemetryState) ListAll() []*VesselTelemetry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*VesselTelemetry, 0, len(t.byVessel))
	for _, m := range t.byVessel {
		out = append(out, m.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VesselID < out[j].VesselID })
	return out
}

// Forget drops a vessel's entry.
func (t *TelemetryState) Forget(vesselID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byVessel, vesselID)
}

func (m *VesselTelemetry) clone() *VesselTelemetry {
	cp := *m
	cp.UnusedCapacity = maps.Clone(m.UnusedCapacity)
	cp.UnusedQuantity = maps.Clone(m.UnusedQuantity)
	return &cp
}

// TickRecorders fans one update out to several recorders. Nil entries
// are skipped.
func TickRecorders(recorders ...core.TickRecorder) core.TickRecorder {
	var out tickFanout
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type tickFanout []core.TickRecorder

func (f tickFanout) ObserveTick(stats core.TickStats) {
	for _, r := range f {
		r.ObserveTick(stats)
	}
}
