package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/vessel-systems/core"
	"github.com/signalsfoundry/vessel-systems/internal/logging"
	sim "github.com/signalsfoundry/vessel-systems/internal/sim/state"
	"github.com/signalsfoundry/vessel-systems/kb"
	"github.com/signalsfoundry/vessel-systems/model"
	"github.com/signalsfoundry/vessel-systems/timectrl"
)

type options struct {
	scenario string
	tuning   string
	duration time.Duration
	tick     time.Duration
	docks    []dockSpec
	json     bool
}

type dockSpec struct {
	parentID   int64
	parentPort int
	childID    int64
	childPort  int
}

// parseDock reads "parent:port:child:port".
func parseDock(s string) (dockSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return dockSpec{}, fmt.Errorf("dock %q: want parent:port:child:port", s)
	}
	var n [4]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return dockSpec{}, fmt.Errorf("dock %q: %w", s, err)
		}
		n[i] = v
	}
	return dockSpec{parentID: n[0], parentPort: int(n[1]), childID: n[2], childPort: int(n[3])}, nil
}

func main() {
	var opts options
	flag.StringVar(&opts.scenario, "scenario", "configs/scenario.yaml", "structure and vessel definitions")
	flag.StringVar(&opts.tuning, "tuning", "", "optional tuning YAML")
	flag.DurationVar(&opts.duration, "duration", 60*time.Second, "total simulated duration")
	flag.DurationVar(&opts.tick, "tick", time.Second, "tick interval")
	flag.BoolVar(&opts.json, "json", false, "print the summary as JSON")
	flag.Func("dock", "dock vessels before running, as parent:port:child:port (repeatable)", func(s string) error {
		d, err := parseDock(s)
		if err != nil {
			return err
		}
		opts.docks = append(opts.docks, d)
		return nil
	})
	flag.Parse()

	if err := run(context.Background(), opts, logging.NewFromEnv(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
}

// Summary is the end-of-run report.
type Summary struct {
	Ticks   uint64                        `json:"ticks"`
	SimTime time.Time                     `json:"sim_time"`
	Vessels []*sim.VesselTelemetry        `json:"vessels"`
	Rooms   map[int64][]model.RoomDetails `json:"rooms"`
}

func run(ctx context.Context, opts options, log logging.Logger, out io.Writer) error {
	tuning := core.DefaultTuning()
	if opts.tuning != "" {
		t, err := core.LoadTuningFile(opts.tuning)
		if err != nil {
			return err
		}
		tuning = t
	}

	telemetry := sim.NewTelemetryState()
	engine := core.NewSimulationEngine(core.NewStructureCatalog(),
		core.WithTuning(tuning),
		core.WithLogger(log),
		core.WithTickRecorder(telemetry),
	)
	state := sim.NewScenarioState(kb.NewKnowledgeBase(), engine, log, sim.WithTelemetry(telemetry))

	sc, err := core.LoadScenarioFile(engine.Catalog, opts.scenario)
	if err != nil {
		return err
	}
	if err := state.LoadScenario(sc); err != nil {
		return err
	}
	for _, d := range opts.docks {
		if err := state.Dock(ctx, d.parentID, d.parentPort, d.childID, d.childPort); err != nil {
			return err
		}
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tc := timectrl.NewTimeController(start, opts.tick, timectrl.Accelerated)
	tc.AddListener(func(simTime time.Time, dt time.Duration) {
		tickCtx, _ := logging.EnsureTickID(ctx)
		if _, err := state.Tick(tickCtx, simTime, dt); err != nil {
			log.Warn(tickCtx, "tick failed", logging.String("error", err.Error()))
		}
	})
	if !opts.json {
		fmt.Fprintf(out, "Starting simulation: vessels=%d duration=%s tick=%s\n",
			len(state.ListVessels()), opts.duration, opts.tick)
	}
	<-tc.Start(ctx, opts.duration)

	summary := Summary{
		Ticks:   state.TickCount(),
		SimTime: tc.Now(),
		Vessels: telemetry.ListAll(),
		Rooms:   map[int64][]model.RoomDetails{},
	}
	for _, v := range state.ListVessels() {
		d, err := state.Details(v.ID, false)
		if err != nil {
			return err
		}
		summary.Rooms[v.ID] = d.Rooms
	}
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	printSummary(out, summary)
	return nil
}

func printSummary(out io.Writer, s Summary) {
	fmt.Fprintf(out, "Simulation complete: %d ticks, sim time %s\n", s.Ticks, s.SimTime.Format(time.RFC3339))
	for _, v := range s.Vessels {
		fmt.Fprintf(out, "vessel %-4d online=%-3d compound_rooms=%-3d reservation_failures=%-3d unused_power=%.2f\n",
			v.VesselID, v.ComponentsOnline, v.CompoundRooms, v.ReservationFailures,
			v.UnusedCapacity[model.ResourcePower])
		for _, r := range s.Rooms[v.VesselID] {
			fmt.Fprintf(out, "  room %-8s pressure=%.3f quality=%.3f fire=%v breach=%v\n",
				r.ID, r.AirPressure, r.AirQuality, r.Fire, r.Breach)
		}
	}
}
