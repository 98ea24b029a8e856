package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/signalsfoundry/vessel-systems/core"
	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/internal/nbi"
	"github.com/signalsfoundry/vessel-systems/internal/observability"
	"github.com/signalsfoundry/vessel-systems/internal/persistence"
	simruntime "github.com/signalsfoundry/vessel-systems/internal/sim/runtime"
	sim "github.com/signalsfoundry/vessel-systems/internal/sim/state"
	"github.com/signalsfoundry/vessel-systems/internal/transport/ws"
	"github.com/signalsfoundry/vessel-systems/kb"
	"github.com/signalsfoundry/vessel-systems/timectrl"
)

// Config holds the process wiring.
type Config struct {
	ListenAddress string
	HTTPAddress   string // /metrics and /ws; empty disables both
	ScenarioPath  string
	TuningPath    string
	SnapshotDir   string // empty disables persistence
	SnapshotEvery uint64
	RestoreLatest bool
	TickInterval  time.Duration
	Accelerated   bool
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.ListenAddress, "grpc-addr", ":50051", "TCP address the vessel gRPC API listens on")
	flag.StringVar(&cfg.HTTPAddress, "http-addr", ":9090", "HTTP address for /metrics and the /ws details stream")
	flag.StringVar(&cfg.ScenarioPath, "scenario", "configs/scenario.yaml", "Structure and vessel definitions (YAML or JSON)")
	flag.StringVar(&cfg.TuningPath, "tuning", "", "Optional tuning YAML")
	flag.StringVar(&cfg.SnapshotDir, "snapshot-dir", "", "Directory for snapshot files and index; empty disables persistence")
	flag.Uint64Var(&cfg.SnapshotEvery, "snapshot-every", 600, "Save a snapshot every N ticks (0 only on shutdown)")
	flag.BoolVar(&cfg.RestoreLatest, "restore", false, "Restore the latest snapshot at startup")
	flag.DurationVar(&cfg.TickInterval, "tick", time.Second, "Simulated duration of one tick")
	flag.BoolVar(&cfg.Accelerated, "accelerated", false, "Tick as fast as possible instead of in real time")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.String("error", err.Error()))
		os.Exit(1)
	}
	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "vessel server failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
}

// run serves until ctx is done. lis is owned by the gRPC server.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	if log == nil {
		log = logging.Noop()
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewNBICollector(nil)
	if err != nil {
		return fmt.Errorf("nbi metrics: %w", err)
	}
	systems, err := observability.NewSystemsCollector(nil)
	if err != nil {
		return fmt.Errorf("systems metrics: %w", err)
	}

	state, err := buildState(ctx, cfg, log, collector, systems)
	if err != nil {
		return err
	}

	var store *persistence.Store
	if cfg.SnapshotDir != "" {
		store, err = persistence.Open(cfg.SnapshotDir, log)
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer store.Close()
		if cfg.RestoreLatest {
			restoreLatest(ctx, state, store, log)
		}
	}

	hub := ws.NewHub(log)
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	start := time.Now().UTC()
	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	clock := timectrl.NewTimeController(start, cfg.TickInterval, mode)
	opts := []simruntime.Option{simruntime.WithPublisher(hub)}
	if store != nil {
		opts = append(opts, simruntime.WithSnapshots(store, cfg.SnapshotEvery))
	}
	rt, err := simruntime.NewVesselRuntime(state, clock, log, opts...)
	if err != nil {
		return err
	}

	var svcStore nbi.SnapshotStore
	if store != nil {
		svcStore = store
	}
	server := grpc.NewServer(nbi.ServerOptions(log, collector)...)
	nbi.RegisterVesselServiceServer(server, nbi.NewVesselService(state, svcStore, log))

	httpSrv := serveHTTP(cfg.HTTPAddress, collector, hub, log)

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting vessel gRPC server", logging.String("addr", lis.Addr().String()))
		serveErr <- server.Serve(lis)
	}()

	if err := rt.Start(ctx, 0); err != nil {
		server.Stop()
		return err
	}

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			err = fmt.Errorf("grpc serve: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down vessel server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = rt.Close(shutdownCtx)
	server.GracefulStop()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return err
}

func buildState(ctx context.Context, cfg Config, log logging.Logger, collector *observability.NBICollector, systems *observability.SystemsCollector) (*sim.ScenarioState, error) {
	tuning := core.DefaultTuning()
	if cfg.TuningPath != "" {
		t, err := core.LoadTuningFile(cfg.TuningPath)
		if err != nil {
			return nil, fmt.Errorf("load tuning: %w", err)
		}
		tuning = t
	}

	telemetry := sim.NewTelemetryState()
	engine := core.NewSimulationEngine(core.NewStructureCatalog(),
		core.WithTuning(tuning),
		core.WithLogger(log),
		core.WithTickRecorder(sim.TickRecorders(telemetry, systems)),
	)
	state := sim.NewScenarioState(kb.NewKnowledgeBase(), engine, log,
		sim.WithMetricsRecorder(collector),
		sim.WithTelemetry(telemetry),
		sim.WithVesselForgetter(systems.ForgetVessel),
	)
	if cfg.ScenarioPath == "" {
		return state, nil
	}
	sc, err := core.LoadScenarioFile(engine.Catalog, cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	if err := state.LoadScenario(sc); err != nil {
		return nil, fmt.Errorf("spawn scenario: %w", err)
	}
	log.Info(ctx, "scenario loaded",
		logging.String("path", cfg.ScenarioPath),
		logging.Int("structures", len(sc.Structures)),
		logging.Int("vessels", len(sc.Vessels)),
	)
	return state, nil
}

func restoreLatest(ctx context.Context, state *sim.ScenarioState, store *persistence.Store, log logging.Logger) {
	rec, snaps, err := store.Latest(ctx)
	if errors.Is(err, persistence.ErrSnapshotNotFound) {
		log.Info(ctx, "no snapshot to restore")
		return
	}
	if err != nil {
		log.Warn(ctx, "snapshot restore skipped", logging.String("error", err.Error()))
		return
	}
	applied := state.Restore(ctx, snaps...)
	log.Info(ctx, "restored latest snapshot",
		logging.String("snapshot_id", rec.ID),
		logging.Uint64("tick", rec.Tick),
		logging.Int("applied", applied),
	)
}

func serveHTTP(addr string, collector *observability.NBICollector, hub *ws.Hub, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	mux.Handle("/ws", hub.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "http server exited", logging.String("error", err.Error()))
		}
	}()
	log.Info(context.Background(), "serving metrics and details stream", logging.String("addr", addr))
	return srv
}
