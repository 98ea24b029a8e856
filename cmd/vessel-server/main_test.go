package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/internal/nbi"
)

const smokeScenario = `
structures:
  - class: tug
    rooms:
      - {id: 1, volume: 10, air_pressure: 1, air_quality: 1}
    generators:
      - id: 2
        type: power
        nominal_output: 5
        start_online: true
vessels:
  - {id: 1, name: Tug, class: tug}
`

func TestVesselServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dir := t.TempDir()
	scenario := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(scenario, []byte(smokeScenario), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	cfg := Config{
		ListenAddress: lis.Addr().String(),
		ScenarioPath:  scenario,
		SnapshotDir:   filepath.Join(dir, "snapshots"),
		SnapshotEvery: 0,
		TickInterval:  20 * time.Millisecond,
		Accelerated:   false,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, logging.Noop(), lis)
	}()

	conn, err := grpc.NewClient(cfg.ListenAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()
	client := nbi.NewVesselServiceClient(conn)

	var list nbi.VesselsResponse
	deadline := time.Now().Add(3 * time.Second)
	for {
		err = client.Call(ctx, "ListVessels", nil, &list)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("ListVessels: %v", err)
	}
	if len(list.Vessels) != 1 || list.Vessels[0].Name != "Tug" {
		t.Fatalf("ListVessels = %+v", list.Vessels)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "snapshots", "index.sqlite")); err != nil {
		t.Fatalf("snapshot index missing after shutdown: %v", err)
	}
}
