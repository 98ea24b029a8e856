package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/model"
)

const runnerScenario = `
structures:
  - class: station
    rooms:
      - {id: 1, volume: 20, air_pressure: 1, air_quality: 1}
    doors:
      - {id: 2, room1: 1, is_sealable: true, is_external: true, passage_area: 1, docking_port: 1}
    generators:
      - id: 3
        type: power
        nominal_output: 10
        start_online: true
    docking_ports:
      - {id: 1}
  - class: shuttle
    rooms:
      - {id: 1, volume: 4, air_pressure: 1, air_quality: 1}
    doors:
      - {id: 2, room1: 1, is_sealable: true, is_external: true, passage_area: 1, docking_port: 1}
    subsystems:
      - id: 3
        type: lights
        start_online: true
        auto_restart: true
        requirements:
          - {resource: power, nominal: 4}
    docking_ports:
      - {id: 1}
vessels:
  - {id: 1, name: Anchor, class: station}
  - {id: 2, name: Skiff, class: shuttle}
`

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(runnerScenario), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestRunDockedSummaryJSON(t *testing.T) {
	opts := options{
		scenario: writeScenario(t),
		duration: 3 * time.Second,
		tick:     time.Second,
		docks:    []dockSpec{{parentID: 1, parentPort: 1, childID: 2, childPort: 1}},
		json:     true,
	}
	var out bytes.Buffer
	if err := run(context.Background(), opts, logging.Noop(), &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	var summary Summary
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out.String())
	}
	if summary.Ticks != 3 {
		t.Fatalf("Ticks = %d, want 3", summary.Ticks)
	}
	// Docked, only the station's manager runs; it covers both vessels.
	if len(summary.Vessels) != 1 || summary.Vessels[0].VesselID != 1 {
		t.Fatalf("telemetry = %+v, want the station only", summary.Vessels)
	}
	if got := summary.Vessels[0].UnusedCapacity[model.ResourcePower]; got < 5.99 || got > 6.01 {
		t.Fatalf("unused power = %v, want 6", got)
	}
	if len(summary.Rooms[2]) != 1 {
		t.Fatalf("rooms = %+v, want the shuttle's room", summary.Rooms)
	}
}

func TestRunTextSummary(t *testing.T) {
	opts := options{scenario: writeScenario(t), duration: 2 * time.Second, tick: time.Second}
	var out bytes.Buffer
	if err := run(context.Background(), opts, logging.Noop(), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{"Starting simulation: vessels=2", "Simulation complete: 2 ticks", "vessel 1", "vessel 2", "room 2:1"} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary missing %q:\n%s", want, text)
		}
	}
}

func TestRunUnknownScenario(t *testing.T) {
	opts := options{scenario: filepath.Join(t.TempDir(), "missing.yaml"), duration: time.Second, tick: time.Second}
	if err := run(context.Background(), opts, logging.Noop(), &bytes.Buffer{}); err == nil {
		t.Fatalf("run with a missing scenario succeeded")
	}
}

func TestParseDock(t *testing.T) {
	d, err := parseDock("1:2:3:4")
	if err != nil {
		t.Fatalf("parseDock: %v", err)
	}
	if d != (dockSpec{parentID: 1, parentPort: 2, childID: 3, childPort: 4}) {
		t.Fatalf("parseDock = %+v", d)
	}
	for _, bad := range []string{"", "1:2:3", "a:1:2:3"} {
		if _, err := parseDock(bad); err == nil {
			t.Fatalf("parseDock(%q) succeeded", bad)
		}
	}
}
