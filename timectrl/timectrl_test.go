package timectrl

import (
	"context"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerAcceleratedDeliversEveryTick(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Second, Accelerated)

	var times []time.Time
	var total time.Duration
	tc.AddListener(func(simTime time.Time, dt time.Duration) {
		times = append(times, simTime)
		total += dt
	})

	<-tc.Start(context.Background(), 15*time.Second)

	expected := start.Add(15 * time.Second)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if len(times) != 3 || tc.Ticks() != 3 {
		t.Fatalf("listener saw %d ticks, controller counted %d, want 3", len(times), tc.Ticks())
	}
	if !times[0].Equal(start.Add(5*time.Second)) || total != 15*time.Second {
		t.Fatalf("first tick %v, total dt %v", times[0], total)
	}
}

func TestTimeControllerRealTimeStopsOnCancel(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, RealTime)

	ctx, cancel := context.WithCancel(context.Background())
	done := tc.Start(ctx, 0)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("controller did not stop after cancel")
	}
	if tc.Ticks() == 0 {
		t.Fatalf("no ticks delivered before cancel")
	}
}
