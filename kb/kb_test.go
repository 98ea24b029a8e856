package kb

import (
	"errors"
	"sync"
	"testing"

	"github.com/signalsfoundry/vessel-systems/model"
)

func TestAddAndGetVessel(t *testing.T) {
	store := NewKnowledgeBase()
	v := &model.VesselDefinition{ID: 1, Name: "Vessel1", Class: "tug"}
	if err := store.AddVessel(v); err != nil {
		t.Fatalf("AddVessel error: %v", err)
	}
	got := store.GetVessel(1)
	if got == nil || got.Name != "Vessel1" {
		t.Fatalf("GetVessel returned %#v, want name Vessel1", got)
	}

	// Callers get copies.
	got.Name = "changed"
	v.Name = "changed too"
	if again := store.GetVessel(1); again.Name != "Vessel1" {
		t.Fatalf("stored vessel mutated: %q", again.Name)
	}
	if store.GetVessel(2) != nil {
		t.Fatalf("GetVessel(2) should be nil")
	}
}

func TestAddVesselDuplicate(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddVessel(&model.VesselDefinition{ID: 1}); err != nil {
		t.Fatalf("first AddVessel error: %v", err)
	}
	if err := store.AddVessel(&model.VesselDefinition{ID: 1}); !errors.Is(err, ErrVesselExists) {
		t.Fatalf("duplicate AddVessel err = %v, want ErrVesselExists", err)
	}
}

func TestListAndRemoveVessels(t *testing.T) {
	store := NewKnowledgeBase()
	for _, id := range []int64{3, 1, 2} {
		if err := store.AddVessel(&model.VesselDefinition{ID: id}); err != nil {
			t.Fatalf("AddVessel error: %v", err)
		}
	}
	list := store.ListVessels()
	if len(list) != 3 || list[0].ID != 1 || list[2].ID != 3 {
		t.Fatalf("ListVessels = %v", list)
	}
	if err := store.RemoveVessel(2); err != nil {
		t.Fatalf("RemoveVessel error: %v", err)
	}
	if err := store.RemoveVessel(2); !errors.Is(err, ErrVesselNotFound) {
		t.Fatalf("second RemoveVessel err = %v", err)
	}
	if got := len(store.ListVessels()); got != 2 {
		t.Fatalf("ListVessels len=%d, want 2", got)
	}
}

func TestUpdateVesselMotionAndSubscribe(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddVessel(&model.VesselDefinition{ID: 1}); err != nil {
		t.Fatalf("AddVessel error: %v", err)
	}

	var got []Event
	unsubscribe := store.Subscribe(func(e Event) { got = append(got, e) })

	pos := model.Motion{X: 1, Y: 2, Z: 3}
	if err := store.UpdateVesselMotion(1, pos, 0.5); err != nil {
		t.Fatalf("UpdateVesselMotion error: %v", err)
	}
	if len(got) != 1 || got[0].Type != EventVesselMoved {
		t.Fatalf("events = %v, want one moved event", got)
	}
	if got[0].Vessel.Coordinates != pos || got[0].Vessel.SunExposure != 0.5 {
		t.Fatalf("event vessel = %#v", got[0].Vessel)
	}
	if err := store.UpdateVesselMotion(9, pos, 1); !errors.Is(err, ErrVesselNotFound) {
		t.Fatalf("unknown vessel err = %v", err)
	}

	unsubscribe()
	unsubscribe()
	_ = store.UpdateVesselMotion(1, pos, 1)
	if len(got) != 1 {
		t.Fatalf("unsubscribed callback still called")
	}
}

func TestSetDockingTracksChildren(t *testing.T) {
	store := NewKnowledgeBase()
	for _, id := range []int64{1, 2, 3} {
		_ = store.AddVessel(&model.VesselDefinition{ID: id})
	}
	var types []EventType
	store.Subscribe(func(e Event) { types = append(types, e.Type) })

	link := &model.DockingLink{ParentID: 1, ParentPort: 1, ChildPort: 1}
	if err := store.SetDocking(3, link); err != nil {
		t.Fatalf("SetDocking error: %v", err)
	}
	_ = store.SetDocking(2, &model.DockingLink{ParentID: 1, ParentPort: 2, ChildPort: 1})
	if kids := store.DockedChildren(1); len(kids) != 2 || kids[0] != 2 || kids[1] != 3 {
		t.Fatalf("DockedChildren = %v", kids)
	}

	link.ParentID = 99
	if got := store.GetVessel(3).DockedTo; got.ParentID != 1 {
		t.Fatalf("stored link aliases caller: %#v", got)
	}

	_ = store.SetDocking(3, nil)
	if kids := store.DockedChildren(1); len(kids) != 1 {
		t.Fatalf("DockedChildren after undock = %v", kids)
	}
	want := []EventType{EventVesselDocked, EventVesselDocked, EventVesselUndocked}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.AddVessel(&model.VesselDefinition{ID: 1}); err != nil {
		t.Fatalf("AddVessel error: %v", err)
	}

	var wg sync.WaitGroup
	// Concurrent readers/writers
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.GetVessel(1)
			_ = store.ListVessels()
		}()
		go func() {
			defer wg.Done()
			_ = store.UpdateVesselMotion(1, model.Motion{X: float64(i)}, 1)
		}()
	}
	wg.Wait()
}
