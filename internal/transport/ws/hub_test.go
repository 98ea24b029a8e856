package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/model"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(logging.Noop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s): %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Clients() = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return msg
}

func details(pressure float64) model.VesselDetails {
	return model.VesselDetails{Rooms: []model.RoomDetails{{
		ID:          model.NewVesselObjectID(1, 1),
		AirPressure: pressure,
	}}}
}

func TestHubBroadcastsDetails(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	waitClients(t, hub, 1)

	hub.Publish(context.Background(), 7, map[int64]model.VesselDetails{1: details(0.8)})

	msg := readMessage(t, conn)
	if msg.Type != "details" || msg.Tick != 7 || msg.VesselID != 1 {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Details == nil || len(msg.Details.Rooms) != 1 || msg.Details.Rooms[0].AirPressure != 0.8 {
		t.Fatalf("details = %+v", msg.Details)
	}
}

func TestHubFiltersByVessel(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "?vessel=2")
	waitClients(t, hub, 1)

	hub.Publish(context.Background(), 1, map[int64]model.VesselDetails{1: details(1)})
	hub.Publish(context.Background(), 2, map[int64]model.VesselDetails{2: details(0.5)})

	msg := readMessage(t, conn)
	if msg.VesselID != 2 || msg.Tick != 2 {
		t.Fatalf("message = %+v, want vessel 2 tick 2", msg)
	}
}

func TestHubRejectsBadVesselParameter(t *testing.T) {
	_, srv := startHub(t)
	resp, err := http.Get(srv.URL + "/?vessel=abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	waitClients(t, hub, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitClients(t, hub, 0)

	// Publishing with no clients is a no-op.
	hub.Publish(context.Background(), 1, map[int64]model.VesselDetails{1: details(1)})
	hub.Publish(context.Background(), 1, nil)
}
