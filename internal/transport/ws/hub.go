// Package ws streams per-tick vessel detail updates to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/model"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type     string               `json:"type"`
	Tick     uint64               `json:"tick"`
	VesselID int64                `json:"vessel_id"`
	Details  *model.VesselDetails `json:"details,omitempty"`
}

type client struct {
	id       uint64
	conn     *websocket.Conn
	send     chan []byte
	vesselID int64 // 0 receives every vessel
}

type outbound struct {
	vesselID int64
	frame    []byte
}

// Hub fans details out to connected clients. Run must be running for
// Handler and Publish to make progress.
type Hub struct {
	log      logging.Logger
	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	broadcast  chan []outbound
	stopped    chan struct{}

	nextID  atomic.Uint64
	clients atomic.Int64
	dropped atomic.Uint64
}

// NewHub builds an idle hub.
func NewHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []outbound, 4),
		stopped:    make(chan struct{}),
	}
}

// Clients is the number of registered connections.
func (h *Hub) Clients() int { return int(h.clients.Load()) }

// Dropped counts frames discarded for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Run owns the client set until ctx is done, then closes every client.
// A hub runs at most once.
func (h *Hub) Run(ctx context.Context) {
	clients := make(map[*client]struct{})
	defer func() {
		for c := range clients {
			close(c.send)
		}
		h.clients.Store(0)
		close(h.stopped)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			clients[c] = struct{}{}
			h.clients.Store(int64(len(clients)))
		case c := <-h.unregister:
			if _, ok := clients[c]; ok {
				delete(clients, c)
				close(c.send)
				h.clients.Store(int64(len(clients)))
			}
		case batch := <-h.broadcast:
			for c := range clients {
				for _, out := range batch {
					if c.vesselID != 0 && c.vesselID != out.vesselID {
						continue
					}
					select {
					case c.send <- out.frame:
					default:
						h.dropped.Add(1)
					}
				}
			}
		}
	}
}

// Publish queues one frame per vessel. It never blocks the caller: when
// the hub is backed up the whole batch is dropped and counted.
func (h *Hub) Publish(ctx context.Context, tick uint64, details map[int64]model.VesselDetails) {
	if len(details) == 0 {
		return
	}
	batch := make([]outbound, 0, len(details))
	for id, d := range details {
		frame, err := json.Marshal(Message{Type: "details", Tick: tick, VesselID: id, Details: &d})
		if err != nil {
			h.log.Warn(ctx, "details frame encode failed", logging.Int64("vessel_id", id), logging.String("error", err.Error()))
			continue
		}
		batch = append(batch, outbound{vesselID: id, frame: frame})
	}
	select {
	case h.broadcast <- batch:
	default:
		h.dropped.Add(uint64(len(batch)))
	}
}

// Handler upgrades GET requests. The optional vessel query parameter
// restricts the stream to one vessel.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var vesselID int64
		if v := r.URL.Query().Get("vessel"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				http.Error(w, "invalid vessel id", http.StatusBadRequest)
				return
			}
			vesselID = id
		}
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug(r.Context(), "websocket upgrade failed", logging.String("error", err.Error()))
			return
		}
		c := &client{
			id:       h.nextID.Add(1),
			conn:     conn,
			send:     make(chan []byte, sendBuffer),
			vesselID: vesselID,
		}
		select {
		case h.register <- c:
		case <-h.stopped:
			conn.Close()
			return
		}
		h.log.Info(r.Context(), "websocket client connected",
			logging.Uint64("client", c.id),
			logging.Int64("vessel_id", vesselID),
		)
		go h.writePump(c)
		h.readPump(r.Context(), c)
	}
}

// readPump discards inbound frames and keeps the read deadline fresh.
func (h *Hub) readPump(ctx context.Context, c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stopped:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug(ctx, "websocket read failed", logging.Uint64("client", c.id), logging.String("error", err.Error()))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
