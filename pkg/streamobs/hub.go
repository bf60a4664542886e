// Package streamobs bridges engine change signals to external consumers
// over WebSocket. It is a plain observer: no core logic lives here, and a
// slow or broken client never affects the hot path.
package streamobs

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oddsync/oddsync/pkg/engine"
	"github.com/oddsync/oddsync/pkg/state"
)

// Frame is one change signal serialized to clients.
type Frame struct {
	EventID   string      `json:"event_id"`
	Sport     string      `json:"sport"`
	League    string      `json:"league"`
	Home      string      `json:"home"`
	Away      string      `json:"away"`
	Status    string      `json:"status"`
	Score     *scoreFrame `json:"score,omitempty"`
	Changed   []string    `json:"changed"`
	Source    string      `json:"source"`
	Timestamp int64       `json:"timestamp"`
}

type scoreFrame struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Hub fans change frames out to connected WebSocket clients.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]bool
	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Observer returns the engine observer that broadcasts every change signal.
func (h *Hub) Observer() engine.Observer {
	return func(ev *state.UnifiedEvent, changed []string, source string) {
		frame := Frame{
			EventID:   ev.ID,
			Sport:     ev.Sport,
			League:    ev.League,
			Home:      ev.Home.Name,
			Away:      ev.Away.Name,
			Status:    ev.Status,
			Changed:   changed,
			Source:    source,
			Timestamp: time.Now().UnixMilli(),
		}
		if ev.Stats.Score != nil {
			frame.Score = &scoreFrame{Home: ev.Stats.Score.Home, Away: ev.Stats.Score.Away}
		}
		h.broadcast(frame)
	}
}

func (h *Hub) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[STREAM] Marshal failed: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up; drop it rather than block the path.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades an HTTP request into a streaming connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[STREAM] Upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 256)}
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("[STREAM] Client connected (%d total)", total)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

// readPump discards inbound frames; the stream is one-way. It exists to
// notice closed connections.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}
