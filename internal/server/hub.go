package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harshraj32/test-app-wispr-flow/internal/metrics"
	"github.com/harshraj32/test-app-wispr-flow/internal/protocol"
	"github.com/harshraj32/test-app-wispr-flow/internal/sequencer"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Hub fans sequencer output out to every connected page. It is the sequencer's
// Deck and Notifier.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte // latest snapshot, replayed to new clients
	closed  bool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		metrics: m,
	}
}

// Publish sends a snapshot to every page and keeps it for pages that connect later
func (h *Hub) Publish(snapshot sequencer.Snapshot) {
	data, err := protocol.Encode(protocol.SnapshotEnvelope(snapshot))
	if err != nil {
		h.logger.Error("Failed to encode snapshot", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = data
	h.broadcastLocked(data)
}

// Play tells the pages to play item on their audio element
func (h *Hub) Play(item sequencer.Item) {
	h.broadcast(protocol.DeckEnvelope(protocol.ActionPlay, item.Index, item.FileName))
}

// Pause tells the pages to pause their audio element
func (h *Hub) Pause() {
	h.broadcast(protocol.DeckEnvelope(protocol.ActionPause, 0, ""))
}

// Resume continues a paused audio element from its position
func (h *Hub) Resume() {
	h.broadcast(protocol.DeckEnvelope(protocol.ActionResume, 0, ""))
}

// Stop tells the pages to stop and rewind their audio element
func (h *Hub) Stop() {
	h.broadcast(protocol.DeckEnvelope(protocol.ActionStop, 0, ""))
}

// Clients returns the number of connected pages
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every page
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.logger.Info("Websocket hub closed")
}

// ServeHTTP upgrades the request and serves the page until it disconnects
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade error", slog.String("error", err.Error()))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetWebsocketClients(count)
	h.logger.Info("Page connected",
		slog.String("remote_addr", r.RemoteAddr),
		slog.Int("clients", count),
	)

	go c.writeLoop()
	c.readLoop()

	h.unregister(c)
}

func (h *Hub) broadcast(env protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		h.logger.Error("Failed to encode message",
			slog.String("type", env.Type),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(data)
}

// broadcastLocked never blocks; a page that cannot keep up is dropped
func (h *Hub) broadcastLocked(data []byte) {
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Dropping slow page", slog.String("remote_addr", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		h.removeLocked(c)
		h.logger.Info("Page disconnected", slog.Int("clients", len(h.clients)))
	}
}

func (h *Hub) removeLocked(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.metrics.SetWebsocketClients(len(h.clients))
}

// readLoop drains control frames until the page goes away. Pages send nothing else.
func (c *client) readLoop() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
