// Package ws broadcasts live gaze samples and status transitions to
// WebSocket clients, for experimenter-side live-feedback displays.
//
// The producer path never blocks on a client: messages to a slow client
// are dropped, and a client whose connection errors is unregistered.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/pkg/logger"
	"github.com/infantlab/gazekit/pkg/metrics"
)

// Default feed configuration constants.
const (
	defaultEveryNth  = 4 // broadcast every 4th gaze sample (30 Hz at 120 Hz acquisition)
	clientSendBuffer = 64
	readBufferSize   = 512
	writeBufferSize  = 2048
)

// gazeMessage is the wire format for gaze broadcasts.
type gazeMessage struct {
	Type       string  `json:"type"`
	Timestamp  float64 `json:"timestamp"`
	LeftX      float64 `json:"left_x"`
	LeftY      float64 `json:"left_y"`
	LeftValid  bool    `json:"left_valid"`
	RightX     float64 `json:"right_x"`
	RightY     float64 `json:"right_y"`
	RightValid bool    `json:"right_valid"`
}

// statusMessage is the wire format for status broadcasts.
type statusMessage struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans broadcasts out to connected clients.
type Hub struct {
	upgrader websocket.Upgrader
	everyNth int
	counter  atomic.Uint64

	mu      sync.Mutex
	clients map[*client]struct{}

	log logger.Logger
}

// NewHub creates a feed hub with configuration options.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			// The feed is read-only telemetry on a lab network.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		everyNth: defaultEveryNth,
		clients:  make(map[*client]struct{}),
		log:      logger.Get().Named("ws-feed"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handler upgrades requests and keeps the connection registered until the
// peer goes away.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
			return
		}

		c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}
		h.register(c)

		go h.writeLoop(c)
		go h.readLoop(c)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UpdateFeedClients(n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	_ = c.conn.Close()
	metrics.UpdateFeedClients(n)
}

// writeLoop drains the client's send queue onto the connection.
func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.unregister(c)
			return
		}
	}
}

// readLoop exists to notice the peer closing; the feed is one-way.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.unregister(c)
			return
		}
	}
}

// BroadcastGaze sends a downsampled gaze stream to all clients.
func (h *Hub) BroadcastGaze(s model.GazeSample) {
	n := h.counter.Add(1)
	if h.everyNth > 1 && n%uint64(h.everyNth) != 0 {
		return
	}

	msg := gazeMessage{
		Type:       "gaze",
		Timestamp:  s.Timestamp,
		LeftX:      s.Left.GazePoint.X,
		LeftY:      s.Left.GazePoint.Y,
		LeftValid:  s.Left.Valid,
		RightX:     s.Right.GazePoint.X,
		RightY:     s.Right.GazePoint.Y,
		RightValid: s.Right.Valid,
	}
	// NaN is not representable in JSON; zero the coordinates of an
	// invalid eye instead.
	if !msg.LeftValid {
		msg.LeftX, msg.LeftY = 0, 0
	}
	if !msg.RightValid {
		msg.RightX, msg.RightY = 0, 0
	}
	h.broadcast(msg)
}

// BroadcastStatus sends every committed status transition.
func (h *Hub) BroadcastStatus(st model.Status) {
	h.broadcast(statusMessage{
		Type:   "status",
		Status: st.Kind.String(),
		Reason: st.Reason,
	})
}

func (h *Hub) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error(context.Background(), "feed marshal failed", logger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			metrics.RecordFeedDropped()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithEveryNth sets the gaze downsampling factor.
func WithEveryNth(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.everyNth = n
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(log logger.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}
