// Package progress streams optimizer progress to WebSocket subscribers.
package progress

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"b3-genetic-lab/internal/domain"
)

// Event types.
const (
	EventRunStarted  = "run_started"
	EventGeneration  = "generation"
	EventRunFinished = "run_finished"
	EventRunFailed   = "run_failed"
)

// Event is one message sent to subscribers.
type Event struct {
	Type      string                  `json:"type"`
	RunID     string                  `json:"run_id"`
	Stats     *domain.GenerationStats `json:"stats,omitempty"`
	BestScore float64                 `json:"best_score,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Time      time.Time               `json:"time"`
}

// HubConfig configures WebSocket hub behavior.
type HubConfig struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SendBuffer is the per-client queue length. Clients that fall
	// further behind are disconnected.
	SendBuffer int
	// OnClientsChanged is called with the client count after every
	// connect and disconnect. Optional.
	OnClientsChanged func(n int)
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   64,
	}
}

// Hub fans out events to all connected WebSocket clients.
// Implements http.Handler.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader

	clients   map[*client]struct{}
	clientsMu sync.RWMutex

	// mu orders client admission against Close: closed, the clients
	// insert and wg.Add all happen under it.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub creates a hub. A nil config uses DefaultHubConfig.
func NewHub(config *HubConfig) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
		if cfg.SendBuffer <= 0 {
			cfg.SendBuffer = DefaultHubConfig().SendBuffer
		}
		if cfg.PingInterval <= 0 {
			cfg.PingInterval = DefaultHubConfig().PingInterval
		}
		if cfg.WriteTimeout <= 0 {
			cfg.WriteTimeout = DefaultHubConfig().WriteTimeout
		}
	}

	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isClosed() {
		http.Error(w, "hub closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already replied with an error
	}

	c := &client{conn: conn, send: make(chan []byte, h.config.SendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub closed"),
			time.Now().Add(h.config.WriteTimeout))
		conn.Close()
		return
	}
	h.register(c)
	h.wg.Add(2)
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Publish sends ev to every connected client without blocking.
func (h *Hub) Publish(ev Event) {
	if h.isClosed() {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	var slow []*client
	h.clientsMu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.clientsMu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}
}

// GenerationEvent builds the event published after each scored generation.
func GenerationEvent(runID string, s domain.GenerationStats) Event {
	stats := s
	return Event{Type: EventGeneration, RunID: runID, Stats: &stats, BestScore: s.Best}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients and waits for their goroutines.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.clientsMu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		h.unregister(c)
	}

	h.wg.Wait()
	return nil
}

func (h *Hub) register(c *client) {
	h.clientsMu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.clientsMu.Unlock()

	if h.config.OnClientsChanged != nil {
		h.config.OnClientsChanged(n)
	}
}

// unregister removes the client once; closing send stops its writer.
func (h *Hub) unregister(c *client) {
	c.once.Do(func() {
		h.clientsMu.Lock()
		delete(h.clients, c)
		n := len(h.clients)
		h.clientsMu.Unlock()

		close(c.send)

		if h.config.OnClientsChanged != nil {
			h.config.OnClientsChanged(n)
		}
	})
}

// writeLoop drains the client queue and sends periodic pings.
func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()
	defer c.conn.Close()

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

// readLoop discards client frames and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.unregister(c)
			return
		}
	}
}
