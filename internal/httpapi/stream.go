package httpapi

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"launchpad-index/internal/observability"
)

// StreamConfig configures dashboard stream connections.
type StreamConfig struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long a client may stay silent, pongs included.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing one message.
	WriteTimeout time.Duration
	// SendBuffer is the per-client queue; a full queue drops the client.
	SendBuffer int
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   16,
	}
}

// Event is one message pushed to stream clients.
type Event struct {
	Type string    `json:"type"` // "sync" or "refresh"
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// Hub fans run events out to connected dashboard clients.
type Hub struct {
	config   StreamConfig
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  atomic.Bool
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewHub creates a stream hub.
func NewHub(config StreamConfig, logger zerolog.Logger) *Hub {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultStreamConfig().SendBuffer
	}
	return &Hub{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger.With().Str("component", "stream").Logger(),
		clients: make(map[*streamClient]struct{}),
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues ev for every client. Clients whose queue is full are dropped.
func (h *Hub) Broadcast(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := sonic.ConfigStd.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("type", ev.Type).Msg("failed to encode stream event")
		return
	}

	h.mu.Lock()
	var slow []*streamClient
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn().Msg("dropping slow stream client")
		h.remove(c)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}
	h.mu.Lock()
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		h.remove(c)
	}
}

// Handle upgrades the request and serves the client until it disconnects.
func (h *Hub) Handle(c *gin.Context) {
	if h.closed.Load() {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("stream upgrade failed")
		return
	}

	client := &streamClient{
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	observability.SetStreamClients(n)

	go h.writeLoop(client)
	h.readLoop(client)
}

func (h *Hub) remove(c *streamClient) {
	c.once.Do(func() {
		h.mu.Lock()
		delete(h.clients, c)
		n := len(h.clients)
		h.mu.Unlock()
		observability.SetStreamClients(n)

		close(c.done)
		c.conn.Close()
	})
}

// readLoop discards client messages and detects disconnects.
func (h *Hub) readLoop(c *streamClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop drains the send queue and sends periodic pings.
func (h *Hub) writeLoop(c *streamClient) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
