package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lumahome/luma-core/internal/infrastructure/config"
	"github.com/lumahome/luma-core/internal/infrastructure/logging"
	"github.com/lumahome/luma-core/internal/statesync"
)

// wsSendBufferSize is the per-client outbound message buffer size.
// Slow clients that fall this far behind start losing events.
const wsSendBufferSize = 256

// wsMessage is the frame sent to WebSocket clients.
type wsMessage struct {
	Type      string           `json:"type"`
	Timestamp string           `json:"timestamp"`
	Event     *statesync.Event `json:"event,omitempty"`
}

// upgrader configures the WebSocket upgrader. Origin checking is left
// to the deployment's reverse proxy.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// hub fans statesync events out to connected WebSocket clients.
type hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// wsClient is one connected dashboard.
type wsClient struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
}

func newHub(cfg config.WebSocketConfig, logger *logging.Logger) *hub {
	return &hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// run blocks until the context is cancelled, then disconnects all clients.
func (h *hub) run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
}

func (h *hub) register(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.clientCount())
}

// unregister removes a client. Only the goroutine that actually
// removes it closes the send channel, preventing double-close panics
// during shutdown.
func (h *hub) unregister(client *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.clientCount())
}

// broadcast sends a statesync event to every connected client.
func (h *hub) broadcast(event statesync.Event) {
	msg := wsMessage{
		Type:      string(event.Kind),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Event:     &event,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encoding websocket event failed", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.trySend(data)
	}
}

func (h *hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket upgrades the connection and attaches it to the hub.
// Authentication is via the token query parameter since browsers
// cannot set headers on upgrade requests.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if _, err := s.authenticate(r); err != nil {
		writeUnauthorized(w, "invalid or missing token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBufferSize),
	}
	s.hub.register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump discards inbound frames, keeping the read deadline fresh.
// The event feed is one-way; the pump exists to notice disconnects and
// answer protocol pings.
func (c *wsClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	wait := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(wait))
	}
}

// writePump writes queued events and periodic pings to the connection.
func (c *wsClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues data for the client, dropping it when the buffer is
// full or the client disconnected mid-broadcast.
func (c *wsClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}
