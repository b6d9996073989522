package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pongrelay/internal/config"
	"pongrelay/internal/metrics"
	"pongrelay/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; clients are served from arbitrary hosts.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler upgrades HTTP requests to WebSocket connections and pumps decoded
// events into the sink. No protocol logic lives here.
type Handler struct {
	registry *Registry
	sink     EventSink
	cfg      *config.WebSocketConfig
}

// NewHandler creates a WebSocket handler.
func NewHandler(registry *Registry, sink EventSink, cfg *config.WebSocketConfig) *Handler {
	return &Handler{
		registry: registry,
		sink:     sink,
		cfg:      cfg,
	}
}

// HandleWebSocket upgrades the request and starts the connection lifecycle.
// Connections start unbound; they only join a session through protocol events.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, h.cfg.WriteTimeout, h.cfg.BufferSize)
	if err := h.registry.Register(wsConn); err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		return
	}

	metrics.ConnectionsTotal.Inc()
	metrics.ActiveConnections.Inc()
	log.Printf("Connection established: conn=%s remote=%s", wsConn.ID(), r.RemoteAddr)

	go h.handleConnection(wsConn)
}

// handleConnection owns the read side of one connection until it closes.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// Disconnect notice first so the router can still look up the
		// departing connection's session before the entry disappears.
		if err := h.sink.SubmitDisconnect(conn.ID()); err != nil {
			log.Printf("Failed to submit disconnect for %s: %v", conn.ID(), err)
		}
		h.registry.Unregister(conn)
		_ = conn.Close()
		metrics.ActiveConnections.Dec()
		log.Printf("Connection closed: conn=%s", conn.ID())
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	// Transport-level ping keeps the read deadline honest; the app-level
	// heartbeat event is a separate, redundant liveness signal.
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error on %s: %v", conn.ID(), err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var event types.Event
		if err := json.Unmarshal(data, &event); err != nil || event.Name == "" {
			// Malformed frames are dropped, not faulted; the connection
			// stays usable.
			log.Printf("Dropping malformed event from %s", conn.ID())
			continue
		}

		if err := h.sink.Submit(conn, &event); err != nil {
			log.Printf("Failed to submit event %s from %s: %v", event.Name, conn.ID(), err)
		}
	}
}
