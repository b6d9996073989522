package hub

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"pongrelay/internal/metrics"
	"pongrelay/internal/registry"
	"pongrelay/internal/router"
	"pongrelay/internal/websocket"
	"pongrelay/pkg/types"
)

// Policy carries the hub's timing knobs. Zero intervals disable the
// corresponding ticker, which the tests rely on.
type Policy struct {
	SweepInterval     time.Duration
	IdleTimeout       time.Duration
	HeartbeatInterval time.Duration
}

// eventContext pairs an inbound event with its sender.
type eventContext struct {
	conn  websocket.Conn
	event *types.Event
}

// Hub serializes all protocol work through a single goroutine: inbound events,
// disconnect notices, the idle sweep, and the heartbeat probe all take the
// same path, so no two operations on the same session ever interleave.
type Hub struct {
	eventCh      chan *eventContext
	disconnectCh chan string
	shutdownCh   chan struct{}

	connections *websocket.Registry
	sessions    *registry.Registry
	router      *router.Router
	policy      Policy

	running bool
	mu      sync.RWMutex
}

// NewHub creates a hub. Channel buffers absorb 60Hz relay bursts from many
// concurrent sessions without blocking connection read loops.
func NewHub(connections *websocket.Registry, sessions *registry.Registry, eventRouter *router.Router, policy Policy) *Hub {
	return &Hub{
		eventCh:      make(chan *eventContext, 1024),
		disconnectCh: make(chan string, 128),
		shutdownCh:   make(chan struct{}),
		connections:  connections,
		sessions:     sessions,
		router:       eventRouter,
		policy:       policy,
	}
}

// Start begins hub processing.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	log.Println("Starting event hub")
	go h.run(ctx)
	return nil
}

// Stop shuts down the hub. Idempotent with Start; safe to call once.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdownCh:
	default:
		close(h.shutdownCh)
	}
	return nil
}

// Submit queues an inbound event. Non-blocking; a full channel is an error the
// transport layer logs rather than a stall.
func (h *Hub) Submit(conn websocket.Conn, event *types.Event) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	select {
	case h.eventCh <- &eventContext{conn: conn, event: event}:
		return nil
	default:
		return ErrEventChannelFull
	}
}

// SubmitDisconnect queues a transport-level disconnect notice.
func (h *Hub) SubmitDisconnect(connID string) error {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		return ErrHubNotRunning
	}
	h.mu.RUnlock()

	select {
	case h.disconnectCh <- connID:
		return nil
	default:
		return ErrDisconnectChannelFull
	}
}

// run is the single processing loop.
func (h *Hub) run(ctx context.Context) {
	defer log.Println("Event hub stopped")

	// Nil channels block forever, so a zero interval simply disables the
	// ticker branch.
	var sweepC, heartbeatC <-chan time.Time
	if h.policy.SweepInterval > 0 {
		sweepTicker := time.NewTicker(h.policy.SweepInterval)
		defer sweepTicker.Stop()
		sweepC = sweepTicker.C
	}
	if h.policy.HeartbeatInterval > 0 {
		heartbeatTicker := time.NewTicker(h.policy.HeartbeatInterval)
		defer heartbeatTicker.Stop()
		heartbeatC = heartbeatTicker.C
	}

	for {
		select {
		case ec := <-h.eventCh:
			h.dispatch(func() { h.router.HandleEvent(ec.conn, ec.event) })

		case connID := <-h.disconnectCh:
			h.dispatch(func() { h.router.HandleDisconnect(connID) })

		case <-sweepC:
			h.dispatch(h.sweep)

		case <-heartbeatC:
			h.dispatch(h.probe)

		case <-h.shutdownCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

// dispatch isolates one unit of work. A panic while handling one connection's
// event must never take down unrelated sessions.
func (h *Hub) dispatch(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Recovered from handler panic: %v\n%s", rec, debug.Stack())
		}
	}()
	fn()
}

// sweep removes idle sessions and tells any still-connected participants the
// game is gone.
func (h *Hub) sweep() {
	removed := h.sessions.SweepIdle(h.policy.IdleTimeout)
	if len(removed) == 0 {
		return
	}

	metrics.SessionsSwept.Add(float64(len(removed)))
	metrics.ActiveSessions.Sub(float64(len(removed)))

	for _, session := range removed {
		for _, connID := range []string{session.HostConn, session.GuestConn} {
			if connID == "" {
				continue
			}
			if conn, exists := h.connections.Get(connID); exists {
				if err := conn.WriteJSON(types.Outbound{Name: types.EventGameCancelled}); err != nil {
					log.Printf("Failed to notify %s of swept session %s: %v", connID, session.ID, err)
				}
			}
		}
	}
}

// probe broadcasts the application-level liveness heartbeat to every
// connection. Replies come back as heartbeat events and touch the sender's
// session.
func (h *Hub) probe() {
	for _, conn := range h.connections.List() {
		if err := conn.WriteJSON(types.Outbound{Name: types.EventHeartbeat}); err != nil {
			log.Printf("Heartbeat to %s failed: %v", conn.ID(), err)
		}
	}
}
