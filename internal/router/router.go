package router

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"pongrelay/internal/metrics"
	"pongrelay/internal/registry"
	"pongrelay/internal/websocket"
	"pongrelay/pkg/types"
)

// MatchStore persists finished-match summaries. Nil-able; the relay protocol
// never depends on persistence succeeding.
type MatchStore interface {
	RecordMatch(ctx context.Context, match *types.MatchRecord) error
}

// Router implements the session protocol: it translates inbound events into
// registry calls and forwards outbound events to the affected participants.
// The router reads session state and calls registry mutators; it never touches
// session fields directly.
type Router struct {
	sessions    *registry.Registry
	connections *websocket.Registry
	matches     MatchStore
}

// NewRouter creates an event router.
func NewRouter(sessions *registry.Registry, connections *websocket.Registry, matches MatchStore) *Router {
	return &Router{
		sessions:    sessions,
		connections: connections,
		matches:     matches,
	}
}

// HandleEvent dispatches one inbound event. Protocol errors are replies to the
// sender, never faults; unauthorized relay traffic is dropped without a reply.
func (r *Router) HandleEvent(conn websocket.Conn, event *types.Event) {
	switch event.Name {
	case types.EventCreateGame:
		r.handleCreateGame(conn, event.Data)
	case types.EventJoinGame:
		r.handleJoinGame(conn, event.Data)
	case types.EventCancelGame:
		r.handleCancelGame(conn, event.Data)
	case types.EventPaddleMove:
		r.handlePaddleMove(conn, event.Data)
	case types.EventBallUpdate:
		r.handleBallUpdate(conn, event.Data)
	case types.EventScoreUpdate:
		r.handleScoreUpdate(conn, event.Data)
	case types.EventTimerUpdate:
		r.handleTimerUpdate(conn, event.Data)
	case types.EventGameEnd:
		r.handleGameEnd(conn)
	case types.EventRequestGameList:
		r.handleRequestGameList(conn)
	case types.EventHeartbeat:
		r.handleHeartbeat(conn)
	default:
		log.Printf("Unknown event %q from %s, dropping", event.Name, conn.ID())
	}
}

// HandleDisconnect runs the departure state machine for a closed connection.
// Host departure destroys the session; guest departure returns it to waiting.
func (r *Router) HandleDisconnect(connID string) {
	session, exists := r.sessions.SessionByConnection(connID)
	if !exists {
		return
	}

	switch roleOf(session, connID) {
	case types.RoleHost:
		if session.GuestConn != "" {
			r.send(session.GuestConn, types.EventHostDisconnected, nil)
		}
		r.sessions.RemoveSession(session.ID)
		metrics.ActiveSessions.Dec()
		log.Printf("Host disconnected, session removed: id=%s", session.ID)

	case types.RoleGuest:
		if err := r.sessions.LeaveAsGuest(session.ID); err != nil {
			log.Printf("Guest leave failed for session %s: %v", session.ID, err)
			return
		}
		r.send(session.HostConn, types.EventGuestDisconnected, nil)
		log.Printf("Guest disconnected, session back to waiting: id=%s", session.ID)
	}
}

func (r *Router) handleCreateGame(conn websocket.Conn, data json.RawMessage) {
	var payload types.CreateGamePayload
	if err := json.Unmarshal(data, &payload); err != nil || !types.IsValidPlayerName(payload.PlayerName) {
		r.reply(conn, types.EventGameCreated, types.GameCreatedPayload{
			Status:  types.StatusError,
			Message: types.ErrInvalidPlayerName.Error(),
		})
		return
	}

	if _, bound := r.sessions.SessionByConnection(conn.ID()); bound {
		r.reply(conn, types.EventGameCreated, types.GameCreatedPayload{
			Status:  types.StatusError,
			Message: "already in a game",
		})
		return
	}

	session, err := r.sessions.CreateSession(conn.ID(), payload.PlayerName)
	if err != nil {
		r.reply(conn, types.EventGameCreated, types.GameCreatedPayload{
			Status:  types.StatusError,
			Message: err.Error(),
		})
		return
	}

	metrics.SessionsCreated.Inc()
	metrics.ActiveSessions.Inc()
	r.reply(conn, types.EventGameCreated, types.GameCreatedPayload{
		Status: types.StatusOK,
		GameID: session.ID,
	})
}

func (r *Router) handleJoinGame(conn websocket.Conn, data json.RawMessage) {
	var payload types.JoinGamePayload
	if err := json.Unmarshal(data, &payload); err != nil ||
		!types.IsValidGameID(payload.GameID) || !types.IsValidPlayerName(payload.PlayerName) {
		r.reply(conn, types.EventGameJoined, types.GameJoinedPayload{
			Status:  types.StatusError,
			Message: "invalid game ID or player name",
		})
		return
	}

	if _, bound := r.sessions.SessionByConnection(conn.ID()); bound {
		r.reply(conn, types.EventGameJoined, types.GameJoinedPayload{
			Status:  types.StatusError,
			Message: "already in a game",
		})
		return
	}

	session, err := r.sessions.JoinSession(payload.GameID, conn.ID(), payload.PlayerName)
	if err != nil {
		if errors.Is(err, registry.ErrGameNotFound) || errors.Is(err, registry.ErrGameFull) {
			r.reply(conn, types.EventGameJoined, types.GameJoinedPayload{
				Status:  types.StatusError,
				Message: registry.ErrGameFull.Error(),
			})
			return
		}
		r.reply(conn, types.EventGameJoined, types.GameJoinedPayload{
			Status:  types.StatusError,
			Message: err.Error(),
		})
		return
	}

	r.send(session.HostConn, types.EventGameStart, types.GameStartPayload{
		RightPlayer: session.GuestName,
	})
	r.reply(conn, types.EventGameJoined, types.GameJoinedPayload{
		Status:     types.StatusOK,
		LeftPlayer: session.HostName,
	})
}

func (r *Router) handleCancelGame(conn websocket.Conn, data json.RawMessage) {
	var payload types.CancelGamePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		metrics.DroppedEvents.Inc()
		return
	}

	session, exists := r.sessions.SessionByConnection(conn.ID())
	if !exists || roleOf(session, conn.ID()) != types.RoleHost || session.ID != payload.GameID {
		metrics.DroppedEvents.Inc()
		return
	}

	if session.GuestConn != "" {
		r.send(session.GuestConn, types.EventGameCancelled, nil)
	}
	r.sessions.RemoveSession(session.ID)
	metrics.ActiveSessions.Dec()
	log.Printf("Session cancelled by host: id=%s", session.ID)
}

// handlePaddleMove relays paddle input in either direction: the host drives
// the left paddle toward the guest, the guest the right paddle toward the
// host.
func (r *Router) handlePaddleMove(conn websocket.Conn, data json.RawMessage) {
	session, role := r.boundSession(conn)
	if role == types.RoleNone {
		return
	}

	var payload types.PaddleMovePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		metrics.DroppedEvents.Inc()
		return
	}

	if err := r.sessions.UpdatePaddle(session.ID, role, payload.Y); err != nil {
		return
	}
	metrics.RelayedEvents.WithLabelValues(types.EventPaddleMove).Inc()

	if role == types.RoleHost {
		if session.GuestConn != "" {
			r.send(session.GuestConn, types.EventPaddleMove, payload)
		}
	} else {
		r.send(session.HostConn, types.EventPaddleMove, payload)
	}
}

// handleBallUpdate relays authoritative ball state, host to guest only. A
// guest-originated update is a protocol violation and is silently dropped.
func (r *Router) handleBallUpdate(conn websocket.Conn, data json.RawMessage) {
	session, ok := r.hostSession(conn)
	if !ok {
		return
	}

	var payload types.BallUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		metrics.DroppedEvents.Inc()
		return
	}

	if err := r.sessions.UpdateBall(session.ID, payload.Ball); err != nil {
		return
	}
	metrics.RelayedEvents.WithLabelValues(types.EventBallUpdate).Inc()

	if session.GuestConn != "" {
		r.send(session.GuestConn, types.EventBallUpdate, payload)
	}
}

func (r *Router) handleScoreUpdate(conn websocket.Conn, data json.RawMessage) {
	session, ok := r.hostSession(conn)
	if !ok {
		return
	}

	var payload types.ScoreUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		metrics.DroppedEvents.Inc()
		return
	}

	if err := r.sessions.UpdateScore(session.ID, payload.LeftScore, payload.RightScore); err != nil {
		return
	}
	metrics.RelayedEvents.WithLabelValues(types.EventScoreUpdate).Inc()

	if session.GuestConn != "" {
		r.send(session.GuestConn, types.EventScoreUpdate, payload)
	}
}

func (r *Router) handleTimerUpdate(conn websocket.Conn, data json.RawMessage) {
	session, ok := r.hostSession(conn)
	if !ok {
		return
	}

	var payload types.TimerUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		metrics.DroppedEvents.Inc()
		return
	}

	if err := r.sessions.UpdateTimer(session.ID, payload.RemainingTime); err != nil {
		return
	}
	metrics.RelayedEvents.WithLabelValues(types.EventTimerUpdate).Inc()

	if session.GuestConn != "" {
		r.send(session.GuestConn, types.EventTimerUpdate, payload)
	}
}

// handleGameEnd forwards gameEnd to both participants, records the match, and
// removes the session. Only the host may end a game.
func (r *Router) handleGameEnd(conn websocket.Conn) {
	session, ok := r.hostSession(conn)
	if !ok {
		return
	}

	r.send(session.HostConn, types.EventGameEnd, nil)
	if session.GuestConn != "" {
		r.send(session.GuestConn, types.EventGameEnd, nil)
	}

	r.recordMatch(session)
	r.sessions.RemoveSession(session.ID)
	metrics.ActiveSessions.Dec()
	log.Printf("Session ended by host: id=%s score=%d-%d", session.ID, session.LeftScore, session.RightScore)
}

// handleRequestGameList is stateless; any connection may browse matchmaking.
func (r *Router) handleRequestGameList(conn websocket.Conn) {
	r.reply(conn, types.EventGameList, types.GameListPayload{
		Games: r.sessions.ListWaiting(),
	})
}

// handleHeartbeat touches the sender's session, if any. The reply to the
// periodic probe is a redundant liveness signal; transport-level disconnect
// stays authoritative.
func (r *Router) handleHeartbeat(conn websocket.Conn) {
	if session, exists := r.sessions.SessionByConnection(conn.ID()); exists {
		r.sessions.Touch(session.ID)
	}
}

// recordMatch persists the finished match in the background. Failures are
// logged; session teardown never waits on storage.
func (r *Router) recordMatch(session *types.Session) {
	if r.matches == nil {
		return
	}

	record := &types.MatchRecord{
		GameID:     session.ID,
		HostName:   session.HostName,
		GuestName:  session.GuestName,
		LeftScore:  session.LeftScore,
		RightScore: session.RightScore,
		StartedAt:  session.CreatedAt,
		EndedAt:    time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.matches.RecordMatch(ctx, record); err != nil {
			log.Printf("Failed to record match %s: %v", record.GameID, err)
		}
	}()
}

// boundSession resolves the sender's session and role, counting unbound
// senders as dropped traffic.
func (r *Router) boundSession(conn websocket.Conn) (*types.Session, types.Role) {
	session, exists := r.sessions.SessionByConnection(conn.ID())
	if !exists {
		metrics.DroppedEvents.Inc()
		return nil, types.RoleNone
	}
	return session, roleOf(session, conn.ID())
}

// hostSession resolves the sender's session and requires the host role.
func (r *Router) hostSession(conn websocket.Conn) (*types.Session, bool) {
	session, role := r.boundSession(conn)
	if role != types.RoleHost {
		if role != types.RoleNone {
			metrics.DroppedEvents.Inc()
		}
		return nil, false
	}
	return session, true
}

// reply answers the requesting connection directly.
func (r *Router) reply(conn websocket.Conn, name string, payload interface{}) {
	if err := conn.WriteJSON(types.Outbound{Name: name, Data: payload}); err != nil {
		log.Printf("Failed to reply %s to %s: %v", name, conn.ID(), err)
	}
}

// send delivers an event to a connection by identifier. Delivery is
// fire-and-forget; a failed or missing recipient never fails the operation.
func (r *Router) send(connID, name string, payload interface{}) {
	conn, exists := r.connections.Get(connID)
	if !exists {
		return
	}
	if err := conn.WriteJSON(types.Outbound{Name: name, Data: payload}); err != nil {
		log.Printf("Failed to deliver %s to %s: %v", name, connID, err)
	}
}

// roleOf determines a connection's role within a session record.
func roleOf(session *types.Session, connID string) types.Role {
	switch connID {
	case session.HostConn:
		return types.RoleHost
	case session.GuestConn:
		if connID == "" {
			return types.RoleNone
		}
		return types.RoleGuest
	default:
		return types.RoleNone
	}
}
