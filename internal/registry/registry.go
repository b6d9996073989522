package registry

import (
	"crypto/rand"
	"encoding/json"
	"log"
	"sync"
	"time"

	"pongrelay/pkg/types"
)

const gameIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// maxIDAttempts bounds identifier generation. The 36^6 keyspace makes 64 misses
// in a row unreachable at any realistic session count.
const maxIDAttempts = 64

// Registry owns the session table and the connection membership index. It is
// the single writer for both; every operation runs atomically under one lock so
// interleaved create/join/leave cannot violate the one-host/at-most-one-guest
// invariant. The registry has no outbound awareness - it never talks to
// connections.
type Registry struct {
	sessions map[string]*types.Session // gameID -> session
	members  map[string]string         // connID -> gameID
	mu       sync.RWMutex
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*types.Session),
		members:  make(map[string]string),
	}
}

// CreateSession inserts a new waiting session hosted by hostConn and registers
// the host in the membership index. The identifier is collision-checked and
// re-rolled; ErrIDSpaceExhausted is returned only if generation cannot find a
// free slot.
func (r *Registry) CreateSession(hostConn, hostName string) (*types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.newGameID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &types.Session{
		ID:           id,
		HostConn:     hostConn,
		HostName:     hostName,
		Status:       types.StatusWaiting,
		CreatedAt:    now,
		LastActivity: now,
	}

	r.sessions[id] = session
	r.members[hostConn] = id

	log.Printf("Created session: id=%s host=%s", id, hostName)
	return session, nil
}

// JoinSession fills the guest slot of an existing session and flips it to
// playing. It fails with ErrGameNotFound if no such session exists and with
// ErrGameFull if the guest slot is occupied or the caller is the session's own
// host.
func (r *Registry) JoinSession(id, guestConn, guestName string) (*types.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, ErrGameNotFound
	}
	if session.GuestConn != "" || session.HostConn == guestConn {
		return nil, ErrGameFull
	}

	session.GuestConn = guestConn
	session.GuestName = guestName
	session.Status = types.StatusPlaying
	session.LastActivity = time.Now()
	r.members[guestConn] = id

	log.Printf("Joined session: id=%s guest=%s", id, guestName)
	return session, nil
}

// RemoveSession deletes the session and both membership entries. Idempotent.
func (r *Registry) RemoveSession(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) {
	session, exists := r.sessions[id]
	if !exists {
		return
	}

	delete(r.members, session.HostConn)
	if session.GuestConn != "" {
		delete(r.members, session.GuestConn)
	}
	delete(r.sessions, id)
}

// LeaveAsGuest clears the guest slot and returns the session to waiting state,
// keeping the host's membership intact. Used when the guest disconnects; the
// session becomes matchmaking-visible again.
func (r *Registry) LeaveAsGuest(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return ErrGameNotFound
	}

	if session.GuestConn != "" {
		delete(r.members, session.GuestConn)
	}
	session.GuestConn = ""
	session.GuestName = ""
	session.Status = types.StatusWaiting
	session.LastActivity = time.Now()

	return nil
}

// Touch updates the session's last-activity timestamp.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session, exists := r.sessions[id]; exists {
		session.LastActivity = time.Now()
	}
}

// SessionByConnection resolves the session a connection currently belongs to.
func (r *Registry) SessionByConnection(connID string) (*types.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.members[connID]
	if !exists {
		return nil, false
	}
	session, exists := r.sessions[id]
	return session, exists
}

// UpdateBall stores the host-supplied ball state verbatim and touches the
// session.
func (r *Registry) UpdateBall(id string, ball json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return ErrGameNotFound
	}
	session.Ball = ball
	session.LastActivity = time.Now()
	return nil
}

// UpdatePaddle records a paddle position. The host drives the left paddle, the
// guest the right one.
func (r *Registry) UpdatePaddle(id string, role types.Role, y float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return ErrGameNotFound
	}
	switch role {
	case types.RoleHost:
		session.LeftPaddleY = y
	case types.RoleGuest:
		session.RightPaddleY = y
	default:
		return ErrGameNotFound
	}
	session.LastActivity = time.Now()
	return nil
}

// UpdateScore stores the host-supplied score verbatim and touches the session.
func (r *Registry) UpdateScore(id string, left, right int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return ErrGameNotFound
	}
	session.LeftScore = left
	session.RightScore = right
	session.LastActivity = time.Now()
	return nil
}

// UpdateTimer stores the host-supplied clock verbatim and touches the session.
func (r *Registry) UpdateTimer(id string, remaining float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return ErrGameNotFound
	}
	session.RemainingTime = remaining
	session.LastActivity = time.Now()
	return nil
}

// SweepIdle removes every session whose last activity precedes now-maxIdle and
// returns the removed sessions so the caller can notify lingering participants.
// Sessions at or inside the threshold are left untouched.
func (r *Registry) SweepIdle(maxIdle time.Duration) []*types.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	var removed []*types.Session

	for id, session := range r.sessions {
		if session.LastActivity.Before(cutoff) {
			removed = append(removed, session)
			r.removeLocked(id)
		}
	}

	if len(removed) > 0 {
		log.Printf("Idle sweep removed %d sessions", len(removed))
	}
	return removed
}

// ListWaiting returns a snapshot of sessions with an open guest slot for
// matchmaking browsing.
func (r *Registry) ListWaiting() []types.WaitingGame {
	r.mu.RLock()
	defer r.mu.RUnlock()

	games := make([]types.WaitingGame, 0, len(r.sessions))
	for _, session := range r.sessions {
		if session.Status == types.StatusWaiting {
			games = append(games, types.WaitingGame{
				ID:        session.ID,
				Name:      session.HostName,
				CreatedAt: session.CreatedAt,
			})
		}
	}
	return games
}

// Stats returns registry counters for health reporting and metrics.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	waiting := 0
	for _, session := range r.sessions {
		if session.Status == types.StatusWaiting {
			waiting++
		}
	}

	return map[string]int{
		"sessions": len(r.sessions),
		"waiting":  waiting,
		"playing":  len(r.sessions) - waiting,
		"members":  len(r.members),
	}
}

// newGameID generates a fresh collision-checked identifier. Caller must hold
// the write lock.
func (r *Registry) newGameID() (string, error) {
	buf := make([]byte, types.GameIDLength)
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for i := range buf {
			buf[i] = gameIDAlphabet[int(buf[i])%len(gameIDAlphabet)]
		}
		id := string(buf)
		if _, taken := r.sessions[id]; !taken {
			return id, nil
		}
	}
	return "", ErrIDSpaceExhausted
}
