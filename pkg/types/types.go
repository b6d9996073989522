package types

import (
	"encoding/json"
	"time"
)

// Session status values.
const (
	StatusWaiting = "waiting"
	StatusPlaying = "playing"
)

// Role identifies a connection's position within a session.
type Role string

const (
	RoleNone  Role = ""
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Session represents one matchmaking/gameplay unit pairing at most two connections.
// The host connection is the authoritative source for ball, score and clock; the
// registry stores those values verbatim and never interprets them.
type Session struct {
	ID            string          `json:"id"`
	HostConn      string          `json:"-"`
	GuestConn     string          `json:"-"`
	HostName      string          `json:"hostName"`
	GuestName     string          `json:"guestName,omitempty"`
	Status        string          `json:"status"`
	Ball          json.RawMessage `json:"ball,omitempty"`
	LeftPaddleY   float64         `json:"leftPaddleY"`
	RightPaddleY  float64         `json:"rightPaddleY"`
	LeftScore     int             `json:"leftScore"`
	RightScore    int             `json:"rightScore"`
	RemainingTime float64         `json:"remainingTime"`
	CreatedAt     time.Time       `json:"createdAt"`
	LastActivity  time.Time       `json:"lastActivity"`
}

// WaitingGame is a matchmaking browse entry for a session with an open guest slot.
type WaitingGame struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// MatchRecord is the persisted summary of a finished match.
type MatchRecord struct {
	ID         string    `json:"id"`
	GameID     string    `json:"gameId"`
	HostName   string    `json:"hostName"`
	GuestName  string    `json:"guestName"`
	LeftScore  int       `json:"leftScore"`
	RightScore int       `json:"rightScore"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
}
