package types

import "encoding/json"

// Inbound event names (client -> server).
const (
	EventCreateGame      = "createGame"
	EventJoinGame        = "joinGame"
	EventCancelGame      = "cancelGame"
	EventPaddleMove      = "paddleMove"
	EventBallUpdate      = "ballUpdate"
	EventScoreUpdate     = "scoreUpdate"
	EventTimerUpdate     = "timerUpdate"
	EventGameEnd         = "gameEnd"
	EventRequestGameList = "requestGameList"
	EventHeartbeat       = "heartbeat"
)

// Outbound event names (server -> client). The relay events and heartbeat share
// their inbound names.
const (
	EventGameCreated       = "gameCreated"
	EventGameJoined        = "gameJoined"
	EventGameStart         = "gameStart"
	EventGameCancelled     = "gameCancelled"
	EventHostDisconnected  = "hostDisconnected"
	EventGuestDisconnected = "guestDisconnected"
	EventGameList          = "gameList"
)

// Reply status values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Event is the inbound wire envelope. Data stays raw until the router knows the
// event type.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is the outbound wire envelope.
type Outbound struct {
	Name string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// Inbound payloads.

type CreateGamePayload struct {
	PlayerName string `json:"playerName"`
}

type JoinGamePayload struct {
	GameID     string `json:"gameId"`
	PlayerName string `json:"playerName"`
}

type CancelGamePayload struct {
	GameID string `json:"gameId"`
}

type PaddleMovePayload struct {
	Y float64 `json:"y"`
}

// BallUpdatePayload carries the ball state as an opaque blob; the relay never
// interprets it.
type BallUpdatePayload struct {
	Ball json.RawMessage `json:"ball"`
}

type ScoreUpdatePayload struct {
	LeftScore  int `json:"leftScore"`
	RightScore int `json:"rightScore"`
}

type TimerUpdatePayload struct {
	RemainingTime float64 `json:"remainingTime"`
}

// Outbound payloads.

type GameCreatedPayload struct {
	Status  string `json:"status"`
	GameID  string `json:"gameId,omitempty"`
	Message string `json:"message,omitempty"`
}

type GameJoinedPayload struct {
	Status     string `json:"status"`
	LeftPlayer string `json:"leftPlayer,omitempty"`
	Message    string `json:"message,omitempty"`
}

type GameStartPayload struct {
	RightPlayer string `json:"rightPlayer"`
}

type GameListPayload struct {
	Games []WaitingGame `json:"games"`
}
