package websocket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"

	"pongrelay/internal/config"
	"pongrelay/internal/hub"
	"pongrelay/internal/registry"
	"pongrelay/internal/router"
	"pongrelay/internal/websocket"
	"pongrelay/pkg/types"
)

// frame is the client's view of a server message.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type relayFixture struct {
	server   *httptest.Server
	sessions *registry.Registry
	eventHub *hub.Hub
}

// newRelayFixture stands up the full stack behind a test HTTP server. Tickers
// are disabled so only client traffic drives the protocol.
func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()

	sessions := registry.NewRegistry()
	connections := websocket.NewRegistry()
	eventRouter := router.NewRouter(sessions, connections, nil)
	eventHub := hub.NewHub(connections, sessions, eventRouter, hub.Policy{})

	if err := eventHub.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start hub: %v", err)
	}

	cfg := &config.WebSocketConfig{
		PingInterval: time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Second,
		BufferSize:   16,
	}
	handler := websocket.NewHandler(connections, eventHub, cfg)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))

	t.Cleanup(func() {
		server.Close()
		_ = eventHub.Stop()
	})

	return &relayFixture{server: server, sessions: sessions, eventHub: eventHub}
}

func (f *relayFixture) dial(t *testing.T) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *gorilla.Conn, name string, payload interface{}) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal payload: %v", err)
		}
		data = raw
	}
	if err := conn.WriteJSON(map[string]interface{}{"event": name, "data": data}); err != nil {
		t.Fatalf("Failed to send %s: %v", name, err)
	}
}

// readEvent reads frames until one matching name arrives, skipping unrelated
// traffic such as heartbeats.
func readEvent(t *testing.T, conn *gorilla.Conn, name string) frame {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	if err := conn.SetReadDeadline(deadline); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("Reading for %s failed: %v", name, err)
		}
		if f.Event == name {
			return f
		}
	}
}

func decodePayload(t *testing.T, f frame, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(f.Data, v); err != nil {
		t.Fatalf("Failed to decode %s payload: %v", f.Event, err)
	}
}

func createGameOverWire(t *testing.T, conn *gorilla.Conn, name string) string {
	t.Helper()
	sendEvent(t, conn, types.EventCreateGame, types.CreateGamePayload{PlayerName: name})
	var created types.GameCreatedPayload
	decodePayload(t, readEvent(t, conn, types.EventGameCreated), &created)
	if created.Status != types.StatusOK {
		t.Fatalf("createGame failed: %s", created.Message)
	}
	return created.GameID
}

func TestFullMatchLifecycle(t *testing.T) {
	fixture := newRelayFixture(t)

	// Alice creates a game and receives a shareable ID.
	alice := fixture.dial(t)
	gameID := createGameOverWire(t, alice, "Alice")
	if !types.IsValidGameID(gameID) {
		t.Fatalf("Game ID %q is not valid", gameID)
	}

	// Bob joins; both sides learn their opponent's name.
	bob := fixture.dial(t)
	sendEvent(t, bob, types.EventJoinGame, types.JoinGamePayload{GameID: gameID, PlayerName: "Bob"})

	var joined types.GameJoinedPayload
	decodePayload(t, readEvent(t, bob, types.EventGameJoined), &joined)
	if joined.Status != types.StatusOK || joined.LeftPlayer != "Alice" {
		t.Fatalf("gameJoined = %+v, want ok with leftPlayer Alice", joined)
	}

	var start types.GameStartPayload
	decodePayload(t, readEvent(t, alice, types.EventGameStart), &start)
	if start.RightPlayer != "Bob" {
		t.Fatalf("gameStart rightPlayer = %q, want Bob", start.RightPlayer)
	}

	// Host-authoritative ball state reaches Bob byte-for-byte.
	ball := json.RawMessage(`{"x":42,"y":17,"vx":-3}`)
	sendEvent(t, alice, types.EventBallUpdate, types.BallUpdatePayload{Ball: ball})

	var relayed types.BallUpdatePayload
	decodePayload(t, readEvent(t, bob, types.EventBallUpdate), &relayed)
	if string(relayed.Ball) != string(ball) {
		t.Fatalf("Relayed ball = %s, want %s", relayed.Ball, ball)
	}

	// Bob drops; Alice is told and the game is open for matchmaking again.
	_ = bob.Close()
	readEvent(t, alice, types.EventGuestDisconnected)

	browser := fixture.dial(t)
	waitForListing(t, browser, gameID)

	// Alice ends the game; her own gameEnd comes back and the ID goes stale.
	sendEvent(t, alice, types.EventGameEnd, nil)
	readEvent(t, alice, types.EventGameEnd)

	sendEvent(t, browser, types.EventJoinGame, types.JoinGamePayload{GameID: gameID, PlayerName: "Carol"})
	var stale types.GameJoinedPayload
	decodePayload(t, readEvent(t, browser, types.EventGameJoined), &stale)
	if stale.Status != types.StatusError {
		t.Fatal("Join with a stale game ID should fail")
	}
}

// waitForListing polls the game list until gameID shows up. Disconnect
// processing is asynchronous, so the first poll can race it.
func waitForListing(t *testing.T, conn *gorilla.Conn, gameID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sendEvent(t, conn, types.EventRequestGameList, nil)
		var list types.GameListPayload
		decodePayload(t, readEvent(t, conn, types.EventGameList), &list)
		for _, game := range list.Games {
			if game.ID == gameID {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Game %s never returned to the matchmaking list", gameID)
}

func TestMalformedFramesAreTolerated(t *testing.T) {
	fixture := newRelayFixture(t)
	conn := fixture.dial(t)

	if err := conn.WriteMessage(gorilla.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("Failed to send garbage: %v", err)
	}
	if err := conn.WriteMessage(gorilla.TextMessage, []byte(`{"data":{}}`)); err != nil {
		t.Fatalf("Failed to send nameless event: %v", err)
	}

	// The connection survives and still speaks the protocol.
	sendEvent(t, conn, types.EventRequestGameList, nil)
	readEvent(t, conn, types.EventGameList)
}

func TestHostDisconnectTearsDownSession(t *testing.T) {
	fixture := newRelayFixture(t)

	alice := fixture.dial(t)
	gameID := createGameOverWire(t, alice, "Alice")

	bob := fixture.dial(t)
	sendEvent(t, bob, types.EventJoinGame, types.JoinGamePayload{GameID: gameID, PlayerName: "Bob"})
	readEvent(t, bob, types.EventGameJoined)

	_ = alice.Close()
	readEvent(t, bob, types.EventHostDisconnected)

	// The session is gone, not merely vacated.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fixture.sessions.Stats()["sessions"] == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Session survived host disconnect")
}
