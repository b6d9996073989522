package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pongrelay/pkg/types"
)

type fakeDirectory struct {
	games []types.WaitingGame
}

func (f *fakeDirectory) ListWaiting() []types.WaitingGame { return f.games }
func (f *fakeDirectory) Stats() map[string]int {
	return map[string]int{"sessions": len(f.games), "waiting": len(f.games)}
}

type fakeMatches struct {
	matches   []*types.MatchRecord
	listErr   error
	healthErr error
	gotLimit  int
}

func (f *fakeMatches) ListRecentMatches(ctx context.Context, limit int) ([]*types.MatchRecord, error) {
	f.gotLimit = limit
	return f.matches, f.listErr
}

func (f *fakeMatches) HealthCheck(ctx context.Context) error { return f.healthErr }

type fakeConnStats struct{}

func (fakeConnStats) Stats() map[string]int { return map[string]int{"connections": 2} }

func newTestServer(games *fakeDirectory, matches *fakeMatches) *Server {
	if games == nil {
		games = &fakeDirectory{}
	}
	if matches == nil {
		matches = &fakeMatches{}
	}
	return NewServer(games, matches, fakeConnStats{})
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	s.ServeHTTP(recorder, httptest.NewRequest(method, target, nil))
	return recorder
}

func TestListGames(t *testing.T) {
	games := &fakeDirectory{games: []types.WaitingGame{
		{ID: "ABC123", Name: "Alice", CreatedAt: time.Now()},
	}}
	s := newTestServer(games, nil)

	recorder := doRequest(s, http.MethodGet, "/api/games")
	if recorder.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var response GameListResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response.Games) != 1 || response.Games[0].ID != "ABC123" {
		t.Errorf("Games = %+v, want one entry ABC123", response.Games)
	}
	if response.Stats["waiting"] != 1 {
		t.Errorf("Stats = %v, want waiting=1", response.Stats)
	}
}

func TestListGamesMethodNotAllowed(t *testing.T) {
	s := newTestServer(nil, nil)

	recorder := doRequest(s, http.MethodPost, "/api/games")
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want 405", recorder.Code)
	}
}

func TestListMatches(t *testing.T) {
	matches := &fakeMatches{matches: []*types.MatchRecord{
		{ID: "m1", GameID: "ABC123", HostName: "Alice", GuestName: "Bob"},
	}}
	s := newTestServer(nil, matches)

	recorder := doRequest(s, http.MethodGet, "/api/matches?limit=5")
	if recorder.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", recorder.Code)
	}
	if matches.gotLimit != 5 {
		t.Errorf("Store queried with limit %d, want 5", matches.gotLimit)
	}

	var response MatchListResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(response.Matches) != 1 || response.Matches[0].GameID != "ABC123" {
		t.Errorf("Matches = %+v", response.Matches)
	}
}

func TestListMatchesBadLimit(t *testing.T) {
	s := newTestServer(nil, nil)

	for _, target := range []string{
		"/api/matches?limit=0",
		"/api/matches?limit=-3",
		"/api/matches?limit=500",
		"/api/matches?limit=abc",
	} {
		recorder := doRequest(s, http.MethodGet, target)
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, recorder.Code)
		}
	}
}

func TestListMatchesEmptyIsArray(t *testing.T) {
	s := newTestServer(nil, &fakeMatches{})

	recorder := doRequest(s, http.MethodGet, "/api/matches")

	var response map[string]json.RawMessage
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if string(response["matches"]) != "[]" {
		t.Errorf("Empty match list serialized as %s, want []", response["matches"])
	}
}

func TestListMatchesStoreError(t *testing.T) {
	s := newTestServer(nil, &fakeMatches{listErr: errors.New("disk gone")})

	recorder := doRequest(s, http.MethodGet, "/api/matches")
	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", recorder.Code)
	}
}

func TestHealthCheckHealthy(t *testing.T) {
	s := newTestServer(nil, nil)

	recorder := doRequest(s, http.MethodGet, "/health")
	if recorder.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", recorder.Code)
	}

	var response HealthResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Status != "healthy" || response.Database != "healthy" {
		t.Errorf("Health = %s/%s, want healthy/healthy", response.Status, response.Database)
	}
	if response.Connections["connections"] != 2 {
		t.Errorf("Connections = %v, want connections=2", response.Connections)
	}
}

func TestHealthCheckUnhealthyDatabase(t *testing.T) {
	s := newTestServer(nil, &fakeMatches{healthErr: errors.New("locked")})

	recorder := doRequest(s, http.MethodGet, "/health")
	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("Status = %d, want 503", recorder.Code)
	}

	var response HealthResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy", response.Status)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(nil, nil)

	recorder := doRequest(s, http.MethodOptions, "/api/games")
	if recorder.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want 200", recorder.Code)
	}
	if origin := recorder.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("Allow-Origin = %q, want *", origin)
	}
}
