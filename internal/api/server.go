package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pongrelay/pkg/types"
)

// GameDirectory is the view of the session registry the API needs.
type GameDirectory interface {
	ListWaiting() []types.WaitingGame
	Stats() map[string]int
}

// MatchStore is the view of the match history store the API needs.
type MatchStore interface {
	ListRecentMatches(ctx context.Context, limit int) ([]*types.MatchRecord, error)
	HealthCheck(ctx context.Context) error
}

// ConnectionStats exposes transport-level counters for health reporting.
type ConnectionStats interface {
	Stats() map[string]int
}

// Server is the HTTP JSON surface: matchmaking browsing, match history, and
// health. No business logic, only HTTP handling and serialization.
type Server struct {
	games       GameDirectory
	matches     MatchStore
	connections ConnectionStats
	router      *http.ServeMux
}

// NewServer creates the API server and sets up its routes.
func NewServer(games GameDirectory, matches MatchStore, connections ConnectionStats) *Server {
	s := &Server{
		games:       games,
		matches:     matches,
		connections: connections,
		router:      http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/games", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.listGames))))
	s.router.Handle("/api/matches", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.listMatches))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type GameListResponse struct {
	Games []types.WaitingGame `json:"games"`
	Stats map[string]int      `json:"stats"`
}

type MatchListResponse struct {
	Matches []*types.MatchRecord `json:"matches"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Sessions    map[string]int `json:"sessions"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// listGames handles GET /api/games: the matchmaking-visible waiting sessions.
func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	games := s.games.ListWaiting()
	json.NewEncoder(w).Encode(GameListResponse{
		Games: games,
		Stats: s.games.Stats(),
	})
}

// listMatches handles GET /api/matches?limit=N: recent finished matches.
func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			s.sendError(w, "limit must be between 1 and 200", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	matches, err := s.matches.ListRecentMatches(r.Context(), limit)
	if err != nil {
		s.sendError(w, "Failed to list matches", http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []*types.MatchRecord{}
	}

	json.NewEncoder(w).Encode(MatchListResponse{Matches: matches})
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.matches.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Sessions:    s.games.Stats(),
		Connections: s.connections.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
