package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pongrelay/internal/api"
	"pongrelay/internal/config"
	"pongrelay/internal/database"
	"pongrelay/internal/hub"
	"pongrelay/internal/metrics"
	"pongrelay/internal/registry"
	"pongrelay/internal/router"
	"pongrelay/internal/websocket"
	dbconfig "pongrelay/pkg/database"
)

// Application wires all components together with an explicit lifecycle: no
// ambient globals, construct at process start, shut down in reverse order.
type Application struct {
	config      *config.Config
	dbManager   *database.Manager
	sessions    *registry.Registry
	connections *websocket.Registry
	eventRouter *router.Router
	eventHub    *hub.Hub
	apiServer   *api.Server
	httpServer  *http.Server
}

// NewApplication builds the component graph in dependency order:
// database -> session registry -> connection registry -> router -> hub -> API -> HTTP.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbManager, err := database.NewManager(&dbconfig.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	sessions := registry.NewRegistry()
	connections := websocket.NewRegistry()
	eventRouter := router.NewRouter(sessions, connections, dbManager)
	eventHub := hub.NewHub(connections, sessions, eventRouter, hub.Policy{
		SweepInterval:     cfg.Session.SweepInterval,
		IdleTimeout:       cfg.Session.IdleTimeout,
		HeartbeatInterval: cfg.Session.HeartbeatInterval,
	})

	apiServer := api.NewServer(sessions, dbManager, connections)
	wsHandler := websocket.NewHandler(connections, eventHub, cfg.WebSocket)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:      cfg,
		dbManager:   dbManager,
		sessions:    sessions,
		connections: connections,
		eventRouter: eventRouter,
		eventHub:    eventHub,
		apiServer:   apiServer,
		httpServer:  httpServer,
	}, nil
}

// Start brings the hub up before the HTTP server accepts connections.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting pongrelay on %s", app.httpServer.Addr)

	if err := app.eventHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.eventHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("pongrelay started")
		return nil
	case <-ctx.Done():
		_ = app.eventHub.Stop()
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP -> hub -> database.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down pongrelay")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := app.eventHub.Stop(); err != nil {
		log.Printf("Event hub shutdown error: %v", err)
	}
	if err := app.dbManager.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}

	log.Printf("pongrelay shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Load(os.Getenv("PONGRELAY_CONFIG_FILE"))

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	appErrCh := make(chan error, 1)
	go func() {
		if err := app.Start(ctx); err != nil {
			appErrCh <- err
		}
	}()

	select {
	case err := <-appErrCh:
		return fmt.Errorf("application error: %w", err)
	case sig := <-signalCh:
		log.Printf("Received signal %v, shutting down gracefully", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := app.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	}
}
