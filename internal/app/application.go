package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"classsync/internal/api"
	"classsync/internal/auth"
	"classsync/internal/config"
	"classsync/internal/database"
	"classsync/internal/hub"
	"classsync/internal/projector"
	"classsync/internal/relay"
	"classsync/internal/websocket"
	dbconfig "classsync/pkg/database"
)

// Application owns the component graph and its lifecycle. Construction wires
// everything in dependency order; Start and Stop walk the graph forward and
// backward.
type Application struct {
	config *config.Config
	log    *zap.SugaredLogger

	store     *database.Manager
	registry  *websocket.Registry
	hub       *hub.Hub
	wsHandler *websocket.Handler
	apiServer *api.Server

	httpServer *http.Server
}

// NewApplication builds the full component graph from configuration. Nothing
// is started; a returned Application is ready for Start.
func NewApplication(cfg *config.Config, log *zap.SugaredLogger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	storeConfig := dbconfig.DefaultConfig()
	storeConfig.DatabasePath = cfg.Database.Path

	store, err := database.NewManager(storeConfig, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	registry := websocket.NewRegistry(log)
	stateProjector := projector.NewProjector(store, log)
	eventRelay := relay.NewRelay(registry, stateProjector, log)
	eventHub := hub.NewHub(eventRelay, log)

	authenticator := auth.NewJWTAuthenticator(cfg.Auth.JWTSecret)
	wsHandler := websocket.NewHandler(registry, authenticator, eventHub, cfg.WebSocket, log)
	apiServer := api.NewServer(store, registry, cfg.Chat.HistoryLimit, log)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		log:        log,
		store:      store,
		registry:   registry,
		hub:        eventHub,
		wsHandler:  wsHandler,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start launches the hub and the HTTP server. It returns once the server is
// accepting connections or has failed to bind.
func (a *Application) Start(ctx context.Context) error {
	if err := a.hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infow("HTTP server listening", "addr", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		_ = a.hub.Stop()
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(250 * time.Millisecond):
		return nil
	case <-ctx.Done():
		_ = a.hub.Stop()
		return ctx.Err()
	}
}

// Stop shuts components down in reverse order: stop accepting HTTP traffic,
// stop event processing, then close the store so queued writes drain.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info("shutting down")

	var firstErr error

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Errorw("HTTP server shutdown failed", "error", err)
		firstErr = err
	}

	if err := a.hub.Stop(); err != nil && err != hub.ErrHubNotRunning {
		a.log.Errorw("hub shutdown failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := a.store.Close(); err != nil {
		a.log.Errorw("database close failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	a.log.Info("shutdown complete")
	return firstErr
}

// GetAddr returns the address the HTTP server binds to.
func (a *Application) GetAddr() string {
	return a.httpServer.Addr
}
