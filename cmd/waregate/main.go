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

	"waregate/internal/admission"
	"waregate/internal/api"
	"waregate/internal/config"
	"waregate/internal/ingest"
	"waregate/internal/inventory"
	"waregate/internal/realtime"
	"waregate/internal/rooms"
	"waregate/internal/store"
	"waregate/internal/websocket"
)

// Application coordinates the gateway's components with dependency-ordered
// startup: store → clients → directory → orchestrator → ingestion → HTTP.
type Application struct {
	config     *config.Config
	redisStore *store.RedisStore
	service    *realtime.Service
	consumer   *ingest.Controller
	httpServer *http.Server
}

// NewApplication validates configuration and wires every component.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	redisStore := store.NewRedisStore(cfg.Redis)

	inventoryClient := inventory.NewClient(cfg.Inventory.BaseURL, cfg.Inventory.Timeout)
	directory := rooms.NewDirectory()
	service := realtime.NewService(directory, redisStore, redisStore, redisStore, inventoryClient)

	dispatcher := ingest.NewDispatcher(service)
	consumer := ingest.NewController(cfg.Kafka, dispatcher)

	control := admission.NewControl(cfg.Auth.Token, redisStore, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	wsHandler := websocket.NewHandler(control, service, cfg.WebSocket)
	apiServer := api.NewServer(service, consumer)

	mux := http.NewServeMux()
	mux.Handle("/health", apiServer)
	mux.Handle("/stats", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		redisStore: redisStore,
		service:    service,
		consumer:   consumer,
		httpServer: httpServer,
	}, nil
}

// Start brings the gateway up. Startup failures here are the only condition
// allowed to kill the process: once serving, every runtime failure is
// contained and logged instead.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting waregate on %s", app.httpServer.Addr)

	if err := app.redisStore.Ping(ctx); err != nil {
		return fmt.Errorf("failed to reach redis: %w", err)
	}

	if err := app.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ingestion: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.consumer.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("waregate started")
		return nil
	case <-ctx.Done():
		_ = app.consumer.Stop()
		return ctx.Err()
	}
}

// Stop drains in order: stop consuming log messages first so no message is
// acknowledged after its broadcast can no longer be delivered, then close
// the listening sockets, then the store.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down waregate")

	if err := app.consumer.Stop(); err != nil && err != ingest.ErrNotRunning {
		log.Printf("Ingestion shutdown error: %v", err)
	}

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := app.redisStore.Close(); err != nil {
		log.Printf("Redis shutdown error: %v", err)
	}

	log.Printf("waregate shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := os.Getenv("WAREGATE_CONFIG_FILE")
	cfg := config.LoadConfigWithPrecedence(configPath)

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

		return app.Stop(shutdownCtx)
	}
}
