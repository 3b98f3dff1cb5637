// Ava - conversational car-buying assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/jsamit27/ava/internal/agent"
	"github.com/jsamit27/ava/internal/api"
	"github.com/jsamit27/ava/internal/ava"
	"github.com/jsamit27/ava/internal/config"
	"github.com/jsamit27/ava/internal/geo"
	"github.com/jsamit27/ava/internal/middleware"
	"github.com/jsamit27/ava/internal/sms"
	"github.com/jsamit27/ava/internal/store"
	"github.com/jsamit27/ava/internal/tools"
	"github.com/jsamit27/ava/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	if cfg.DatabaseURL != "" {
		db, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			slog.Error("Database health check failed", "error", err)
			os.Exit(1)
		}
		if err := db.EnsureSchema(context.Background()); err != nil {
			slog.Error("Failed to ensure schema", "error", err)
			os.Exit(1)
		}
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
		slog.Info("Database connected", "postgres", store.IsPostgresDSN(cfg.DatabaseURL))
	} else {
		slog.Warn("DATABASE_URL not set; session initialization will be refused")
	}

	// Initialize services.
	finder := geo.NewFinder(cfg.Geo.MapsAPIKey, cfg.Geo.LocationsDir)
	messenger := sms.New(cfg.SMS.BaseURL, cfg.SMS.ClientID, cfg.SMS.ClientSecret, cfg.SMS.JWT)
	toolset := tools.New(finder, messenger)
	mgr := agent.NewManager(&agent.Controller{Tools: toolset})

	// Each session gets its own backend client, authenticated and bound
	// to a fresh conversation thread before the session id is issued.
	factory := func(ctx context.Context, userID string) (agent.Asker, error) {
		client := ava.NewClient(cfg.Ava, userID)
		if _, err := client.Login(ctx); err != nil {
			return nil, err
		}
		if _, err := client.EnsureSession(ctx, true); err != nil {
			return nil, err
		}
		return client, nil
	}

	handler := api.NewHandler(mgr, cfg.DatabaseURL, factory)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	handler.RegisterRoutes(r)

	// Serve the embedded chat page.
	r.Handle("/*", web.Handler())

	// A turn can hold the connection through the full backend retry
	// escalation, so responses get no write deadline.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
