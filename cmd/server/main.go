// campaignd - broadcast campaign server
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

	"github.com/ashureev/campaignd/internal/api"
	"github.com/ashureev/campaignd/internal/campaign"
	"github.com/ashureev/campaignd/internal/config"
	"github.com/ashureev/campaignd/internal/events"
	"github.com/ashureev/campaignd/internal/gateway"
	"github.com/ashureev/campaignd/internal/middleware"
	"github.com/ashureev/campaignd/internal/store"
	"github.com/ashureev/campaignd/internal/stream"
	"github.com/ashureev/campaignd/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "gateway", cfg.Gateway.Mode)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	dryRun := gateway.NewDryRun(logger)
	gw := gateway.WithTimeouts(dryRun, gateway.Timeouts{
		Authenticate: cfg.Gateway.AuthTimeout,
		Send:         cfg.Gateway.SendTimeout,
		Release:      cfg.Gateway.ReleaseTimeout,
	})

	bus := events.NewBus()
	engine := campaign.NewEngine(gw, bus, campaign.Options{
		DefaultDelay: cfg.DefaultDelay,
		Logger:       logger,
	})
	observers := stream.NewObserverManager()

	// Initialize handlers.
	handler := api.NewHandler(repo, engine, cfg, api.StreamStats{
		Observers:   observers.Count,
		Subscribers: bus.Subscribers,
	})
	wsHandler := stream.NewWebSocketHandler(bus, observers, cfg.FrontendURL, cfg.IsDevelopment(), cfg.StreamBuffer)

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	handler.RegisterHealth(r)
	handler.RegisterRoutes(r)

	// Push channel for progress events.
	r.Get("/ws", wsHandler.ServeHTTP)

	// Serve embedded console (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// WebSocket streams are long-lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return store.RunSweeper(gctx, repo, cfg.Uploads.TTL, cfg.Uploads.SweepInterval)
	})

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := engine.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Dispatch loops did not stop in time", "error", err)
		}
		slog.Info("Dry-run gateway totals", "sent", dryRun.Sent())
		observers.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
