// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	mux_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/common-repository/all-in-one-intranet/internal/activity"
	"github.com/common-repository/all-in-one-intranet/internal/config"
	"github.com/common-repository/all-in-one-intranet/internal/handlers"
	"github.com/common-repository/all-in-one-intranet/internal/identity"
	"github.com/common-repository/all-in-one-intranet/internal/logger"
	"github.com/common-repository/all-in-one-intranet/internal/membership"
	"github.com/common-repository/all-in-one-intranet/internal/middleware"
	"github.com/common-repository/all-in-one-intranet/internal/pings"
	"github.com/common-repository/all-in-one-intranet/internal/repo"
	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

func main() {
	// --- Load config (config.yaml + env overrides) ---
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	// --- Connect to Postgres ---
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		log.Error("db connect error", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Error("db ping error", "error", err)
		os.Exit(1)
	}

	r := repo.New(pool)

	// Request-scoped settings view, identity provider, idle tracker and
	// membership synchronizer.
	view := settings.NewView(r, log)
	provider := identity.NewSessionProvider(r, log)
	tracker := activity.NewTracker(r, log)
	sync := membership.NewSynchronizer(r, view, log)

	// --- Router ---
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)

	// Simple request logger (logs method, path, status, and duration)
	mux.Use(mux_middleware.Logger)

	// --- CORS middleware ---
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by browsers
	}))

	handlers.RegisterRoutes(mux, handlers.Deps{
		Cfg:      cfg,
		Log:      log,
		Repo:     r,
		View:     view,
		Provider: provider,
		Tracker:  tracker,
		Sync:     sync,
	})

	// Outbound update pings; silenced automatically while the site is
	// private.
	announcer := pings.NewAnnouncer(view, cfg.Pings.Targets, cfg.BaseURL, cfg.Pings.Interval, log)
	go announcer.Run(ctx)

	// --- Start server ---
	addr := cfg.Listen
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}
	log.Info("listening", "addr", addr, "base_url", cfg.BaseURL, "multi_tenant", cfg.MultiTenant)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
