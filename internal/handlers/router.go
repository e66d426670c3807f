// internal/handlers/router.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/common-repository/all-in-one-intranet/internal/access"
	"github.com/common-repository/all-in-one-intranet/internal/activity"
	"github.com/common-repository/all-in-one-intranet/internal/auth"
	"github.com/common-repository/all-in-one-intranet/internal/config"
	"github.com/common-repository/all-in-one-intranet/internal/identity"
	"github.com/common-repository/all-in-one-intranet/internal/membership"
	"github.com/common-repository/all-in-one-intranet/internal/middleware"
	"github.com/common-repository/all-in-one-intranet/internal/repo"
	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

type Deps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Repo     repo.Repo
	View     *settings.View
	Provider identity.Provider
	Tracker  *activity.Tracker
	Sync     *membership.Synchronizer
	// Hook optionally widens public access beyond the built-in allow-list.
	Hook access.PublicAccessHook
}

func RegisterRoutes(mux *chi.Mux, d Deps) {
	// The login wall itself must stay reachable without a session.
	mux.Post("/auth/login", auth.LoginHandler(d.Repo, d.Tracker, d.View, d.Cfg.Paths.AdminLanding))
	mux.Post("/auth/logout", auth.LogoutHandler())

	// Machine API: guarded separately, denials are 401 JSON.
	mux.Route("/api", func(sr chi.Router) {
		sr.Use(middleware.APIGuard(middleware.APIGuardDeps{
			View:        d.View,
			Provider:    d.Provider,
			Tracker:     d.Tracker,
			Tenants:     d.Repo,
			Hook:        d.Hook,
			MultiTenant: d.Cfg.MultiTenant,
			Log:         d.Log,
		}))

		sr.Get("/me", MeHandler())
		sr.Post("/invites", InviteCreateHandler(d.Repo, d.Cfg.BaseURL))
		sr.Post("/admin/users", ProvisionUserHandler(d.Repo, d.Sync))
		sr.Post("/admin/tenants", ProvisionTenantHandler(d.Repo, d.Sync))
	})

	// Everything else sits behind the private-site gate. The gate itself
	// allow-lists /activate and /robots.txt.
	mux.Group(func(sr chi.Router) {
		sr.Use(middleware.PrivateSiteGate(middleware.GateDeps{
			View:        d.View,
			Provider:    d.Provider,
			Tracker:     d.Tracker,
			Tenants:     d.Repo,
			Hook:        d.Hook,
			MultiTenant: d.Cfg.MultiTenant,
			LoginPath:   d.Cfg.Paths.Login,
			Log:         d.Log,
		}))

		sr.Get("/robots.txt", RobotsHandler(d.View))
		sr.Post("/activate", ActivateHandler(d.Repo, d.Sync, d.Tracker))

		// The intranet content itself: static files.
		sr.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("./static/"))))
		sr.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
	})
}
