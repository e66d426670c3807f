// internal/middleware/api_guard.go
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/common-repository/all-in-one-intranet/internal/access"
	"github.com/common-repository/all-in-one-intranet/internal/activity"
	httpserver "github.com/common-repository/all-in-one-intranet/internal/http"
	"github.com/common-repository/all-in-one-intranet/internal/identity"
	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

// APIGuardDeps wires the machine-API guard. Hook is the same optional
// policy hook the main gate takes.
type APIGuardDeps struct {
	View        *settings.View
	Provider    identity.Provider
	Tracker     *activity.Tracker
	Tenants     TenantResolver
	Hook        access.PublicAccessHook
	MultiTenant bool
	Log         *slog.Logger
}

// APIGuard fronts the machine API: requests pass when the site is public or
// the caller is authenticated, otherwise they get a machine-readable 401.
// Authenticated callers face the same idle timeout as page requests; an
// expired session is terminated and answered with a 401 rather than a
// redirect.
func APIGuard(d APIGuardDeps) func(http.Handler) http.Handler {
	log := d.Log.With("component", "api-guard")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rlog := requestLog(log, r.Context())
			opts := d.View.Load(r.Context())
			tenant := resolveTenant(r, d.Tenants, d.MultiTenant, rlog)
			id := d.Provider.CurrentIdentity(r, tenant.ID)

			dec := access.DecideAPIAccess(opts, id, d.Hook)
			if !dec.Allowed {
				httpserver.JSON(w, dec.Status, map[string]any{
					"code":    dec.Code,
					"message": dec.Message,
					"status":  dec.Status,
				})
				return
			}

			if id != nil {
				if d.Tracker.OnRequest(r.Context(), id.User.ID, opts, time.Now()) == activity.ForceLogout {
					d.Provider.ForceLogout(w)
					httpserver.JSON(w, http.StatusUnauthorized, map[string]any{
						"code":    "not-logged-in",
						"message": "Your session has expired. Please log in again.",
						"status":  http.StatusUnauthorized,
					})
					return
				}
			}

			ctx := WithTenant(r.Context(), tenant)
			ctx = WithIdentity(ctx, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
