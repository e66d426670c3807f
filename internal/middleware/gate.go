// internal/middleware/gate.go
package middleware

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/common-repository/all-in-one-intranet/internal/access"
	"github.com/common-repository/all-in-one-intranet/internal/activity"
	"github.com/common-repository/all-in-one-intranet/internal/identity"
	"github.com/common-repository/all-in-one-intranet/internal/models"
	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

// TenantResolver maps requests to tenants; repo.Repo satisfies it.
type TenantResolver interface {
	FindTenantByHost(ctx context.Context, host string) (models.Tenant, error)
	DefaultTenant(ctx context.Context) (models.Tenant, error)
}

// GateDeps wires the private-site gate. Hook is optional; a deployment may
// register it to widen public access beyond the built-in allow-list.
type GateDeps struct {
	View        *settings.View
	Provider    identity.Provider
	Tracker     *activity.Tracker
	Tenants     TenantResolver
	Hook        access.PublicAccessHook
	MultiTenant bool
	LoginPath   string
	Log         *slog.Logger
}

// PrivateSiteGate runs on every inbound page request, before any response
// body: it loads settings once, asks the identity provider who is calling,
// takes the main access decision, and for authenticated callers runs the
// idle-timeout check, which can still turn an allowed request into a forced
// logout.
func PrivateSiteGate(d GateDeps) func(http.Handler) http.Handler {
	log := d.Log.With("component", "gate")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rlog := requestLog(log, r.Context())
			opts := d.View.Load(r.Context())

			tenant := resolveTenant(r, d.Tenants, d.MultiTenant, rlog)
			id := d.Provider.CurrentIdentity(r, tenant.ID)

			var memberships []models.Tenant
			if id != nil && d.MultiTenant && opts.PrivateSite {
				var err error
				memberships, err = d.Provider.TenantMembershipsOf(r.Context(), id.User.ID)
				if err != nil {
					// Treated as zero memberships; the gate then denies,
					// which is the safer state.
					rlog.Warn("membership lookup failed", "user_id", id.User.ID, "error", err)
				}
			}

			req := access.Request{
				Path:          r.URL.Path,
				MultiTenant:   d.MultiTenant,
				NetworkAdmin:  strings.HasPrefix(r.URL.Path, "/network-admin"),
				CurrentTenant: tenant.ID,
			}

			dec := access.DecideMainAccess(opts, req, id, memberships, d.Hook)
			switch dec.Verdict {
			case access.RedirectToLogin:
				target := d.LoginPath + "?redirect_to=" + url.QueryEscape(originalURL(r))
				http.Redirect(w, r, target, http.StatusFound)
				return
			case access.Deny:
				d.Provider.ForceLogout(w)
				writeDenialPage(w, dec, tenant)
				return
			}

			// Allowed. Authenticated callers still face the idle timeout.
			if id != nil {
				if d.Tracker.OnRequest(r.Context(), id.User.ID, opts, time.Now()) == activity.ForceLogout {
					d.Provider.ForceLogout(w)
					// Back to the same URL; the login wall re-engages if
					// the site is private.
					http.Redirect(w, r, originalURL(r), http.StatusFound)
					return
				}
			}

			ctx := WithTenant(r.Context(), tenant)
			ctx = WithIdentity(ctx, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveTenant maps the request host to a tenant. Single-tenant
// deployments have exactly one tenant record.
func resolveTenant(r *http.Request, rp TenantResolver, multiTenant bool, log *slog.Logger) models.Tenant {
	if multiTenant {
		t, err := rp.FindTenantByHost(r.Context(), requestHost(r))
		if err == nil {
			return t
		}
		log.Warn("tenant resolution by host failed", "host", requestHost(r), "error", err)
	}
	t, err := rp.DefaultTenant(r.Context())
	if err != nil {
		log.Warn("default tenant lookup failed", "error", err)
		return models.Tenant{}
	}
	return t
}

func requestHost(r *http.Request) string {
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		return h
	}
	return r.Host
}

func originalURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + requestHost(r) + r.URL.RequestURI()
}

func writeDenialPage(w http.ResponseWriter, dec access.Decision, tenant models.Tenant) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)

	switch dec.Reason {
	case access.DenyNoPermission:
		fmt.Fprint(w, "<p>You attempted to login to the site, but you do not have any permissions. If you believe you should have access, please contact your administrator.</p>")
	case access.DenyNotMember:
		name := html.EscapeString(tenant.Name)
		fmt.Fprintf(w, "<p>You attempted to access the %q sub-site, but you are not currently a member of this site. If you believe you should be able to access %q, please contact your network administrator.</p>", name, name)
		if len(dec.MemberTenants) > 0 {
			fmt.Fprint(w, "<p>You are a member of the following sites:</p><table>")
			for _, t := range dec.MemberTenants {
				fmt.Fprintf(w, "<tr><td><a href=%q>%s</a></td></tr>",
					t.HomeURL, html.EscapeString(t.Name))
			}
			fmt.Fprint(w, "</table>")
		}
	default:
		fmt.Fprint(w, "<p>Access denied.</p>")
	}
}
