// internal/access/access.go
package access

import (
	"strings"

	"github.com/google/uuid"

	"github.com/common-repository/all-in-one-intranet/internal/models"
	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

// Verdict is the outcome of the main private-site gate.
type Verdict int

const (
	Allow Verdict = iota
	RedirectToLogin
	Deny
)

type DenyReason string

const (
	// DenyNoPermission: authenticated on a single-tenant site but holding no
	// role at all. The caller must terminate the session before rendering
	// the denial.
	DenyNoPermission DenyReason = "no-permission"
	// DenyNotMember: authenticated in a multi-tenant deployment but not a
	// member of the current tenant.
	DenyNotMember DenyReason = "not-a-member"
)

type Decision struct {
	Verdict Verdict
	Reason  DenyReason
	// MemberTenants lists, on a not-a-member denial, the tenants the
	// identity does belong to so the denial page can offer navigation.
	MemberTenants []models.Tenant
}

// Request carries the per-request facts the gate reads. NetworkAdmin marks
// the privileged cross-tenant management context, which is exempt from the
// membership check.
type Request struct {
	Path          string
	MultiTenant   bool
	NetworkAdmin  bool
	CurrentTenant uuid.UUID
}

// PublicAccessHook lets a deployment widen (or narrow) public access. It
// receives the decision the built-in allow-list would make and its result
// takes precedence.
type PublicAccessHook func(defaultAllow bool) bool

// Paths exempt from the private-site gate: account activation and the
// crawler directives file.
var publicPathPrefixes = []string{"/activate", "/robots.txt"}

func isPublicPath(path string) bool {
	for _, p := range publicPathPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// DecideMainAccess is the per-request gate. Rules are evaluated strictly in
// order; the first match wins. memberships is the set of tenants the
// identity belongs to (ignored in single-tenant mode), hook may be nil.
func DecideMainAccess(s settings.Settings, req Request, id *models.Identity, memberships []models.Tenant, hook PublicAccessHook) Decision {
	if !s.PrivateSite {
		return Decision{Verdict: Allow}
	}

	allowPublic := isPublicPath(req.Path)
	if hook != nil {
		allowPublic = hook(allowPublic)
	}
	if allowPublic {
		return Decision{Verdict: Allow}
	}

	if id == nil {
		return Decision{Verdict: RedirectToLogin}
	}

	if !req.MultiTenant {
		// Restrict access to users with no role.
		if len(id.Roles) == 0 {
			return Decision{Verdict: Deny, Reason: DenyNoPermission}
		}
		return Decision{Verdict: Allow}
	}

	if s.RequireTenantMembership && !req.NetworkAdmin && !memberOf(memberships, req.CurrentTenant) {
		return Decision{Verdict: Deny, Reason: DenyNotMember, MemberTenants: memberships}
	}

	return Decision{Verdict: Allow}
}

func memberOf(tenants []models.Tenant, id uuid.UUID) bool {
	for _, t := range tenants {
		if t.ID == id {
			return true
		}
	}
	return false
}

// DecideCrawlerDirectives disallows everything for crawlers while the site
// is private, otherwise passes the normal public body through.
func DecideCrawlerDirectives(s settings.Settings, publicDefault string) string {
	if s.PrivateSite {
		return "Disallow: /\n"
	}
	return publicDefault
}

// DecideOutboundPingTargets drops all update-ping targets while the site is
// private; a private site must not announce content to external aggregators.
func DecideOutboundPingTargets(s settings.Settings, configured []string) []string {
	if s.PrivateSite {
		return nil
	}
	return configured
}

// APIDecision is the verdict for machine API requests.
type APIDecision struct {
	Allowed bool
	Status  int
	Code    string
	Message string
}

// DecideAPIAccess allows API requests when the site is public or the caller
// is authenticated. The same hook as the main gate may override the
// computed default.
func DecideAPIAccess(s settings.Settings, id *models.Identity, hook PublicAccessHook) APIDecision {
	allow := !s.PrivateSite || id != nil
	if hook != nil {
		allow = hook(allow)
	}
	if allow {
		return APIDecision{Allowed: true}
	}
	return APIDecision{
		Allowed: false,
		Status:  401,
		Code:    "not-logged-in",
		Message: "API requests must be authenticated because this site is private",
	}
}

// DecideLoginRedirectTarget substitutes the configured post-login URL, but
// only for an actual resolved login and only when the default target is the
// generic admin landing page. A target carried over from the original
// request (deep link) always wins.
func DecideLoginRedirectTarget(s settings.Settings, id *models.Identity, defaultTarget, adminLanding string) string {
	if id == nil {
		return defaultTarget
	}
	if s.LoginRedirectURL != "" && defaultTarget == adminLanding {
		return s.LoginRedirectURL
	}
	return defaultTarget
}
