// internal/identity/provider.go
package identity

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/common-repository/all-in-one-intranet/internal/auth"
	"github.com/common-repository/all-in-one-intranet/internal/models"
	"github.com/common-repository/all-in-one-intranet/internal/repo"
)

// Provider answers "who is making this request". The gate trusts its
// verdict completely; how authentication actually happened is not the
// gate's business.
type Provider interface {
	// CurrentIdentity resolves the authenticated identity at the given
	// tenant, or nil for an anonymous visitor.
	CurrentIdentity(r *http.Request, tenantID uuid.UUID) *models.Identity
	// TenantMembershipsOf lists every tenant the user belongs to.
	TenantMembershipsOf(ctx context.Context, userID uuid.UUID) ([]models.Tenant, error)
	// ForceLogout terminates the caller's session.
	ForceLogout(w http.ResponseWriter)
}

// sessionProvider resolves identities from the session cookie backed by the
// user directory in postgres.
type sessionProvider struct {
	repo repo.Repo
	log  *slog.Logger
}

func NewSessionProvider(r repo.Repo, log *slog.Logger) Provider {
	return &sessionProvider{repo: r, log: log.With("component", "identity")}
}

func (p *sessionProvider) CurrentIdentity(r *http.Request, tenantID uuid.UUID) *models.Identity {
	sess := auth.ReadSession(r)
	if sess == nil {
		return nil
	}

	user, err := p.repo.GetUserByID(r.Context(), sess.UserID)
	if err != nil {
		// A session pointing at a deleted user is anonymous.
		return nil
	}

	roles, err := p.repo.GetUserRoles(r.Context(), tenantID, sess.UserID)
	if err != nil {
		p.log.Warn("role lookup failed", "user_id", sess.UserID, "error", err)
		roles = nil
	}

	return &models.Identity{User: user, Roles: roles}
}

func (p *sessionProvider) TenantMembershipsOf(ctx context.Context, userID uuid.UUID) ([]models.Tenant, error) {
	return p.repo.TenantsOfUser(ctx, userID)
}

func (p *sessionProvider) ForceLogout(w http.ResponseWriter) {
	auth.ClearSessionCookie(w)
}
