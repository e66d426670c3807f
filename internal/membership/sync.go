// internal/membership/sync.go
package membership

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/common-repository/all-in-one-intranet/internal/models"
	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

// Directory is the slice of the identity provider the synchronizer needs.
// AddMembership must be idempotent; membership is a set.
type Directory interface {
	ListAllTenants(ctx context.Context) ([]models.Tenant, error)
	ListAllUserIDs(ctx context.Context) ([]uuid.UUID, error)
	IsMember(ctx context.Context, tenantID, userID uuid.UUID) (bool, error)
	AddMembership(ctx context.Context, tenantID, userID uuid.UUID, role models.TenantRole) error
}

// Synchronizer keeps the configured default role consistent across all
// (tenant, user) pairs when new tenants or users are provisioned. Both
// triggers are no-ops when no default role is configured.
type Synchronizer struct {
	dir  Directory
	view *settings.View
	log  *slog.Logger
}

func NewSynchronizer(dir Directory, view *settings.View, log *slog.Logger) *Synchronizer {
	return &Synchronizer{dir: dir, view: view, log: log.With("component", "membership")}
}

// OnUserProvisioned adds a freshly created user to every tenant they are not
// already a member of. Individual add failures are logged and skipped; the
// whole operation is safely re-runnable.
func (s *Synchronizer) OnUserProvisioned(ctx context.Context, userID uuid.UUID) error {
	role := models.TenantRole(s.view.Load(ctx).DefaultTenantRole)
	if role == "" {
		return nil
	}

	tenants, err := s.dir.ListAllTenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	for _, t := range tenants {
		s.ensureMember(ctx, t.ID, userID, role)
	}
	return nil
}

// OnTenantProvisioned adds every existing user except the tenant's creator
// (already a member by virtue of creating it) to the new tenant.
func (s *Synchronizer) OnTenantProvisioned(ctx context.Context, tenantID, creatorID uuid.UUID) error {
	role := models.TenantRole(s.view.Load(ctx).DefaultTenantRole)
	if role == "" {
		return nil
	}

	users, err := s.dir.ListAllUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, uid := range users {
		if uid == creatorID {
			continue
		}
		s.ensureMember(ctx, tenantID, uid, role)
	}
	return nil
}

func (s *Synchronizer) ensureMember(ctx context.Context, tenantID, userID uuid.UUID, role models.TenantRole) {
	member, err := s.dir.IsMember(ctx, tenantID, userID)
	if err != nil {
		s.log.Warn("membership check failed", "tenant_id", tenantID, "user_id", userID, "error", err)
		return
	}
	if member {
		return
	}
	if err := s.dir.AddMembership(ctx, tenantID, userID, role); err != nil {
		s.log.Warn("membership add failed", "tenant_id", tenantID, "user_id", userID, "error", err)
	}
}
