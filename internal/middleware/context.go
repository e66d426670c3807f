// internal/middleware/context.go
package middleware

import (
	"context"

	"github.com/common-repository/all-in-one-intranet/internal/models"
)

type ctxKeyIdentity struct{}
type ctxKeyTenant struct{}

func WithIdentity(ctx context.Context, id *models.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, id)
}

// IdentityFromContext returns the identity the gate resolved, or nil for an
// anonymous request (on a public site anonymous requests pass the gate).
func IdentityFromContext(ctx context.Context) *models.Identity {
	id, _ := ctx.Value(ctxKeyIdentity{}).(*models.Identity)
	return id
}

func WithTenant(ctx context.Context, t models.Tenant) context.Context {
	return context.WithValue(ctx, ctxKeyTenant{}, t)
}

func TenantFromContext(ctx context.Context) (models.Tenant, bool) {
	t, ok := ctx.Value(ctxKeyTenant{}).(models.Tenant)
	return t, ok
}
