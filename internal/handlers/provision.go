// internal/handlers/provision.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/common-repository/all-in-one-intranet/internal/auth"
	httpserver "github.com/common-repository/all-in-one-intranet/internal/http"
	"github.com/common-repository/all-in-one-intranet/internal/membership"
	"github.com/common-repository/all-in-one-intranet/internal/middleware"
	"github.com/common-repository/all-in-one-intranet/internal/models"
	"github.com/common-repository/all-in-one-intranet/internal/repo"
)

// ProvisionUserHandler creates a user account directly and propagates the
// configured default role across all tenants.
// POST /api/admin/users { "email": "...", "name": "...", "password": "..." }
func ProvisionUserHandler(r repo.Repo, sync *membership.Synchronizer) http.HandlerFunc {
	type bodyT struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	return func(w http.ResponseWriter, req *http.Request) {
		if !requireNetworkAdmin(w, req) {
			return
		}
		var b bodyT
		if err := json.NewDecoder(req.Body).Decode(&b); err != nil || strings.TrimSpace(b.Email) == "" {
			httpserver.JSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
			return
		}

		user, err := r.CreateUser(req.Context(), b.Email, b.Name)
		if err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "create user failed"})
			return
		}
		if b.Password != "" {
			phc, err := auth.HashPassword(b.Password)
			if err != nil {
				httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "hash error"})
				return
			}
			if err := r.CreateLocalCredential(req.Context(), user.ID, b.Email, phc); err != nil {
				httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot set credential"})
				return
			}
		}

		if err := sync.OnUserProvisioned(req.Context(), user.ID); err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "membership sync failed"})
			return
		}

		httpserver.JSON(w, http.StatusOK, map[string]any{"ok": true, "user_id": user.ID})
	}
}

// ProvisionTenantHandler creates a tenant, makes the caller its owner, and
// back-fills all other users at the configured default role.
// POST /api/admin/tenants { "slug": "...", "name": "...", "home_url": "..." }
func ProvisionTenantHandler(r repo.Repo, sync *membership.Synchronizer) http.HandlerFunc {
	type bodyT struct {
		Slug    string `json:"slug"`
		Name    string `json:"name"`
		HomeURL string `json:"home_url"`
	}
	return func(w http.ResponseWriter, req *http.Request) {
		if !requireNetworkAdmin(w, req) {
			return
		}
		id := middleware.IdentityFromContext(req.Context())
		var b bodyT
		if err := json.NewDecoder(req.Body).Decode(&b); err != nil || strings.TrimSpace(b.Slug) == "" || strings.TrimSpace(b.HomeURL) == "" {
			httpserver.JSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
			return
		}

		tenant, err := r.CreateTenant(req.Context(), b.Slug, b.Name, b.HomeURL)
		if err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "create tenant failed"})
			return
		}
		if err := r.AddMembership(req.Context(), tenant.ID, id.User.ID, models.RoleOwner); err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "membership failed"})
			return
		}

		// Everyone except the creator, who is already a member.
		if err := sync.OnTenantProvisioned(req.Context(), tenant.ID, id.User.ID); err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "membership sync failed"})
			return
		}

		httpserver.JSON(w, http.StatusOK, map[string]any{"ok": true, "tenant_id": tenant.ID})
	}
}

// MeHandler returns the caller's identity, or 204 for anonymous callers on
// a public site.
// GET /api/me
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := middleware.IdentityFromContext(req.Context())
		if id == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		httpserver.JSON(w, http.StatusOK, map[string]any{
			"user_id": id.User.ID,
			"email":   id.User.Email,
			"name":    id.User.Name,
			"roles":   id.Roles,
		})
	}
}

// requireNetworkAdmin gates provisioning: the caller must be authenticated
// and hold Owner or Admin somewhere. Provisioning runs from the network
// management surface, not ordinary tenant pages.
func requireNetworkAdmin(w http.ResponseWriter, req *http.Request) bool {
	id := middleware.IdentityFromContext(req.Context())
	if id == nil {
		httpserver.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return false
	}
	if !hasAnyRole(id, models.RoleOwner, models.RoleAdmin) {
		httpserver.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return false
	}
	return true
}
