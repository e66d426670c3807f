// internal/handlers/invite.go
package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/common-repository/all-in-one-intranet/internal/activity"
	"github.com/common-repository/all-in-one-intranet/internal/auth"
	httpserver "github.com/common-repository/all-in-one-intranet/internal/http"
	"github.com/common-repository/all-in-one-intranet/internal/membership"
	"github.com/common-repository/all-in-one-intranet/internal/middleware"
	"github.com/common-repository/all-in-one-intranet/internal/models"
	"github.com/common-repository/all-in-one-intranet/internal/repo"
)

// InviteCreateHandler: tenant Owners/Admins invite users to the current
// tenant. Returns a one-time token (plaintext) for delivery via email; the
// token is hashed at rest.
// POST /api/invites { "email": "user@example.com", "role": "Member" }
func InviteCreateHandler(r repo.Repo, baseURL string) http.HandlerFunc {
	type bodyT struct {
		Email string `json:"email"`
		Role  string `json:"role"` // optional; defaults to Member
	}
	return func(w http.ResponseWriter, req *http.Request) {
		id := middleware.IdentityFromContext(req.Context())
		tenant, ok := middleware.TenantFromContext(req.Context())
		if id == nil || !ok {
			httpserver.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		if !hasAnyRole(id, models.RoleOwner, models.RoleAdmin) {
			httpserver.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
			return
		}

		var b bodyT
		if err := json.NewDecoder(req.Body).Decode(&b); err != nil || strings.TrimSpace(b.Email) == "" {
			httpserver.JSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
			return
		}
		role := models.RoleMember
		if strings.TrimSpace(b.Role) != "" {
			role = models.TenantRole(b.Role)
			// Disallow creating Owner via invite for safety.
			if !models.ValidRole(role) || role == models.RoleOwner {
				httpserver.JSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
				return
			}
		}

		// Generate token (plaintext) and store a SHA-256 hash.
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}
		token := base64.RawURLEncoding.EncodeToString(raw)
		sum := sha256.Sum256([]byte(token))
		tokenHash := hex.EncodeToString(sum[:])

		exp := time.Now().Add(7 * 24 * time.Hour)
		if err := r.CreateInvite(req.Context(), tenant.ID, id.User.ID, b.Email, role, tokenHash, exp); err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "create invite failed"})
			return
		}

		acceptURL := strings.TrimRight(baseURL, "/") + "/activate?token=" + neturl.QueryEscape(token)
		httpserver.JSON(w, http.StatusOK, map[string]any{
			"ok":         true,
			"accept_url": acceptURL,
			"exp":        exp,
			"role":       role,
		})
	}
}

// ActivateHandler is the account-activation endpoint, reachable without
// authentication even on a private site. It redeems an invite token,
// creates the account and its tenant membership, and logs the new user in.
// POST /activate { "token": "...", "name": "...", "password": "..." }
func ActivateHandler(r repo.Repo, sync *membership.Synchronizer, tracker *activity.Tracker) http.HandlerFunc {
	type bodyT struct {
		Token    string `json:"token"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	return func(w http.ResponseWriter, req *http.Request) {
		var b bodyT
		if err := json.NewDecoder(req.Body).Decode(&b); err != nil || b.Token == "" || len(b.Password) < 8 {
			httpserver.JSON(w, http.StatusBadRequest, map[string]string{"error": "bad json or weak password"})
			return
		}

		sum := sha256.Sum256([]byte(b.Token))
		inv, err := r.GetInviteByTokenHash(req.Context(), hex.EncodeToString(sum[:]))
		if errors.Is(err, models.ErrInviteNotFound) {
			httpserver.JSON(w, http.StatusNotFound, map[string]string{"error": "invalid token"})
			return
		}
		if err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}
		if inv.AcceptedAt != nil || time.Now().After(inv.ExpiresAt) {
			httpserver.JSON(w, http.StatusGone, map[string]string{"error": "invite expired"})
			return
		}

		user, err := r.CreateUser(req.Context(), inv.Email, b.Name)
		if err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "create user failed"})
			return
		}
		phc, err := auth.HashPassword(b.Password)
		if err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "hash error"})
			return
		}
		if err := r.CreateLocalCredential(req.Context(), user.ID, inv.Email, phc); err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "cannot set credential"})
			return
		}
		if err := r.AddMembership(req.Context(), inv.TenantID, user.ID, inv.Role); err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "membership failed"})
			return
		}
		if err := r.MarkInviteAccepted(req.Context(), inv.ID); err != nil {
			// The invite stays redeemable until this lands; harmless since
			// CreateUser will then fail on the duplicate email.
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}

		// Activation is a user-provisioning event: propagate the default
		// role across the other tenants.
		if err := sync.OnUserProvisioned(req.Context(), user.ID); err != nil {
			httpserver.JSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}

		auth.SetSessionCookie(w, models.Session{
			UserID:   user.ID,
			Provider: "local",
			Expiry:   time.Now().Add(auth.SessionTTL),
		})
		tracker.OnLogin(req.Context(), user.ID)

		httpserver.JSON(w, http.StatusOK, map[string]any{"ok": true, "user_id": user.ID})
	}
}

func hasAnyRole(id *models.Identity, want ...models.TenantRole) bool {
	for _, r := range id.Roles {
		for _, wr := range want {
			if r == wr {
				return true
			}
		}
	}
	return false
}
