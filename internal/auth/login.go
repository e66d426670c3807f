// internal/auth/login.go
package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/common-repository/all-in-one-intranet/internal/access"
	"github.com/common-repository/all-in-one-intranet/internal/activity"
	httpserver "github.com/common-repository/all-in-one-intranet/internal/http"
	"github.com/common-repository/all-in-one-intranet/internal/models"
	"github.com/common-repository/all-in-one-intranet/internal/repo"
	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

// LoginHandler verifies local credentials, opens a session and answers with
// the post-login redirect target. The idle timer is reset on every
// successful login.
// POST /auth/login { "username": "...", "password": "...", "redirect_to": "..." }
func LoginHandler(r repo.Repo, tracker *activity.Tracker, view *settings.View, adminLanding string) http.HandlerFunc {
	type bodyT struct {
		Username   string `json:"username"`
		Password   string `json:"password"`
		RedirectTo string `json:"redirect_to"`
	}
	return func(w http.ResponseWriter, req *http.Request) {
		var b bodyT
		if err := json.NewDecoder(req.Body).Decode(&b); err != nil || strings.TrimSpace(b.Username) == "" {
			httpserver.JSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
			return
		}

		cred, user, err := r.GetLocalCredentialByUsername(req.Context(), b.Username)
		if err != nil {
			httpserver.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		ok, err := VerifyPassword(b.Password, cred.PasswordHash)
		if err != nil || !ok {
			httpserver.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}

		SetSessionCookie(w, models.Session{
			UserID:   user.ID,
			Provider: "local",
			Expiry:   time.Now().Add(SessionTTL),
		})

		// Reset the idle timer; a failed write never blocks the login.
		tracker.OnLogin(req.Context(), user.ID)

		// Deep links carried through the login wall win over the
		// configured override.
		defaultTarget := strings.TrimSpace(b.RedirectTo)
		if defaultTarget == "" {
			defaultTarget = adminLanding
		}
		target := access.DecideLoginRedirectTarget(view.Load(req.Context()), &models.Identity{User: user}, defaultTarget, adminLanding)

		httpserver.JSON(w, http.StatusOK, map[string]any{"ok": true, "redirect": target})
	}
}

// LogoutHandler terminates the session.
// POST /auth/logout
func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ClearSessionCookie(w)
		httpserver.JSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
