// internal/middleware/gate_test.go
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/all-in-one-intranet/internal/access"
	"github.com/common-repository/all-in-one-intranet/internal/activity"
	"github.com/common-repository/all-in-one-intranet/internal/models"
	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

type optionStore struct{ record map[string]any }

func (s optionStore) GetOption(context.Context, string) (map[string]any, bool, error) {
	return s.record, s.record != nil, nil
}

type fakeProvider struct {
	id          *models.Identity
	memberships []models.Tenant
	loggedOut   bool
}

func (p *fakeProvider) CurrentIdentity(*http.Request, uuid.UUID) *models.Identity { return p.id }

func (p *fakeProvider) TenantMembershipsOf(context.Context, uuid.UUID) ([]models.Tenant, error) {
	return p.memberships, nil
}

func (p *fakeProvider) ForceLogout(http.ResponseWriter) { p.loggedOut = true }

type fakeTenants struct{ current models.Tenant }

func (f fakeTenants) FindTenantByHost(context.Context, string) (models.Tenant, error) {
	return f.current, nil
}

func (f fakeTenants) DefaultTenant(context.Context) (models.Tenant, error) {
	return f.current, nil
}

type activityStore struct{ last map[uuid.UUID]time.Time }

func (s *activityStore) LastActivity(_ context.Context, id uuid.UUID) (time.Time, bool, error) {
	t, ok := s.last[id]
	return t, ok, nil
}

func (s *activityStore) TouchActivity(_ context.Context, id uuid.UUID, t time.Time) error {
	s.last[id] = t
	return nil
}

type gateFixture struct {
	deps     GateDeps
	provider *fakeProvider
	activity *activityStore
	next     *bool
}

func newGateFixture(record map[string]any, id *models.Identity, multiTenant bool) *gateFixture {
	log := slog.Default()
	provider := &fakeProvider{id: id}
	store := &activityStore{last: make(map[uuid.UUID]time.Time)}
	next := false
	f := &gateFixture{
		deps: GateDeps{
			View:        settings.NewView(optionStore{record: record}, log),
			Provider:    provider,
			Tracker:     activity.NewTracker(store, log),
			Tenants:     fakeTenants{current: models.Tenant{ID: uuid.New(), Name: "Head Office"}},
			MultiTenant: multiTenant,
			LoginPath:   "/login",
			Log:         log,
		},
		provider: provider,
		activity: store,
		next:     &next,
	}
	return f
}

func (f *gateFixture) serve(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h := PrivateSiteGate(f.deps)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*f.next = true
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(rec, r)
	return rec
}

func member() *models.Identity {
	return &models.Identity{
		User:  models.User{ID: uuid.New(), Email: "a@example.com"},
		Roles: []models.TenantRole{models.RoleMember},
	}
}

func TestGatePublicSitePassesAnonymous(t *testing.T) {
	f := newGateFixture(map[string]any{"private_site": false}, nil, false)
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.True(t, *f.next)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGatePrivateRedirectsAnonymous(t *testing.T) {
	f := newGateFixture(nil, nil, false)
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/reports/42?page=2", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	assert.Contains(t, loc, "/login?redirect_to=")
	assert.Contains(t, loc, "%2Freports%2F42%3Fpage%3D2")
	assert.False(t, *f.next)
}

func TestGateAllowListedPathPassesAnonymous(t *testing.T) {
	f := newGateFixture(nil, nil, false)
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/robots.txt", nil))

	assert.True(t, *f.next)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateHookWidensAccess(t *testing.T) {
	f := newGateFixture(nil, nil, false)
	f.deps.Hook = func(def bool) bool { return true }
	f.serve(httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.True(t, *f.next)
}

func TestGateNoPermissionTerminatesSession(t *testing.T) {
	id := member()
	id.Roles = nil
	f := newGateFixture(nil, id, false)
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, f.provider.loggedOut)
	assert.Contains(t, rec.Body.String(), "do not have any permissions")
	assert.False(t, *f.next)
}

func TestGateNotMemberListsOtherTenants(t *testing.T) {
	f := newGateFixture(nil, member(), true)
	f.provider.memberships = []models.Tenant{
		{ID: uuid.New(), Name: "Team B", HomeURL: "https://b.example.com"},
	}
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, f.provider.loggedOut)
	body := rec.Body.String()
	assert.Contains(t, body, "not currently a member")
	assert.Contains(t, body, "Team B")
	assert.Contains(t, body, "https://b.example.com")
}

func TestGateMemberPassesAndContextIsPopulated(t *testing.T) {
	id := member()
	f := newGateFixture(nil, id, true)
	f.provider.memberships = []models.Tenant{f.deps.Tenants.(fakeTenants).current}

	var gotID *models.Identity
	rec := httptest.NewRecorder()
	h := PrivateSiteGate(f.deps)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = IdentityFromContext(r.Context())
		_, ok := TenantFromContext(r.Context())
		assert.True(t, ok)
	}))
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, gotID)
}

func TestGateIdleTimeoutForcesLogout(t *testing.T) {
	id := member()
	f := newGateFixture(map[string]any{
		"private_site":     false,
		"autologout_time":  float64(30),
		"autologout_units": "minutes",
	}, id, false)
	f.activity.last[id.User.ID] = time.Now().Add(-time.Hour)

	req := httptest.NewRequest(http.MethodGet, "http://intranet.example.com/deep/page", nil)
	rec := f.serve(req)

	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, f.provider.loggedOut)
	// Sent back to the same URL so the login wall re-engages if private.
	assert.Equal(t, "http://intranet.example.com/deep/page", rec.Header().Get("Location"))
	assert.False(t, *f.next)
}

type errTenants struct{}

func (errTenants) FindTenantByHost(context.Context, string) (models.Tenant, error) {
	return models.Tenant{}, errors.New("unknown host")
}

func (errTenants) DefaultTenant(context.Context) (models.Tenant, error) {
	return models.Tenant{}, errors.New("no tenants")
}

func TestGateLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	f := newGateFixture(map[string]any{"private_site": false}, nil, false)
	f.deps.Tenants = errTenants{}
	f.deps.Log = log

	rec := httptest.NewRecorder()
	h := RequestID(PrivateSiteGate(f.deps)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-abc123")
	h.ServeHTTP(rec, req)

	assert.Contains(t, buf.String(), "default tenant lookup failed")
	assert.Contains(t, buf.String(), "request_id=req-abc123")
}

func TestGateFreshSessionRefreshesActivity(t *testing.T) {
	id := member()
	f := newGateFixture(map[string]any{
		"private_site":     false,
		"autologout_time":  float64(30),
		"autologout_units": "minutes",
	}, id, false)
	before := time.Now().Add(-time.Minute)
	f.activity.last[id.User.ID] = before

	f.serve(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, *f.next)
	assert.True(t, f.activity.last[id.User.ID].After(before))
}

type guardFixture struct {
	deps     APIGuardDeps
	provider *fakeProvider
	activity *activityStore
	next     *bool
}

func newGuardFixture(record map[string]any, id *models.Identity) *guardFixture {
	log := slog.Default()
	provider := &fakeProvider{id: id}
	store := &activityStore{last: make(map[uuid.UUID]time.Time)}
	next := false
	return &guardFixture{
		deps: APIGuardDeps{
			View:     settings.NewView(optionStore{record: record}, log),
			Provider: provider,
			Tracker:  activity.NewTracker(store, log),
			Tenants:  fakeTenants{current: models.Tenant{ID: uuid.New()}},
			Log:      log,
		},
		provider: provider,
		activity: store,
		next:     &next,
	}
}

func (f *guardFixture) serve() *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h := APIGuard(f.deps)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*f.next = true
	}))
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	return rec
}

func TestAPIGuard(t *testing.T) {
	run := func(record map[string]any, id *models.Identity, hook access.PublicAccessHook) (*httptest.ResponseRecorder, bool) {
		f := newGuardFixture(record, id)
		f.deps.Hook = hook
		rec := f.serve()
		return rec, *f.next
	}

	t.Run("private anonymous gets machine-readable 401", func(t *testing.T) {
		rec, next := run(nil, nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, next)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not-logged-in", body["code"])
		assert.Equal(t, float64(401), body["status"])
		assert.NotEmpty(t, body["message"])
	})

	t.Run("authenticated passes", func(t *testing.T) {
		_, next := run(nil, member(), nil)
		assert.True(t, next)
	})

	t.Run("public site passes anonymous", func(t *testing.T) {
		_, next := run(map[string]any{"private_site": false}, nil, nil)
		assert.True(t, next)
	})

	t.Run("hook override wins", func(t *testing.T) {
		rec, next := run(map[string]any{"private_site": false}, member(), func(bool) bool { return false })
		assert.False(t, next)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAPIGuardIdleTimeout(t *testing.T) {
	timeoutRecord := map[string]any{
		"autologout_time":  float64(30),
		"autologout_units": "minutes",
	}

	t.Run("stale session is terminated with 401", func(t *testing.T) {
		// No activity record at all counts as stale.
		f := newGuardFixture(timeoutRecord, member())
		rec := f.serve()

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.True(t, f.provider.loggedOut)
		assert.False(t, *f.next)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not-logged-in", body["code"])
	})

	t.Run("expired session is terminated with 401", func(t *testing.T) {
		id := member()
		f := newGuardFixture(timeoutRecord, id)
		f.activity.last[id.User.ID] = time.Now().Add(-time.Hour)
		rec := f.serve()

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.True(t, f.provider.loggedOut)
	})

	t.Run("fresh session passes and refreshes activity", func(t *testing.T) {
		id := member()
		f := newGuardFixture(timeoutRecord, id)
		before := time.Now().Add(-time.Minute)
		f.activity.last[id.User.ID] = before
		rec := f.serve()

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, *f.next)
		assert.False(t, f.provider.loggedOut)
		assert.True(t, f.activity.last[id.User.ID].After(before))
	})

	t.Run("timeout disabled passes without a record", func(t *testing.T) {
		f := newGuardFixture(nil, member())
		f.serve()
		assert.True(t, *f.next)
	})
}
