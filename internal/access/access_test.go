// internal/access/access_test.go
package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/common-repository/all-in-one-intranet/internal/models"
	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

func privateSettings() settings.Settings {
	s := settings.Defaults()
	s.PrivateSite = true
	s.RequireTenantMembership = true
	return s
}

func publicSettings() settings.Settings {
	s := settings.Defaults()
	s.PrivateSite = false
	return s
}

func identityWithRoles(roles ...models.TenantRole) *models.Identity {
	return &models.Identity{
		User:  models.User{ID: uuid.New(), Email: "a@example.com"},
		Roles: roles,
	}
}

func TestMainAccessPublicSiteAlwaysAllows(t *testing.T) {
	tenant := uuid.New()
	cases := []struct {
		name string
		path string
		id   *models.Identity
	}{
		{"anonymous", "/secret", nil},
		{"authenticated no roles", "/secret", identityWithRoles()},
		{"member", "/", identityWithRoles(models.RoleMember)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := DecideMainAccess(publicSettings(), Request{Path: tc.path, MultiTenant: true, CurrentTenant: tenant}, tc.id, nil, nil)
			assert.Equal(t, Allow, d.Verdict)
		})
	}
}

func TestMainAccessAllowListedPaths(t *testing.T) {
	for _, path := range []string{"/activate", "/activate?token=x", "/robots.txt"} {
		d := DecideMainAccess(privateSettings(), Request{Path: path}, nil, nil, nil)
		assert.Equal(t, Allow, d.Verdict, "path %s", path)
	}
}

func TestMainAccessHookOverridesAllowList(t *testing.T) {
	// Widening: a hook can open a path the allow-list would not.
	widen := func(def bool) bool { return true }
	d := DecideMainAccess(privateSettings(), Request{Path: "/status"}, nil, nil, widen)
	assert.Equal(t, Allow, d.Verdict)

	// Narrowing: the hook result wins even against the built-in list.
	narrow := func(def bool) bool { return false }
	d = DecideMainAccess(privateSettings(), Request{Path: "/robots.txt"}, nil, nil, narrow)
	assert.Equal(t, RedirectToLogin, d.Verdict)
}

func TestMainAccessAnonymousRedirects(t *testing.T) {
	d := DecideMainAccess(privateSettings(), Request{Path: "/dashboard"}, nil, nil, nil)
	assert.Equal(t, RedirectToLogin, d.Verdict)
}

func TestMainAccessSingleTenantNoRoles(t *testing.T) {
	d := DecideMainAccess(privateSettings(), Request{Path: "/"}, identityWithRoles(), nil, nil)
	require.Equal(t, Deny, d.Verdict)
	assert.Equal(t, DenyNoPermission, d.Reason)

	// Any role at all is enough.
	d = DecideMainAccess(privateSettings(), Request{Path: "/"}, identityWithRoles(models.RoleViewer), nil, nil)
	assert.Equal(t, Allow, d.Verdict)
}

func TestMainAccessMultiTenantMembership(t *testing.T) {
	current := uuid.New()
	other := models.Tenant{ID: uuid.New(), Name: "Team B", HomeURL: "https://b.example.com"}
	req := Request{Path: "/", MultiTenant: true, CurrentTenant: current}

	t.Run("not a member", func(t *testing.T) {
		d := DecideMainAccess(privateSettings(), req, identityWithRoles(), []models.Tenant{other}, nil)
		require.Equal(t, Deny, d.Verdict)
		assert.Equal(t, DenyNotMember, d.Reason)
		assert.Equal(t, []models.Tenant{other}, d.MemberTenants)
	})

	t.Run("member of zero tenants", func(t *testing.T) {
		d := DecideMainAccess(privateSettings(), req, identityWithRoles(), nil, nil)
		require.Equal(t, Deny, d.Verdict)
		assert.Equal(t, DenyNotMember, d.Reason)
		assert.Empty(t, d.MemberTenants)
	})

	t.Run("member of current tenant", func(t *testing.T) {
		mine := models.Tenant{ID: current, Name: "Team A"}
		d := DecideMainAccess(privateSettings(), req, identityWithRoles(), []models.Tenant{other, mine}, nil)
		assert.Equal(t, Allow, d.Verdict)
	})

	t.Run("network admin context is exempt", func(t *testing.T) {
		adminReq := req
		adminReq.NetworkAdmin = true
		d := DecideMainAccess(privateSettings(), adminReq, identityWithRoles(), nil, nil)
		assert.Equal(t, Allow, d.Verdict)
	})

	t.Run("membership not required", func(t *testing.T) {
		s := privateSettings()
		s.RequireTenantMembership = false
		d := DecideMainAccess(s, req, identityWithRoles(), nil, nil)
		assert.Equal(t, Allow, d.Verdict)
	})
}

func TestCrawlerDirectives(t *testing.T) {
	assert.Equal(t, "Disallow: /\n", DecideCrawlerDirectives(privateSettings(), "User-agent: *\nDisallow:\n"))
	assert.Equal(t, "User-agent: *\nDisallow:\n", DecideCrawlerDirectives(publicSettings(), "User-agent: *\nDisallow:\n"))
}

func TestOutboundPingTargets(t *testing.T) {
	targets := []string{"https://example.com/ping"}
	assert.Empty(t, DecideOutboundPingTargets(privateSettings(), targets))
	assert.Equal(t, targets, DecideOutboundPingTargets(publicSettings(), targets))
}

func TestAPIAccess(t *testing.T) {
	t.Run("private anonymous denied", func(t *testing.T) {
		d := DecideAPIAccess(privateSettings(), nil, nil)
		require.False(t, d.Allowed)
		assert.Equal(t, 401, d.Status)
		assert.Equal(t, "not-logged-in", d.Code)
	})

	t.Run("public anonymous allowed", func(t *testing.T) {
		assert.True(t, DecideAPIAccess(publicSettings(), nil, nil).Allowed)
	})

	t.Run("private authenticated allowed", func(t *testing.T) {
		assert.True(t, DecideAPIAccess(privateSettings(), identityWithRoles(), nil).Allowed)
	})

	t.Run("hook always wins", func(t *testing.T) {
		deny := func(bool) bool { return false }
		assert.False(t, DecideAPIAccess(publicSettings(), identityWithRoles(), deny).Allowed)

		allow := func(bool) bool { return true }
		assert.True(t, DecideAPIAccess(privateSettings(), nil, allow).Allowed)
	})
}

func TestLoginRedirectTarget(t *testing.T) {
	const landing = "/admin"
	s := privateSettings()
	s.LoginRedirectURL = "https://intranet.example.com/home"
	id := identityWithRoles(models.RoleMember)

	// Override applies only to the generic landing target.
	assert.Equal(t, "https://intranet.example.com/home", DecideLoginRedirectTarget(s, id, landing, landing))

	// A deep link carried through the login wall is left alone.
	assert.Equal(t, "/reports/42", DecideLoginRedirectTarget(s, id, "/reports/42", landing))

	// No resolved identity, no override.
	assert.Equal(t, landing, DecideLoginRedirectTarget(s, nil, landing, landing))

	// Nothing configured, nothing changes.
	assert.Equal(t, landing, DecideLoginRedirectTarget(privateSettings(), id, landing, landing))
}
