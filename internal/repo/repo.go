// internal/repo/repo.go
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/common-repository/all-in-one-intranet/internal/models"
)

// Repo defines the methods the rest of the app uses.
type Repo interface {
	// Options store (read-only here; the admin surface owns writes).
	GetOption(ctx context.Context, key string) (map[string]any, bool, error)

	// Users.
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	CreateUser(ctx context.Context, email, name string) (models.User, error)
	ListAllUserIDs(ctx context.Context) ([]uuid.UUID, error)
	GetUserRoles(ctx context.Context, tenantID, userID uuid.UUID) ([]models.TenantRole, error)

	// Local credentials.
	CreateLocalCredential(ctx context.Context, uid uuid.UUID, username, phc string) error
	GetLocalCredentialByUsername(ctx context.Context, username string) (models.LocalCredential, models.User, error)

	// Tenants & memberships.
	FindTenantByHost(ctx context.Context, host string) (models.Tenant, error)
	DefaultTenant(ctx context.Context) (models.Tenant, error)
	CreateTenant(ctx context.Context, slug, name, homeURL string) (models.Tenant, error)
	ListAllTenants(ctx context.Context) ([]models.Tenant, error)
	TenantsOfUser(ctx context.Context, userID uuid.UUID) ([]models.Tenant, error)
	IsMember(ctx context.Context, tenantID, userID uuid.UUID) (bool, error)
	AddMembership(ctx context.Context, tenantID, userID uuid.UUID, role models.TenantRole) error

	// Invites.
	CreateInvite(ctx context.Context, tenantID, inviterID uuid.UUID, email string, role models.TenantRole, tokenHash string, exp time.Time) error
	GetInviteByTokenHash(ctx context.Context, tokenHash string) (models.Invite, error)
	MarkInviteAccepted(ctx context.Context, id uuid.UUID) error

	// Activity records.
	LastActivity(ctx context.Context, userID uuid.UUID) (time.Time, bool, error)
	TouchActivity(ctx context.Context, userID uuid.UUID, t time.Time) error
}

// pgRepo runs plain SQL against a pgx pool.
type pgRepo struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) Repo { return &pgRepo{pool: pool} }

// ---------------- Options ----------------

func (p *pgRepo) GetOption(ctx context.Context, key string) (map[string]any, bool, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM site_options WHERE name = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get option %s: %w", key, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false, fmt.Errorf("decode option %s: %w", key, err)
	}
	return m, true, nil
}

// ---------------- Users ----------------

func (p *pgRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	var pid pgtype.UUID
	var name pgtype.Text
	err := p.pool.QueryRow(ctx,
		`SELECT id, email, name FROM users WHERE id = $1`, toPgUUID(id)).
		Scan(&pid, &u.Email, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	u.ID = toUUID(pid)
	u.Name = fromText(name)
	return u, nil
}

func (p *pgRepo) CreateUser(ctx context.Context, email, name string) (models.User, error) {
	var pid pgtype.UUID
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (email, name) VALUES ($1, $2) RETURNING id`,
		strings.ToLower(strings.TrimSpace(email)), toText(name)).Scan(&pid)
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return models.User{ID: toUUID(pid), Email: email, Name: name}, nil
}

func (p *pgRepo) ListAllUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var pid pgtype.UUID
		if err := rows.Scan(&pid); err != nil {
			return nil, err
		}
		ids = append(ids, toUUID(pid))
	}
	return ids, rows.Err()
}

func (p *pgRepo) GetUserRoles(ctx context.Context, tenantID, userID uuid.UUID) ([]models.TenantRole, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT role FROM memberships WHERE tenant_id = $1 AND user_id = $2`,
		toPgUUID(tenantID), toPgUUID(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.TenantRole
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		roles = append(roles, models.TenantRole(r))
	}
	return roles, rows.Err()
}

// ---------------- Local credentials ----------------

func (p *pgRepo) CreateLocalCredential(ctx context.Context, uid uuid.UUID, username, phc string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO local_credentials (user_id, username, password_hash)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET password_hash = EXCLUDED.password_hash`,
		toPgUUID(uid), strings.ToLower(username), phc)
	return err
}

func (p *pgRepo) GetLocalCredentialByUsername(ctx context.Context, username string) (models.LocalCredential, models.User, error) {
	var lc models.LocalCredential
	var u models.User
	var pid pgtype.UUID
	var name pgtype.Text
	err := p.pool.QueryRow(ctx,
		`SELECT c.user_id, c.username, c.password_hash, u.email, u.name
		 FROM local_credentials c JOIN users u ON u.id = c.user_id
		 WHERE c.username = $1`, strings.ToLower(username)).
		Scan(&pid, &lc.Username, &lc.PasswordHash, &u.Email, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.LocalCredential{}, models.User{}, models.ErrUserNotFound
	}
	if err != nil {
		return models.LocalCredential{}, models.User{}, err
	}
	lc.UserID = toUUID(pid)
	u.ID = lc.UserID
	u.Name = fromText(name)
	return lc, u, nil
}

// ---------------- Tenants & memberships ----------------

const tenantCols = `id, slug, name, home_url`

func (p *pgRepo) scanTenant(row pgx.Row) (models.Tenant, error) {
	var t models.Tenant
	var pid pgtype.UUID
	if err := row.Scan(&pid, &t.Slug, &t.Name, &t.HomeURL); err != nil {
		return models.Tenant{}, err
	}
	t.ID = toUUID(pid)
	return t, nil
}

func (p *pgRepo) FindTenantByHost(ctx context.Context, host string) (models.Tenant, error) {
	t, err := p.scanTenant(p.pool.QueryRow(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE host = $1`, strings.ToLower(host)))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Tenant{}, models.ErrTenantNotFound
	}
	return t, err
}

// DefaultTenant returns the oldest tenant; in a single-tenant deployment
// this is the site itself.
func (p *pgRepo) DefaultTenant(ctx context.Context) (models.Tenant, error) {
	t, err := p.scanTenant(p.pool.QueryRow(ctx,
		`SELECT `+tenantCols+` FROM tenants ORDER BY created_at LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Tenant{}, models.ErrTenantNotFound
	}
	return t, err
}

func (p *pgRepo) CreateTenant(ctx context.Context, slug, name, homeURL string) (models.Tenant, error) {
	host := hostOf(homeURL)
	var pid pgtype.UUID
	err := p.pool.QueryRow(ctx,
		`INSERT INTO tenants (slug, name, home_url, host) VALUES ($1, $2, $3, $4) RETURNING id`,
		slug, name, homeURL, host).Scan(&pid)
	if err != nil {
		return models.Tenant{}, fmt.Errorf("create tenant: %w", err)
	}
	return models.Tenant{ID: toUUID(pid), Slug: slug, Name: name, HomeURL: homeURL}, nil
}

func (p *pgRepo) ListAllTenants(ctx context.Context) ([]models.Tenant, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+tenantCols+` FROM tenants`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTenants(rows)
}

func (p *pgRepo) TenantsOfUser(ctx context.Context, userID uuid.UUID) ([]models.Tenant, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT t.id, t.slug, t.name, t.home_url
		 FROM tenants t JOIN memberships m ON m.tenant_id = t.id
		 WHERE m.user_id = $1
		 GROUP BY t.id, t.slug, t.name, t.home_url`, toPgUUID(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTenants(rows)
}

func collectTenants(rows pgx.Rows) ([]models.Tenant, error) {
	var out []models.Tenant
	for rows.Next() {
		var t models.Tenant
		var pid pgtype.UUID
		if err := rows.Scan(&pid, &t.Slug, &t.Name, &t.HomeURL); err != nil {
			return nil, err
		}
		t.ID = toUUID(pid)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *pgRepo) IsMember(ctx context.Context, tenantID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM memberships WHERE tenant_id = $1 AND user_id = $2)`,
		toPgUUID(tenantID), toPgUUID(userID)).Scan(&exists)
	return exists, err
}

// AddMembership is idempotent; membership is a set.
func (p *pgRepo) AddMembership(ctx context.Context, tenantID, userID uuid.UUID, role models.TenantRole) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO memberships (tenant_id, user_id, role) VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id, user_id) DO NOTHING`,
		toPgUUID(tenantID), toPgUUID(userID), string(role))
	if err != nil {
		return fmt.Errorf("membership failed: %w", err)
	}
	return nil
}

// ---------------- Invites ----------------

func (p *pgRepo) CreateInvite(ctx context.Context, tenantID, inviterID uuid.UUID, email string, role models.TenantRole, tokenHash string, exp time.Time) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO invites (tenant_id, inviter_id, email, role, token_hash, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		toPgUUID(tenantID), toPgUUID(inviterID), strings.ToLower(strings.TrimSpace(email)),
		string(role), tokenHash, exp)
	if err != nil {
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

func (p *pgRepo) GetInviteByTokenHash(ctx context.Context, tokenHash string) (models.Invite, error) {
	var inv models.Invite
	var id, tid pgtype.UUID
	var role string
	var accepted pgtype.Timestamptz
	err := p.pool.QueryRow(ctx,
		`SELECT id, tenant_id, email, role, token_hash, expires_at, accepted_at
		 FROM invites WHERE token_hash = $1`, tokenHash).
		Scan(&id, &tid, &inv.Email, &role, &inv.TokenHash, &inv.ExpiresAt, &accepted)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Invite{}, models.ErrInviteNotFound
	}
	if err != nil {
		return models.Invite{}, err
	}
	inv.ID = toUUID(id)
	inv.TenantID = toUUID(tid)
	inv.Role = models.TenantRole(role)
	if accepted.Valid {
		t := accepted.Time
		inv.AcceptedAt = &t
	}
	return inv, nil
}

func (p *pgRepo) MarkInviteAccepted(ctx context.Context, id uuid.UUID) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE invites SET accepted_at = now() WHERE id = $1`, toPgUUID(id))
	return err
}

// ---------------- Activity ----------------

func (p *pgRepo) LastActivity(ctx context.Context, userID uuid.UUID) (time.Time, bool, error) {
	var ts pgtype.Timestamptz
	err := p.pool.QueryRow(ctx,
		`SELECT last_activity FROM user_activity WHERE user_id = $1`, toPgUUID(userID)).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return ts.Time, ts.Valid, nil
}

// TouchActivity is a last-write-wins upsert; concurrent requests from the
// same user may race and that is fine.
func (p *pgRepo) TouchActivity(ctx context.Context, userID uuid.UUID, t time.Time) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO user_activity (user_id, last_activity) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET last_activity = EXCLUDED.last_activity`,
		toPgUUID(userID), t)
	return err
}

// ---------------- Helpers ----------------

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func toUUID(u pgtype.UUID) uuid.UUID {
	return uuid.UUID(u.Bytes)
}

// Convert string → pgtype.Text
func toText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

// Convert pgtype.Text → string
func fromText(t pgtype.Text) string {
	return t.String
}

// hostOf extracts "host" (no scheme, no path) from a home URL.
func hostOf(u string) string {
	s := u
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(s)
}
