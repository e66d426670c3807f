// internal/settings/settings.go
package settings

import (
	"context"
	"log/slog"
)

// OptionKey is the name of the single settings record in the options store.
const OptionKey = "intranet_options"

type TimeoutUnit string

const (
	UnitMinutes TimeoutUnit = "minutes"
	UnitHours   TimeoutUnit = "hours"
	UnitDays    TimeoutUnit = "days"
)

// Settings is the fully-hydrated view over the persisted options record.
// Every field always has a value; missing or malformed stored fields are
// replaced by the documented defaults and never surfaced as errors.
type Settings struct {
	PrivateSite             bool
	RequireTenantMembership bool
	IdleTimeoutValue        int
	IdleTimeoutUnit         TimeoutUnit
	LoginRedirectURL        string
	DefaultTenantRole       string
}

// Defaults returns the documented default settings: a brand new deployment
// is private, requires sub-site membership, and has auto-logout off.
func Defaults() Settings {
	return Settings{
		PrivateSite:             true,
		RequireTenantMembership: true,
		IdleTimeoutValue:        0,
		IdleTimeoutUnit:         UnitMinutes,
		LoginRedirectURL:        "",
		DefaultTenantRole:       "",
	}
}

// TimeoutSeconds converts the idle timeout to seconds. Zero means the
// auto-logout feature is off.
func (s Settings) TimeoutSeconds() int64 {
	if s.IdleTimeoutValue <= 0 {
		return 0
	}
	unit := int64(60)
	switch s.IdleTimeoutUnit {
	case UnitDays:
		unit = 86400
	case UnitHours:
		unit = 3600
	case UnitMinutes:
		unit = 60
	}
	return int64(s.IdleTimeoutValue) * unit
}

// Hydrate builds Settings from a raw stored record, filling anything missing
// or of the wrong type from Defaults. Hydrating an already-complete record is
// a no-op; the stored record itself is never written back.
func Hydrate(raw map[string]any) Settings {
	s := Defaults()
	if raw == nil {
		return s
	}
	if v, ok := raw["private_site"].(bool); ok {
		s.PrivateSite = v
	}
	if v, ok := raw["require_member"].(bool); ok {
		s.RequireTenantMembership = v
	}
	if v, ok := asInt(raw["autologout_time"]); ok && v >= 0 {
		s.IdleTimeoutValue = v
	}
	if v, ok := raw["autologout_units"].(string); ok {
		switch TimeoutUnit(v) {
		case UnitMinutes, UnitHours, UnitDays:
			s.IdleTimeoutUnit = TimeoutUnit(v)
		}
	}
	if v, ok := raw["login_redirect"].(string); ok {
		s.LoginRedirectURL = v
	}
	if v, ok := raw["members_role"].(string); ok {
		s.DefaultTenantRole = v
	}
	return s
}

// asInt unwraps the numeric types a JSON round-trip may hand us.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// Store is the read side of the options store. The gate never writes
// settings; whoever owns the admin surface does that elsewhere.
type Store interface {
	GetOption(ctx context.Context, key string) (map[string]any, bool, error)
}

// View loads Settings once per request. Callers hold the returned value for
// the request lifetime and must not cache it across requests.
type View struct {
	store Store
	log   *slog.Logger
}

func NewView(store Store, log *slog.Logger) *View {
	return &View{store: store, log: log.With("component", "settings")}
}

// Load reads and hydrates the settings record. A read failure falls back to
// Defaults, which is the safer (private) posture.
func (v *View) Load(ctx context.Context) Settings {
	raw, found, err := v.store.GetOption(ctx, OptionKey)
	if err != nil {
		v.log.Warn("options read failed, using defaults", "error", err)
		return Defaults()
	}
	if !found {
		return Defaults()
	}
	return Hydrate(raw)
}
