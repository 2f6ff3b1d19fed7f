// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package credentials

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/danielhkuo/vote-kiosk/models"
	"github.com/danielhkuo/vote-kiosk/storage"
)

var (
	ErrUnknownRole  = errors.New("unknown credential role")
	ErrNoActiveRole = errors.New("no active role set")
)

// Record holds one role's API credentials. A zero ExpiresAt means the
// expiry is unknown and every call should refresh first.
type Record struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Manager reads and writes per-role credential records and the active
// role pointer through the storage port. At most one role is active at
// a time.
type Manager struct {
	store storage.Store
}

func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

func validRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleSuperAdmin, models.RolePaslon, models.RoleUser:
		return true
	}
	return false
}

// SaveRecord persists a role's credentials. ExpiresAt handling falls
// through: an explicit timestamp wins, then the access token's JWT exp
// claim, then zero (refresh-first on every call).
func (m *Manager) SaveRecord(role string, rec Record) error {
	if !validRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if err := m.store.Set(storage.KeyAccessTokenPrefix+role, rec.AccessToken); err != nil {
		return err
	}
	if err := m.store.Set(storage.KeyRefreshTokenPrefix+role, rec.RefreshToken); err != nil {
		return err
	}
	var expires int64
	if !rec.ExpiresAt.IsZero() {
		expires = rec.ExpiresAt.Unix()
	}
	return m.store.Set(storage.KeyExpiresAtPrefix+role, strconv.FormatInt(expires, 10))
}

// Record returns a role's stored credentials. The second return is
// false when no access token is stored for the role.
func (m *Manager) Record(role string) (Record, bool, error) {
	if !validRole(role) {
		return Record{}, false, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	access, ok, err := m.store.Get(storage.KeyAccessTokenPrefix + role)
	if err != nil {
		return Record{}, false, err
	}
	if !ok || access == "" {
		return Record{}, false, nil
	}

	refresh, _, err := m.store.Get(storage.KeyRefreshTokenPrefix + role)
	if err != nil {
		return Record{}, false, err
	}

	rec := Record{AccessToken: access, RefreshToken: refresh}

	if raw, ok, err := m.store.Get(storage.KeyExpiresAtPrefix + role); err != nil {
		return Record{}, false, err
	} else if ok {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
			rec.ExpiresAt = time.Unix(unix, 0)
		}
	}

	return rec, true, nil
}

// SetActiveRole moves the active role pointer.
func (m *Manager) SetActiveRole(role string) error {
	if !validRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return m.store.Set(storage.KeyActiveRole, role)
}

// ActiveRole returns the current active role, or false if none is set.
func (m *Manager) ActiveRole() (string, bool, error) {
	role, ok, err := m.store.Get(storage.KeyActiveRole)
	if err != nil || !ok || role == "" {
		return "", false, err
	}
	return role, true, nil
}

// ActiveRecord resolves the active role pointer to its record.
func (m *Manager) ActiveRecord() (string, Record, error) {
	role, ok, err := m.ActiveRole()
	if err != nil {
		return "", Record{}, err
	}
	if !ok {
		return "", Record{}, ErrNoActiveRole
	}
	rec, ok, err := m.Record(role)
	if err != nil {
		return "", Record{}, err
	}
	if !ok {
		return "", Record{}, fmt.Errorf("no credentials stored for active role %q", role)
	}
	return role, rec, nil
}

// Purge destroys a role's credential record. The active role pointer is
// cleared too if it points at the purged role.
func (m *Manager) Purge(role string) error {
	if !validRole(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	for _, key := range []string{
		storage.KeyAccessTokenPrefix + role,
		storage.KeyRefreshTokenPrefix + role,
		storage.KeyExpiresAtPrefix + role,
	} {
		if err := m.store.Delete(key); err != nil {
			return err
		}
	}
	if active, ok, err := m.ActiveRole(); err != nil {
		return err
	} else if ok && active == role {
		return m.store.Delete(storage.KeyActiveRole)
	}
	return nil
}

// PurgeAll destroys every role's credentials and the active pointer.
// Used on logout.
func (m *Manager) PurgeAll() error {
	for _, role := range []string{models.RoleAdmin, models.RoleSuperAdmin, models.RolePaslon, models.RoleUser} {
		if err := m.Purge(role); err != nil {
			return err
		}
	}
	return m.store.Delete(storage.KeyActiveRole)
}

// ResolveExpiry picks the expiry for a token response: the server's
// expires_at field if parseable, otherwise the access token's own JWT
// exp claim, otherwise zero.
func ResolveExpiry(accessToken, expiresAt string) time.Time {
	if expiresAt != "" {
		if t, err := time.Parse(time.RFC3339, expiresAt); err == nil {
			return t
		}
	}
	// Unverified parse: the server signs tokens, the client only needs
	// the claim to schedule refreshes.
	token, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
