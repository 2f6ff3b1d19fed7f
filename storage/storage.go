// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package storage

// Storage keys written by the credential store and the session machine.
// Role keys are completed with one of the models.Role* constants.
const (
	KeyAccessTokenPrefix  = "auth.access_token."
	KeyRefreshTokenPrefix = "auth.refresh_token."
	KeyExpiresAtPrefix    = "auth.expires_at."
	KeyActiveRole         = "auth.active_role"
	KeyVoteSession        = "vote_session"
	KeyDeviceUUID         = "device.uuid"
)

// Store is the durable key-value port the state machines depend on.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}
