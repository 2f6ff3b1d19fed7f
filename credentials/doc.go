// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package credentials manages per-role API credential records and the
active role pointer.

# Records

Each role (admin, super_admin, paslon, user) owns one Record of access
token, refresh token, and expiry, stored under the auth.* keys:

	mgr := credentials.NewManager(store)
	err := mgr.SaveRecord(models.RoleUser, rec)
	rec, ok, err := mgr.Record(models.RoleUser)

At most one record is active at a time, selected by the auth.active_role
pointer:

	err = mgr.SetActiveRole(models.RoleUser)
	role, rec, err := mgr.ActiveRecord()

# Expiry Resolution

ResolveExpiry prefers the server's expires_at field and falls back to
the access token's JWT exp claim (parsed unverified - only the server
verifies signatures). A record with zero expiry is treated as always
stale, so the refresh coordinator refreshes before every call.

# Lifecycle

Records are created on login, have their access token and expiry
mutated on refresh, and are destroyed by Purge on logout or when a
refresh fails irrecoverably.
*/
package credentials
