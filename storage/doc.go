// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package storage provides the durable key-value store behind the kiosk's
credential records and vote session state.

# The Port

Everything above this package depends only on the Store interface:

	value, ok, err := store.Get(storage.KeyActiveRole)
	err = store.Set(storage.KeyVoteSession, payload)
	err = store.Delete(storage.KeyVoteSession)

so the state machines can be tested against MemoryStore while the kiosk
binary runs on SQLiteStore.

# SQLite Backend

OpenSQLite opens a local state file with a single kv table:

	store, err := storage.OpenSQLite("/var/lib/vote-kiosk/state.db")

Schema creation is idempotent (IF NOT EXISTS), so reopening an existing
file is safe. SQLite serializes writers itself; no additional locking is
done here, and two kiosk processes sharing one file get no cross-process
cache invalidation - each reads the file at mount and on explicit reads.

# Keys

Key names match the browser-storage layout of the web client:

	auth.access_token.{role}
	auth.refresh_token.{role}
	auth.expires_at.{role}
	auth.active_role
	vote_session
	device.uuid
*/
package storage
