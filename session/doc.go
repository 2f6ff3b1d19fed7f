// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package session owns the vote authorization lifecycle.

# States

	idle -> validating -> active -> expired | completed
	idle/expired -> active (re-entry allowed)

Activate starts the fixed 5-minute window and persists the session
under the vote_session key, so a kiosk restart mid-window resumes
active instead of resetting to idle. A once-per-second countdown moves
an elapsed session to expired; Complete marks the vote as cast. Both
terminal states purge storage and fire the OnTerminal hook exactly once
per session instance, after a short delay.

# Expiry Exactness

The window is inclusive at activation and exclusive at the boundary: a
session activated at T is active for [T, T+window) and inactive at
exactly T+window. IsActive recomputes this from the clock on every
call; a stale status alone is never trusted. CheckExpiry closes the
race between "countdown not yet fired" and "window already elapsed" -
the submission flow calls it synchronously right before posting a vote.

# Terminal Hook

Whether reaching expired/completed reloads the whole view or soft
resets it is presentation policy, so the machine only emits the
transition through Config.OnTerminal. The guard flag makes the hook
one-shot per session instance even when the expiry check runs again.

# Testing

Config.Clock injects the time source and Config.Store the persistence
port, so the machine runs against a manual clock and an in-memory
store in tests.
*/
package session
