// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the vote-kiosk client.

vote-kiosk is a terminal client for the e-voting API: it turns a
scanned single-use QR identity token into a time-bounded voting
authorization, casts at most one vote per authorization window, keeps
the API credential fresh behind a single-flight refresh coordinator,
and polls live results while voting is active.

# Starting the Kiosk

The kiosk requires environment variables or CLI flags for configuration:

	API_BASE_URL=https://vote.example.go run main.go

Or with flags:

	go run main.go -u https://vote.example -s /var/lib/vote-kiosk/state.db

# Configuration

Required settings:

  - API_BASE_URL (-u): base URL of the voting API

Optional settings:

  - STATE_PATH (-s): local state file (default: vote-kiosk.db)
  - POLL_INTERVAL_MS (--poll-interval): result poll cadence (default: 5000)
  - SESSION_WINDOW_SEC (--session-window): authorization window (default: 300)
  - CSRF_TOKEN (--csrf-token): anti-forgery token sent on every request

# Architecture

The kiosk wires injected dependencies bottom-up:

  - storage: durable key-value port (SQLite file, in-memory for tests)
  - credentials: per-role token records and the active role pointer
  - apiclient: outbound gateway with the single-flight refresh coordinator
  - session: the vote authorization state machine and its countdown
  - qrgate: at-most-once QR validation
  - voting: exactly-once vote submission
  - results: phase-gated live result polling
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
