// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first (via godotenv);
CLI flags take precedence over environment variables.

# Config Fields

  - BaseURL: API base URL (required)
  - StatePath: kiosk state file path (default: vote-kiosk.db)
  - PollInterval: live result poll cadence (default: 5000ms)
  - SessionWindow: vote authorization window (default: 300s)
  - CSRFToken: anti-forgery token attached to every request
  - LoginPath: login boundary path used for auth redirects (default: /login)

# CLI Flags

	-u                API base URL
	-s                State file path
	--poll-interval   Poll interval in milliseconds
	--session-window  Session window in seconds
	--csrf-token      Anti-forgery token (prefer env)

# Environment Variables

Flags fall back to environment variables:

	API_BASE_URL       → -u
	STATE_PATH         → -s
	POLL_INTERVAL_MS   → --poll-interval
	SESSION_WINDOW_SEC → --session-window
	CSRF_TOKEN         → --csrf-token
	LOGIN_PATH         (env only)

# Validation

ParseFlags returns an error if API_BASE_URL is missing or a numeric
variable does not parse.
*/
package cliparse
