// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BaseURL       string
	StatePath     string
	PollInterval  time.Duration
	SessionWindow time.Duration
	CSRFToken     string
	LoginPath     string
}

// ParseFlags validates flags, with environment variables (and a local
// .env file) as fallback.
func ParseFlags(args []string) (Config, error) {
	// Missing .env is fine; settings may come from the environment proper.
	_ = godotenv.Load()

	var cfg Config
	var pollIntervalMS int
	var sessionWindowSec int

	fs := flag.NewFlagSet("vote-kiosk", flag.ContinueOnError)

	fs.StringVar(&cfg.BaseURL, "u", "", "API base URL")
	fs.StringVar(&cfg.StatePath, "s", "", "Kiosk state file path")
	fs.IntVar(&pollIntervalMS, "poll-interval", 0, "Result poll interval in milliseconds")
	fs.IntVar(&sessionWindowSec, "session-window", 0, "Vote session window in seconds")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.CSRFToken, "csrf-token", "", "Anti-forgery token (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("API_BASE_URL")
	}
	if cfg.BaseURL == "" {
		return Config{}, errors.New("API base URL required (use -u or API_BASE_URL env)")
	}

	if cfg.StatePath == "" {
		cfg.StatePath = os.Getenv("STATE_PATH")
	}
	if cfg.StatePath == "" {
		cfg.StatePath = "vote-kiosk.db" // default
	}

	if pollIntervalMS == 0 {
		if raw := os.Getenv("POLL_INTERVAL_MS"); raw != "" {
			ms, err := strconv.Atoi(raw)
			if err != nil {
				return Config{}, errors.New("invalid POLL_INTERVAL_MS env variable")
			}
			pollIntervalMS = ms
		} else {
			pollIntervalMS = 5000 // default
		}
	}
	cfg.PollInterval = time.Duration(pollIntervalMS) * time.Millisecond

	if sessionWindowSec == 0 {
		if raw := os.Getenv("SESSION_WINDOW_SEC"); raw != "" {
			sec, err := strconv.Atoi(raw)
			if err != nil {
				return Config{}, errors.New("invalid SESSION_WINDOW_SEC env variable")
			}
			sessionWindowSec = sec
		} else {
			sessionWindowSec = 300 // default: 5 minute window
		}
	}
	cfg.SessionWindow = time.Duration(sessionWindowSec) * time.Second

	if cfg.CSRFToken == "" {
		cfg.CSRFToken = os.Getenv("CSRF_TOKEN")
	}

	cfg.LoginPath = os.Getenv("LOGIN_PATH")
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}

	return cfg, nil
}
