// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danielhkuo/vote-kiosk/models"
	"github.com/danielhkuo/vote-kiosk/storage"
)

// Status is the vote session lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusValidating Status = "validating"
	StatusActive     Status = "active"
	StatusExpired    Status = "expired"
	StatusCompleted  Status = "completed"
)

// DefaultWindow is the fixed authorization window.
const DefaultWindow = 5 * time.Minute

// DefaultTerminalDelay is how long after entering a terminal state the
// OnTerminal hook fires.
const DefaultTerminalDelay = 500 * time.Millisecond

// record is the durable form of a session, shaped like the web
// client's storage entry. ExpiryTimestamp is unix milliseconds.
type record struct {
	Status          string `json:"status"`
	Token           string `json:"token"`
	WargaNik        string `json:"wargaNik"`
	ExpiryTimestamp int64  `json:"expiryTimestamp"`
}

// Config carries the machine's injected dependencies. Store is
// required; everything else has a default.
type Config struct {
	Store  storage.Store
	Window time.Duration

	// TerminalDelay is the pause before OnTerminal fires.
	TerminalDelay time.Duration

	// Clock is the time source; defaults to time.Now.
	Clock func() time.Time

	// OnTerminal is invoked at most once per session instance when the
	// session reaches expired or completed. The presentation layer
	// decides what a "reset" means (the web client reloads the page).
	OnTerminal func(Status)
}

// Machine owns the vote authorization lifecycle: activation, the
// countdown, terminal transitions, and durable persistence so a
// restart mid-window resumes the active session.
type Machine struct {
	mu            sync.Mutex
	store         storage.Store
	window        time.Duration
	terminalDelay time.Duration
	now           func() time.Time
	onTerminal    func(Status)

	status   Status
	token    string
	wargaNIK string
	expiry   time.Time

	// terminalFired guards the one-shot terminal hook; reset on each
	// activation.
	terminalFired bool

	// generation invalidates countdown tickers from superseded
	// activations.
	generation int
}

// New builds the machine and rehydrates any stored session: an active
// session with a future expiry resumes, an elapsed one is purged.
func New(cfg Config) *Machine {
	m := &Machine{
		store:         cfg.Store,
		window:        cfg.Window,
		terminalDelay: cfg.TerminalDelay,
		now:           cfg.Clock,
		onTerminal:    cfg.OnTerminal,
		status:        StatusIdle,
	}
	if m.window <= 0 {
		m.window = DefaultWindow
	}
	if m.terminalDelay <= 0 {
		m.terminalDelay = DefaultTerminalDelay
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.onTerminal == nil {
		m.onTerminal = func(Status) {}
	}

	m.rehydrate()
	return m
}

func (m *Machine) rehydrate() {
	raw, ok, err := m.store.Get(storage.KeyVoteSession)
	if err != nil || !ok {
		return
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		m.purgeStorage()
		return
	}

	expiry := time.UnixMilli(rec.ExpiryTimestamp)
	if rec.Status != string(StatusActive) || !m.now().Before(expiry) {
		m.purgeStorage()
		return
	}

	m.mu.Lock()
	m.status = StatusActive
	m.token = rec.Token
	m.wargaNIK = rec.WargaNik
	m.expiry = expiry
	m.generation++
	gen := m.generation
	m.mu.Unlock()

	slog.Info("resumed active vote session", "expires_at", expiry)
	go m.countdown(gen)
}

// Activate starts the authorization window for a validated token.
// Allowed from idle, expired, and validating; an active or completed
// session must finish first.
func (m *Machine) Activate(token, wargaNIK string) error {
	m.mu.Lock()

	switch m.status {
	case StatusIdle, StatusExpired, StatusValidating:
	default:
		status := m.status
		m.mu.Unlock()
		return &models.SessionError{Status: string(status), Message: "a session is already in progress"}
	}

	m.status = StatusActive
	m.token = token
	m.wargaNIK = wargaNIK
	m.expiry = m.now().Add(m.window)
	m.terminalFired = false
	m.generation++
	gen := m.generation
	expiry := m.expiry
	m.mu.Unlock()

	if err := m.persist(token, wargaNIK, expiry); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	slog.Info("vote session activated", "expires_at", expiry)
	go m.countdown(gen)
	return nil
}

// countdown re-checks the window once per second until the session is
// superseded or leaves active.
func (m *Machine) countdown(gen int) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		stale := m.generation != gen || m.status != StatusActive
		m.mu.Unlock()
		if stale {
			return
		}
		if m.CheckExpiry() {
			return
		}
	}
}

// CheckExpiry treats an elapsed window as expired even if the
// countdown has not fired yet, performing the full terminal cleanup.
// Returns true when the session is expired after the check. Used as
// the guard immediately before vote submission.
func (m *Machine) CheckExpiry() bool {
	m.mu.Lock()
	if m.status != StatusActive {
		expired := m.status == StatusExpired
		m.mu.Unlock()
		return expired
	}
	if m.now().Before(m.expiry) {
		m.mu.Unlock()
		return false
	}

	m.status = StatusExpired
	m.generation++
	fire := m.markTerminalLocked()
	m.mu.Unlock()

	m.purgeStorage()
	slog.Info("vote session expired")
	if fire {
		m.scheduleTerminal(StatusExpired)
	}
	return true
}

// Complete records the cast vote: storage purged, status completed,
// one-shot terminal hook scheduled. A completed session cannot be
// reused.
func (m *Machine) Complete() error {
	m.mu.Lock()
	if m.status != StatusActive {
		status := m.status
		m.mu.Unlock()
		return &models.SessionError{Status: string(status), Message: "no active session to complete"}
	}
	m.status = StatusCompleted
	m.generation++
	fire := m.markTerminalLocked()
	m.mu.Unlock()

	m.purgeStorage()
	slog.Info("vote session completed")
	if fire {
		m.scheduleTerminal(StatusCompleted)
	}
	return nil
}

// Reset is the operator-driven cancellation: back to idle, no terminal
// hook, storage cleared.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.status = StatusIdle
	m.token = ""
	m.wargaNIK = ""
	m.expiry = time.Time{}
	m.terminalFired = false
	m.generation++
	m.mu.Unlock()

	m.purgeStorage()
	slog.Info("vote session reset")
}

// MarkValidating moves an idle or expired session into validating
// while a QR validation is in flight.
func (m *Machine) MarkValidating() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.status {
	case StatusIdle, StatusExpired:
		m.status = StatusValidating
		return nil
	default:
		return &models.SessionError{Status: string(m.status), Message: "session is not idle"}
	}
}

// ClearValidating undoes MarkValidating after the validation attempt
// settles, unless the session moved on (e.g. was activated).
func (m *Machine) ClearValidating() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusValidating {
		m.status = StatusIdle
	}
}

// markTerminalLocked flips the one-shot guard; reports whether this
// caller won the right to fire the hook. Callers hold m.mu.
func (m *Machine) markTerminalLocked() bool {
	if m.terminalFired {
		return false
	}
	m.terminalFired = true
	return true
}

func (m *Machine) scheduleTerminal(status Status) {
	time.AfterFunc(m.terminalDelay, func() { m.onTerminal(status) })
}

func (m *Machine) persist(token, wargaNIK string, expiry time.Time) error {
	payload, err := json.Marshal(record{
		Status:          string(StatusActive),
		Token:           token,
		WargaNik:        wargaNIK,
		ExpiryTimestamp: expiry.UnixMilli(),
	})
	if err != nil {
		return err
	}
	return m.store.Set(storage.KeyVoteSession, string(payload))
}

func (m *Machine) purgeStorage() {
	if err := m.store.Delete(storage.KeyVoteSession); err != nil {
		slog.Error("failed to purge session storage", "error", err)
	}
}

// Status returns the machine's current state.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Token returns the server-issued authorization token, empty outside
// an active or just-completed session.
func (m *Machine) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// WargaNIK returns the validated voter identity.
func (m *Machine) WargaNIK() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wargaNIK
}

// ExpiresAt returns the window's end; zero unless active.
func (m *Machine) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiry
}

// Remaining returns the time left in the window, never negative.
func (m *Machine) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusActive {
		return 0
	}
	left := m.expiry.Sub(m.now())
	if left < 0 {
		return 0
	}
	return left
}

// IsActive recomputes activity from the clock every call; a stale
// active status with an elapsed window does not count.
func (m *Machine) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusActive && m.now().Before(m.expiry)
}

// IsExpired reports an expired session, including an active one whose
// window has already elapsed without the countdown having fired.
func (m *Machine) IsExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusExpired {
		return true
	}
	return m.status == StatusActive && !m.now().Before(m.expiry)
}
