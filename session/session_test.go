// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package session

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/vote-kiosk/storage"
	"github.com/danielhkuo/vote-kiosk/testutil"
)

func newTestMachine(t *testing.T, clock *testutil.Clock, store storage.Store) *Machine {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStore()
	}
	return New(Config{
		Store:         store,
		Window:        5 * time.Minute,
		TerminalDelay: time.Millisecond,
		Clock:         clock.Now,
	})
}

// TestWindowExactness verifies the boundary: active for [T, T+300s),
// inactive at exactly T+300s
func TestWindowExactness(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	m := newTestMachine(t, clock, nil)

	if err := m.Activate("tok1", "3276000000000001"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	if !m.IsActive() {
		t.Error("Expected session active at T")
	}

	clock.Advance(299 * time.Second)
	if !m.IsActive() {
		t.Error("Expected session active at T+299s")
	}

	clock.Advance(time.Second)
	if m.IsActive() {
		t.Error("Expected session inactive at exactly T+300s")
	}
	if !m.IsExpired() {
		t.Error("Expected IsExpired true at T+300s even before the countdown fires")
	}
}

// TestCheckExpiryScenario runs the activate -> CheckExpiry -> +300s ->
// CheckExpiry scenario: false while in-window, true and expired after
func TestCheckExpiryScenario(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	store := storage.NewMemoryStore()
	m := newTestMachine(t, clock, store)

	if err := m.Activate("tok1", "3276000000000001"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	if m.CheckExpiry() {
		t.Error("Expected CheckExpiry false immediately after activation")
	}
	if m.Status() != StatusActive {
		t.Errorf("Expected status active, got %s", m.Status())
	}

	clock.Advance(300 * time.Second)

	if !m.CheckExpiry() {
		t.Error("Expected CheckExpiry true after 300s elapsed")
	}
	if m.Status() != StatusExpired {
		t.Errorf("Expected status expired, got %s", m.Status())
	}

	// Expiry purges the stored session
	if _, ok, _ := store.Get(storage.KeyVoteSession); ok {
		t.Error("Expected vote_session purged from storage on expiry")
	}
}

// TestActivatePersists verifies the durable record written on activation
func TestActivatePersists(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	store := storage.NewMemoryStore()
	m := newTestMachine(t, clock, store)

	if err := m.Activate("tok1", "3276000000000001"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	raw, ok, err := store.Get(storage.KeyVoteSession)
	if err != nil || !ok {
		t.Fatalf("Expected stored session, ok=%v err=%v", ok, err)
	}

	var rec struct {
		Status          string `json:"status"`
		Token           string `json:"token"`
		WargaNik        string `json:"wargaNik"`
		ExpiryTimestamp int64  `json:"expiryTimestamp"`
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("Failed to decode stored session: %v", err)
	}

	if rec.Status != "active" || rec.Token != "tok1" || rec.WargaNik != "3276000000000001" {
		t.Errorf("Stored session fields wrong: %+v", rec)
	}
	wantExpiry := clock.Now().Add(5 * time.Minute).UnixMilli()
	if rec.ExpiryTimestamp != wantExpiry {
		t.Errorf("Expected expiry %d, got %d", wantExpiry, rec.ExpiryTimestamp)
	}
}

// TestRehydrateActiveSession verifies a restart mid-window resumes
// active with the stored token and identity
func TestRehydrateActiveSession(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	store := storage.NewMemoryStore()

	first := newTestMachine(t, clock, store)
	if err := first.Activate("tok1", "3276000000000001"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	clock.Advance(2 * time.Minute)

	second := newTestMachine(t, clock, store)
	if second.Status() != StatusActive {
		t.Fatalf("Expected rehydrated session active, got %s", second.Status())
	}
	if second.Token() != "tok1" || second.WargaNIK() != "3276000000000001" {
		t.Errorf("Rehydrated session lost fields: token=%q nik=%q", second.Token(), second.WargaNIK())
	}
	if got := second.Remaining(); got != 3*time.Minute {
		t.Errorf("Expected 3m remaining, got %s", got)
	}
}

// TestRehydrateElapsedSession verifies an already-elapsed stored
// session is purged and the machine starts idle
func TestRehydrateElapsedSession(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	store := storage.NewMemoryStore()

	first := newTestMachine(t, clock, store)
	if err := first.Activate("tok1", "3276000000000001"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	clock.Advance(10 * time.Minute)

	second := newTestMachine(t, clock, store)
	if second.Status() != StatusIdle {
		t.Errorf("Expected idle after elapsed rehydration, got %s", second.Status())
	}
	if _, ok, _ := store.Get(storage.KeyVoteSession); ok {
		t.Error("Expected elapsed session purged from storage")
	}
}

// TestTerminalHookFiresOnce verifies exactly one terminal signal per
// session instance even when the expiry check runs repeatedly
func TestTerminalHookFiresOnce(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	var fired atomic.Int32
	done := make(chan Status, 4)

	m := New(Config{
		Store:         storage.NewMemoryStore(),
		Window:        5 * time.Minute,
		TerminalDelay: time.Millisecond,
		Clock:         clock.Now,
		OnTerminal: func(s Status) {
			fired.Add(1)
			done <- s
		},
	})

	if err := m.Activate("tok1", "3276000000000001"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	clock.Advance(301 * time.Second)

	// The expiry check running multiple times must not double-fire
	for i := 0; i < 5; i++ {
		m.CheckExpiry()
	}

	select {
	case status := <-done:
		if status != StatusExpired {
			t.Errorf("Expected terminal status expired, got %s", status)
		}
	case <-time.After(time.Second):
		t.Fatal("Terminal hook never fired")
	}

	// Give a would-be duplicate time to land
	time.Sleep(20 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("Expected exactly 1 terminal signal, got %d", got)
	}
}

// TestCompleteFiresTerminalOnce verifies completion purges storage and
// schedules one reload signal
func TestCompleteFiresTerminalOnce(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	store := storage.NewMemoryStore()
	var fired atomic.Int32
	done := make(chan Status, 4)

	m := New(Config{
		Store:         store,
		Window:        5 * time.Minute,
		TerminalDelay: time.Millisecond,
		Clock:         clock.Now,
		OnTerminal: func(s Status) {
			fired.Add(1)
			done <- s
		},
	})

	if err := m.Activate("tok1", "3276000000000001"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := m.Complete(); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if m.Status() != StatusCompleted {
		t.Errorf("Expected status completed, got %s", m.Status())
	}
	if _, ok, _ := store.Get(storage.KeyVoteSession); ok {
		t.Error("Expected storage purged on completion")
	}

	select {
	case status := <-done:
		if status != StatusCompleted {
			t.Errorf("Expected terminal status completed, got %s", status)
		}
	case <-time.After(time.Second):
		t.Fatal("Terminal hook never fired")
	}

	// A second Complete is rejected and must not re-fire
	if err := m.Complete(); err == nil {
		t.Error("Expected error completing a completed session")
	}
	time.Sleep(20 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("Expected exactly 1 terminal signal, got %d", got)
	}
}

// TestReentryAfterExpiry verifies idle/expired sessions may activate
// again while active/completed ones may not
func TestReentryAfterExpiry(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	m := newTestMachine(t, clock, nil)

	if err := m.Activate("tok1", "3276000000000001"); err != nil {
		t.Fatalf("First activate failed: %v", err)
	}
	if err := m.Activate("tok2", "3276000000000002"); err == nil {
		t.Error("Expected activate to fail while a session is active")
	}

	clock.Advance(301 * time.Second)
	m.CheckExpiry()

	if err := m.Activate("tok2", "3276000000000002"); err != nil {
		t.Errorf("Expected re-entry from expired to succeed, got %v", err)
	}
	if !m.IsActive() {
		t.Error("Expected session active after re-entry")
	}
}

// TestResetClearsEverything verifies the manual reset path: idle, no
// terminal hook, storage cleared
func TestResetClearsEverything(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	store := storage.NewMemoryStore()
	var fired atomic.Int32

	m := New(Config{
		Store:         store,
		Window:        5 * time.Minute,
		TerminalDelay: time.Millisecond,
		Clock:         clock.Now,
		OnTerminal:    func(Status) { fired.Add(1) },
	})

	if err := m.Activate("tok1", "3276000000000001"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	m.Reset()

	if m.Status() != StatusIdle {
		t.Errorf("Expected idle after reset, got %s", m.Status())
	}
	if m.Token() != "" || m.WargaNIK() != "" {
		t.Error("Expected fields cleared on reset")
	}
	if _, ok, _ := store.Get(storage.KeyVoteSession); ok {
		t.Error("Expected storage cleared on reset")
	}

	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("Reset must not fire the terminal hook")
	}
}

// TestMarkValidating verifies the validating transition and its undo
func TestMarkValidating(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	m := newTestMachine(t, clock, nil)

	if err := m.MarkValidating(); err != nil {
		t.Fatalf("MarkValidating from idle failed: %v", err)
	}
	if m.Status() != StatusValidating {
		t.Errorf("Expected validating, got %s", m.Status())
	}
	if err := m.MarkValidating(); err == nil {
		t.Error("Expected MarkValidating to fail while already validating")
	}

	m.ClearValidating()
	if m.Status() != StatusIdle {
		t.Errorf("Expected idle after ClearValidating, got %s", m.Status())
	}

	// Activation straight out of validating is the normal success path
	if err := m.MarkValidating(); err != nil {
		t.Fatalf("MarkValidating failed: %v", err)
	}
	if err := m.Activate("tok1", "3276000000000001"); err != nil {
		t.Errorf("Expected activate from validating to succeed, got %v", err)
	}
}
