// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/vote-kiosk/apiclient"
	"github.com/danielhkuo/vote-kiosk/cliparse"
	"github.com/danielhkuo/vote-kiosk/credentials"
	"github.com/danielhkuo/vote-kiosk/storage"
)

// Clock is a manual time source for time-dependent state machines.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// APIServer is a scripted stand-in for the voting API. Handlers are
// registered per route pattern; every hit is counted so tests can
// assert exactly how many network calls an operation made.
type APIServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	mux      *http.ServeMux
	counters map[string]*atomic.Int32
}

func NewAPIServer(t *testing.T) *APIServer {
	t.Helper()

	s := &APIServer{
		mux:      http.NewServeMux(),
		counters: make(map[string]*atomic.Int32),
	}
	s.Server = httptest.NewServer(s.mux)
	t.Cleanup(s.Server.Close)
	return s
}

// Handle registers a handler for a Go 1.22 route pattern, e.g.
// "POST /api/auth/refresh", wrapped with a call counter.
func (s *APIServer) Handle(pattern string, fn http.HandlerFunc) {
	s.mu.Lock()
	counter := &atomic.Int32{}
	s.counters[pattern] = counter
	s.mu.Unlock()

	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		counter.Add(1)
		fn(w, r)
	})
}

// Calls returns how many times a registered pattern was hit.
func (s *APIServer) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counter, ok := s.counters[pattern]
	if !ok {
		return 0
	}
	return int(counter.Load())
}

// WriteEnvelope writes the standard {success, message, data} response.
func WriteEnvelope(t *testing.T, w http.ResponseWriter, status int, success bool, message string, data any) {
	t.Helper()

	body := map[string]any{"success": success, "message": message}
	if data != nil {
		body["data"] = data
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Errorf("Failed to encode envelope: %v", err)
	}
}

// TestConfig returns a config pointed at the scripted server.
func TestConfig(baseURL string) cliparse.Config {
	return cliparse.Config{
		BaseURL:       baseURL,
		PollInterval:  5 * time.Second,
		SessionWindow: 5 * time.Minute,
		CSRFToken:     "test-csrf-token",
		LoginPath:     "/login",
	}
}

// NewClient builds a client against the scripted server with an
// in-memory store.
func NewClient(t *testing.T, baseURL string) (*apiclient.Client, *credentials.Manager, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	creds := credentials.NewManager(store)
	client, err := apiclient.New(TestConfig(baseURL), creds, store)
	if err != nil {
		t.Fatalf("Failed to build client: %v", err)
	}
	return client, creds, store
}

// SeedCredentials stores a credential record and makes its role active.
func SeedCredentials(t *testing.T, creds *credentials.Manager, role string, rec credentials.Record) {
	t.Helper()

	if err := creds.SaveRecord(role, rec); err != nil {
		t.Fatalf("Failed to save credentials: %v", err)
	}
	if err := creds.SetActiveRole(role); err != nil {
		t.Fatalf("Failed to set active role: %v", err)
	}
}
