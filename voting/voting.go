// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"log/slog"
	"sync"

	"github.com/danielhkuo/vote-kiosk/models"
	"github.com/danielhkuo/vote-kiosk/qrgate"
	"github.com/danielhkuo/vote-kiosk/session"
)

// API is the slice of the client the flow needs.
type API interface {
	CreateVote(ctx context.Context, wargaNIK string, paslonID int) error
	FetchPaslon(ctx context.Context) ([]models.Paslon, error)
}

// Flow composes the session machine, the QR gate, and the candidate
// selection into exactly one authorized vote POST.
type Flow struct {
	api  API
	sess *session.Machine
	gate *qrgate.Gate

	mu         sync.Mutex
	submitting bool
	closed     bool
	selected   int
	roster     []models.Paslon
}

func New(api API, sess *session.Machine, gate *qrgate.Gate) *Flow {
	return &Flow{api: api, sess: sess, gate: gate}
}

// LoadRoster fetches the current candidate list, against which the
// selected id is checked at submission time.
func (f *Flow) LoadRoster(ctx context.Context) error {
	roster, err := f.api.FetchPaslon(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.roster = roster
	f.mu.Unlock()
	return nil
}

// Roster returns the loaded candidate list.
func (f *Flow) Roster() []models.Paslon {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roster
}

// Select records the operator's candidate choice.
func (f *Flow) Select(paslonID int) {
	f.mu.Lock()
	f.selected = paslonID
	f.mu.Unlock()
}

// Selected returns the current choice, zero when none.
func (f *Flow) Selected() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selected
}

// Submit casts the vote. Preconditions are checked in order, each with
// its own message; a second call while one is outstanding is a silent
// no-op, absorbing duplicate UI triggers. On success the gate is
// reset, the selection cleared, and the session completed; on failure
// the session stays active so the voter may retry.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil
	}

	if f.sess.Status() != session.StatusActive {
		f.mu.Unlock()
		return &models.SessionError{Status: string(f.sess.Status()), Message: "no active voting session"}
	}
	if f.sess.CheckExpiry() {
		f.mu.Unlock()
		return &models.SessionError{Status: string(session.StatusExpired), Message: "voting session has expired"}
	}
	if f.sess.Status() == session.StatusCompleted {
		f.mu.Unlock()
		return &models.SessionError{Status: string(session.StatusCompleted), Message: "vote was already cast this session"}
	}

	selected := f.selected
	if selected == 0 {
		f.mu.Unlock()
		return &models.SessionError{Status: string(session.StatusActive), Message: "no candidate selected"}
	}

	wargaNIK := f.sess.WargaNIK()
	if wargaNIK == "" {
		f.mu.Unlock()
		return &models.SessionError{Status: string(session.StatusActive), Message: "voter identity missing from session"}
	}

	known := false
	for _, p := range f.roster {
		if p.ID == selected {
			known = true
			break
		}
	}
	if !known {
		f.mu.Unlock()
		return &models.SessionError{Status: string(session.StatusActive), Message: "selected candidate is not on the ballot"}
	}

	// The guard is set before the first suspension point; everything
	// above ran without releasing the lock.
	f.submitting = true
	f.mu.Unlock()

	err := f.api.CreateVote(ctx, wargaNIK, selected)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false

	if f.closed {
		// Teardown mid-flight: never write to a destroyed view.
		slog.Info("discarding submission result after teardown")
		return nil
	}

	if err != nil {
		// Session stays active; the voter may retry.
		slog.Error("vote submission failed", "error", err)
		return err
	}

	f.selected = 0
	f.gate.Reset()
	if err := f.sess.Complete(); err != nil {
		slog.Error("failed to complete session after vote", "error", err)
	}
	slog.Info("vote submitted", "paslon_id", selected)
	return nil
}

// Submitting reports whether a submission is outstanding.
func (f *Flow) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Close marks the flow torn down; results of in-flight submissions are
// discarded.
func (f *Flow) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
