// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package qrgate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/danielhkuo/vote-kiosk/models"
	"github.com/danielhkuo/vote-kiosk/session"
)

// State is the gate's own lifecycle, independent of the session's.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// ErrSuperseded marks a validation result that arrived after Reset;
// the result is discarded, the gate's state is left alone.
var ErrSuperseded = errors.New("validation attempt superseded")

// Validator issues the validation call. *apiclient.Client satisfies it.
type Validator interface {
	ValidateQR(ctx context.Context, content string) (models.ValidationData, error)
}

// Session is the slice of the session machine the gate needs: the
// status check that forbids re-validation, and the validating marker.
type Session interface {
	Status() session.Status
	MarkValidating() error
	ClearValidating()
}

// Gate enforces at-most-one-in-flight and at-most-once-validated
// semantics over the validation endpoint. It never activates the
// session itself; the caller does that with the returned result.
type Gate struct {
	api  Validator
	sess Session

	mu       sync.Mutex
	state    State
	inFlight bool
	result   *models.ValidationResult
	lastErr  error

	// generation invalidates in-flight attempts cancelled by Reset.
	generation int
}

func New(api Validator, sess Session) *Gate {
	return &Gate{api: api, sess: sess, state: StateIdle}
}

// Validate exchanges raw scanned text for a voting authorization.
// Guard rejections fail fast without touching the network; exactly one
// call is in flight at a time.
func (g *Gate) Validate(ctx context.Context, raw string) (models.ValidationResult, error) {
	g.mu.Lock()

	// Guard order matters: the in-flight check comes first so a
	// concurrent duplicate is reported as such, not as a session
	// conflict.
	if g.inFlight {
		g.mu.Unlock()
		return models.ValidationResult{}, &models.ValidationError{
			Code:    models.CodeAlreadyValidating,
			Message: "a validation is already in progress",
		}
	}
	if status := g.sess.Status(); status != session.StatusIdle && status != session.StatusExpired {
		verr := &models.ValidationError{
			Code:    models.CodeSessionActive,
			Message: "a vote session is already in progress",
		}
		g.state = StateError
		g.lastErr = verr
		g.mu.Unlock()
		return models.ValidationResult{}, verr
	}
	if g.result != nil {
		verr := &models.ValidationError{
			Code:    models.CodeAlreadyValidated,
			Message: "a QR code was already validated; reset first",
		}
		g.state = StateError
		g.lastErr = verr
		g.mu.Unlock()
		return models.ValidationResult{}, verr
	}
	if strings.TrimSpace(raw) == "" {
		verr := &models.ValidationError{
			Code:    models.CodeEmptyQRCode,
			Message: "scanned QR code is empty",
		}
		g.state = StateError
		g.lastErr = verr
		g.mu.Unlock()
		return models.ValidationResult{}, verr
	}

	if err := g.sess.MarkValidating(); err != nil {
		verr := &models.ValidationError{
			Code:    models.CodeSessionActive,
			Message: "a vote session is already in progress",
		}
		g.state = StateError
		g.lastErr = verr
		g.mu.Unlock()
		return models.ValidationResult{}, verr
	}

	g.inFlight = true
	g.state = StateValidating
	g.generation++
	gen := g.generation
	g.mu.Unlock()

	data, err := g.api.ValidateQR(ctx, raw)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sess.ClearValidating()

	if g.generation != gen {
		// Reset ran while the call was outstanding; discard.
		slog.Info("discarding superseded validation result")
		return models.ValidationResult{}, ErrSuperseded
	}
	g.inFlight = false

	if err != nil {
		g.state = StateError
		g.lastErr = err
		return models.ValidationResult{}, err
	}

	result, verr := normalize(data)
	if verr != nil {
		g.state = StateError
		g.lastErr = verr
		return models.ValidationResult{}, verr
	}

	g.state = StateSuccess
	g.result = &result
	slog.Info("qr code validated", "warga_nik", result.WargaNIK)
	return result, nil
}

// normalize checks the response shape and converts it to the
// consumable result. A well-formed success has valid true and
// non-empty token, identity, and expiry.
func normalize(data models.ValidationData) (models.ValidationResult, *models.ValidationError) {
	if !data.Valid {
		return models.ValidationResult{}, &models.ValidationError{
			Code:    models.CodeQRCodeInvalid,
			Message: "QR code was rejected",
		}
	}
	if data.Token == "" {
		return models.ValidationResult{}, &models.ValidationError{
			Code:    models.CodeMissingToken,
			Message: "validation response missing token",
		}
	}
	if data.WargaNIK == "" {
		return models.ValidationResult{}, &models.ValidationError{
			Code:    models.CodeMissingWargaNIK,
			Message: "validation response missing warga_nik",
		}
	}
	if data.ExpiresAt == "" {
		return models.ValidationResult{}, &models.ValidationError{
			Code:    models.CodeMissingExpiresAt,
			Message: "validation response missing expires_at",
		}
	}
	expiresAt, err := time.Parse(time.RFC3339, data.ExpiresAt)
	if err != nil {
		return models.ValidationResult{}, &models.ValidationError{
			Code:    models.CodeMissingExpiresAt,
			Message: "validation response expires_at is malformed",
		}
	}

	return models.ValidationResult{
		Valid:     true,
		Token:     data.Token,
		WargaNIK:  data.WargaNIK,
		ExpiresAt: expiresAt,
	}, nil
}

// Reset cancels any in-flight attempt (its result will be discarded
// when it lands) and returns the gate to idle.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generation++
	g.state = StateIdle
	g.inFlight = false
	g.result = nil
	g.lastErr = nil
}

// State returns the gate's current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Result returns the held successful validation, if any.
func (g *Gate) Result() (models.ValidationResult, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.result == nil {
		return models.ValidationResult{}, false
	}
	return *g.result, true
}

// Err returns the last recorded validation error.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr
}
