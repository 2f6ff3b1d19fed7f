// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package qrgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/vote-kiosk/models"
	"github.com/danielhkuo/vote-kiosk/session"
	"github.com/danielhkuo/vote-kiosk/storage"
	"github.com/danielhkuo/vote-kiosk/testutil"
)

// fakeValidator scripts the validation endpoint and counts calls.
type fakeValidator struct {
	calls atomic.Int32
	delay time.Duration
	data  models.ValidationData
	err   error
}

func (f *fakeValidator) ValidateQR(ctx context.Context, content string) (models.ValidationData, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.data, f.err
}

func validData() models.ValidationData {
	return models.ValidationData{
		Valid:     true,
		Token:     "tok1",
		WargaNIK:  "3276000000000001",
		ExpiresAt: "2025-06-01T08:05:00Z",
	}
}

func newTestGate(t *testing.T, api Validator) (*Gate, *session.Machine) {
	t.Helper()
	clock := testutil.NewClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	sess := session.New(session.Config{
		Store:         storage.NewMemoryStore(),
		Window:        5 * time.Minute,
		TerminalDelay: time.Millisecond,
		Clock:         clock.Now,
	})
	return New(api, sess), sess
}

// TestValidateSuccess verifies the normalized result of a well-formed
// success response
func TestValidateSuccess(t *testing.T) {
	api := &fakeValidator{data: validData()}
	gate, sess := newTestGate(t, api)

	result, err := gate.Validate(context.Background(), "QR-PAYLOAD-1")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if !result.Valid || result.Token != "tok1" || result.WargaNIK != "3276000000000001" {
		t.Errorf("Unexpected result: %+v", result)
	}
	want := time.Date(2025, 6, 1, 8, 5, 0, 0, time.UTC)
	if !result.ExpiresAt.Equal(want) {
		t.Errorf("Expected expiry %s, got %s", want, result.ExpiresAt)
	}
	if gate.State() != StateSuccess {
		t.Errorf("Expected gate success, got %s", gate.State())
	}
	// The gate must not activate the session itself
	if sess.Status() == session.StatusActive {
		t.Error("Gate must not activate the session")
	}
	if got := api.calls.Load(); got != 1 {
		t.Errorf("Expected 1 network call, got %d", got)
	}
}

// TestEmptyInputNoNetworkCall verifies scenario: validate with "" gives
// an immediate EMPTY_QR_CODE error with zero network calls
func TestEmptyInputNoNetworkCall(t *testing.T) {
	api := &fakeValidator{data: validData()}
	gate, _ := newTestGate(t, api)

	for _, input := range []string{"", "   ", "\t\n"} {
		_, err := gate.Validate(context.Background(), input)

		var verr *models.ValidationError
		if !errors.As(err, &verr) || verr.Code != models.CodeEmptyQRCode {
			t.Errorf("Input %q: expected EMPTY_QR_CODE, got %v", input, err)
		}
	}

	if got := api.calls.Load(); got != 0 {
		t.Errorf("Expected 0 network calls, got %d", got)
	}
	if gate.State() != StateError {
		t.Errorf("Expected gate error state, got %s", gate.State())
	}
}

// TestAtMostOnceValidation verifies two concurrent validations yield
// exactly one network call; the loser gets ALREADY_VALIDATING
func TestAtMostOnceValidation(t *testing.T) {
	api := &fakeValidator{data: validData(), delay: 100 * time.Millisecond}
	gate, _ := newTestGate(t, api)

	var wg sync.WaitGroup
	var alreadyValidating atomic.Int32
	var succeeded atomic.Int32

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gate.Validate(context.Background(), "QR-PAYLOAD-1")
			if err == nil {
				succeeded.Add(1)
				return
			}
			var verr *models.ValidationError
			if errors.As(err, &verr) && verr.Code == models.CodeAlreadyValidating {
				alreadyValidating.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := api.calls.Load(); got != 1 {
		t.Errorf("Expected exactly 1 network call, got %d", got)
	}
	if succeeded.Load() != 1 {
		t.Errorf("Expected 1 success, got %d", succeeded.Load())
	}
	if alreadyValidating.Load() != 1 {
		t.Errorf("Expected 1 ALREADY_VALIDATING rejection, got %d", alreadyValidating.Load())
	}
}

// TestRejectsWhileSessionActive verifies SESSION_ACTIVE without a
// network call once a session is running
func TestRejectsWhileSessionActive(t *testing.T) {
	api := &fakeValidator{data: validData()}
	gate, sess := newTestGate(t, api)

	if err := sess.Activate("tok0", "3276000000000009"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	_, err := gate.Validate(context.Background(), "QR-PAYLOAD-1")
	var verr *models.ValidationError
	if !errors.As(err, &verr) || verr.Code != models.CodeSessionActive {
		t.Errorf("Expected SESSION_ACTIVE, got %v", err)
	}
	if got := api.calls.Load(); got != 0 {
		t.Errorf("Expected 0 network calls, got %d", got)
	}
}

// TestRejectsAlreadyValidated verifies a held success blocks another
// validation until Reset
func TestRejectsAlreadyValidated(t *testing.T) {
	api := &fakeValidator{data: validData()}
	gate, _ := newTestGate(t, api)

	if _, err := gate.Validate(context.Background(), "QR-PAYLOAD-1"); err != nil {
		t.Fatalf("First validate failed: %v", err)
	}

	_, err := gate.Validate(context.Background(), "QR-PAYLOAD-2")
	var verr *models.ValidationError
	if !errors.As(err, &verr) || verr.Code != models.CodeAlreadyValidated {
		t.Errorf("Expected ALREADY_VALIDATED, got %v", err)
	}

	gate.Reset()
	if _, err := gate.Validate(context.Background(), "QR-PAYLOAD-2"); err != nil {
		t.Errorf("Expected validate after reset to succeed, got %v", err)
	}
	if got := api.calls.Load(); got != 2 {
		t.Errorf("Expected 2 network calls total, got %d", got)
	}
}

// TestMalformedResponses verifies each missing field maps to its code
func TestMalformedResponses(t *testing.T) {
	cases := []struct {
		name string
		data models.ValidationData
		code string
	}{
		{"invalid", models.ValidationData{Valid: false}, models.CodeQRCodeInvalid},
		{"missing token", models.ValidationData{Valid: true, WargaNIK: "1", ExpiresAt: "2025-06-01T08:05:00Z"}, models.CodeMissingToken},
		{"missing nik", models.ValidationData{Valid: true, Token: "t", ExpiresAt: "2025-06-01T08:05:00Z"}, models.CodeMissingWargaNIK},
		{"missing expiry", models.ValidationData{Valid: true, Token: "t", WargaNIK: "1"}, models.CodeMissingExpiresAt},
		{"bad expiry", models.ValidationData{Valid: true, Token: "t", WargaNIK: "1", ExpiresAt: "not-a-time"}, models.CodeMissingExpiresAt},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate, _ := newTestGate(t, &fakeValidator{data: tc.data})

			_, err := gate.Validate(context.Background(), "QR-PAYLOAD-1")
			var verr *models.ValidationError
			if !errors.As(err, &verr) || verr.Code != tc.code {
				t.Errorf("Expected %s, got %v", tc.code, err)
			}
			if gate.State() != StateError {
				t.Errorf("Expected gate error state, got %s", gate.State())
			}
		})
	}
}

// TestNetworkFailureRecorded verifies a transport error lands in the
// gate's error state and is retryable
func TestNetworkFailureRecorded(t *testing.T) {
	api := &fakeValidator{err: &models.NetworkError{Op: "POST /api/voter/qr-codes/validate", Err: errors.New("connection refused")}}
	gate, _ := newTestGate(t, api)

	_, err := gate.Validate(context.Background(), "QR-PAYLOAD-1")
	var nerr *models.NetworkError
	if !errors.As(err, &nerr) {
		t.Errorf("Expected NetworkError, got %v", err)
	}
	if gate.State() != StateError {
		t.Errorf("Expected gate error state, got %s", gate.State())
	}

	// Error state does not block a retry
	api.err = nil
	api.data = validData()
	if _, err := gate.Validate(context.Background(), "QR-PAYLOAD-1"); err != nil {
		t.Errorf("Expected retry to succeed, got %v", err)
	}
}

// TestResetDiscardsInFlightResult verifies a result landing after
// Reset is discarded and leaves the fresh gate state untouched
func TestResetDiscardsInFlightResult(t *testing.T) {
	api := &fakeValidator{data: validData(), delay: 100 * time.Millisecond}
	gate, _ := newTestGate(t, api)

	done := make(chan error, 1)
	go func() {
		_, err := gate.Validate(context.Background(), "QR-PAYLOAD-1")
		done <- err
	}()

	// Let the attempt reach its suspension point, then cancel it
	time.Sleep(20 * time.Millisecond)
	gate.Reset()

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Errorf("Expected ErrSuperseded, got %v", err)
	}
	if gate.State() != StateIdle {
		t.Errorf("Expected gate idle after reset, got %s", gate.State())
	}
	if _, ok := gate.Result(); ok {
		t.Error("Expected no held result after reset")
	}
}
