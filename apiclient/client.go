// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/vote-kiosk/cliparse"
	"github.com/danielhkuo/vote-kiosk/credentials"
	"github.com/danielhkuo/vote-kiosk/models"
	"github.com/danielhkuo/vote-kiosk/storage"
)

// APIError is a non-2xx response from the server, carrying the
// envelope's message when one was present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// Client wraps every outbound API call with the active role's bearer
// credential and keeps that credential fresh. All methods are safe for
// concurrent use; overlapping callers that each detect a stale
// credential share a single refresh attempt.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      *credentials.Manager
	csrfToken  string
	deviceUUID string
	loginPath  string

	// Now is the clock; replaceable in tests.
	Now func() time.Time

	// AtLoginBoundary reports whether the view is already at the login
	// boundary; NavigateToLogin is invoked on irrecoverable auth
	// failure unless it returns true. Both default to no-ops.
	AtLoginBoundary func() bool
	NavigateToLogin func()

	refresher refresher
}

// New builds a Client. The kiosk's device identity is read from the
// store, minted on first run.
func New(cfg cliparse.Config, creds *credentials.Manager, store storage.Store) (*Client, error) {
	deviceUUID, ok, err := store.Get(storage.KeyDeviceUUID)
	if err != nil {
		return nil, err
	}
	if !ok || deviceUUID == "" {
		deviceUUID = uuid.NewString()
		if err := store.Set(storage.KeyDeviceUUID, deviceUUID); err != nil {
			return nil, err
		}
		slog.Info("registered kiosk device", "device_uuid", deviceUUID)
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		creds:           creds,
		csrfToken:       cfg.CSRFToken,
		deviceUUID:      deviceUUID,
		loginPath:       cfg.LoginPath,
		Now:             time.Now,
		AtLoginBoundary: func() bool { return false },
		NavigateToLogin: func() {},
	}, nil
}

// Do performs one authorized API call, decoding the envelope's data
// field into out (which may be nil). The credential is refreshed before
// sending when near expiry; a 401 response triggers exactly one
// additional refresh-and-retry.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if err := c.ensureFresh(ctx); err != nil {
		return err
	}

	env, status, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		role, rec, credErr := c.creds.ActiveRecord()
		if credErr != nil || rec.RefreshToken == "" {
			// No refresh token: the 401 propagates directly.
			return &APIError{StatusCode: status, Message: env.Message}
		}

		if err := c.refreshShared(ctx, role); err != nil {
			return err
		}

		env, status, err = c.send(ctx, method, path, body)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			// Second 401 after a fresh token is fatal.
			authErr := &models.AuthError{Role: role, Err: errors.New("unauthorized after refresh")}
			c.failAuth(role, authErr)
			return authErr
		}
	}

	if status < 200 || status >= 300 {
		return &APIError{StatusCode: status, Message: env.Message}
	}

	if out != nil {
		if len(env.Data) == 0 {
			return &models.DataShapeError{What: method + " " + path + " returned no data"}
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &models.DataShapeError{What: method + " " + path + ": " + err.Error()}
		}
	}
	return nil
}

// send issues one HTTP round trip and decodes the response envelope.
// A transport failure is a NetworkError; any readable body is decoded
// even on non-2xx so the server's message survives.
func (c *Client) send(ctx context.Context, method, path string, body any) (models.Envelope, int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return models.Envelope{}, 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return models.Envelope{}, 0, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.csrfToken != "" {
		req.Header.Set("X-CSRF-Token", c.csrfToken)
	}
	req.Header.Set("X-Device-UUID", c.deviceUUID)
	if _, rec, err := c.creds.ActiveRecord(); err == nil && rec.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+rec.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Envelope{}, 0, &models.NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	var env models.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return models.Envelope{}, resp.StatusCode, &models.DataShapeError{What: "response envelope: " + err.Error()}
		}
		// Non-JSON error body; the status code is all we have.
		return models.Envelope{}, resp.StatusCode, nil
	}
	return env, resp.StatusCode, nil
}

// failAuth purges the role's credentials and navigates to the login
// boundary, unless the view is already there.
func (c *Client) failAuth(role string, cause error) {
	slog.Error("auth exhausted, purging credentials", "role", role, "error", cause)
	if err := c.creds.Purge(role); err != nil {
		slog.Error("failed to purge credentials", "role", role, "error", err)
	}
	if !c.AtLoginBoundary() {
		c.NavigateToLogin()
	}
}
