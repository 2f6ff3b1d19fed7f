// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package apiclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielhkuo/vote-kiosk/credentials"
	"github.com/danielhkuo/vote-kiosk/models"
)

// refreshBuffer is how close to expiry a credential may get before a
// call refreshes it pre-emptively.
const refreshBuffer = 60 * time.Second

// refreshAttempt is one shared in-flight refresh. err is written before
// done is closed and never after, so waiters read it without a lock.
type refreshAttempt struct {
	done chan struct{}
	err  error
}

// refresher holds the nullable in-flight attempt. Many concurrent
// callers may each detect a stale credential; all of them must observe
// the same attempt rather than issuing parallel refreshes.
type refresher struct {
	mu       sync.Mutex
	inflight *refreshAttempt
}

// ensureFresh refreshes the active credential before a call when it is
// expired or within the buffer of expiring. With no usable record or no
// refresh token the call proceeds as-is and any 401 is handled by the
// caller.
func (c *Client) ensureFresh(ctx context.Context) error {
	role, rec, err := c.creds.ActiveRecord()
	if err != nil {
		return nil
	}
	if c.Now().Add(refreshBuffer).Before(rec.ExpiresAt) {
		return nil
	}
	if rec.RefreshToken == "" {
		return nil
	}
	return c.refreshShared(ctx, role)
}

// refreshShared de-duplicates concurrent refreshes: the first caller
// installs the attempt and performs the network call; everyone else
// waits on the same attempt. Only the initiating caller clears the
// slot, exactly once, regardless of outcome.
func (c *Client) refreshShared(ctx context.Context, role string) error {
	c.refresher.mu.Lock()
	if attempt := c.refresher.inflight; attempt != nil {
		c.refresher.mu.Unlock()
		select {
		case <-attempt.done:
			return attempt.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	attempt := &refreshAttempt{done: make(chan struct{})}
	c.refresher.inflight = attempt
	c.refresher.mu.Unlock()

	var err error
	defer func() {
		attempt.err = err
		close(attempt.done)
		c.refresher.mu.Lock()
		c.refresher.inflight = nil
		c.refresher.mu.Unlock()
	}()

	err = c.doRefresh(ctx, role)
	return err
}

// doRefresh performs the actual refresh round trip and persists the new
// access token. An unauthorized or malformed refresh response is
// irrecoverable: credentials are purged and the view is sent to login.
func (c *Client) doRefresh(ctx context.Context, role string) error {
	rec, ok, err := c.creds.Record(role)
	if err != nil || !ok || rec.RefreshToken == "" {
		return fmt.Errorf("no refresh token for role %q", role)
	}

	env, status, err := c.send(ctx, http.MethodPost, "/api/auth/refresh", models.RefreshRequest{
		RefreshToken: rec.RefreshToken,
	})
	if err != nil {
		// Transport failure: recoverable, credentials stay put.
		return err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		authErr := &models.AuthError{Role: role, Err: fmt.Errorf("refresh rejected with status %d", status)}
		c.failAuth(role, authErr)
		return authErr
	}
	if status < 200 || status >= 300 || !env.Success {
		return &APIError{StatusCode: status, Message: env.Message}
	}

	var data models.TokenData
	if err := unmarshalData(env, &data); err != nil {
		authErr := &models.AuthError{Role: role, Err: err}
		c.failAuth(role, authErr)
		return authErr
	}
	if data.AccessToken == "" {
		authErr := &models.AuthError{Role: role, Err: &models.DataShapeError{What: "refresh response missing access_token"}}
		c.failAuth(role, authErr)
		return authErr
	}

	rec.AccessToken = data.AccessToken
	if data.RefreshToken != "" {
		rec.RefreshToken = data.RefreshToken
	}
	rec.ExpiresAt = credentials.ResolveExpiry(data.AccessToken, data.ExpiresAt)
	if err := c.creds.SaveRecord(role, rec); err != nil {
		return err
	}

	slog.Info("access token refreshed", "role", role, "expires_at", rec.ExpiresAt)
	return nil
}
