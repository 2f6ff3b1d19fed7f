// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package apiclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/vote-kiosk/credentials"
	"github.com/danielhkuo/vote-kiosk/models"
)

func unmarshalData(env models.Envelope, out any) error {
	if len(env.Data) == 0 {
		return &models.DataShapeError{What: "empty data field"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &models.DataShapeError{What: err.Error()}
	}
	return nil
}

// Login authenticates a role and stores its credential record, making
// it the active role.
func (c *Client) Login(ctx context.Context, role, username, password string) error {
	env, status, err := c.send(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 || !env.Success {
		return &APIError{StatusCode: status, Message: env.Message}
	}

	var data models.TokenData
	if err := unmarshalData(env, &data); err != nil {
		return err
	}
	if data.AccessToken == "" {
		return &models.DataShapeError{What: "login response missing access_token"}
	}

	rec := credentials.Record{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresAt:    credentials.ResolveExpiry(data.AccessToken, data.ExpiresAt),
	}
	if err := c.creds.SaveRecord(role, rec); err != nil {
		return err
	}
	if err := c.creds.SetActiveRole(role); err != nil {
		return err
	}

	slog.Info("logged in", "role", role)
	return nil
}

// Logout tells the server to revoke the session, then destroys every
// stored credential regardless of the server's answer.
func (c *Client) Logout(ctx context.Context) error {
	if _, _, err := c.send(ctx, http.MethodPost, "/api/auth/logout", nil); err != nil {
		slog.Warn("logout call failed, purging anyway", "error", err)
	}
	return c.creds.PurgeAll()
}

// ValidateQR exchanges scanned QR content for a voting authorization.
func (c *Client) ValidateQR(ctx context.Context, content string) (models.ValidationData, error) {
	var data models.ValidationData
	err := c.Do(ctx, http.MethodPost, "/api/voter/qr-codes/validate", models.ValidateQRRequest{
		QRCodeContent: content,
	}, &data)
	return data, err
}

// CreateVote casts the authorized vote.
func (c *Client) CreateVote(ctx context.Context, wargaNIK string, paslonID int) error {
	return c.Do(ctx, http.MethodPost, "/api/voter/vote/create", models.CreateVoteRequest{
		WargaNIK: wargaNIK,
		PaslonID: paslonID,
	}, nil)
}

// FetchPaslon retrieves the candidate roster.
func (c *Client) FetchPaslon(ctx context.Context) ([]models.Paslon, error) {
	var roster []models.Paslon
	if err := c.Do(ctx, http.MethodGet, "/api/admin/paslon/", nil, &roster); err != nil {
		return nil, err
	}
	return roster, nil
}

// FetchLifeResult retrieves the raw vote-count map, keyed "paslon{id}".
func (c *Client) FetchLifeResult(ctx context.Context) (map[string]int, error) {
	var counts map[string]int
	if err := c.Do(ctx, http.MethodGet, "/api/admin/vote/life-result", nil, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}
