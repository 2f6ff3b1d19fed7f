// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import (
	"encoding/json"
	"time"
)

// Credential roles recognized by the API
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
	RolePaslon     = "paslon"
	RoleUser       = "user"
)

// Voting phase constants (externally owned flag read by the result poller)
const (
	PhaseIdle     = "idle"
	PhaseActive   = "active"
	PhaseFinished = "finished"
)

// Envelope is the JSON envelope wrapping every API response.
// Data is left raw so each caller decodes its own payload shape.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Request types

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ValidateQRRequest struct {
	QRCodeContent string `json:"qr_code_content"`
}

type CreateVoteRequest struct {
	WargaNIK string `json:"warga_nik"`
	PaslonID int    `json:"paslon_id"`
}

// Response payloads (the Data field of the envelope)

type TokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
}

type ValidationData struct {
	Valid     bool   `json:"valid"`
	Token     string `json:"token"`
	WargaNIK  string `json:"warga_nik"`
	ExpiresAt string `json:"expires_at"`
}

// Domain types

// Paslon is one candidate pair on the ballot.
type Paslon struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ValidationResult is the normalized outcome of a successful QR validation.
// It is consumed once by the session state machine and never stored.
type ValidationResult struct {
	Valid     bool
	Token     string
	WargaNIK  string
	ExpiresAt time.Time
	Message   string
}

// PaslonStanding is one row of the live result computed client-side.
// Percentage is always derived from the raw counts, never taken from
// the server.
type PaslonStanding struct {
	PaslonID   int     `json:"paslon_id"`
	Name       string  `json:"name"`
	VoteCount  int     `json:"vote_count"`
	Percentage float64 `json:"percentage"`
}
