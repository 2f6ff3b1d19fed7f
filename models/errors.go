// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "fmt"

// Validation error codes
const (
	CodeEmptyQRCode       = "EMPTY_QR_CODE"
	CodeAlreadyValidating = "ALREADY_VALIDATING"
	CodeSessionActive     = "SESSION_ACTIVE"
	CodeAlreadyValidated  = "ALREADY_VALIDATED"
	CodeQRCodeInvalid     = "QR_CODE_INVALID"
	CodeMissingToken      = "MISSING_TOKEN"
	CodeMissingWargaNIK   = "MISSING_WARGA_NIK"
	CodeMissingExpiresAt  = "MISSING_EXPIRES_AT"
)

// NetworkError wraps a transport-level failure of an outbound call.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is a QR validation failure, either a local guard
// rejection (no network call made) or a malformed/negative server
// response. Code is one of the Code* constants above.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Code, e.Message)
}

// AuthError means the refresh path is exhausted and the role's
// credentials have been purged. It is the only error category with a
// forced side effect (purge plus navigation to the login boundary).
type AuthError struct {
	Role string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for role %q: %v", e.Role, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SessionError is a vote submission attempted outside an active window.
type SessionError struct {
	Status  string
	Message string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session error (status %s): %s", e.Status, e.Message)
}

// DataShapeError means a server payload failed structural validation.
// Callers degrade to an empty or safe default rather than crashing.
type DataShapeError struct {
	What string
}

func (e *DataShapeError) Error() string {
	return "unexpected payload shape: " + e.What
}
