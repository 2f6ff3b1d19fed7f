// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package qrgate validates scanned QR identity tokens, enforcing
at-most-one-in-flight and at-most-once-validated semantics.

# Guards

Validate rejects without a network call, in this order:

  - ALREADY_VALIDATING: an attempt is already in flight on this gate
  - SESSION_ACTIVE: the vote session is neither idle nor expired
  - ALREADY_VALIDATED: the gate already holds a success; Reset first
  - EMPTY_QR_CODE: blank or whitespace input

Only a clean pass through the guards issues the single call to
POST /api/voter/qr-codes/validate.

# Results

A well-formed success (valid true, non-empty token/warga_nik/expires_at)
moves the gate to success and returns the normalized ValidationResult.
Anything else - valid false, a missing field, a transport failure -
lands in error with a typed models.ValidationError. The gate never
activates the session; the orchestrator does that with the result.

# Reset

Reset cancels an in-flight attempt logically: the network call is not
aborted on the wire, but a result landing after Reset is discarded
(ErrSuperseded) and leaves the gate's fresh state untouched.
*/
package qrgate
