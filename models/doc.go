// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the wire types shared across the kiosk client and
the error taxonomy used by every asynchronous operation.

# Envelope

Every API response arrives in the same envelope:

	{"success": true, "message": "...", "data": {...}}

Envelope leaves Data raw; each call site decodes its own payload shape
and reports a DataShapeError if the structure does not match.

# Error Taxonomy

Five categories cover every failure mode:

  - NetworkError: transport failure on an outbound call
  - ValidationError: QR validation rejected, locally or by the server
  - AuthError: refresh exhausted, credentials purged
  - SessionError: vote submitted outside an active session window
  - DataShapeError: server payload failed structural validation

ValidationError carries a machine-readable code (EMPTY_QR_CODE,
ALREADY_VALIDATING, ...) so the view layer can map it to a message
without string matching. Only AuthError forces a side effect; all other
categories are locally recoverable and the operation may be retried.
*/
package models
