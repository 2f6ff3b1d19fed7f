// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package apiclient is the kiosk's single outbound gateway to the voting
API and the owner of the token refresh coordinator.

# Calls

Every call goes through Do, which attaches the active role's bearer
token, the anti-forgery token, the kiosk device identity, and the JSON
headers, then decodes the {success, message, data} envelope:

	var roster []models.Paslon
	err := client.Do(ctx, "GET", "/api/admin/paslon/", nil, &roster)

Typed helpers cover the endpoints the kiosk uses: Login, Logout,
ValidateQR, CreateVote, FetchPaslon, FetchLifeResult.

# Refresh Coordination

Before sending, Do checks whether the credential expires within 60
seconds and refreshes it first if a refresh token exists. Refreshes are
single-flight: concurrent callers that each detect the stale credential
wait on one shared in-flight attempt instead of racing N refreshes. The
slot holding the attempt is nullable and owned by the client; only the
caller that installed it clears it, exactly once, in a deferred cleanup
that runs on every outcome.

If the wrapped call still answers 401 after the pre-emptive path, Do
performs exactly one more refresh-and-retry. A second 401 is fatal: the
active role's credentials are purged and NavigateToLogin fires (unless
AtLoginBoundary already reports true). A 401 with no refresh token on
hand propagates directly with no retry.

# Error Mapping

Transport failures surface as models.NetworkError, undecodable payloads
as models.DataShapeError, exhausted auth as models.AuthError, and any
other non-2xx as *APIError carrying the server's message.
*/
package apiclient
