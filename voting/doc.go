// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voting orchestrates the exactly-once vote submission.

# Preconditions

Submit checks, in order, each with its own operator-facing message:
the session is active, the window has not elapsed (CheckExpiry closes
the not-yet-fired-countdown race), the session is not completed, a
candidate is selected, the voter identity is present, and the selected
id exists in the loaded roster.

# Exactly Once

A boolean in-flight guard is set before the network call, under the
same lock as the precondition checks. A second Submit while one is
outstanding returns nil silently - a duplicate trigger (double tap on
the kiosk) is not an error. On success the QR gate is reset, the
selection cleared, and the session completed, which fires the terminal
hook. On failure the guard clears and the session stays active for a
retry, surfacing the server's message when it sent one.

# Teardown

Close marks the flow destroyed; a submission result that lands after
Close is discarded rather than mutating torn-down state.
*/
package voting
