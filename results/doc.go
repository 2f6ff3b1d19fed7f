// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package results polls the live tally while voting is active.

# Polling

Start is idempotent (only the first call installs the timer), performs
one immediate fetch, then repeats on the configured cadence. Every tick
reads the externally owned voting-phase flag: anything but active stops
the timer and marks the poller inactive, so the poll loop terminates
itself when voting closes. A tick that fires while the previous fetch
is still outstanding is skipped - one fetch in flight at a time.

# Transform

Each fetch retrieves the candidate roster and the raw vote-count map
(keyed "paslon{id}") concurrently, then computes the standings
client-side:

	percentage = count / totalVotes * 100

A server-provided percentage is never trusted. The sort is stable,
descending by percentage, with ties left in ascending paslon id order,
so re-running Transform on the same counts yields identical output.

A payload that fails structural validation degrades to an empty result;
a transient network failure keeps the previous standings.
*/
package results
