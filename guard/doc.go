// Package guard gates views on the session held by a goSession.Manager.
//
// # Decisions
//
//   - [Guard.Authorize]: pure read-and-branch over a session snapshot, returning a [Decision].
//   - [Guard.Require]: net/http adapter that turns a Decision into a response.
//   - [Guard.RequireAuthenticated]: Require with no role requirement.
//
// The order of checks is fixed: lazy expiry, loading, token presence, role match.
//
// # Architecture boundaries
//
// This package translates session state into routing outcomes. It does NOT log in,
// refresh, or persist anything. The only mutation it can cause is the lazy expiry
// check, which is delegated to the Manager.
//
// # What this package must NOT do
//
//   - Call the backend or touch session storage directly.
//   - Inspect or verify access tokens.
//   - Decide role hierarchies; a role requirement is an exact tag match.
package guard
