// Package goSession manages the lifetime of a single client-side authentication session:
// acquiring credentials from the backend, mirroring them into durable storage, expiring
// them on a timer, refreshing them, and exposing read-only state to route guards.
//
// The package is built for one [Manager] per client process. Manager methods are safe
// to call from multiple goroutines after construction through [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Manager], [Builder], [Config], [Session]
// and the error taxonomy. Persistence lives in storage/, the backend wire format in
// client/, and routing decisions in guard/.
//
// # What this package must NOT do
//
//   - Mutate session fields from outside Manager methods.
//   - Hold the state lock across network or storage I/O during Login and RefreshToken.
//   - Retry failed backend calls automatically.
//
// # Lifecycle
//
// Build a Manager, call [Manager.Initialize] once to rehydrate persisted state, start
// [Manager.StartExpiryWatch], and call [Manager.Close] on teardown.
package goSession
