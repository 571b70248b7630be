// Package storage provides the durable key–value mirror behind a goSession.Manager.
//
// The Manager writes through on every mutation and reads once at startup. Keys are the
// logical names in [Keys]; backends may namespace them (the Redis store adds a prefix)
// but must round-trip values byte for byte.
//
// # Backends
//
//   - [Memory]: process-local map; the fake used by tests.
//   - [FileStore]: a single JSON object on disk, closest to browser localStorage.
//   - [RedisStore]: go-redis backed, for several processes sharing one login.
//
// # What this package must NOT do
//
//   - Interpret values (timestamps, tokens); that is the Manager's job.
//   - Import goSession (no upward imports).
package storage
