package storage

import (
	"context"
	"errors"
)

// Persisted key names. These are the keys the dashboard has always used, so an
// existing mirror can be read by a new process.
const (
	KeyAuthToken      = "authToken"
	KeyRefreshToken   = "refreshToken"
	KeyRole           = "role"
	KeyID             = "id"
	KeyTokenTimestamp = "tokenTimestamp"
)

// Keys lists every key owned by the session, in write order.
var Keys = []string{
	KeyAuthToken,
	KeyRefreshToken,
	KeyRole,
	KeyID,
	KeyTokenTimestamp,
}

// ErrUnavailable wraps backend I/O failures.
var ErrUnavailable = errors.New("session storage unavailable")

// Store is the get/set/remove contract the Manager persists through.
//
// Get reports ok=false for a missing key; that is not an error. Remove of a missing key
// is a no-op.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
}

// BatchSetter is implemented by stores that can write several keys in one operation.
type BatchSetter interface {
	SetAll(ctx context.Context, values map[string]string) error
}

// SetAll writes values through st, using a single batch when st supports it.
// Otherwise known keys are written in [Keys] order, followed by any others.
func SetAll(ctx context.Context, st Store, values map[string]string) error {
	if bs, ok := st.(BatchSetter); ok {
		return bs.SetAll(ctx, values)
	}

	seen := make(map[string]struct{}, len(values))
	for _, k := range Keys {
		v, ok := values[k]
		if !ok {
			continue
		}
		seen[k] = struct{}{}
		if err := st.Set(ctx, k, v); err != nil {
			return err
		}
	}
	for k, v := range values {
		if _, ok := seen[k]; ok {
			continue
		}
		if err := st.Set(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}
