package goSession

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/storage"
)

// CheckExpiry is one ExpiryWatch tick. It reads the persisted tokenTimestamp and logs
// out when the session has outlived the TTL, or when a token is held with no usable
// timestamp. It reports whether the session was cleared.
//
// The read and the logout happen under the write lock, so a RefreshToken that lands
// first is judged by its fresh timestamp.
func (m *Manager) CheckExpiry(ctx context.Context) bool {
	m.writeMu.Lock()
	defer m.releaseWrite()

	snap := m.Snapshot()
	now := m.now()

	raw, ok, err := m.store.Get(ctx, storage.KeyTokenTimestamp)
	if err != nil {
		// Memory mirrors storage; fall back to it rather than skip the tick.
		m.metrics.Inc(MetricStorageFailure)
		m.logger.Warn("session: reading tokenTimestamp failed", slog.Any("error", err))
		if !snap.Authenticated() || !m.expired(snap, now) {
			return false
		}
		_ = m.expireLocked(ctx, snap)
		return true
	}

	if !ok && !snap.Authenticated() {
		return false
	}
	// A zero IssuedAt counts as expired.
	probe := snap
	probe.IssuedAt, _ = parseMillis(raw)

	if !m.expired(probe, now) {
		m.logger.Debug("session: expiry check passed", slog.Duration("age", probe.Age(now)))
		return false
	}
	_ = m.expireLocked(ctx, snap)
	return true
}

// Current returns the session after a lazy in-memory expiry check. An expired session
// is cleared before the snapshot is taken, so a caller never sees a stale token.
func (m *Manager) Current(ctx context.Context) Session {
	if snap := m.Snapshot(); !m.lazyExpired(snap) {
		return snap
	}

	m.writeMu.Lock()
	// Re-check: a refresh may have finished while the lock was contended.
	if snap := m.Snapshot(); m.lazyExpired(snap) {
		_ = m.expireLocked(ctx, snap)
	}
	m.releaseWrite()
	return m.Snapshot()
}

func (m *Manager) lazyExpired(s Session) bool {
	return s.Authenticated() && !s.IsLoading && m.expired(s, m.now())
}

// expireLocked records the expiry and runs a full Logout. Callers hold writeMu.
func (m *Manager) expireLocked(ctx context.Context, s Session) error {
	m.metrics.Inc(MetricSessionExpired)
	m.logger.Info("session: expired",
		slog.String("subject_id", s.SubjectID),
		slog.String("role", s.Role),
		slog.Duration("age", s.Age(m.now())),
	)
	m.emitAudit(ctx, AuditSessionExpired, true, nil, s)
	return m.logoutLocked(ctx)
}

// StartExpiryWatch polls [Manager.CheckExpiry] every Session.CheckInterval until ctx
// ends or [Manager.Close] is called. A second call while the watch runs is a no-op.
func (m *Manager) StartExpiryWatch(ctx context.Context) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrManagerClosed
	}

	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watchDone != nil {
		select {
		case <-m.watchDone:
		default:
			return nil
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.watchCancel = cancel
	m.watchDone = done

	go m.runWatch(watchCtx, done)
	return nil
}

func (m *Manager) runWatch(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.config.Session.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckExpiry(ctx)
		}
	}
}

// stopWatch cancels the watch goroutine and waits for it to exit.
func (m *Manager) stopWatch() {
	m.watchMu.Lock()
	cancel, done := m.watchCancel, m.watchDone
	m.watchCancel, m.watchDone = nil, nil
	m.watchMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
