package goSession

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/storage"
)

// Initialize rehydrates the session from storage. It runs at most once per Manager.
//
// A live persisted session populates memory. An expired one, or one whose token has no
// usable issue time or role, is cleared through [Manager.Logout]. With no persisted
// token the session stays anonymous and storage is not written.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.initialized {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}
	m.initialized = true
	m.mu.Unlock()

	rec, err := m.readPersisted(ctx)
	if err != nil {
		m.metrics.Inc(MetricStorageFailure)
		m.logger.Warn("session: reading persisted session failed", slog.Any("error", err))
		return newAuthError(KindStorageFailure, "", err)
	}
	if rec.AccessToken == "" {
		return nil
	}

	m.writeMu.Lock()
	defer m.releaseWrite()

	if cur := m.Snapshot(); cur.Authenticated() || cur.IsLoading {
		// A Login won the race against rehydration.
		return nil
	}

	switch {
	case rec.IssuedAt.IsZero():
		m.logger.Warn("session: persisted token has no usable tokenTimestamp, treating as expired")
		return m.expireLocked(ctx, rec)
	case rec.Role == "":
		m.logger.Warn("session: persisted token has no role, clearing partial record")
		return m.logoutLocked(ctx)
	case m.expired(rec, m.now()):
		return m.expireLocked(ctx, rec)
	}

	m.mu.Lock()
	m.sess = rec
	m.dirty = true
	m.mu.Unlock()

	m.metrics.Inc(MetricSessionRestored)
	m.logger.Info("session: restored from storage",
		slog.String("subject_id", rec.SubjectID),
		slog.String("role", rec.Role),
		slog.Duration("age", rec.Age(m.now())),
	)
	m.emitAudit(ctx, AuditSessionRestored, true, nil, rec)
	return nil
}

// readPersisted loads every key into a Session. IssuedAt is zero when the timestamp is
// absent or unparseable.
func (m *Manager) readPersisted(ctx context.Context) (Session, error) {
	values := make(map[string]string, len(storage.Keys))
	for _, key := range storage.Keys {
		v, ok, err := m.store.Get(ctx, key)
		if err != nil {
			return Session{}, err
		}
		if ok {
			values[key] = v
		}
	}

	s := Session{
		AccessToken:  values[storage.KeyAuthToken],
		RefreshToken: values[storage.KeyRefreshToken],
		Role:         values[storage.KeyRole],
		SubjectID:    values[storage.KeyID],
	}
	if issued, ok := parseMillis(values[storage.KeyTokenTimestamp]); ok {
		s.IssuedAt = issued
	}
	return s, nil
}

// Login exchanges credentials for a session and writes it through to storage.
//
// On any failure the session ends cleared and the returned error is an *AuthError
// unless the call was refused up front (ErrCredentialsRequired, ErrOperationInFlight,
// ErrManagerClosed) or Logout discarded it (ErrOperationCanceled).
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return ErrCredentialsRequired
	}

	opCtx, gen, cancel, err := m.beginOp(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	start := time.Now()
	res, callErr := m.auth.Login(opCtx, email, password)
	m.metrics.Observe(MetricLoginLatency, time.Since(start))
	if callErr == nil {
		callErr = res.Validate()
	}

	m.writeMu.Lock()
	defer m.releaseWrite()

	if !m.stillCurrent(gen) {
		m.metrics.Inc(MetricStaleResultDiscarded)
		return ErrOperationCanceled
	}

	if callErr != nil {
		authErr := classify(callErr, KindInvalidCredentials, m.config.Backend.LoginFailure)
		m.failLogin(ctx, gen, authErr)
		return authErr
	}

	next := Session{
		AccessToken:  res.Token,
		RefreshToken: res.RefreshToken,
		Role:         res.User.Role,
		SubjectID:    res.User.ID,
		IssuedAt:     m.issueTime(),
	}

	if err := storage.SetAll(ctx, m.store, persistValues(next)); err != nil {
		m.metrics.Inc(MetricStorageFailure)
		authErr := newAuthError(KindStorageFailure, "", err)
		m.failLogin(ctx, gen, authErr)
		return authErr
	}

	if !m.finishOp(gen, func(s *Session) { *s = next }) {
		return ErrOperationCanceled
	}

	m.metrics.Inc(MetricLoginSuccess)
	m.logger.Info("session: login succeeded",
		slog.String("subject_id", next.SubjectID),
		slog.String("role", next.Role),
	)
	m.emitAudit(ctx, AuditLoginSuccess, true, nil, next)
	return nil
}

// failLogin clears the session after a failed Login. Callers hold writeMu.
func (m *Manager) failLogin(ctx context.Context, gen uint64, authErr *AuthError) {
	var had bool
	m.finishOp(gen, func(s *Session) {
		had = s.AccessToken != "" || s.RefreshToken != ""
		*s = Session{}
	})
	if had || authErr.Kind == KindStorageFailure {
		// Best effort: the write may have landed partially.
		_ = m.store.Remove(ctx, storage.Keys...)
	}

	m.metrics.Inc(MetricLoginFailure)
	m.logger.Info("session: login failed",
		slog.String("kind", authErr.Kind.String()),
		slog.String("message", authErr.Message),
	)
	m.emitAudit(ctx, AuditLoginFailure, false, authErr, Session{})
}

// persistValues maps a session onto all five storage keys.
func persistValues(s Session) map[string]string {
	return map[string]string{
		storage.KeyAuthToken:      s.AccessToken,
		storage.KeyRefreshToken:   s.RefreshToken,
		storage.KeyRole:           s.Role,
		storage.KeyID:             s.SubjectID,
		storage.KeyTokenTimestamp: formatMillis(s.IssuedAt),
	}
}
