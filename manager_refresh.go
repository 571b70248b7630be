package goSession

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/storage"
)

const refreshFailure = "Failed to refresh token"

// RefreshToken exchanges the persisted refresh token for a new access token.
//
// With no refresh token persisted it fails with KindNoRefreshToken and makes no network
// call; the session is left as it is. A backend rejection or transport failure ends the
// session as [Manager.Logout] would and returns the error. Callers that refresh in the
// background may ignore it.
func (m *Manager) RefreshToken(ctx context.Context) error {
	refreshToken, ok, err := m.store.Get(ctx, storage.KeyRefreshToken)
	if err != nil {
		m.metrics.Inc(MetricStorageFailure)
		return newAuthError(KindStorageFailure, "", err)
	}
	if !ok || refreshToken == "" {
		m.metrics.Inc(MetricRefreshNoToken)
		return newAuthError(KindNoRefreshToken, "", nil)
	}

	opCtx, gen, cancel, err := m.beginOp(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	start := time.Now()
	res, callErr := m.auth.Refresh(opCtx, refreshToken)
	m.metrics.Observe(MetricRefreshLatency, time.Since(start))

	if callErr != nil {
		authErr := classify(callErr, KindRefreshRejected, refreshFailure)
		return m.failRefresh(ctx, gen, authErr)
	}

	m.writeMu.Lock()
	defer m.releaseWrite()

	if !m.stillCurrent(gen) {
		m.metrics.Inc(MetricStaleResultDiscarded)
		return ErrOperationCanceled
	}

	nextRefresh := res.NextRefreshToken()
	if nextRefresh == "" {
		nextRefresh = refreshToken
	}
	issued := m.issueTime()

	values := map[string]string{
		storage.KeyAuthToken:      res.Token,
		storage.KeyRefreshToken:   nextRefresh,
		storage.KeyTokenTimestamp: formatMillis(issued),
	}
	if res.User.Role != "" {
		values[storage.KeyRole] = res.User.Role
	}

	if err := storage.SetAll(ctx, m.store, values); err != nil {
		m.metrics.Inc(MetricStorageFailure)
		return m.failRefreshLocked(ctx, gen, newAuthError(KindStorageFailure, "", err))
	}

	var next Session
	if !m.finishOp(gen, func(s *Session) {
		s.AccessToken = res.Token
		s.RefreshToken = nextRefresh
		s.IssuedAt = issued
		if res.User.Role != "" {
			s.Role = res.User.Role
		}
		next = *s
	}) {
		return ErrOperationCanceled
	}

	m.metrics.Inc(MetricRefreshSuccess)
	m.logger.Info("session: token refreshed",
		slog.String("subject_id", next.SubjectID),
		slog.String("role", next.Role),
	)
	m.emitAudit(ctx, AuditRefreshSuccess, true, nil, next)
	return nil
}

// failRefresh ends the session after a failed refresh and returns authErr. A refresh
// that Logout already discarded returns ErrOperationCanceled instead.
func (m *Manager) failRefresh(ctx context.Context, gen uint64, authErr *AuthError) error {
	m.writeMu.Lock()
	defer m.releaseWrite()
	return m.failRefreshLocked(ctx, gen, authErr)
}

// failRefreshLocked is failRefresh for callers already holding writeMu.
func (m *Manager) failRefreshLocked(ctx context.Context, gen uint64, authErr *AuthError) error {
	var prev Session
	if !m.finishOp(gen, func(s *Session) {
		prev = *s
		*s = Session{}
	}) {
		return ErrOperationCanceled
	}

	m.metrics.Inc(MetricRefreshFailure)
	m.logger.Warn("session: refresh failed, session cleared",
		slog.String("kind", authErr.Kind.String()),
		slog.String("message", authErr.Message),
		slog.Any("error", authErr.Err),
	)
	m.emitAudit(ctx, AuditRefreshFailure, false, authErr, prev)

	if err := m.removePersisted(ctx); err != nil {
		m.logger.Warn("session: clearing storage after refresh failure failed", slog.Any("error", err))
	}
	return authErr
}
