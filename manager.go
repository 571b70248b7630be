package goSession

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/client"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/storage"
	"github.com/google/uuid"
)

// Authenticator is the backend the Manager obtains tokens from. *client.Client
// implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (client.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (client.RefreshResult, error)
}

// ErrOperationCanceled is returned by Login or RefreshToken when Logout or Close
// ended the session while the call was in flight. The backend result is discarded.
var ErrOperationCanceled = errors.New("session operation canceled by logout")

// Manager owns the single in-memory Session and its persistence mirror.
//
// The state lock is never held across network I/O. Storage writes are serialized by a
// second lock so a Logout can never be overtaken by a late Login write. Mutations made
// under that lock mark the session dirty; listeners run once it is released.
type Manager struct {
	config  Config
	store   storage.Store
	auth    Authenticator
	logger  *slog.Logger
	now     func() time.Time
	metrics *Metrics
	audit   *auditDispatcher

	writeMu sync.Mutex

	mu          sync.Mutex
	sess        Session
	initialized bool
	closed      bool
	generation  uint64
	cancelOp    context.CancelFunc
	dirty       bool
	listeners   map[uint64]func(Session)
	nextListen  uint64

	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watchDone   chan struct{}

	closeOnce sync.Once
}

// Snapshot returns a copy of the current Session.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// State returns the current state machine position.
func (m *Manager) State() State {
	return stateOf(m.Snapshot())
}

// AccessToken returns the held access token, or "" when signed out. It satisfies
// client.TokenSource.
func (m *Manager) AccessToken() string {
	return m.Snapshot().AccessToken
}

// Role returns the principal's role tag, or "".
func (m *Manager) Role() string {
	return m.Snapshot().Role
}

// SubjectID returns the principal's identifier, or "".
func (m *Manager) SubjectID() string {
	return m.Snapshot().SubjectID
}

// IsLoading reports whether a Login or RefreshToken call is in flight.
func (m *Manager) IsLoading() bool {
	return m.Snapshot().IsLoading
}

// Authenticated reports whether an access token is held.
func (m *Manager) Authenticated() bool {
	return m.Snapshot().Authenticated()
}

// Config returns a copy of the Manager configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Metrics returns the Manager's metric set. It may be disabled but is never nil.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// MetricsSnapshot returns a copy of all metrics for exporters.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (m *Manager) AuditDropped() uint64 {
	return m.audit.Dropped()
}

// AuditDroppedByType breaks [Manager.AuditDropped] down by event type.
func (m *Manager) AuditDroppedByType() map[string]uint64 {
	return m.audit.DroppedByType()
}

// OnChange registers fn to be called with a fresh snapshot after every session
// mutation. Callbacks run on the mutating goroutine after all locks are released, so
// fn may call Login, Logout, RefreshToken or CheckExpiry. fn must not call Close.
// The returned func unregisters fn.
func (m *Manager) OnChange(fn func(Session)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextListen
	m.nextListen++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// notify hands the current snapshot to every listener when a mutation is pending.
// Callers must hold neither m.mu nor writeMu.
func (m *Manager) notify() {
	m.mu.Lock()
	if !m.dirty {
		m.mu.Unlock()
		return
	}
	m.dirty = false
	snap := m.sess
	fns := make([]func(Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Close stops the expiry watch, cancels any in-flight backend call, and flushes the
// audit dispatcher. Persisted state is left intact so the next process can rehydrate.
// Close is idempotent.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		if m.cancelOp != nil {
			m.cancelOp()
			m.cancelOp = nil
		}
		m.mu.Unlock()

		m.stopWatch()
		m.audit.Close()
	})
}

/*
====================================
IN-FLIGHT OPERATIONS
====================================
*/

// beginOp marks the session as loading and returns a context canceled by Logout.
func (m *Manager) beginOp(ctx context.Context) (context.Context, uint64, func(), error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, 0, nil, ErrManagerClosed
	}
	if m.sess.IsLoading {
		m.mu.Unlock()
		m.metrics.Inc(MetricOperationInFlight)
		return nil, 0, nil, ErrOperationInFlight
	}

	opCtx, cancel := context.WithCancel(ctx)
	m.sess.IsLoading = true
	m.cancelOp = cancel
	m.dirty = true
	gen := m.generation
	m.mu.Unlock()

	m.notify()
	return opCtx, gen, cancel, nil
}

// currentLocked reports whether gen is still the live generation. Callers hold m.mu.
func (m *Manager) currentLocked(gen uint64) bool {
	return !m.closed && m.generation == gen
}

// finishOp clears the loading flag when gen is still current. It reports false when
// the operation went stale. Callers hold writeMu; listeners run at releaseWrite.
func (m *Manager) finishOp(gen uint64, apply func(*Session)) bool {
	m.mu.Lock()
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		m.metrics.Inc(MetricStaleResultDiscarded)
		return false
	}
	if apply != nil {
		apply(&m.sess)
	}
	m.sess.IsLoading = false
	m.cancelOp = nil
	m.dirty = true
	m.mu.Unlock()
	return true
}

// releaseWrite unlocks writeMu and then delivers any pending change notification.
func (m *Manager) releaseWrite() {
	m.writeMu.Unlock()
	m.notify()
}

// stillCurrent is the stale check made under writeMu before touching storage.
func (m *Manager) stillCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(gen)
}

/*
====================================
LOGOUT
====================================
*/

// Logout clears every session field and removes every persisted key. Memory is cleared
// even when storage removal fails; the storage error is returned. Logout on an empty
// session is a no-op and returns nil. An in-flight Login or RefreshToken is canceled and
// its result discarded. Logout makes no network call.
func (m *Manager) Logout(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.releaseWrite()
	return m.logoutLocked(ctx)
}

// logoutLocked is Logout for callers already holding writeMu.
func (m *Manager) logoutLocked(ctx context.Context) error {
	prev := m.clearMemory()
	if prev.Authenticated() {
		m.metrics.Inc(MetricLogout)
		m.logger.Info("session: logged out",
			slog.String("subject_id", prev.SubjectID),
			slog.String("role", prev.Role),
		)
		m.emitAudit(ctx, AuditLogout, true, nil, prev)
	}

	return m.removePersisted(ctx)
}

// clearMemory resets the in-memory session and invalidates in-flight operations.
func (m *Manager) clearMemory() (prev Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev = m.sess
	if prev.IsLoading {
		m.generation++
		if m.cancelOp != nil {
			m.cancelOp()
			m.cancelOp = nil
		}
	}
	if prev != (Session{}) {
		m.sess = Session{}
		m.dirty = true
	}
	return prev
}

func (m *Manager) removePersisted(ctx context.Context) error {
	if err := m.store.Remove(ctx, storage.Keys...); err != nil {
		m.metrics.Inc(MetricStorageFailure)
		m.logger.Warn("session: removing persisted session failed", slog.Any("error", err))
		return newAuthError(KindStorageFailure, "", err)
	}
	return nil
}

/*
====================================
HELPERS
====================================
*/

func (m *Manager) expired(s Session, now time.Time) bool {
	if s.IssuedAt.IsZero() {
		return true
	}
	if now.Sub(s.IssuedAt) > m.config.Session.TTL {
		return true
	}
	if m.config.Session.HonorTokenExpiry && s.AccessToken != "" {
		if claims, err := jwt.Inspect(s.AccessToken); err == nil && claims.Expired(now) {
			return true
		}
	}
	return false
}

// issueTime returns now truncated to the millisecond precision storage keeps.
func (m *Manager) issueTime() time.Time {
	return time.UnixMilli(m.now().UnixMilli())
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (m *Manager) emitAudit(ctx context.Context, eventType string, success bool, err error, s Session) {
	if m.audit == nil {
		return
	}
	ev := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: m.now(),
		EventType: eventType,
		SubjectID: s.SubjectID,
		Role:      s.Role,
		Success:   success,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	m.audit.Emit(ctx, ev)
}

// classify maps a backend call error to an AuthError. rejectKind applies when the
// backend answered; transport and cancellation failures become KindNetworkFailure.
func classify(err error, rejectKind ErrorKind, fallback string) *AuthError {
	var se *client.StatusError
	switch {
	case errors.As(err, &se):
		msg := se.Message
		if msg == "" {
			msg = fallback
		}
		return newAuthError(rejectKind, msg, err)
	case errors.Is(err, client.ErrMalformedResponse):
		return newAuthError(rejectKind, fallback, err)
	default:
		return newAuthError(KindNetworkFailure, fallback, err)
	}
}
