package goSession

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/client"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func buildAuditTestManager(t *testing.T, enabled bool, sink AuditSink, auth *fakeAuth) *Manager {
	t.Helper()
	return newTestManager(t, testManagerOpts{
		auth: auth,
		sink: sink,
		mutate: func(c *Config) {
			c.Audit.Enabled = enabled
			c.Audit.BufferSize = 16
			c.Audit.DropIfFull = false
		},
	})
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	m := buildAuditTestManager(t, false, sink, &fakeAuth{login: loginReturns("T1", "R1", "U1", "admin")})

	_ = m.Login(context.Background(), "a@x.io", "pw")
	_ = m.Logout(context.Background())
	m.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditEnabledSinkReceivesEventWithFields(t *testing.T) {
	sink := newCaptureSink(8)
	m := buildAuditTestManager(t, true, sink, &fakeAuth{login: loginReturns("T1", "R1", "U1", "admin")})

	if err := m.Login(context.Background(), "a@x.io", "super-secret-password"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	select {
	case ev := <-sink.events:
		if ev.EventType != AuditLoginSuccess {
			t.Fatalf("expected %s, got %q", AuditLoginSuccess, ev.EventType)
		}
		if ev.ID == "" || ev.Timestamp.IsZero() {
			t.Fatal("expected id and timestamp to be populated")
		}
		if ev.SubjectID != "U1" || ev.Role != "admin" {
			t.Fatalf("unexpected principal %q/%q", ev.SubjectID, ev.Role)
		}
		if !ev.Success {
			t.Fatal("expected success event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected audit event to be received")
	}
}

func TestAuditFailureEventCarriesError(t *testing.T) {
	sink := newCaptureSink(8)
	auth := &fakeAuth{login: func(context.Context, string, string) (client.LoginResult, error) {
		return client.LoginResult{}, &client.StatusError{StatusCode: 401, Message: "Invalid credentials"}
	}}
	m := buildAuditTestManager(t, true, sink, auth)

	_ = m.Login(context.Background(), "a@x.io", "pw")

	select {
	case ev := <-sink.events:
		if ev.EventType != AuditLoginFailure || ev.Success {
			t.Fatalf("unexpected event %+v", ev)
		}
		if !stringContains(ev.Error, "Invalid credentials") {
			t.Fatalf("expected backend message in error, got %q", ev.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected audit event to be received")
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditDroppedCountedByEventType(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	// The first event parks in the sink and the second fills the queue.
	dispatcher.Emit(context.Background(), AuditEvent{EventType: AuditLoginSuccess})
	waitFor(t, time.Second, func() bool { return len(dispatcher.queue) == 0 })
	dispatcher.Emit(context.Background(), AuditEvent{EventType: AuditLoginSuccess})

	dispatcher.Emit(context.Background(), AuditEvent{EventType: AuditLogout})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: AuditLogout})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: AuditSessionExpired})

	byType := dispatcher.DroppedByType()
	if byType[AuditLogout] != 2 || byType[AuditSessionExpired] != 1 || byType[AuditLoginSuccess] != 0 {
		t.Fatalf("unexpected per-type drops: %v", byType)
	}
	if dispatcher.Dropped() != 3 {
		t.Fatalf("expected 3 drops in total, got %d", dispatcher.Dropped())
	}

	byType[AuditLogout] = 99
	if dispatcher.DroppedByType()[AuditLogout] != 2 {
		t.Fatal("expected DroppedByType to return a copy")
	}
}

func TestAuditBlockingEmitDropsWhenContextEnds(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	waitFor(t, time.Second, func() bool { return len(dispatcher.queue) == 0 })
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	dispatcher.Emit(ctx, AuditEvent{EventType: AuditRefreshFailure})

	if got := dispatcher.DroppedByType()[AuditRefreshFailure]; got != 1 {
		t.Fatalf("expected canceled emit to count as dropped, got %d", got)
	}
}

func TestManagerAuditDroppedByTypeDisabled(t *testing.T) {
	m := newTestManager(t, testManagerOpts{})
	if got := m.AuditDroppedByType(); len(got) != 0 {
		t.Fatalf("expected no drops with audit disabled, got %v", got)
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: AuditLoginSuccess,
		SubjectID: "u1",
		Role:      "admin",
		Success:   true,
	}
	sink.Emit(context.Background(), event)

	if !buf.Contains("login_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"subject_id\":\"u1\"") {
		t.Fatal("expected JSON log line to contain user id")
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sensitivePassword := "correct-password-123"
	sink := newCaptureSink(32)
	auth := &fakeAuth{
		login: loginReturns("access-T1", "refresh-R1", "U1", "admin"),
		refresh: func(context.Context, string) (client.RefreshResult, error) {
			return client.RefreshResult{Token: "access-T2", NewRefreshToken: "refresh-R2"}, nil
		},
	}
	m := buildAuditTestManager(t, true, sink, auth)
	ctx := context.Background()

	if err := m.Login(ctx, "a@x.io", sensitivePassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := m.RefreshToken(ctx); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if err := m.Logout(ctx); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	m.Close()

	secretNeedles := []string{
		sensitivePassword,
		"access-T1",
		"access-T2",
		"refresh-R1",
		"refresh-R2",
	}

	events := make([]AuditEvent, 0, 8)
collectLoop:
	for {
		select {
		case ev := <-sink.events:
			events = append(events, ev)
		default:
			break collectLoop
		}
	}

	if len(events) != 3 {
		t.Fatalf("expected login, refresh and logout events, got %d", len(events))
	}

	for _, ev := range events {
		for _, needle := range secretNeedles {
			if stringContains(ev.Error, needle) {
				t.Fatalf("sensitive value leaked in audit error field: %q", needle)
			}
			for k, v := range ev.Metadata {
				if stringContains(k, needle) || stringContains(v, needle) {
					t.Fatalf("sensitive value leaked in audit metadata: %q", needle)
				}
			}
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return stringContains(string(b.buf), v)
}

func stringContains(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	if len(sub) > len(s) {
		return false
	}
	for i := 0; i <= len(s)-len(sub); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
