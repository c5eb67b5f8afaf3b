package goProfile

import (
	"context"
	"errors"
	"testing"
	"time"
)

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

func (s *captureSink) next(t *testing.T) AuditEvent {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for audit event")
	}
	return AuditEvent{}
}

func buildAuditTestEngine(t *testing.T, sink AuditSink) *Engine {
	t.Helper()

	_, rdb := newTestRedis(t)
	cfg := testConfig(t)
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(newFakeClock(testStart)).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func TestAuditRegisterSuccessEvent(t *testing.T) {
	sink := newCaptureSink(16)
	engine := buildAuditTestEngine(t, sink)

	ctx := WithClientIP(as("alice"), "192.0.2.1")
	res, err := engine.Register(ctx, RegisterRequest{Nickname: "a", IdentityKey: testKey(1), SessionKey: testKey(2)})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ev := sink.next(t)
	if ev.EventType != auditEventRegisterSuccess || !ev.Success {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Actor != "alice" || ev.Subject != res.Profile.ID || ev.IP != "192.0.2.1" {
		t.Fatalf("unexpected event fields: %+v", ev)
	}
	if ev.Metadata["session_store"] != res.SessionStoreID {
		t.Fatalf("expected session_store metadata, got %+v", ev.Metadata)
	}
	if !ev.Timestamp.Equal(time.UnixMilli(testStart)) {
		t.Fatalf("expected clock timestamp, got %v", ev.Timestamp)
	}
}

func TestAuditFailureCarriesErrorCode(t *testing.T) {
	sink := newCaptureSink(16)
	engine := buildAuditTestEngine(t, sink)

	if _, err := engine.UpdateNickname(as("mallory"), "missing", "x"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	ev := sink.next(t)
	if ev.EventType != auditEventProfileUpdateFailure || ev.Success {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Error != string(auditErrProfileNotFound) {
		t.Fatalf("expected %q, got %q", auditErrProfileNotFound, ev.Error)
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrUnauthorized, auditErrUnauthorized},
		{ErrInvalidLength, auditErrInvalidLength},
		{ErrInvalidEnumValue, auditErrInvalidEnum},
		{ErrDuplicateKey, auditErrDuplicate},
		{ErrSessionStoreNotFound, auditErrStoreNotFound},
		{ErrAdminAlreadyBootstrapped, auditErrAlreadyBootstrapped},
		{wrapStorage(errors.New("dial tcp: refused")), auditErrUnavailable},
		{errors.New("boom"), auditErrInternal},
	}
	for _, tt := range tests {
		if got := auditErrorCode(tt.err); got != tt.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestAuditDisabledByDefault(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	registerAlice(t, engine)
	if engine.AuditDropped() != 0 {
		t.Fatalf("disabled audit must not drop")
	}
	if engine.audit != nil {
		t.Fatalf("disabled audit must not start a dispatcher")
	}
}

func TestAuditCleanupFailureEvent(t *testing.T) {
	sink := newCaptureSink(16)
	engine := buildAuditTestEngine(t, sink)

	if _, err := engine.SweepExpiredSessions(context.Background(), "missing"); !errors.Is(err, ErrSessionStoreNotFound) {
		t.Fatalf("expected ErrSessionStoreNotFound, got %v", err)
	}

	ev := sink.next(t)
	if ev.EventType != auditEventSessionCleanupFailure || ev.Success {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Error != string(auditErrStoreNotFound) {
		t.Fatalf("expected store not found code, got %q", ev.Error)
	}
}
