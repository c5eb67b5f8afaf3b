package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	goProfile "github.com/MrEthical07/goProfile"
	"github.com/MrEthical07/goProfile/facts"
	"github.com/rs/zerolog"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	failOn   int
}

func (p *recordingPublisher) Publish(_ context.Context, subj string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn > 0 && len(p.subjects)+1 == p.failOn {
		return errors.New("publish failed")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.subjects = append(p.subjects, subj)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestSubjectSanitizesTokens(t *testing.T) {
	tests := map[string]string{
		"register_success": "goprofile.audit.register_success",
		"a.b":              "goprofile.audit.a_b",
		"*":                "goprofile.audit._",
		"":                 "goprofile.audit.unknown",
	}
	for in, want := range tests {
		if got := Subject(AuditSubjectPrefix, in); got != want {
			t.Fatalf("Subject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAuditSinkPublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewAuditSink(pub, zerolog.Nop())

	sink.Emit(context.Background(), goProfile.AuditEvent{EventType: "session_revoked", Actor: "alice", Success: true})

	if len(pub.subjects) != 1 || pub.subjects[0] != "goprofile.audit.session_revoked" {
		t.Fatalf("unexpected subjects: %v", pub.subjects)
	}
	var ev goProfile.AuditEvent
	if err := json.Unmarshal(pub.payloads[0], &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Actor != "alice" || !ev.Success {
		t.Fatalf("unexpected payload: %+v", ev)
	}
}

func TestAuditSinkSwallowsPublishErrors(t *testing.T) {
	pub := &recordingPublisher{failOn: 1}
	sink := NewAuditSink(pub, zerolog.Nop())
	sink.Emit(context.Background(), goProfile.AuditEvent{EventType: "x"})
	if len(pub.subjects) != 0 {
		t.Fatalf("failed publish must not be recorded")
	}
}

func TestFactPublisherStopsAtFirstFailure(t *testing.T) {
	pub := &recordingPublisher{failOn: 2}
	fp := NewFactPublisher(pub)

	err := fp.PublishFacts(context.Background(), []facts.Fact{
		{ID: "1-0", Type: facts.UserRegistered, Actor: "alice", Subject: "p1", At: 1},
		{ID: "2-0", Type: facts.SessionCreated, Actor: "alice", Subject: "s1", At: 1},
		{ID: "3-0", Type: facts.SessionRevoked, Actor: "alice", Subject: "s1", At: 2},
	})
	if err == nil {
		t.Fatalf("expected publish error")
	}
	if len(pub.subjects) != 1 || pub.subjects[0] != "goprofile.facts.UserRegistered" {
		t.Fatalf("unexpected subjects: %v", pub.subjects)
	}
}

func TestNilBusReturnsErrors(t *testing.T) {
	var b *Bus
	if err := b.Publish(context.Background(), "x", 1); err == nil {
		t.Fatalf("expected error from nil bus")
	}
	if err := b.EnsureStream("s", "x.>"); err == nil {
		t.Fatalf("expected error from nil bus")
	}
	b.Close()
}

func TestPublishDeadline(t *testing.T) {
	ctx, cancel := withPublishDeadline(context.Background())
	defer cancel()
	dl, ok := ctx.Deadline()
	if !ok || time.Until(dl) > DefaultPublishTimeout {
		t.Fatalf("expected default deadline, got %v %v", dl, ok)
	}

	parent, parentCancel := context.WithTimeout(context.Background(), time.Second)
	defer parentCancel()
	kept, keptCancel := withPublishDeadline(parent)
	defer keptCancel()
	if kept != parent {
		t.Fatal("an existing deadline must be kept")
	}
}
