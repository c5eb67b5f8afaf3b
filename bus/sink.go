package bus

import (
	"context"

	goProfile "github.com/MrEthical07/goProfile"
	"github.com/MrEthical07/goProfile/facts"
	"github.com/rs/zerolog"
)

// Default subject prefixes.
const (
	AuditSubjectPrefix = "goprofile.audit"
	FactSubjectPrefix  = "goprofile.facts"
)

type publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// AuditSink publishes every audit event to AuditSubjectPrefix.<event_type>.
// It runs on the engine's dispatcher goroutine, so publish failures are
// logged and dropped.
type AuditSink struct {
	pub    publisher
	prefix string
	logger zerolog.Logger
}

// NewAuditSink returns an [AuditSink] publishing through pub.
func NewAuditSink(pub publisher, logger zerolog.Logger) *AuditSink {
	return &AuditSink{pub: pub, prefix: AuditSubjectPrefix, logger: logger}
}

// Emit implements goProfile.AuditSink.
func (s *AuditSink) Emit(ctx context.Context, event goProfile.AuditEvent) {
	if s == nil || s.pub == nil {
		return
	}
	subj := Subject(s.prefix, event.EventType)
	if err := s.pub.Publish(ctx, subj, event); err != nil {
		s.logger.Warn().Err(err).Str("subject", subj).Msg("audit publish failed")
	}
}

// FactMessage is the JSON payload of a published fact.
type FactMessage struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Actor   string            `json:"actor"`
	Subject string            `json:"subject"`
	At      int64             `json:"at"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// FactPublisher forwards facts to FactSubjectPrefix.<type>.
type FactPublisher struct {
	pub    publisher
	prefix string
}

// NewFactPublisher returns a [FactPublisher] publishing through pub.
func NewFactPublisher(pub publisher) *FactPublisher {
	return &FactPublisher{pub: pub, prefix: FactSubjectPrefix}
}

// PublishFacts publishes fs in order and stops at the first failure.
func (p *FactPublisher) PublishFacts(ctx context.Context, fs []facts.Fact) error {
	for _, f := range fs {
		msg := FactMessage{
			ID:      f.ID,
			Type:    string(f.Type),
			Actor:   f.Actor,
			Subject: f.Subject,
			At:      f.At,
			Attrs:   f.Attrs,
		}
		if err := p.pub.Publish(ctx, Subject(p.prefix, string(f.Type)), msg); err != nil {
			return err
		}
	}
	return nil
}
