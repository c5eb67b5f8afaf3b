package goProfile

import (
	"context"

	"github.com/MrEthical07/goProfile/capability"
	"github.com/MrEthical07/goProfile/facts"
	internalaudit "github.com/MrEthical07/goProfile/internal/audit"
	"github.com/MrEthical07/goProfile/internal/rate"
	"github.com/MrEthical07/goProfile/profile"
	"github.com/MrEthical07/goProfile/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Engine owns profile records, per-owner session stores, and admin
// capabilities. It is safe for concurrent use once built by [Builder].
type Engine struct {
	config       Config
	redis        redis.UniversalClient
	profiles     *profile.Store
	sessions     *session.Store
	facts        *facts.Log
	capabilities *capability.Manager
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	clock        Clock
	logger       zerolog.Logger
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// FactsKey returns the Redis stream key every fact is appended to.
func (e *Engine) FactsKey() string {
	if e == nil || e.facts == nil {
		return ""
	}
	return e.facts.Key()
}

// FactsFor returns one page of facts recorded about subject (a profile,
// session store, or asset id), oldest first. Pass the returned Next back as
// FactQuery.After to continue.
func (e *Engine) FactsFor(ctx context.Context, subject string, q FactQuery) (*FactPage, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	page, err := e.facts.BySubject(ctx, subject, q)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return &page, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.profiles == nil || e.sessions == nil || e.facts == nil || e.clock == nil {
		return ErrEngineNotReady
	}
	return nil
}

// caller returns the principal carried by ctx, or ErrUnauthorized.
func (e *Engine) caller(ctx context.Context) (Principal, error) {
	p, ok := CallerFromContext(ctx)
	if !ok || validatePrincipal(p) != nil {
		return "", ErrUnauthorized
	}
	return p, nil
}

func (e *Engine) now() int64 {
	return e.clock.NowMillis()
}
