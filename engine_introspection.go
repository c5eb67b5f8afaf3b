package goProfile

import (
	"context"
	"errors"
	"sort"
)

// Health pings Redis and reports its latency.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.sessions == nil {
		return HealthStatus{}
	}
	latency, err := e.sessions.Ping(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("redis health check failed")
		return HealthStatus{RedisLatency: latency}
	}
	return HealthStatus{
		RedisAvailable: true,
		RedisLatency:   latency,
	}
}

// GetSessionStore returns the store record and its current entry count,
// expired entries included.
func (e *Engine) GetSessionStore(ctx context.Context, storeID string) (SessionStoreInfo, error) {
	if err := e.ready(); err != nil {
		return SessionStoreInfo{}, err
	}
	meta, err := e.sessions.Meta(ctx, storeID)
	if err != nil {
		return SessionStoreInfo{}, mapStoreError(err)
	}
	n, err := e.sessions.EntryCount(ctx, storeID)
	if err != nil {
		return SessionStoreInfo{}, mapStoreError(err)
	}
	return SessionStoreInfo{
		ID:             meta.ID,
		Owner:          Principal(meta.Owner),
		ProfileID:      meta.ProfileID,
		SessionCounter: meta.SessionCounter,
		CreatedAt:      meta.CreatedAt,
		Entries:        n,
	}, nil
}

// ListSessions returns every entry of a store the caller owns, oldest
// first. Entries that expired but were not cleaned up have Live unset.
func (e *Engine) ListSessions(ctx context.Context, storeID string) ([]SessionInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := e.caller(ctx)
	if err != nil {
		e.metricInc(MetricUnauthorized)
		return nil, err
	}

	entries, err := e.sessions.List(ctx, storeID, string(caller))
	if err != nil {
		err = mapStoreError(err)
		if errors.Is(err, ErrUnauthorized) {
			e.metricInc(MetricUnauthorized)
		}
		return nil, err
	}

	now := e.now()
	out := make([]SessionInfo, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toSessionInfo(entry, now))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out, nil
}
