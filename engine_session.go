package goProfile

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goProfile/session"
)

// CreateSession adds key as a new live session to a store the caller owns.
// An existing entry for key fails with [ErrDuplicateSession] and leaves the
// store unchanged.
func (e *Engine) CreateSession(ctx context.Context, storeID string, key []byte) (*SessionInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := e.caller(ctx)
	if err != nil {
		e.recordFailure(ctx, auditEventSessionCreateFailure, "", storeID, err)
		return nil, err
	}
	k, err := keyFromBytes("session_key", key)
	if err != nil {
		e.recordFailure(ctx, auditEventSessionCreateFailure, caller, storeID, err)
		return nil, err
	}

	now := e.now()
	entry, err := e.sessions.Create(ctx, storeID, string(caller), k, now)
	if err != nil {
		err = mapStoreError(err)
		if errors.Is(err, ErrDuplicateSession) {
			e.metricInc(MetricSessionDuplicate)
		}
		e.recordFailure(ctx, auditEventSessionCreateFailure, caller, storeID, err)
		return nil, err
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, caller, storeID, nil, nil)
	info := toSessionInfo(*entry, now)
	return &info, nil
}

// ValidateSession reports whether key is present in the store and not yet
// expired. Absent and expired keys are indistinguishable. It never writes.
func (e *Engine) ValidateSession(ctx context.Context, storeID string, key []byte) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	k, err := keyFromBytes("session_key", key)
	if err != nil {
		return false, err
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	entry, err := e.sessions.Lookup(ctx, storeID, k)
	if err != nil {
		if errors.Is(err, session.ErrCorruptEntry) {
			e.logger.Warn().Err(err).Str("store_id", storeID).Msg("undecodable session entry treated as absent")
			e.metricInc(MetricSessionValidateMiss)
			return false, nil
		}
		return false, mapStoreError(err)
	}

	if entry == nil || !entry.LiveAt(e.now()) {
		e.metricInc(MetricSessionValidateMiss)
		return false, nil
	}
	e.metricInc(MetricSessionValidateHit)
	return true, nil
}

// RevokeSession removes key from a store the caller owns. Revoking an
// absent key succeeds and records nothing.
func (e *Engine) RevokeSession(ctx context.Context, storeID string, key []byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	caller, err := e.caller(ctx)
	if err != nil {
		e.recordFailure(ctx, auditEventSessionRevokeFailure, "", storeID, err)
		return err
	}
	k, err := keyFromBytes("session_key", key)
	if err != nil {
		e.recordFailure(ctx, auditEventSessionRevokeFailure, caller, storeID, err)
		return err
	}

	removed, err := e.sessions.Revoke(ctx, storeID, string(caller), k, e.now())
	if err != nil {
		err = mapStoreError(err)
		e.recordFailure(ctx, auditEventSessionRevokeFailure, caller, storeID, err)
		return err
	}

	if removed {
		e.metricInc(MetricSessionRevoked)
		e.emitAudit(ctx, auditEventSessionRevoked, true, caller, storeID, nil, nil)
	}
	return nil
}

// CleanupExpiredSessions removes each candidate whose entry has expired and
// returns how many were removed. Live and absent candidates are skipped.
// Any caller may run it unless Config.Session.RequireOwnerForCleanup is set.
// Long candidate lists run as several scripts of at most
// Config.Session.CleanupBatchSize keys each; every script is atomic.
func (e *Engine) CleanupExpiredSessions(ctx context.Context, storeID string, candidates [][]byte) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	caller, err := e.cleanupCaller(ctx)
	if err != nil {
		e.recordFailure(ctx, auditEventSessionCleanupFailure, "", storeID, err)
		return 0, err
	}

	keys := make([][KeySize]byte, 0, len(candidates))
	for _, c := range candidates {
		k, err := keyFromBytes("candidate", c)
		if err != nil {
			e.recordFailure(ctx, auditEventSessionCleanupFailure, caller, storeID, err)
			return 0, err
		}
		keys = append(keys, k)
	}

	batch := e.config.Session.CleanupBatchSize
	removed := 0
	for start := 0; start == 0 || start < len(keys); start += batch {
		end := min(start+batch, len(keys))
		n, err := e.sessions.Cleanup(ctx, storeID, string(caller),
			e.config.Session.RequireOwnerForCleanup, keys[start:end], e.now())
		removed += n
		if err != nil {
			e.countCleanupRemoved(removed)
			err = mapStoreError(err)
			e.recordFailure(ctx, auditEventSessionCleanupFailure, caller, storeID, err)
			return removed, err
		}
	}

	e.recordCleanup(ctx, caller, storeID, "candidates", removed)
	return removed, nil
}

// SweepExpiredSessions scans the whole store and removes every expired
// entry it finds, with the same authorization as CleanupExpiredSessions.
func (e *Engine) SweepExpiredSessions(ctx context.Context, storeID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	caller, err := e.cleanupCaller(ctx)
	if err != nil {
		e.recordFailure(ctx, auditEventSessionCleanupFailure, "", storeID, err)
		return 0, err
	}

	removed, err := e.sessions.Sweep(ctx, storeID, string(caller),
		e.config.Session.RequireOwnerForCleanup, e.now(), e.config.Session.SweepBatchSize)
	if err != nil {
		err = mapStoreError(err)
		e.countCleanupRemoved(removed)
		e.recordFailure(ctx, auditEventSessionCleanupFailure, caller, storeID, err)
		return removed, err
	}

	e.recordCleanup(ctx, caller, storeID, "sweep", removed)
	return removed, nil
}

// cleanupCaller allows anonymous cleanup unless the owner restriction is on.
func (e *Engine) cleanupCaller(ctx context.Context) (Principal, error) {
	caller, err := e.caller(ctx)
	if err != nil && e.config.Session.RequireOwnerForCleanup {
		return "", err
	}
	return caller, nil
}

func (e *Engine) countCleanupRemoved(removed int) {
	if removed > 0 && e.metrics != nil {
		e.metrics.Add(MetricSessionCleanupRemoved, uint64(removed))
	}
}

func (e *Engine) recordCleanup(ctx context.Context, caller Principal, storeID, mode string, removed int) {
	e.countCleanupRemoved(removed)
	e.emitAudit(ctx, auditEventSessionCleanup, true, caller, storeID, nil, func() map[string]string {
		return map[string]string{
			"mode":    mode,
			"removed": strconv.Itoa(removed),
		}
	})
}
