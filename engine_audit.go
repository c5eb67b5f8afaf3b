package goProfile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goProfile/capability"
	"github.com/MrEthical07/goProfile/facts"
	"github.com/MrEthical07/goProfile/internal/rate"
	"github.com/MrEthical07/goProfile/profile"
	"github.com/MrEthical07/goProfile/session"
)

const (
	auditEventRegisterSuccess        = "register_success"
	auditEventRegisterFailure        = "register_failure"
	auditEventRegisterRateLimited    = "register_rate_limited"
	auditEventSessionCreated         = "session_created"
	auditEventSessionCreateFailure   = "session_create_failure"
	auditEventSessionRevoked         = "session_revoked"
	auditEventSessionRevokeFailure   = "session_revoke_failure"
	auditEventSessionCleanup         = "session_cleanup"
	auditEventSessionCleanupFailure  = "session_cleanup_failure"
	auditEventProfileUpdated         = "profile_updated"
	auditEventProfileUpdateFailure   = "profile_update_failure"
	auditEventAvatarMinted           = "avatar_minted"
	auditEventAvatarMintFailure      = "avatar_mint_failure"
	auditEventAvatarTransferred      = "avatar_transferred"
	auditEventAvatarTransferFailure  = "avatar_transfer_failure"
	auditEventAdminCapIssued         = "admin_cap_issued"
	auditEventAdminCapIssueFailure   = "admin_cap_issue_failure"
	auditEventAdminBootstrapped      = "admin_bootstrapped"
	auditEventAdminBootstrapFailure  = "admin_bootstrap_failure"
	auditEventVerificationChanged    = "verification_changed"
	auditEventVerificationFailure    = "verification_failure"
	auditEventMembershipChanged      = "membership_changed"
	auditEventMembershipChangeFailed = "membership_change_failure"
	auditEventRateLimitTriggered     = "rate_limit_triggered"
)

const auditDropLogEvery = 1000

// AuditErrorCode is the stable error label carried by failed audit events.
type AuditErrorCode string

const (
	auditErrUnauthorized        AuditErrorCode = "unauthorized"
	auditErrInvalidLength       AuditErrorCode = "invalid_length"
	auditErrInvalidEnum         AuditErrorCode = "invalid_enum_value"
	auditErrInvalidPrincipal    AuditErrorCode = "invalid_principal"
	auditErrInvalidKeyEncoding  AuditErrorCode = "invalid_key_encoding"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrProfileNotFound     AuditErrorCode = "profile_not_found"
	auditErrStoreNotFound       AuditErrorCode = "session_store_not_found"
	auditErrAssetNotFound       AuditErrorCode = "asset_not_found"
	auditErrAlreadyBootstrapped AuditErrorCode = "already_bootstrapped"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	actor Principal,
	subject string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.UnixMilli(e.clock.NowMillis()).UTC(),
		EventType: eventType,
		Actor:     string(actor),
		Subject:   subject,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, actor Principal) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, actor, "", ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

// auditDropped logs the first dropped audit event and every
// auditDropLogEvery-th one after it.
func (e *Engine) auditDropped(event AuditEvent, total uint64) {
	if total != 1 && total%auditDropLogEvery != 0 {
		return
	}
	e.logger.Warn().
		Str("event_type", event.EventType).
		Uint64("dropped_total", total).
		Msg("audit buffer full, dropping events")
}

// recordFailure bumps the unauthorized counter for gate rejections and
// emits the failure event.
func (e *Engine) recordFailure(ctx context.Context, eventType string, actor Principal, subject string, err error) {
	if errors.Is(err, ErrUnauthorized) {
		e.metricInc(MetricUnauthorized)
	}
	e.emitAudit(ctx, eventType, false, actor, subject, err, nil)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidLength):
		return auditErrInvalidLength
	case errors.Is(err, ErrInvalidEnumValue):
		return auditErrInvalidEnum
	case errors.Is(err, ErrInvalidPrincipal):
		return auditErrInvalidPrincipal
	case errors.Is(err, ErrInvalidKeyEncoding):
		return auditErrInvalidKeyEncoding
	case errors.Is(err, ErrDuplicateSession):
		return auditErrDuplicate
	case errors.Is(err, ErrProfileNotFound):
		return auditErrProfileNotFound
	case errors.Is(err, ErrSessionStoreNotFound):
		return auditErrStoreNotFound
	case errors.Is(err, ErrAssetNotFound):
		return auditErrAssetNotFound
	case errors.Is(err, ErrAdminAlreadyBootstrapped):
		return auditErrAlreadyBootstrapped
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

// mapStoreError translates storage package errors into the root sentinels,
// keeping the detail text.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, profile.ErrNotOwner),
		errors.Is(err, session.ErrNotOwner),
		errors.Is(err, capability.ErrInvalidToken):
		return ErrUnauthorized
	case errors.Is(err, profile.ErrNotFound):
		return ErrProfileNotFound
	case errors.Is(err, profile.ErrAssetNotFound):
		return ErrAssetNotFound
	case errors.Is(err, session.ErrStoreNotFound):
		return ErrSessionStoreNotFound
	case errors.Is(err, session.ErrDuplicateKey):
		return ErrDuplicateSession
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRateLimited
	case errors.Is(err, profile.ErrRedisUnavailable),
		errors.Is(err, session.ErrRedisUnavailable),
		errors.Is(err, facts.ErrRedisUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable),
		errors.Is(err, session.ErrCorruptEntry):
		return wrapStorage(err)
	default:
		return err
	}
}

func wrapStorage(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
