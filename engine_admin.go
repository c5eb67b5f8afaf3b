package goProfile

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goProfile/profile"
)

// AdminCap is a bearer capability that authorizes trust-sensitive profile
// changes. It can only be obtained from [Engine.BootstrapAdmin],
// [Engine.IssueAdminCap], or [Engine.ParseAdminCap]; the zero value
// authorizes nothing.
type AdminCap struct {
	id       string
	issuer   Principal
	holder   Principal
	issuedAt time.Time
	token    string
}

// ID returns the unique capability id.
func (c *AdminCap) ID() string { return c.id }

// Issuer returns the principal that minted the capability.
func (c *AdminCap) Issuer() Principal { return c.issuer }

// Holder returns the principal the capability was issued to.
func (c *AdminCap) Holder() Principal { return c.holder }

// IssuedAt returns the signing time.
func (c *AdminCap) IssuedAt() time.Time { return c.issuedAt }

// Token returns the signed bearer form, suitable for [Engine.ParseAdminCap].
func (c *AdminCap) Token() string { return c.token }

// ParseAdminCap verifies a bearer token and returns its capability.
func (e *Engine) ParseAdminCap(token string) (*AdminCap, error) {
	if e == nil || e.capabilities == nil {
		return nil, ErrEngineNotReady
	}
	grant, err := e.capabilities.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return &AdminCap{
		id:       grant.ID,
		issuer:   Principal(grant.IssuedBy),
		holder:   Principal(grant.Holder),
		issuedAt: grant.IssuedAt,
		token:    grant.Token,
	}, nil
}

// checkCap re-verifies the signature of cap. Any cap carrying a valid
// signature passes regardless of who holds or issued it.
func (e *Engine) checkCap(ac *AdminCap) error {
	if ac == nil || ac.token == "" {
		return ErrUnauthorized
	}
	if _, err := e.capabilities.Parse(ac.token); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// actingPrincipal is the caller when present, otherwise the cap holder.
func actingPrincipal(ctx context.Context, ac *AdminCap) Principal {
	if p, ok := CallerFromContext(ctx); ok {
		return p
	}
	return ac.holder
}

func (e *Engine) issue(by, holder Principal) (*AdminCap, error) {
	if !e.capabilities.CanSign() {
		return nil, fmt.Errorf("%w: capability signing key not configured", ErrEngineNotReady)
	}
	grant, err := e.capabilities.Issue(string(by), string(holder), time.UnixMilli(e.now()))
	if err != nil {
		return nil, err
	}
	return &AdminCap{
		id:       grant.ID,
		issuer:   by,
		holder:   holder,
		issuedAt: grant.IssuedAt,
		token:    grant.Token,
	}, nil
}

// BootstrapAdmin mints the first capability for admin. It succeeds exactly
// once per key prefix; every later call fails with
// [ErrAdminAlreadyBootstrapped].
func (e *Engine) BootstrapAdmin(ctx context.Context, admin Principal) (*AdminCap, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validatePrincipal(admin); err != nil {
		e.recordFailure(ctx, auditEventAdminBootstrapFailure, admin, "", err)
		return nil, err
	}
	if e.capabilities == nil || !e.capabilities.CanSign() {
		err := fmt.Errorf("%w: capability signing key not configured", ErrEngineNotReady)
		e.recordFailure(ctx, auditEventAdminBootstrapFailure, admin, "", err)
		return nil, err
	}

	marker := e.bootstrapKey()
	ok, err := e.redis.SetNX(ctx, marker, string(admin), 0).Result()
	if err != nil {
		err = wrapStorage(err)
		e.recordFailure(ctx, auditEventAdminBootstrapFailure, admin, "", err)
		return nil, err
	}
	if !ok {
		e.recordFailure(ctx, auditEventAdminBootstrapFailure, admin, "", ErrAdminAlreadyBootstrapped)
		return nil, ErrAdminAlreadyBootstrapped
	}

	ac, err := e.issue(admin, admin)
	if err != nil {
		if delErr := e.redis.Del(ctx, marker).Err(); delErr != nil {
			e.logger.Warn().Err(delErr).Msg("bootstrap marker left set after signing failure")
		}
		e.recordFailure(ctx, auditEventAdminBootstrapFailure, admin, "", err)
		return nil, err
	}

	e.metricInc(MetricAdminCapIssued)
	e.emitAudit(ctx, auditEventAdminBootstrapped, true, admin, string(admin), nil, func() map[string]string {
		return map[string]string{"cap_id": ac.id}
	})
	return ac, nil
}

func (e *Engine) bootstrapKey() string {
	return e.config.Redis.KeyPrefix + ":admin:bootstrap"
}

// IssueAdminCap mints a new capability for recipient, issued by the caller.
// Any valid capability can issue further capabilities.
func (e *Engine) IssueAdminCap(ctx context.Context, ac *AdminCap, recipient Principal) (*AdminCap, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := e.caller(ctx)
	if err != nil {
		e.recordFailure(ctx, auditEventAdminCapIssueFailure, "", string(recipient), err)
		return nil, err
	}
	if err := e.checkCap(ac); err != nil {
		e.recordFailure(ctx, auditEventAdminCapIssueFailure, caller, string(recipient), err)
		return nil, err
	}
	if err := validatePrincipal(recipient); err != nil {
		e.recordFailure(ctx, auditEventAdminCapIssueFailure, caller, string(recipient), err)
		return nil, err
	}

	issued, err := e.issue(caller, recipient)
	if err != nil {
		e.recordFailure(ctx, auditEventAdminCapIssueFailure, caller, string(recipient), err)
		return nil, err
	}

	e.metricInc(MetricAdminCapIssued)
	e.emitAudit(ctx, auditEventAdminCapIssued, true, caller, string(recipient), nil, func() map[string]string {
		return map[string]string{
			"cap_id":     issued.id,
			"via_cap_id": ac.id,
		}
	})
	return issued, nil
}

// VerifyUser marks a profile verified.
func (e *Engine) VerifyUser(ctx context.Context, ac *AdminCap, profileID string) (*Profile, error) {
	return e.setVerified(ctx, ac, profileID, true)
}

// UnverifyUser clears the verified flag of a profile.
func (e *Engine) UnverifyUser(ctx context.Context, ac *AdminCap, profileID string) (*Profile, error) {
	return e.setVerified(ctx, ac, profileID, false)
}

func (e *Engine) setVerified(ctx context.Context, ac *AdminCap, profileID string, verified bool) (*Profile, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.checkCap(ac); err != nil {
		e.recordFailure(ctx, auditEventVerificationFailure, "", profileID, err)
		return nil, err
	}
	actor := actingPrincipal(ctx, ac)

	rec, err := e.profiles.SetVerified(ctx, profileID, profile.CapabilityGate(string(actor)), verified, e.now())
	if err != nil {
		err = mapStoreError(err)
		e.recordFailure(ctx, auditEventVerificationFailure, actor, profileID, err)
		return nil, err
	}

	e.metricInc(MetricVerificationChanged)
	e.emitAudit(ctx, auditEventVerificationChanged, true, actor, profileID, nil, func() map[string]string {
		return map[string]string{
			"verified": strconv.FormatBool(verified),
			"cap_id":   ac.id,
		}
	})
	return rec, nil
}

// UpdateMembershipTier sets the membership tier of a profile. tier must be
// 0 (free) or 1 (premium).
func (e *Engine) UpdateMembershipTier(ctx context.Context, ac *AdminCap, profileID string, tier uint8) (*Profile, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.checkCap(ac); err != nil {
		e.recordFailure(ctx, auditEventMembershipChangeFailed, "", profileID, err)
		return nil, err
	}
	actor := actingPrincipal(ctx, ac)

	t := MembershipTier(tier)
	if !t.Valid() {
		err := fmt.Errorf("%w: membership tier %d", ErrInvalidEnumValue, tier)
		e.recordFailure(ctx, auditEventMembershipChangeFailed, actor, profileID, err)
		return nil, err
	}

	rec, old, err := e.profiles.SetTier(ctx, profileID, profile.CapabilityGate(string(actor)), t, e.now())
	if err != nil {
		err = mapStoreError(err)
		e.recordFailure(ctx, auditEventMembershipChangeFailed, actor, profileID, err)
		return nil, err
	}

	e.metricInc(MetricMembershipChanged)
	e.emitAudit(ctx, auditEventMembershipChanged, true, actor, profileID, nil, func() map[string]string {
		return map[string]string{
			"old_tier": strconv.Itoa(int(old)),
			"new_tier": strconv.Itoa(int(t)),
			"cap_id":   ac.id,
		}
	})
	return rec, nil
}
