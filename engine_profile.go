package goProfile

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goProfile/facts"
	"github.com/MrEthical07/goProfile/profile"
	"github.com/MrEthical07/goProfile/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Register creates a profile and its session store, owned by the caller,
// with req.SessionKey as the first live session. Both records and their
// UserRegistered and SessionCreated facts are written in one MULTI/EXEC.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := e.caller(ctx)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.recordFailure(ctx, auditEventRegisterFailure, "", "", err)
		return nil, err
	}

	identityKey, sessionKey, err := validateRegisterRequest(req)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		e.recordFailure(ctx, auditEventRegisterFailure, caller, "", err)
		return nil, err
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckRegister(ctx, clientIPFromContext(ctx), string(caller)); err != nil {
			err = mapStoreError(err)
			if errors.Is(err, ErrRateLimited) {
				e.metricInc(MetricRegisterRateLimited)
				e.emitRateLimit(ctx, "register", caller)
				e.emitAudit(ctx, auditEventRegisterRateLimited, false, caller, "", err, nil)
				return nil, err
			}
			e.metricInc(MetricRegisterFailure)
			e.recordFailure(ctx, auditEventRegisterFailure, caller, "", err)
			return nil, err
		}
	}

	now := e.now()
	rec := &Profile{
		ID:             uuid.NewString(),
		Owner:          string(caller),
		Nickname:       req.Nickname,
		Bio:            req.Bio,
		Tier:           TierFree,
		IdentityKey:    identityKey,
		SessionStoreID: uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	meta := session.Meta{
		ID:        rec.SessionStoreID,
		Owner:     rec.Owner,
		ProfileID: rec.ID,
		CreatedAt: now,
	}
	first := session.NewEntry(sessionKey, now)

	_, err = e.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		e.profiles.QueueCreate(ctx, pipe, rec)
		if err := e.sessions.QueueCreate(ctx, pipe, meta, first); err != nil {
			return err
		}
		e.facts.QueueAppend(ctx, pipe, facts.Fact{
			Type:    facts.UserRegistered,
			Actor:   rec.Owner,
			Subject: rec.ID,
			At:      now,
			Attrs: map[string]string{
				"nickname":      rec.Nickname,
				"session_store": rec.SessionStoreID,
				"identity_key":  Key(identityKey).String(),
			},
		})
		e.facts.QueueAppend(ctx, pipe, facts.Fact{
			Type:    facts.SessionCreated,
			Actor:   rec.Owner,
			Subject: rec.SessionStoreID,
			At:      now,
			Attrs: map[string]string{
				"key":        Key(sessionKey).String(),
				"expires_at": strconv.FormatInt(first.ExpiresAt, 10),
			},
		})
		return nil
	})
	if err != nil {
		err = wrapStorage(err)
		e.metricInc(MetricRegisterFailure)
		e.recordFailure(ctx, auditEventRegisterFailure, caller, rec.ID, err)
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, caller, rec.ID, nil, func() map[string]string {
		return map[string]string{"session_store": rec.SessionStoreID}
	})

	return &RegisterResult{
		Profile:        rec,
		SessionStoreID: rec.SessionStoreID,
		Session:        toSessionInfo(first, now),
	}, nil
}

func validateRegisterRequest(req RegisterRequest) (identity, sess [KeySize]byte, err error) {
	if err = validateNickname(req.Nickname); err != nil {
		return
	}
	if err = validateBio(req.Bio); err != nil {
		return
	}
	var k Key
	if k, err = keyFromBytes("identity_key", req.IdentityKey); err != nil {
		return
	}
	identity = k
	if k, err = keyFromBytes("session_key", req.SessionKey); err != nil {
		return
	}
	sess = k
	return
}

// GetProfile returns the profile stored under id.
func (e *Engine) GetProfile(ctx context.Context, id string) (*Profile, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	rec, err := e.profiles.Get(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return rec, nil
}

// ProfilesByOwner returns the ids of every profile registered by owner.
func (e *Engine) ProfilesByOwner(ctx context.Context, owner Principal) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validatePrincipal(owner); err != nil {
		return nil, err
	}
	ids, err := e.profiles.IDsByOwner(ctx, string(owner))
	if err != nil {
		return nil, mapStoreError(err)
	}
	return ids, nil
}

// UpdateNickname replaces the nickname of a profile the caller owns.
func (e *Engine) UpdateNickname(ctx context.Context, id, nickname string) (*Profile, error) {
	return e.updateOwned(ctx, id, profile.FieldNickname, validateNickname(nickname),
		func(caller string, now int64) (*Profile, error) {
			return e.profiles.SetNickname(ctx, id, caller, nickname, now)
		})
}

// UpdateBio replaces the bio of a profile the caller owns.
func (e *Engine) UpdateBio(ctx context.Context, id, bio string) (*Profile, error) {
	return e.updateOwned(ctx, id, profile.FieldBio, validateBio(bio),
		func(caller string, now int64) (*Profile, error) {
			return e.profiles.SetBio(ctx, id, caller, bio, now)
		})
}

// SetAvatarURL switches a profile the caller owns to a URL avatar,
// clearing any asset avatar.
func (e *Engine) SetAvatarURL(ctx context.Context, id, url string) (*Profile, error) {
	return e.updateOwned(ctx, id, profile.FieldPictureURL, validateURL(url),
		func(caller string, now int64) (*Profile, error) {
			return e.profiles.SetAvatarURL(ctx, id, caller, url, now)
		})
}

func (e *Engine) updateOwned(
	ctx context.Context,
	id, field string,
	validationErr error,
	apply func(caller string, now int64) (*Profile, error),
) (*Profile, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := e.caller(ctx)
	if err != nil {
		e.recordFailure(ctx, auditEventProfileUpdateFailure, "", id, err)
		return nil, err
	}
	if validationErr != nil {
		e.recordFailure(ctx, auditEventProfileUpdateFailure, caller, id, validationErr)
		return nil, validationErr
	}

	rec, err := apply(string(caller), e.now())
	if err != nil {
		err = mapStoreError(err)
		e.recordFailure(ctx, auditEventProfileUpdateFailure, caller, id, err)
		return nil, err
	}

	e.metricInc(MetricProfileUpdated)
	e.emitAudit(ctx, auditEventProfileUpdated, true, caller, id, nil, func() map[string]string {
		return map[string]string{"field": field}
	})
	return rec, nil
}

// MintAvatarAsset mints an avatar asset owned by the profile owner and
// makes it the profile avatar, clearing any URL avatar. Only the profile
// owner may mint.
func (e *Engine) MintAvatarAsset(ctx context.Context, profileID string, meta AssetMetadata) (*Profile, *AvatarAssetRecord, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	caller, err := e.caller(ctx)
	if err != nil {
		e.recordFailure(ctx, auditEventAvatarMintFailure, "", profileID, err)
		return nil, nil, err
	}
	if err := validateAssetMetadata(meta); err != nil {
		e.recordFailure(ctx, auditEventAvatarMintFailure, caller, profileID, err)
		return nil, nil, err
	}

	assetID := uuid.NewString()
	rec, asset, err := e.profiles.MintAsset(ctx, profileID, string(caller), assetID, meta, e.now())
	if err != nil {
		err = mapStoreError(err)
		e.recordFailure(ctx, auditEventAvatarMintFailure, caller, profileID, err)
		return nil, nil, err
	}

	e.metricInc(MetricAvatarMinted)
	e.emitAudit(ctx, auditEventAvatarMinted, true, caller, profileID, nil, func() map[string]string {
		return map[string]string{"asset_id": assetID}
	})
	return rec, asset, nil
}

// GetAvatarAsset returns the avatar asset stored under id.
func (e *Engine) GetAvatarAsset(ctx context.Context, id string) (*AvatarAssetRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	asset, err := e.profiles.GetAsset(ctx, id)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return asset, nil
}

// TransferAvatarAsset hands an asset the caller owns to recipient. Profiles
// that display the asset keep referencing it.
func (e *Engine) TransferAvatarAsset(ctx context.Context, assetID string, recipient Principal) (*AvatarAssetRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	caller, err := e.caller(ctx)
	if err != nil {
		e.recordFailure(ctx, auditEventAvatarTransferFailure, "", assetID, err)
		return nil, err
	}
	if err := validatePrincipal(recipient); err != nil {
		e.recordFailure(ctx, auditEventAvatarTransferFailure, caller, assetID, err)
		return nil, err
	}

	asset, err := e.profiles.TransferAsset(ctx, assetID, string(caller), string(recipient), e.now())
	if err != nil {
		err = mapStoreError(err)
		e.recordFailure(ctx, auditEventAvatarTransferFailure, caller, assetID, err)
		return nil, err
	}

	e.metricInc(MetricAvatarTransferred)
	e.emitAudit(ctx, auditEventAvatarTransferred, true, caller, assetID, nil, func() map[string]string {
		return map[string]string{"to": string(recipient)}
	})
	return asset, nil
}
