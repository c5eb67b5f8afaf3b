package profile

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MrEthical07/goProfile/facts"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrNotFound is returned when a profile id does not resolve.
	ErrNotFound = errors.New("profile not found")
	// ErrAssetNotFound is returned when an asset id does not resolve.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrNotOwner is returned when an owner-gated mutation is attempted by
	// someone else.
	ErrNotOwner = errors.New("caller does not own record")
)

const (
	statusNotFound int64 = 0
	statusNotOwner int64 = 1
	statusApplied  int64 = 2
)

// Fields touched by profile mutations, as reported in ProfileUpdated facts.
const (
	FieldNickname   = "nickname"
	FieldBio        = "bio"
	FieldPictureURL = "picture_url"
	FieldPictureNFT = "picture_nft"
)

const bumpUpdatedAtLua = `
local function bump_updated_at(key, now)
  local updated = now
  local cur = redis.call("HGET", key, "updated_at")
  if cur and tonumber(cur) > tonumber(now) then
    updated = cur
  end
  redis.call("HSET", key, "updated_at", updated)
end
`

// KEYS: profile, facts.
// ARGV: gate ("owner" or "cap"), principal, now, field count, field/value..., packed facts...
var updateProfileLua = redis.NewScript(facts.EmitLua + bumpUpdatedAtLua + `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0}
end
if ARGV[1] == "owner" and redis.call("HGET", KEYS[1], "owner") ~= ARGV[2] then
  return {1}
end
local n = tonumber(ARGV[4])
if n > 0 then
  redis.call("HSET", KEYS[1], unpack(ARGV, 5, 4 + n))
end
bump_updated_at(KEYS[1], ARGV[3])
emit_facts(KEYS[2], ARGV, 5 + n)
return {2, redis.call("HGETALL", KEYS[1])}
`)

// KEYS: profile, facts. ARGV: now, tier, MembershipChanged fact fields...
// The previous tier is appended to the fact as attr.old_tier.
var setTierLua = redis.NewScript(bumpUpdatedAtLua + `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0}
end
local old = redis.call("HGET", KEYS[1], "tier") or "0"
redis.call("HSET", KEYS[1], "tier", ARGV[2])
bump_updated_at(KEYS[1], ARGV[1])
local fields = {}
for i = 3, #ARGV do
  fields[#fields + 1] = ARGV[i]
end
fields[#fields + 1] = "` + facts.AttrPrefix + `old_tier"
fields[#fields + 1] = old
redis.call("XADD", KEYS[2], "*", unpack(fields))
return {2, redis.call("HGETALL", KEYS[1]), old}
`)

// KEYS: profile, asset, facts.
// ARGV: caller, now, asset field count, asset field/value..., profile field count,
// profile field/value..., packed facts...
var mintAssetLua = redis.NewScript(facts.EmitLua + bumpUpdatedAtLua + `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {0}
end
local owner = redis.call("HGET", KEYS[1], "owner")
if owner ~= ARGV[1] then
  return {1}
end
local idx = 3
local n = tonumber(ARGV[idx])
redis.call("HSET", KEYS[2], unpack(ARGV, idx + 1, idx + n))
redis.call("HSET", KEYS[2], "owner", owner)
idx = idx + n + 1
n = tonumber(ARGV[idx])
redis.call("HSET", KEYS[1], unpack(ARGV, idx + 1, idx + n))
bump_updated_at(KEYS[1], ARGV[2])
emit_facts(KEYS[3], ARGV, idx + n + 1)
return {2, redis.call("HGETALL", KEYS[1]), redis.call("HGETALL", KEYS[2])}
`)

// KEYS: asset, facts. ARGV: caller, recipient, packed facts...
var transferAssetLua = redis.NewScript(facts.EmitLua + `
local owner = redis.call("HGET", KEYS[1], "owner")
if not owner then
  return {0}
end
if owner ~= ARGV[1] then
  return {1}
end
redis.call("HSET", KEYS[1], "owner", ARGV[2])
emit_facts(KEYS[2], ARGV, 3)
return {2, redis.call("HGETALL", KEYS[1])}
`)

// Gate selects how a profile mutation is authorized inside its script.
type Gate struct {
	ownerOnly bool
	principal string
}

// OwnerGate admits the mutation only when caller owns the profile.
func OwnerGate(caller string) Gate {
	return Gate{ownerOnly: true, principal: caller}
}

// CapabilityGate admits the mutation unconditionally. The caller must have
// verified an admin capability already; actor is recorded in facts.
func CapabilityGate(actor string) Gate {
	return Gate{principal: actor}
}

// Principal returns the acting principal.
func (g Gate) Principal() string {
	return g.principal
}

// Store is the Redis-backed profile and avatar asset store.
type Store struct {
	redis    redis.UniversalClient
	prefix   string
	factsKey string
}

// NewStore creates a profile [Store].
func NewStore(rdb redis.UniversalClient, prefix, factsKey string) *Store {
	return &Store{
		redis:    rdb,
		prefix:   prefix,
		factsKey: factsKey,
	}
}

func (s *Store) profileKey(id string) string {
	return s.prefix + ":p:" + id
}

func (s *Store) assetKey(id string) string {
	return s.prefix + ":a:" + id
}

func (s *Store) ownerKey(owner string) string {
	return s.prefix + ":o:" + owner
}

// QueueCreate adds the writes for a new profile record to pipe.
func (s *Store) QueueCreate(ctx context.Context, pipe redis.Pipeliner, rec *Record) {
	pipe.HSet(ctx, s.profileKey(rec.ID), rec.hashFields()...)
	pipe.SAdd(ctx, s.ownerKey(rec.Owner), rec.ID)
}

// Get returns the profile stored under id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	h, err := s.redis.HGetAll(ctx, s.profileKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	return recordFromHash(h), nil
}

// GetAsset returns the avatar asset stored under id.
func (s *Store) GetAsset(ctx context.Context, id string) (*Asset, error) {
	h, err := s.redis.HGetAll(ctx, s.assetKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(h) == 0 {
		return nil, ErrAssetNotFound
	}
	return assetFromHash(h), nil
}

// IDsByOwner returns the ids of every profile registered by owner.
func (s *Store) IDsByOwner(ctx context.Context, owner string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.ownerKey(owner)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// SetNickname replaces the nickname of an owned profile.
func (s *Store) SetNickname(ctx context.Context, id, caller, nickname string, now int64) (*Record, error) {
	return s.update(ctx, id, OwnerGate(caller), now,
		[]interface{}{fieldNickname, nickname},
		profileUpdated(caller, id, FieldNickname, now),
	)
}

// SetBio replaces the bio of an owned profile.
func (s *Store) SetBio(ctx context.Context, id, caller, bio string, now int64) (*Record, error) {
	return s.update(ctx, id, OwnerGate(caller), now,
		[]interface{}{fieldBio, bio},
		profileUpdated(caller, id, FieldBio, now),
	)
}

// SetAvatarURL switches an owned profile to the URL avatar variant.
func (s *Store) SetAvatarURL(ctx context.Context, id, caller, url string, now int64) (*Record, error) {
	return s.update(ctx, id, OwnerGate(caller), now,
		URLAvatar(url).fields(),
		profileUpdated(caller, id, FieldPictureURL, now),
	)
}

// SetVerified sets the verification flag under a capability gate.
func (s *Store) SetVerified(ctx context.Context, id string, gate Gate, verified bool, now int64) (*Record, error) {
	return s.update(ctx, id, gate, now,
		[]interface{}{fieldVerified, boolField(verified)},
		facts.Fact{
			Type:    facts.VerificationStatusChanged,
			Actor:   gate.principal,
			Subject: id,
			At:      now,
			Attrs: map[string]string{
				"verified": strconv.FormatBool(verified),
				"actor":    gate.principal,
			},
		},
	)
}

// SetTier sets the membership tier and returns the updated record together
// with the previous tier.
func (s *Store) SetTier(ctx context.Context, id string, gate Gate, tier Tier, now int64) (*Record, Tier, error) {
	fact := facts.Fact{
		Type:    facts.MembershipChanged,
		Actor:   gate.principal,
		Subject: id,
		At:      now,
		Attrs:   map[string]string{"new_tier": strconv.Itoa(int(tier))},
	}
	args := []interface{}{now, int(tier)}
	args = append(args, fact.Args()...)

	parts, err := s.runScript(ctx, setTierLua, []string{s.profileKey(id), s.factsKey}, args)
	if err != nil {
		return nil, 0, err
	}
	if err := statusError(parts, ErrNotFound); err != nil {
		return nil, 0, err
	}
	if len(parts) < 3 {
		return nil, 0, fmt.Errorf("%w: invalid tier script response", ErrRedisUnavailable)
	}

	rec := recordFromHash(flatHash(parts[1]))
	oldStr, _ := parts[2].(string)
	old, _ := strconv.ParseUint(oldStr, 10, 8)
	return rec, Tier(old), nil
}

// MintAsset creates an avatar asset owned by the profile owner and switches
// the profile to the asset avatar variant. Only the profile owner may mint.
func (s *Store) MintAsset(
	ctx context.Context,
	profileID, caller, assetID string,
	meta AssetMetadata,
	now int64,
) (*Record, *Asset, error) {
	asset := &Asset{
		ID:          assetID,
		Owner:       caller,
		ImageURL:    meta.ImageURL,
		Name:        meta.Name,
		Description: meta.Description,
		Artist:      meta.Artist,
		CreatedAt:   now,
	}
	assetFields := asset.hashFields()
	profileFields := AssetAvatar(assetID).fields()

	args := []interface{}{caller, now, len(assetFields)}
	args = append(args, assetFields...)
	args = append(args, len(profileFields))
	args = append(args, profileFields...)
	args = append(args, facts.Pack(
		profileUpdated(caller, profileID, FieldPictureNFT, now),
		facts.Fact{
			Type:    facts.AssetMinted,
			Actor:   caller,
			Subject: assetID,
			At:      now,
			Attrs: map[string]string{
				"profile_id": profileID,
				"owner":      caller,
				"name":       meta.Name,
			},
		},
	)...)

	parts, err := s.runScript(ctx, mintAssetLua,
		[]string{s.profileKey(profileID), s.assetKey(assetID), s.factsKey}, args)
	if err != nil {
		return nil, nil, err
	}
	if err := statusError(parts, ErrNotFound); err != nil {
		return nil, nil, err
	}
	if len(parts) < 3 {
		return nil, nil, fmt.Errorf("%w: invalid mint script response", ErrRedisUnavailable)
	}
	return recordFromHash(flatHash(parts[1])), assetFromHash(flatHash(parts[2])), nil
}

// TransferAsset hands an asset to recipient. Profiles that reference the
// asset are not touched.
func (s *Store) TransferAsset(ctx context.Context, assetID, caller, recipient string, now int64) (*Asset, error) {
	args := []interface{}{caller, recipient}
	args = append(args, facts.Pack(facts.Fact{
		Type:    facts.AssetTransferred,
		Actor:   caller,
		Subject: assetID,
		At:      now,
		Attrs:   map[string]string{"from": caller, "to": recipient},
	})...)

	parts, err := s.runScript(ctx, transferAssetLua, []string{s.assetKey(assetID), s.factsKey}, args)
	if err != nil {
		return nil, err
	}
	if err := statusError(parts, ErrAssetNotFound); err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: invalid transfer script response", ErrRedisUnavailable)
	}
	return assetFromHash(flatHash(parts[1])), nil
}

func (s *Store) update(
	ctx context.Context,
	id string,
	gate Gate,
	now int64,
	fields []interface{},
	fact facts.Fact,
) (*Record, error) {
	mode := "cap"
	if gate.ownerOnly {
		mode = "owner"
	}
	args := []interface{}{mode, gate.principal, now, len(fields)}
	args = append(args, fields...)
	args = append(args, facts.Pack(fact)...)

	parts, err := s.runScript(ctx, updateProfileLua, []string{s.profileKey(id), s.factsKey}, args)
	if err != nil {
		return nil, err
	}
	if err := statusError(parts, ErrNotFound); err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: invalid update script response", ErrRedisUnavailable)
	}
	return recordFromHash(flatHash(parts[1])), nil
}

func (s *Store) runScript(ctx context.Context, script *redis.Script, keys []string, args []interface{}) ([]interface{}, error) {
	result, err := script.Run(ctx, s.redis, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid script response", ErrRedisUnavailable)
	}
	return parts, nil
}

func statusError(parts []interface{}, notFound error) error {
	code, ok := parts[0].(int64)
	if !ok {
		return fmt.Errorf("%w: invalid script status", ErrRedisUnavailable)
	}
	switch code {
	case statusApplied:
		return nil
	case statusNotFound:
		return notFound
	case statusNotOwner:
		return ErrNotOwner
	default:
		return fmt.Errorf("%w: unknown script status %d", ErrRedisUnavailable, code)
	}
}

func flatHash(v interface{}) map[string]string {
	items, _ := v.([]interface{})
	h := make(map[string]string, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		k, _ := items[i].(string)
		val, _ := items[i+1].(string)
		h[k] = val
	}
	return h
}

func profileUpdated(actor, profileID, field string, now int64) facts.Fact {
	return facts.Fact{
		Type:    facts.ProfileUpdated,
		Actor:   actor,
		Subject: profileID,
		At:      now,
		Attrs:   map[string]string{"field": field},
	}
}
