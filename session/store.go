package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/goProfile/facts"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrStoreNotFound is returned when the session store id does not resolve.
	ErrStoreNotFound = errors.New("session store not found")
	// ErrNotOwner is returned when the caller does not own the store.
	ErrNotOwner = errors.New("caller does not own session store")
	// ErrDuplicateKey is returned when the key already has an entry.
	ErrDuplicateKey = errors.New("duplicate session key")
	// ErrCorruptEntry is returned when a stored entry cannot be decoded.
	ErrCorruptEntry = errors.New("corrupt session entry")
)

const (
	statusNotFound     int64 = 0
	statusNotOwner     int64 = 1
	statusDuplicate    int64 = 2
	statusApplied      int64 = 3
	statusNotPresent   int64 = 4
	defaultSweepBatch        = 256
	metaFieldOwner           = "owner"
	metaFieldProfile         = "profile_id"
	metaFieldCounter         = "session_counter"
	metaFieldCreatedAt       = "created_at"
)

const readBE64Lua = `
local function read_be64(s, i)
  local b1 = string.byte(s, i)
  local b2 = string.byte(s, i + 1)
  local b3 = string.byte(s, i + 2)
  local b4 = string.byte(s, i + 3)
  local b5 = string.byte(s, i + 4)
  local b6 = string.byte(s, i + 5)
  local b7 = string.byte(s, i + 6)
  local b8 = string.byte(s, i + 7)
  if not b8 then
    return nil
  end
  return ((((((((b1 * 256) + b2) * 256 + b3) * 256 + b4) * 256 + b5) * 256 + b6) * 256 + b7) * 256 + b8)
end
`

// KEYS: meta, entries, facts. ARGV: caller, key, entry, packed facts...
var createSessionLua = redis.NewScript(facts.EmitLua + `
local owner = redis.call("HGET", KEYS[1], "owner")
if not owner then
  return 0
end
if owner ~= ARGV[1] then
  return 1
end
if redis.call("HSETNX", KEYS[2], ARGV[2], ARGV[3]) == 0 then
  return 2
end
redis.call("HINCRBY", KEYS[1], "session_counter", 1)
emit_facts(KEYS[3], ARGV, 4)
return 3
`)

// KEYS: meta, entries, facts. ARGV: caller, key, packed facts...
var revokeSessionLua = redis.NewScript(facts.EmitLua + `
local owner = redis.call("HGET", KEYS[1], "owner")
if not owner then
  return 0
end
if owner ~= ARGV[1] then
  return 1
end
if redis.call("HDEL", KEYS[2], ARGV[2]) == 0 then
  return 4
end
emit_facts(KEYS[3], ARGV, 3)
return 3
`)

// KEYS: meta, entries. ARGV: require_owner, caller, now, candidate keys...
var cleanupSessionsLua = redis.NewScript(readBE64Lua + `
local owner = redis.call("HGET", KEYS[1], "owner")
if not owner then
  return {0, 0}
end
if ARGV[1] == "1" and owner ~= ARGV[2] then
  return {1, 0}
end
local now = tonumber(ARGV[3])
local removed = 0
for i = 4, #ARGV do
  local data = redis.call("HGET", KEYS[2], ARGV[i])
  if data then
    local expires_at = read_be64(data, ` + strconv.Itoa(expiresAtOffset) + `)
    if expires_at and now > expires_at then
      removed = removed + redis.call("HDEL", KEYS[2], ARGV[i])
    end
  end
end
return {3, removed}
`)

// Store is a Redis-backed collection of per-owner session stores. Each
// store is a meta hash plus an entries hash keyed by raw public key.
//
// Every mutation is one Lua script that checks ownership, applies the
// change, and appends its facts atomically.
type Store struct {
	redis    redis.UniversalClient
	prefix   string
	factsKey string
}

// NewStore creates a session [Store]. prefix sets the Redis key namespace
// and factsKey names the fact stream mutations append to.
func NewStore(rdb redis.UniversalClient, prefix, factsKey string) *Store {
	return &Store{
		redis:    rdb,
		prefix:   prefix,
		factsKey: factsKey,
	}
}

func (s *Store) metaKey(storeID string) string {
	return s.prefix + ":s:" + storeID
}

func (s *Store) entriesKey(storeID string) string {
	return s.prefix + ":s:" + storeID + ":k"
}

// QueueCreate adds the writes for a new store holding first to pipe. It is
// used inside the registration MULTI/EXEC block.
func (s *Store) QueueCreate(ctx context.Context, pipe redis.Pipeliner, meta Meta, first Entry) error {
	data, err := Encode(&first)
	if err != nil {
		return err
	}
	pipe.HSet(ctx, s.metaKey(meta.ID),
		metaFieldOwner, meta.Owner,
		metaFieldProfile, meta.ProfileID,
		metaFieldCounter, 1,
		metaFieldCreatedAt, meta.CreatedAt,
	)
	pipe.HSet(ctx, s.entriesKey(meta.ID), string(first.Key[:]), data)
	return nil
}

// Create inserts a new entry for key, owned by caller. An existing entry for
// the same key is left untouched and [ErrDuplicateKey] is returned.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Create(ctx context.Context, storeID, caller string, key [KeySize]byte, now int64) (*Entry, error) {
	entry := NewEntry(key, now)
	data, err := Encode(&entry)
	if err != nil {
		return nil, err
	}

	args := []interface{}{caller, string(key[:]), data}
	args = append(args, facts.Pack(facts.Fact{
		Type:    facts.SessionCreated,
		Actor:   caller,
		Subject: storeID,
		At:      now,
		Attrs: map[string]string{
			"key":        hex.EncodeToString(key[:]),
			"expires_at": strconv.FormatInt(entry.ExpiresAt, 10),
		},
	})...)

	code, err := createSessionLua.Run(ctx, s.redis,
		[]string{s.metaKey(storeID), s.entriesKey(storeID), s.factsKey},
		args...,
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch code {
	case statusApplied:
		return &entry, nil
	case statusNotFound:
		return nil, ErrStoreNotFound
	case statusNotOwner:
		return nil, ErrNotOwner
	case statusDuplicate:
		return nil, ErrDuplicateKey
	default:
		return nil, fmt.Errorf("%w: unknown create status %d", ErrRedisUnavailable, code)
	}
}

// Lookup returns the entry stored for key, or nil when there is none. It
// never mutates Redis, including for expired entries.
//
//	Performance: 1 pipelined round trip (EXISTS + HGET).
func (s *Store) Lookup(ctx context.Context, storeID string, key [KeySize]byte) (*Entry, error) {
	pipe := s.redis.Pipeline()
	exists := pipe.Exists(ctx, s.metaKey(storeID))
	get := pipe.HGet(ctx, s.entriesKey(storeID), string(key[:]))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if exists.Val() == 0 {
		return nil, ErrStoreNotFound
	}

	data, err := get.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	entry, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return entry, nil
}

// Revoke removes the entry for key. It reports whether an entry was
// removed; revoking an absent key succeeds without emitting a fact.
func (s *Store) Revoke(ctx context.Context, storeID, caller string, key [KeySize]byte, now int64) (bool, error) {
	args := []interface{}{caller, string(key[:])}
	args = append(args, facts.Pack(facts.Fact{
		Type:    facts.SessionRevoked,
		Actor:   caller,
		Subject: storeID,
		At:      now,
		Attrs:   map[string]string{"key": hex.EncodeToString(key[:])},
	})...)

	code, err := revokeSessionLua.Run(ctx, s.redis,
		[]string{s.metaKey(storeID), s.entriesKey(storeID), s.factsKey},
		args...,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch code {
	case statusApplied:
		return true, nil
	case statusNotPresent:
		return false, nil
	case statusNotFound:
		return false, ErrStoreNotFound
	case statusNotOwner:
		return false, ErrNotOwner
	default:
		return false, fmt.Errorf("%w: unknown revoke status %d", ErrRedisUnavailable, code)
	}
}

// Cleanup removes every candidate whose entry has expired at now and
// returns how many were removed. Absent and live candidates are skipped.
// When requireOwner is set only the store owner may run it.
func (s *Store) Cleanup(
	ctx context.Context,
	storeID, caller string,
	requireOwner bool,
	candidates [][KeySize]byte,
	now int64,
) (int, error) {
	owner := "0"
	if requireOwner {
		owner = "1"
	}
	args := make([]interface{}, 0, 3+len(candidates))
	args = append(args, owner, caller, now)
	for _, key := range candidates {
		args = append(args, string(key[:]))
	}

	result, err := cleanupSessionsLua.Run(ctx, s.redis,
		[]string{s.metaKey(storeID), s.entriesKey(storeID)},
		args...,
	).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(result) != 2 {
		return 0, fmt.Errorf("%w: invalid cleanup script response", ErrRedisUnavailable)
	}

	switch result[0] {
	case statusApplied:
		return int(result[1]), nil
	case statusNotFound:
		return 0, ErrStoreNotFound
	case statusNotOwner:
		return 0, ErrNotOwner
	default:
		return 0, fmt.Errorf("%w: unknown cleanup status %d", ErrRedisUnavailable, result[0])
	}
}

// Sweep enumerates the store with HSCAN and runs [Store.Cleanup] over the
// expired keys it finds. Entries written after the scan passes them are
// left for the next sweep. With requireOwner set, ownership is checked
// before scanning, so a non-owner is rejected even when nothing expired.
func (s *Store) Sweep(ctx context.Context, storeID, caller string, requireOwner bool, now int64, batch int) (int, error) {
	if batch <= 0 {
		batch = defaultSweepBatch
	}

	meta, err := s.Meta(ctx, storeID)
	if err != nil {
		return 0, err
	}
	if requireOwner && meta.Owner != caller {
		return 0, ErrNotOwner
	}

	var (
		cursor  uint64
		pending [][KeySize]byte
		total   int
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := s.Cleanup(ctx, storeID, caller, requireOwner, pending, now)
		if err != nil {
			return err
		}
		total += n
		pending = pending[:0]
		return nil
	}

	for {
		kvs, next, err := s.redis.HScan(ctx, s.entriesKey(storeID), cursor, "", int64(batch)).Result()
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		for i := 0; i+1 < len(kvs); i += 2 {
			entry, err := Decode([]byte(kvs[i+1]))
			if err != nil || entry.LiveAt(now) {
				continue
			}
			pending = append(pending, entry.Key)
			if len(pending) >= batch {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// List returns every entry in the store, expired ones included, for the
// store owner only.
func (s *Store) List(ctx context.Context, storeID, caller string) ([]Entry, error) {
	meta, err := s.Meta(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if meta.Owner != caller {
		return nil, ErrNotOwner
	}

	raw, err := s.redis.HGetAll(ctx, s.entriesKey(storeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]Entry, 0, len(raw))
	for _, data := range raw {
		entry, err := Decode([]byte(data))
		if err != nil {
			continue
		}
		out = append(out, *entry)
	}
	return out, nil
}

// Meta returns the store record.
func (s *Store) Meta(ctx context.Context, storeID string) (*Meta, error) {
	fields, err := s.redis.HGetAll(ctx, s.metaKey(storeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrStoreNotFound
	}

	meta := &Meta{
		ID:        storeID,
		Owner:     fields[metaFieldOwner],
		ProfileID: fields[metaFieldProfile],
	}
	meta.SessionCounter, _ = strconv.ParseInt(fields[metaFieldCounter], 10, 64)
	meta.CreatedAt, _ = strconv.ParseInt(fields[metaFieldCreatedAt], 10, 64)
	return meta, nil
}

// EntryCount returns the number of stored entries, live or expired.
func (s *Store) EntryCount(ctx context.Context, storeID string) (int, error) {
	n, err := s.redis.HLen(ctx, s.entriesKey(storeID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
