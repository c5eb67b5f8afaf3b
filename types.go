package goProfile

import (
	"encoding/hex"
	"io"
	"time"

	"github.com/MrEthical07/goProfile/facts"
	internalaudit "github.com/MrEthical07/goProfile/internal/audit"
	"github.com/MrEthical07/goProfile/profile"
	"github.com/MrEthical07/goProfile/session"
	"github.com/rs/zerolog"
)

// Principal is an opaque, non-empty account address.
type Principal string

// KeySize is the byte length of identity and session public keys.
const KeySize = session.KeySize

// SessionLifetimeMillis is how long a session entry stays live after creation.
const SessionLifetimeMillis = session.EntryLifetimeMillis

// Key is a 32-byte public key.
type Key [KeySize]byte

// String returns the lowercase hex encoding of k.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// ParseKey decodes a hex-encoded 32-byte key.
func ParseKey(s string) (Key, error) {
	var k Key
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, ErrInvalidKeyEncoding
	}
	if len(raw) != KeySize {
		return k, ErrInvalidLength
	}
	copy(k[:], raw)
	return k, nil
}

// Profile is a stored user profile.
type Profile = profile.Record

// Avatar is the profile picture, a tagged union of URL, asset, or nothing.
type Avatar = profile.Avatar

// AvatarKind tags the avatar variant.
type AvatarKind = profile.AvatarKind

const (
	AvatarNone  = profile.AvatarNone
	AvatarURL   = profile.AvatarURL
	AvatarAsset = profile.AvatarAsset
)

// MembershipTier is a profile membership level.
type MembershipTier = profile.Tier

const (
	TierFree    = profile.TierFree
	TierPremium = profile.TierPremium
)

// AvatarAssetRecord is a minted avatar asset.
type AvatarAssetRecord = profile.Asset

// AssetMetadata describes an avatar asset to mint.
type AssetMetadata = profile.AssetMetadata

// RegisterRequest carries the inputs of [Engine.Register]. The owner is
// the caller carried in the context.
type RegisterRequest struct {
	Nickname    string
	Bio         string
	IdentityKey []byte
	SessionKey  []byte
}

// RegisterResult reports what [Engine.Register] created.
type RegisterResult struct {
	Profile        *Profile
	SessionStoreID string
	Session        SessionInfo
}

// SessionInfo is the read view of one session entry.
type SessionInfo struct {
	Key       Key
	CreatedAt int64
	ExpiresAt int64
	Live      bool
}

// SessionStoreInfo describes a session store without its entries.
type SessionStoreInfo struct {
	ID             string
	Owner          Principal
	ProfileID      string
	SessionCounter int64
	CreatedAt      int64
	Entries        int
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

func toSessionInfo(e session.Entry, now int64) SessionInfo {
	return SessionInfo{
		Key:       Key(e.Key),
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
		Live:      e.LiveAt(now),
	}
}

// AuditEvent is one audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per event line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink writes events through a zerolog logger.
type LogSink = internalaudit.LogSink

// MultiSink fans each event out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink returns a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogSink returns a [LogSink] writing through logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}

// FactQuery bounds a [Engine.FactsFor] call.
type FactQuery = facts.SubjectQuery

// FactPage is one page of facts with a resume cursor.
type FactPage = facts.SubjectPage
