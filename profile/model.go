package profile

import (
	"strconv"
)

// Tier is a membership level.
type Tier uint8

const (
	TierFree    Tier = 0
	TierPremium Tier = 1
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierPremium:
		return "premium"
	default:
		return "tier(" + strconv.Itoa(int(t)) + ")"
	}
}

// AvatarKind tags which avatar variant a profile holds.
type AvatarKind string

const (
	AvatarNone  AvatarKind = ""
	AvatarURL   AvatarKind = "url"
	AvatarAsset AvatarKind = "asset"
)

// Avatar is a tagged union: a URL, a reference to an avatar asset, or
// nothing. Ref holds the URL or the asset id depending on Kind.
type Avatar struct {
	Kind AvatarKind
	Ref  string
}

// URLAvatar returns the URL variant.
func URLAvatar(url string) Avatar {
	return Avatar{Kind: AvatarURL, Ref: url}
}

// AssetAvatar returns the asset variant.
func AssetAvatar(assetID string) Avatar {
	return Avatar{Kind: AvatarAsset, Ref: assetID}
}

// URL returns the avatar URL when the URL variant is set.
func (a Avatar) URL() (string, bool) {
	return a.Ref, a.Kind == AvatarURL
}

// AssetID returns the asset id when the asset variant is set.
func (a Avatar) AssetID() (string, bool) {
	return a.Ref, a.Kind == AvatarAsset
}

// fields is the only place an avatar is written to a profile hash. Kind and
// ref are always written together so a new variant replaces the old one.
func (a Avatar) fields() []interface{} {
	return []interface{}{fieldAvatarKind, string(a.Kind), fieldAvatarRef, a.Ref}
}

// Record is a stored user profile.
type Record struct {
	ID             string
	Owner          string
	Nickname       string
	Bio            string
	Avatar         Avatar
	Tier           Tier
	Verified       bool
	IdentityKey    [32]byte
	SessionStoreID string
	CreatedAt      int64
	UpdatedAt      int64
}

// AssetMetadata describes an avatar asset to mint.
type AssetMetadata struct {
	ImageURL    string
	Name        string
	Description string
	Artist      string
}

// Asset is a minted avatar asset.
type Asset struct {
	ID          string
	Owner       string
	ImageURL    string
	Name        string
	Description string
	Artist      string
	CreatedAt   int64
}

const (
	fieldID           = "id"
	fieldOwner        = "owner"
	fieldNickname     = "nickname"
	fieldBio          = "bio"
	fieldAvatarKind   = "avatar_kind"
	fieldAvatarRef    = "avatar_ref"
	fieldTier         = "tier"
	fieldVerified     = "verified"
	fieldIdentityKey  = "identity_key"
	fieldSessionStore = "session_store"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"

	fieldImageURL    = "image_url"
	fieldName        = "name"
	fieldDescription = "description"
	fieldArtist      = "artist"
)

func (r *Record) hashFields() []interface{} {
	out := []interface{}{
		fieldID, r.ID,
		fieldOwner, r.Owner,
		fieldNickname, r.Nickname,
		fieldBio, r.Bio,
		fieldTier, int(r.Tier),
		fieldVerified, boolField(r.Verified),
		fieldIdentityKey, string(r.IdentityKey[:]),
		fieldSessionStore, r.SessionStoreID,
		fieldCreatedAt, r.CreatedAt,
		fieldUpdatedAt, r.UpdatedAt,
	}
	return append(out, r.Avatar.fields()...)
}

func recordFromHash(h map[string]string) *Record {
	r := &Record{
		ID:             h[fieldID],
		Owner:          h[fieldOwner],
		Nickname:       h[fieldNickname],
		Bio:            h[fieldBio],
		Avatar:         Avatar{Kind: AvatarKind(h[fieldAvatarKind]), Ref: h[fieldAvatarRef]},
		Verified:       h[fieldVerified] == "1",
		SessionStoreID: h[fieldSessionStore],
	}
	if tier, err := strconv.ParseUint(h[fieldTier], 10, 8); err == nil {
		r.Tier = Tier(tier)
	}
	copy(r.IdentityKey[:], h[fieldIdentityKey])
	r.CreatedAt, _ = strconv.ParseInt(h[fieldCreatedAt], 10, 64)
	r.UpdatedAt, _ = strconv.ParseInt(h[fieldUpdatedAt], 10, 64)
	return r
}

func (a *Asset) hashFields() []interface{} {
	return []interface{}{
		fieldID, a.ID,
		fieldOwner, a.Owner,
		fieldImageURL, a.ImageURL,
		fieldName, a.Name,
		fieldDescription, a.Description,
		fieldArtist, a.Artist,
		fieldCreatedAt, a.CreatedAt,
	}
}

func assetFromHash(h map[string]string) *Asset {
	a := &Asset{
		ID:          h[fieldID],
		Owner:       h[fieldOwner],
		ImageURL:    h[fieldImageURL],
		Name:        h[fieldName],
		Description: h[fieldDescription],
		Artist:      h[fieldArtist],
	}
	a.CreatedAt, _ = strconv.ParseInt(h[fieldCreatedAt], 10, 64)
	return a
}

func boolField(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
