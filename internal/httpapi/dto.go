package httpapi

import (
	"encoding/hex"

	goProfile "github.com/MrEthical07/goProfile"
)

type avatarJSON struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
}

type profileJSON struct {
	ID             string      `json:"id"`
	Owner          string      `json:"owner"`
	Nickname       string      `json:"nickname"`
	Bio            string      `json:"bio"`
	Avatar         *avatarJSON `json:"avatar,omitempty"`
	Tier           uint8       `json:"tier"`
	TierName       string      `json:"tier_name"`
	Verified       bool        `json:"verified"`
	IdentityKey    string      `json:"identity_key"`
	SessionStoreID string      `json:"session_store_id"`
	CreatedAt      int64       `json:"created_at"`
	UpdatedAt      int64       `json:"updated_at"`
}

func toProfileJSON(p *goProfile.Profile) profileJSON {
	out := profileJSON{
		ID:             p.ID,
		Owner:          p.Owner,
		Nickname:       p.Nickname,
		Bio:            p.Bio,
		Tier:           uint8(p.Tier),
		TierName:       p.Tier.String(),
		Verified:       p.Verified,
		IdentityKey:    hex.EncodeToString(p.IdentityKey[:]),
		SessionStoreID: p.SessionStoreID,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.Avatar.Kind != goProfile.AvatarNone {
		out.Avatar = &avatarJSON{Kind: string(p.Avatar.Kind), Ref: p.Avatar.Ref}
	}
	return out
}

type assetJSON struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	ImageURL    string `json:"image_url"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Artist      string `json:"artist,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

func toAssetJSON(a *goProfile.AvatarAssetRecord) assetJSON {
	return assetJSON{
		ID:          a.ID,
		Owner:       a.Owner,
		ImageURL:    a.ImageURL,
		Name:        a.Name,
		Description: a.Description,
		Artist:      a.Artist,
		CreatedAt:   a.CreatedAt,
	}
}

type sessionJSON struct {
	Key       string `json:"key"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
	Live      bool   `json:"live"`
}

func toSessionJSON(s goProfile.SessionInfo) sessionJSON {
	return sessionJSON{
		Key:       s.Key.String(),
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		Live:      s.Live,
	}
}

type storeJSON struct {
	ID             string `json:"id"`
	Owner          string `json:"owner"`
	ProfileID      string `json:"profile_id"`
	SessionCounter int64  `json:"session_counter"`
	CreatedAt      int64  `json:"created_at"`
	Entries        int    `json:"entries"`
}

type capJSON struct {
	ID       string `json:"id"`
	Issuer   string `json:"issuer"`
	Holder   string `json:"holder"`
	IssuedAt int64  `json:"issued_at"`
	Token    string `json:"token"`
}

func toCapJSON(c *goProfile.AdminCap) capJSON {
	return capJSON{
		ID:       c.ID(),
		Issuer:   string(c.Issuer()),
		Holder:   string(c.Holder()),
		IssuedAt: c.IssuedAt().UnixMilli(),
		Token:    c.Token(),
	}
}

type factJSON struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Actor   string            `json:"actor"`
	Subject string            `json:"subject"`
	At      int64             `json:"at"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}
