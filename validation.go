package goProfile

import "fmt"

// Field bounds, in UTF-8 bytes.
const (
	MinNicknameLen    = 1
	MaxNicknameLen    = 50
	MaxBioLen         = 500
	MinURLLen         = 1
	MaxURLLen         = 2048
	MinAssetNameLen   = 1
	MaxAssetNameLen   = 100
	MaxDescriptionLen = 1000
	MaxArtistLen      = 100
	MaxPrincipalLen   = 256
)

func checkLen(field, v string, min, max int) error {
	if n := len(v); n < min || n > max {
		return fmt.Errorf("%w: %s must be %d..%d bytes, got %d", ErrInvalidLength, field, min, max, n)
	}
	return nil
}

func validateNickname(v string) error {
	return checkLen("nickname", v, MinNicknameLen, MaxNicknameLen)
}

func validateBio(v string) error {
	return checkLen("bio", v, 0, MaxBioLen)
}

func validateURL(v string) error {
	return checkLen("url", v, MinURLLen, MaxURLLen)
}

func validateAssetMetadata(m AssetMetadata) error {
	if err := checkLen("image_url", m.ImageURL, MinURLLen, MaxURLLen); err != nil {
		return err
	}
	if err := checkLen("name", m.Name, MinAssetNameLen, MaxAssetNameLen); err != nil {
		return err
	}
	if err := checkLen("description", m.Description, 0, MaxDescriptionLen); err != nil {
		return err
	}
	return checkLen("artist", m.Artist, 0, MaxArtistLen)
}

func validatePrincipal(p Principal) error {
	if p == "" || len(p) > MaxPrincipalLen {
		return ErrInvalidPrincipal
	}
	return nil
}

func keyFromBytes(field string, b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, fmt.Errorf("%w: %s must be %d bytes, got %d", ErrInvalidLength, field, KeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}
