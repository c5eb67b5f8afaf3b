package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goProfile "github.com/MrEthical07/goProfile"
	"github.com/rs/zerolog/hlog"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// fail maps an engine error to its HTTP status and logs server-side
// failures.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	respondError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, goProfile.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, goProfile.ErrInvalidLength),
		errors.Is(err, goProfile.ErrInvalidEnumValue),
		errors.Is(err, goProfile.ErrInvalidKeyEncoding),
		errors.Is(err, goProfile.ErrInvalidPrincipal):
		return http.StatusBadRequest
	case errors.Is(err, goProfile.ErrDuplicateSession),
		errors.Is(err, goProfile.ErrAdminAlreadyBootstrapped):
		return http.StatusConflict
	case errors.Is(err, goProfile.ErrProfileNotFound),
		errors.Is(err, goProfile.ErrSessionStoreNotFound),
		errors.Is(err, goProfile.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, goProfile.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, goProfile.ErrStorageUnavailable),
		errors.Is(err, goProfile.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// keyBytes decodes a hex session or identity key.
func keyBytes(s string) ([]byte, error) {
	k, err := goProfile.ParseKey(s)
	if err != nil {
		return nil, err
	}
	return k[:], nil
}
