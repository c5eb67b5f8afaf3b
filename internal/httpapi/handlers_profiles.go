package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	goProfile "github.com/MrEthical07/goProfile"
	"github.com/MrEthical07/goProfile/indexer"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

var (
	errMissingSubject   = errors.New("subject or actor query parameter required")
	errBadLimit         = errors.New("limit must be between 1 and 1000")
	errIndexUnavailable = errors.New("fact index unavailable")
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname    string `json:"nickname"`
		Bio         string `json:"bio"`
		IdentityKey string `json:"identity_key"`
		SessionKey  string `json:"session_key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	identity, err := keyBytes(req.IdentityKey)
	if err != nil {
		fail(w, r, err)
		return
	}
	session, err := keyBytes(req.SessionKey)
	if err != nil {
		fail(w, r, err)
		return
	}

	res, err := s.engine.Register(r.Context(), goProfile.RegisterRequest{
		Nickname:    req.Nickname,
		Bio:         req.Bio,
		IdentityKey: identity,
		SessionKey:  session,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"profile":          toProfileJSON(res.Profile),
		"session_store_id": res.SessionStoreID,
		"session":          toSessionJSON(res.Session),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"profile": toProfileJSON(p)})
}

func (s *Server) handleProfilesByOwner(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.ProfilesByOwner(r.Context(), goProfile.Principal(chi.URLParam(r, "owner")))
	if err != nil {
		fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"profile_ids": ids})
}

func (s *Server) handleUpdateNickname(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	s.respondProfile(w, r)(s.engine.UpdateNickname(r.Context(), chi.URLParam(r, "id"), req.Nickname))
}

func (s *Server) handleUpdateBio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Bio string `json:"bio"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	s.respondProfile(w, r)(s.engine.UpdateBio(r.Context(), chi.URLParam(r, "id"), req.Bio))
}

func (s *Server) handleSetAvatarURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	s.respondProfile(w, r)(s.engine.SetAvatarURL(r.Context(), chi.URLParam(r, "id"), req.URL))
}

func (s *Server) handleMintAvatarAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageURL    string `json:"image_url"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Artist      string `json:"artist"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	p, asset, err := s.engine.MintAvatarAsset(r.Context(), chi.URLParam(r, "id"), goProfile.AssetMetadata{
		ImageURL:    req.ImageURL,
		Name:        req.Name,
		Description: req.Description,
		Artist:      req.Artist,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"profile": toProfileJSON(p),
		"asset":   toAssetJSON(asset),
	})
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.GetAvatarAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"asset": toAssetJSON(a)})
}

func (s *Server) handleTransferAsset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipient string `json:"recipient"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	a, err := s.engine.TransferAvatarAsset(r.Context(), chi.URLParam(r, "id"), goProfile.Principal(req.Recipient))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"asset": toAssetJSON(a)})
}

func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subject := strings.TrimSpace(q.Get("subject"))
	if subject == "" {
		respondError(w, http.StatusBadRequest, errMissingSubject)
		return
	}
	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}

	page, err := s.engine.FactsFor(r.Context(), subject, goProfile.FactQuery{After: q.Get("after"), Limit: limit})
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]factJSON, 0, len(page.Facts))
	for _, f := range page.Facts {
		out = append(out, factJSON{ID: f.ID, Type: string(f.Type), Actor: f.Actor, Subject: f.Subject, At: f.At, Attrs: f.Attrs})
	}
	respondJSON(w, http.StatusOK, map[string]any{"facts": out, "next": page.Next})
}

// parseLimit reads an optional 1..maxLimit page size, answering 400 itself
// when the value is out of range.
func parseLimit(w http.ResponseWriter, v string) (int, bool) {
	if v == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxLimit {
		respondError(w, http.StatusBadRequest, errBadLimit)
		return 0, false
	}
	return n, true
}

func (s *Server) handleIndexedFacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}

	var (
		rows []indexer.Row
		err  error
	)
	switch {
	case q.Get("subject") != "":
		rows, err = s.index.BySubject(r.Context(), q.Get("subject"), limit)
	case q.Get("actor") != "":
		rows, err = s.index.ByActor(r.Context(), q.Get("actor"), limit)
	default:
		respondError(w, http.StatusBadRequest, errMissingSubject)
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("fact index query failed")
		respondError(w, http.StatusServiceUnavailable, errIndexUnavailable)
		return
	}
	if rows == nil {
		rows = []indexer.Row{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"facts": rows})
}

func (s *Server) respondProfile(w http.ResponseWriter, r *http.Request) func(*goProfile.Profile, error) {
	return func(p *goProfile.Profile, err error) {
		if err != nil {
			fail(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"profile": toProfileJSON(p)})
	}
}
