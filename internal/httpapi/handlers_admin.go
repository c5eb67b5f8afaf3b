package httpapi

import (
	"errors"
	"net/http"

	goProfile "github.com/MrEthical07/goProfile"
	"github.com/MrEthical07/goProfile/middleware"
	"github.com/go-chi/chi/v5"
)

func adminCap(w http.ResponseWriter, r *http.Request) (*goProfile.AdminCap, bool) {
	ac, ok := middleware.AdminCapFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, errors.New("admin capability required"))
		return nil, false
	}
	return ac, true
}

func (s *Server) handleIssueAdminCap(w http.ResponseWriter, r *http.Request) {
	ac, ok := adminCap(w, r)
	if !ok {
		return
	}
	var req struct {
		Recipient string `json:"recipient"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	issued, err := s.engine.IssueAdminCap(r.Context(), ac, goProfile.Principal(req.Recipient))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"capability": toCapJSON(issued)})
}

func (s *Server) handleVerify(verified bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := adminCap(w, r)
		if !ok {
			return
		}
		id := chi.URLParam(r, "id")
		if verified {
			s.respondProfile(w, r)(s.engine.VerifyUser(r.Context(), ac, id))
			return
		}
		s.respondProfile(w, r)(s.engine.UnverifyUser(r.Context(), ac, id))
	}
}

func (s *Server) handleUpdateTier(w http.ResponseWriter, r *http.Request) {
	ac, ok := adminCap(w, r)
	if !ok {
		return
	}
	var req struct {
		Tier *uint8 `json:"tier"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Tier == nil {
		respondError(w, http.StatusBadRequest, errors.New("tier is required"))
		return
	}
	s.respondProfile(w, r)(s.engine.UpdateMembershipTier(r.Context(), ac, chi.URLParam(r, "id"), *req.Tier))
}
