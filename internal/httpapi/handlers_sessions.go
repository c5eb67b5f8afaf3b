package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetSessionStore(w http.ResponseWriter, r *http.Request) {
	info, err := s.engine.GetSessionStore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"store": storeJSON{
		ID:             info.ID,
		Owner:          string(info.Owner),
		ProfileID:      info.ProfileID,
		SessionCounter: info.SessionCounter,
		CreatedAt:      info.CreatedAt,
		Entries:        info.Entries,
	}})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.ListSessions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]sessionJSON, 0, len(list))
	for _, info := range list {
		out = append(out, toSessionJSON(info))
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	key, err := keyBytes(req.Key)
	if err != nil {
		fail(w, r, err)
		return
	}

	info, err := s.engine.CreateSession(r.Context(), chi.URLParam(r, "id"), key)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"session": toSessionJSON(*info)})
}

func (s *Server) handleValidateSession(w http.ResponseWriter, r *http.Request) {
	key, err := keyBytes(chi.URLParam(r, "key"))
	if err != nil {
		fail(w, r, err)
		return
	}
	valid, err := s.engine.ValidateSession(r.Context(), chi.URLParam(r, "id"), key)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"valid": valid})
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	key, err := keyBytes(chi.URLParam(r, "key"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.engine.RevokeSession(r.Context(), chi.URLParam(r, "id"), key); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keys []string `json:"keys"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	candidates := make([][]byte, 0, len(req.Keys))
	for _, k := range req.Keys {
		key, err := keyBytes(k)
		if err != nil {
			fail(w, r, err)
			return
		}
		candidates = append(candidates, key)
	}

	removed, err := s.engine.CleanupExpiredSessions(r.Context(), chi.URLParam(r, "id"), candidates)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.SweepExpiredSessions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"removed": removed})
}
