package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type createEntityRequest struct {
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	HomeCurrency string `json:"home_currency"`
	Target       string `json:"target"`
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-User-ID header"})
		return
	}

	var req createEntityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	e, err := s.entities.Create(r.Context(), userID, services.EntityInput{
		Title:        req.Title,
		Kind:         core.EntityKind(req.Kind),
		HomeCurrency: core.CurrencyCode(req.HomeCurrency),
		Target:       req.Target,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntityResponse(e))
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-User-ID header"})
		return
	}

	list, err := s.entities.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]entityResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEntityResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.entities.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntityResponse(e))
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-User-ID header"})
		return
	}

	id := r.PathValue("id")
	if err := s.entities.Delete(r.Context(), id, userID); err != nil {
		writeError(w, r, err)
		return
	}

	s.summaryCache.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

type updateTargetRequest struct {
	Target string `json:"target"`
}

func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-User-ID header"})
		return
	}

	var req updateTargetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	if err := s.entities.UpdateTarget(r.Context(), id, userID, req.Target); err != nil {
		writeError(w, r, err)
		return
	}

	s.summaryCache.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}
