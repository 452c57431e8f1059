package http

import (
	"net/http"
	"time"
)

type createInvitationRequest struct {
	EntityID string `json:"entity_id"`
}

type invitationResponse struct {
	Code      string    `json:"code"`
	EntityID  string    `json:"entity_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-User-ID header"})
		return
	}

	var req createInvitationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EntityID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing entity_id"})
		return
	}

	inv, err := s.invites.Create(r.Context(), req.EntityID, userID, s.inviteTTL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, invitationResponse{
		Code:      inv.Code,
		EntityID:  inv.EntityID,
		ExpiresAt: inv.ExpiresAt,
	})
}

type joinRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-User-ID header"})
		return
	}

	var req joinRequest
	if !decodeBody(w, r, &req) {
		return
	}

	e, err := s.invites.Join(r.Context(), req.Code, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntityResponse(e))
}
