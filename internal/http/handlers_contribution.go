package http

import (
	"net/http"
	"sort"
	"strconv"

	"fintrack/internal/core"
	"fintrack/internal/present"
	"fintrack/internal/services"
)

type contributeRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Kind     string `json:"kind"`
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	userID, userName, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-User-ID header"})
		return
	}

	var req contributeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	ev, err := s.contributions.Contribute(r.Context(), id, userID, userName, services.ContributionInput{
		Amount:   req.Amount,
		Currency: core.CurrencyCode(req.Currency),
		Kind:     core.EventKind(req.Kind),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.summaryCache.Delete(id)
	writeJSON(w, http.StatusCreated, toEventResponse(ev))
}

type transferRequest struct {
	GoalID string `json:"goal_id"`
}

type transferResponse struct {
	LeftoverCents  int64   `json:"leftover_cents"`
	ConvertedCents int64   `json:"converted_cents"`
	Rate           float64 `json:"rate"`
	Fallback       bool    `json:"fallback"`
}

// handleTransferLeftover drains a budget's remaining allowance into a goal.
func (s *Server) handleTransferLeftover(w http.ResponseWriter, r *http.Request) {
	userID, userName, ok := identity(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing X-User-ID header"})
		return
	}

	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GoalID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing goal_id"})
		return
	}

	id := r.PathValue("id")
	res, err := s.contributions.TransferLeftover(r.Context(), id, req.GoalID, userID, userName)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.summaryCache.Delete(id)
	s.summaryCache.Delete(req.GoalID)
	writeJSON(w, http.StatusCreated, transferResponse{
		LeftoverCents:  res.LeftoverCents,
		ConvertedCents: res.ConvertedCents,
		Rate:           res.Rate,
		Fallback:       res.Fallback,
	})
}

func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// limit <= 0 (or absent) returns the full ledger, the "view all" case.
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	events, err := s.ledger.RecentEvents(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResponse(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

type actorTotalsResponse struct {
	ActorID     string `json:"actor_id"`
	CreditCents int64  `json:"credit_cents"`
	DebitCents  int64  `json:"debit_cents"`
	NetCents    int64  `json:"net_cents"`
}

// handleBreakdown serves the per-participant contribution split of a shared
// entity.
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.entities.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	byActor, err := s.ledger.TotalsByActor(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]actorTotalsResponse, 0, len(byActor))
	for actorID, t := range byActor {
		out = append(out, actorTotalsResponse{
			ActorID:     actorID,
			CreditCents: t.CreditCents,
			DebitCents:  t.DebitCents,
			NetCents:    t.NetCents(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if cached, ok := s.summaryCache.Get(id); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	e, err := s.entities.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	totals, err := s.ledger.TotalsByKind(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := toSummaryResponse(id, present.Build(e, totals))
	s.summaryCache.Set(id, resp)
	writeJSON(w, http.StatusOK, resp)
}
