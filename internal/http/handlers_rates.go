package http

import (
	"net/http"

	"fintrack/internal/convert"
	"fintrack/internal/core"
)

// handleRates serves the rate-widget data: the current table against the
// provider base, refreshable with ?refresh=1.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	base := convert.ProviderBase
	if raw := r.URL.Query().Get("base"); raw != "" {
		base = core.CurrencyCode(raw)
		if err := base.Validate(); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if r.URL.Query().Get("refresh") == "1" {
		s.rates.Refresh(base)
		s.ratesCache.Delete(string(base))
	} else if cached, ok := s.ratesCache.Get(string(base)); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	table, err := s.rates.Fetch(r.Context(), base)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := ratesResponse{
		Base:  string(table.Base),
		AsOf:  table.AsOf,
		Rates: make(map[string]float64, len(table.Rates)),
	}
	for code, rate := range table.Rates {
		resp.Rates[string(code)] = rate
	}

	s.ratesCache.Set(string(base), resp)
	writeJSON(w, http.StatusOK, resp)
}
