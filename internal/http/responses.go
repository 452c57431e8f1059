package http

import (
	"time"

	"fintrack/internal/core"
	"fintrack/internal/present"
)

type entityResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Kind         string    `json:"kind"`
	HomeCurrency string    `json:"home_currency"`
	TargetCents  int64     `json:"target_cents"`
	Target       string    `json:"target"`
	OwnerID      string    `json:"owner_id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

type eventResponse struct {
	ID               string    `json:"id"`
	ActorID          string    `json:"actor_id"`
	ActorName        string    `json:"actor_name,omitempty"`
	Kind             string    `json:"kind"`
	OriginalAmount   string    `json:"original_amount"`
	OriginalCurrency string    `json:"original_currency"`
	ConvertedCents   int64     `json:"converted_cents"`
	ConvertedAmount  string    `json:"converted_amount"`
	Rate             float64   `json:"rate"`
	RateDisplay      string    `json:"rate_display"`
	Fallback         bool      `json:"fallback"`
	OccurredAt       time.Time `json:"occurred_at"`
}

type summaryResponse struct {
	EntityID        string  `json:"entity_id"`
	CreditCents     int64   `json:"credit_cents"`
	DebitCents      int64   `json:"debit_cents"`
	BalanceCents    int64   `json:"balance_cents"`
	Balance         string  `json:"balance"`
	RemainingCents  int64   `json:"remaining_cents"`
	Remaining       string  `json:"remaining"`
	ProgressPercent float64 `json:"progress_percent"`
}

type ratesResponse struct {
	Base  string             `json:"base"`
	AsOf  time.Time          `json:"as_of"`
	Rates map[string]float64 `json:"rates"`
}

func toEntityResponse(e core.Entity) entityResponse {
	return entityResponse{
		ID:           e.ID,
		Title:        e.Title,
		Kind:         string(e.Kind),
		HomeCurrency: string(e.HomeCurrency),
		TargetCents:  e.TargetCents,
		Target:       core.Money{Cents: e.TargetCents}.String(),
		OwnerID:      e.OwnerID,
		Participants: e.Participants,
		CreatedAt:    e.CreatedAt,
	}
}

func toEventResponse(ev core.ContributionEvent) eventResponse {
	return eventResponse{
		ID:               ev.ID,
		ActorID:          ev.ActorID,
		ActorName:        ev.ActorName,
		Kind:             string(ev.Kind),
		OriginalAmount:   ev.Original.String(),
		OriginalCurrency: string(ev.OriginalCurrency),
		ConvertedCents:   ev.ConvertedCents,
		ConvertedAmount:  core.Money{Cents: ev.ConvertedCents}.String(),
		Rate:             ev.Rate,
		RateDisplay:      core.FormatRate(ev.Rate),
		Fallback:         ev.Fallback,
		OccurredAt:       ev.OccurredAt,
	}
}

func toSummaryResponse(entityID string, s present.Summary) summaryResponse {
	return summaryResponse{
		EntityID:        entityID,
		CreditCents:     s.CreditCents,
		DebitCents:      s.DebitCents,
		BalanceCents:    s.BalanceCents,
		Balance:         core.Money{Cents: s.BalanceCents}.String(),
		RemainingCents:  s.RemainingCents,
		Remaining:       core.Money{Cents: s.RemainingCents}.String(),
		ProgressPercent: s.ProgressPercent,
	}
}
