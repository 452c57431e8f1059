package rates

import "fintrack/internal/core"

// Pair keys a directed currency conversion in the fallback table.
type Pair struct {
	From core.CurrencyCode
	To   core.CurrencyCode
}

// FallbackTable is the static last-known-good rate set used when the live
// provider is unreachable. It is explicit, versioned configuration rather
// than inline literals so degraded conversions stay auditable.
type FallbackTable struct {
	Version string
	Rates   map[Pair]float64
}

// DefaultFallback returns the shipped last-known-good pairs. Refresh policy:
// bump Version and the literals together whenever the pairs are re-sampled
// from a live table.
func DefaultFallback() FallbackTable {
	return FallbackTable{
		Version: "2024-01",
		Rates: map[Pair]float64{
			{From: "USD", To: "PHP"}: 56.0,
			{From: "EUR", To: "PHP"}: 60.5,
			{From: "PHP", To: "USD"}: 0.018,
		},
	}
}

// Lookup returns the static rate for from→to. Same-currency pairs resolve
// to 1; unknown pairs report ok=false and the caller decides whether to
// degrade to 1:1.
func (f FallbackTable) Lookup(from, to core.CurrencyCode) (float64, bool) {
	if from == to {
		return 1, true
	}
	r, ok := f.Rates[Pair{From: from, To: to}]
	return r, ok
}
