// Package rates fetches exchange-rate tables from the public conversion API
// and provides the static fallback used when the live source is unreachable.
package rates

import (
	"time"

	"fintrack/internal/core"
)

// Table is a snapshot of exchange rates relative to Base. Tables live in
// memory only; they are re-fetched after the cache TTL or on explicit
// refresh, never persisted.
type Table struct {
	Base  core.CurrencyCode
	AsOf  time.Time
	Rates map[core.CurrencyCode]float64
}

// Rate returns the rate for code relative to Base. The base itself always
// resolves to 1.
func (t Table) Rate(code core.CurrencyCode) (float64, bool) {
	if code == t.Base {
		return 1, true
	}
	r, ok := t.Rates[code]
	if !ok || r <= 0 {
		return 0, false
	}
	return r, true
}
