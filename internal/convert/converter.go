// Package convert implements the conversion engine: amount + source currency
// + target currency in, converted cents + effective rate out. Cross-rates go
// through the provider's fixed base currency.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/rates"
)

// ProviderBase is the only base the free conversion API serves. Every other
// pair is derived from one table fetched against this base.
const ProviderBase core.CurrencyCode = "USD"

// ErrRateUnavailable means the fetched table has no entry for one side of
// the requested pair.
var ErrRateUnavailable = errors.New("rate unavailable for currency pair")

// Result is a completed conversion. Fallback marks conversions that used the
// static table or the 1:1 degradation instead of a live rate; such events
// are flagged all the way into the ledger.
type Result struct {
	Cents    int64
	Rate     float64
	Fallback bool
}

type Converter struct {
	provider rates.Provider
	fallback rates.FallbackTable
	base     core.CurrencyCode
}

func New(provider rates.Provider, fallback rates.FallbackTable) *Converter {
	return &Converter{
		provider: provider,
		fallback: fallback,
		base:     ProviderBase,
	}
}

// Convert turns cents in `from` into cents in `to` using a live rate table.
//
// Same-currency conversions short-circuit to rate 1 without touching the
// provider: exact equality, no needless failure surface. Otherwise the rate
// is read directly when one side is the provider base, or derived as the
// cross-rate rates[to]/rates[from] (from→base→to) when neither side is.
func (c *Converter) Convert(ctx context.Context, cents int64, from, to core.CurrencyCode) (Result, error) {
	if from == to {
		return Result{Cents: cents, Rate: 1}, nil
	}

	table, err := c.provider.Fetch(ctx, c.base)
	if err != nil {
		return Result{}, err
	}

	rate, err := c.rateFromTable(table, from, to)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Cents: core.RoundCents(float64(cents) * rate),
		Rate:  rate,
	}, nil
}

func (c *Converter) rateFromTable(table rates.Table, from, to core.CurrencyCode) (float64, error) {
	switch {
	case from == c.base:
		r, ok := table.Rate(to)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, to)
		}
		return r, nil
	case to == c.base:
		r, ok := table.Rate(from)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, from)
		}
		return 1 / r, nil
	default:
		rFrom, okFrom := table.Rate(from)
		rTo, okTo := table.Rate(to)
		if !okFrom {
			return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, from)
		}
		if !okTo {
			return 0, fmt.Errorf("%w: %s", ErrRateUnavailable, to)
		}
		return rTo / rFrom, nil
	}
}

// ConvertWithFallback applies the caller policy for degraded conversions:
// when the live path fails it retries once against the static fallback
// table, and when even that has no entry it degrades to an explicit 1:1
// rate. The result is flagged so the financial record stays auditable;
// conversion never blocks the underlying action.
func (c *Converter) ConvertWithFallback(ctx context.Context, cents int64, from, to core.CurrencyCode) Result {
	res, err := c.Convert(ctx, cents, from, to)
	if err == nil {
		return res
	}

	rate, ok := c.fallback.Lookup(from, to)
	if !ok {
		rate = 1
	}

	slog.WarnContext(ctx, "Conversion degraded to fallback rate",
		"from", from,
		"to", to,
		"rate", rate,
		"pair_in_table", ok,
		"fallback_version", c.fallback.Version,
		"error", err)

	return Result{
		Cents:    core.RoundCents(float64(cents) * rate),
		Rate:     rate,
		Fallback: true,
	}
}
