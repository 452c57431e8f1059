// Package present derives display-ready aggregates from ledger state. Pure
// computation, safe to run on every render.
package present

import "fintrack/internal/core"

// Summary is what the UI binds to for one entity.
type Summary struct {
	CreditCents     int64
	DebitCents      int64
	BalanceCents    int64
	RemainingCents  int64
	ProgressPercent float64
}

// Build computes the summary for an entity given its ledger totals.
//
// The balance asymmetry is deliberate and must stay: a budget's target is a
// starting allowance (balance = target + credits − debits), a goal's target
// is a pure ceiling (balance = credits − debits). Progress is clamped to
// [0, 100] and remaining floors at zero.
func Build(e core.Entity, t core.Totals) Summary {
	balance := t.NetCents()
	if e.Kind == core.Budget {
		balance += e.TargetCents
	}

	remaining := e.TargetCents - balance
	if remaining < 0 {
		remaining = 0
	}

	var progress float64
	if e.TargetCents > 0 {
		// Multiply before dividing: cents-times-100 stays an exact integer
		// in a float64, so round ratios come out exact (56, not 56.000…01).
		progress = float64(balance) * 100 / float64(e.TargetCents)
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
	}

	return Summary{
		CreditCents:     t.CreditCents,
		DebitCents:      t.DebitCents,
		BalanceCents:    balance,
		RemainingCents:  remaining,
		ProgressPercent: progress,
	}
}
