package core

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

const (
	Credit EventKind = "credit"
	Debit  EventKind = "debit"

	Budget EntityKind = "budget"
	Goal   EntityKind = "goal"
)

type (
	// EventKind is the sign of a contribution event. Magnitudes are always
	// non-negative; the kind carries the sign.
	EventKind string

	// EntityKind distinguishes spending allowances (budgets) from savings
	// accumulations (goals). The two have different balance semantics, see
	// the present package.
	EntityKind string

	// CurrencyCode is an ISO 4217 alphabetic code, e.g. "PHP".
	CurrencyCode string

	// ContributionEvent is one append-only ledger entry. Once stored it is
	// never edited; only the owning entity can be deleted as a whole.
	ContributionEvent struct {
		ID               string
		ActorID          string
		ActorName        string
		Kind             EventKind
		Original         Money
		OriginalCurrency CurrencyCode
		ConvertedCents   int64 // in the owning entity's home currency
		Rate             float64
		Fallback         bool // conversion used the degraded fallback path
		OccurredAt       time.Time
	}

	// Totals are the aggregate credit/debit sums of one entity's ledger,
	// denominated in its home currency.
	Totals struct {
		CreditCents int64
		DebitCents  int64
	}

	// ReconcileResult records one fold-and-repair pass over an entity's
	// ledger: the cached counters as found, the fold over the events, and
	// whether the counters had to be rewritten.
	ReconcileResult struct {
		Cached   Totals
		Fold     Totals
		Repaired bool
	}

	// Entity is a budget or goal, personal or shared. HomeCurrency is fixed
	// at creation: changing it would silently mislabel every historical
	// ConvertedCents value.
	Entity struct {
		ID           string
		Title        string
		Kind         EntityKind
		HomeCurrency CurrencyCode
		TargetCents  int64
		OwnerID      string
		Participants []string
		CreditCents  int64
		DebitCents   int64
		Events       []ContributionEvent
		CreatedAt    time.Time
	}

	// Invitation grants membership in a shared entity to whoever redeems the
	// code before it expires.
	Invitation struct {
		ID        string
		Code      string
		EntityID  string
		CreatedBy string
		ExpiresAt time.Time
		CreatedAt time.Time
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidKind     = errors.New("invalid kind")
	ErrInvalidRate     = errors.New("rate must be positive")
	ErrEmptyTitle      = errors.New("empty title")
	ErrEmptyActor      = errors.New("empty actor id")
	ErrNegativeTarget  = errors.New("target amount cannot be negative")
	ErrCurrencyLocked  = errors.New("home currency cannot change after creation")
	ErrNotOwner        = errors.New("only the owner may perform this action")
	ErrNotParticipant  = errors.New("actor is not a participant")
	ErrNotBudget       = errors.New("source entity is not a budget")
	ErrNotGoal         = errors.New("destination entity is not a goal")
	ErrNoLeftover      = errors.New("budget has no leftover to transfer")
)

func (c CurrencyCode) Validate() error {
	if len(c) != 3 {
		return ErrInvalidCurrency
	}
	for _, r := range c {
		if !unicode.IsUpper(r) {
			return ErrInvalidCurrency
		}
	}
	return nil
}

func (k EventKind) Validate() error {
	switch k {
	case Credit, Debit:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (k EntityKind) Validate() error {
	switch k {
	case Budget, Goal:
		return nil
	default:
		return ErrInvalidKind
	}
}

func (e ContributionEvent) Validate() error {
	if strings.TrimSpace(e.ActorID) == "" {
		return ErrEmptyActor
	}
	if err := e.Kind.Validate(); err != nil {
		return err
	}
	if err := e.Original.Validate(); err != nil {
		return err
	}
	if err := e.OriginalCurrency.Validate(); err != nil {
		return err
	}
	if e.ConvertedCents <= 0 {
		return ErrInvalidAmount
	}
	if e.Rate <= 0 {
		return ErrInvalidRate
	}
	if e.OccurredAt.IsZero() {
		return errors.New("occurred-at cannot be zero")
	}
	return nil
}

func (e Entity) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := e.Kind.Validate(); err != nil {
		return err
	}
	if err := e.HomeCurrency.Validate(); err != nil {
		return err
	}
	if e.TargetCents < 0 {
		return ErrNegativeTarget
	}
	if strings.TrimSpace(e.OwnerID) == "" {
		return errors.New("empty owner id")
	}
	return nil
}

// IsOwner reports whether userID may perform administrative actions
// (delete, edit target, invite) on the entity.
func (e Entity) IsOwner(userID string) bool {
	return e.OwnerID == userID
}

func (e Entity) IsParticipant(userID string) bool {
	for _, p := range e.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// NetCents folds the cached totals into the signed credit-minus-debit sum.
func (t Totals) NetCents() int64 {
	return t.CreditCents - t.DebitCents
}

func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
