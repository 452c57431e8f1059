package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/store"
	"fintrack/internal/store/memory"
)

func seedEntity(t *testing.T, s *memory.Store, id, owner string) {
	t.Helper()
	err := s.CreateEntity(context.Background(), core.Entity{
		ID:           id,
		Title:        "Trip fund",
		Kind:         core.Goal,
		HomeCurrency: "PHP",
		OwnerID:      owner,
		Participants: []string{owner},
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed entity: %v", err)
	}
}

func validEvent(id string, kind core.EventKind, cents int64) core.ContributionEvent {
	return core.ContributionEvent{
		ID:               id,
		ActorID:          "u1",
		Kind:             kind,
		Original:         core.Money{Cents: cents},
		OriginalCurrency: "PHP",
		ConvertedCents:   cents,
		Rate:             1,
		OccurredAt:       time.Now().UTC(),
	}
}

func TestAppendAndTotals(t *testing.T) {
	st := memory.New()
	seedEntity(t, st, "e1", "u1")
	svc := NewService(st)
	ctx := context.Background()

	if err := svc.Append(ctx, "e1", validEvent("ev1", core.Credit, 280000)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := svc.Append(ctx, "e1", validEvent("ev2", core.Debit, 30000)); err != nil {
		t.Fatalf("append: %v", err)
	}

	totals, err := svc.TotalsByKind(ctx, "e1")
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.CreditCents != 280000 || totals.DebitCents != 30000 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestAppendRejectsInvalidEvent(t *testing.T) {
	st := memory.New()
	seedEntity(t, st, "e1", "u1")
	svc := NewService(st)

	bad := validEvent("ev1", core.Credit, 100)
	bad.ActorID = ""
	if err := svc.Append(context.Background(), "e1", bad); !errors.Is(err, core.ErrEmptyActor) {
		t.Fatalf("expected ErrEmptyActor, got %v", err)
	}

	// Nothing was persisted.
	totals, _ := svc.TotalsByKind(context.Background(), "e1")
	if totals.CreditCents != 0 {
		t.Fatalf("invalid event leaked into totals: %+v", totals)
	}
}

func TestRecentEvents(t *testing.T) {
	st := memory.New()
	seedEntity(t, st, "e1", "u1")
	svc := NewService(st)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := svc.Append(ctx, "e1", validEvent(id, core.Credit, 100)); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	events, err := svc.RecentEvents(ctx, "e1", 2)
	if err != nil || len(events) != 2 {
		t.Fatalf("recent: events=%d err=%v", len(events), err)
	}
	all, err := svc.RecentEvents(ctx, "e1", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("recent all: events=%d err=%v", len(all), err)
	}
}

func TestTotalsByActor(t *testing.T) {
	st := memory.New()
	seedEntity(t, st, "e1", "u1")
	svc := NewService(st)
	ctx := context.Background()

	evs := []struct {
		actor string
		kind  core.EventKind
		cents int64
	}{
		{"u1", core.Credit, 300},
		{"u1", core.Debit, 100},
		{"u2", core.Credit, 500},
	}
	for i, e := range evs {
		ev := validEvent(fmt.Sprintf("ev%d", i), e.kind, e.cents)
		ev.ActorID = e.actor
		if err := svc.Append(ctx, "e1", ev); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	byActor, err := svc.TotalsByActor(ctx, "e1")
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if got := byActor["u1"]; got.CreditCents != 300 || got.DebitCents != 100 {
		t.Fatalf("u1 totals %+v", got)
	}
	if got := byActor["u2"]; got.CreditCents != 500 || got.DebitCents != 0 {
		t.Fatalf("u2 totals %+v", got)
	}
}

func TestRemoveOwnerOnly(t *testing.T) {
	st := memory.New()
	seedEntity(t, st, "e1", "u1")
	svc := NewService(st)
	ctx := context.Background()

	if err := svc.Remove(ctx, "e1", "u2"); !errors.Is(err, core.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := svc.Remove(ctx, "e1", "u1"); err != nil {
		t.Fatalf("owner remove: %v", err)
	}
	if _, err := svc.TotalsByKind(ctx, "e1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if err := svc.Remove(ctx, "missing", "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
