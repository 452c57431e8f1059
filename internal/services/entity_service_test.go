package services

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/store"
	"fintrack/internal/store/memory"
)

func newEntityFixture() (*EntityService, *memory.Store) {
	st := memory.New()
	return NewEntityService(st, ledger.NewService(st)), st
}

func TestCreateEntity(t *testing.T) {
	svc, _ := newEntityFixture()

	e, err := svc.Create(context.Background(), "u1", EntityInput{
		Title:        "Trip fund",
		Kind:         core.Goal,
		HomeCurrency: "PHP",
		Target:       "5000",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if e.ID == "" {
		t.Fatalf("missing id")
	}
	if e.TargetCents != 500000 {
		t.Fatalf("target = %d", e.TargetCents)
	}
	if e.OwnerID != "u1" || len(e.Participants) != 1 || e.Participants[0] != "u1" {
		t.Fatalf("owner not sole participant: %+v", e)
	}
}

func TestCreateEntityNoTarget(t *testing.T) {
	svc, _ := newEntityFixture()

	for _, target := range []string{"", "0"} {
		e, err := svc.Create(context.Background(), "u1", EntityInput{
			Title:        "Open-ended savings",
			Kind:         core.Goal,
			HomeCurrency: "PHP",
			Target:       target,
		})
		if err != nil {
			t.Fatalf("target %q: %v", target, err)
		}
		if e.TargetCents != 0 {
			t.Fatalf("target %q: cents = %d", target, e.TargetCents)
		}
	}
}

func TestCreateEntityValidation(t *testing.T) {
	svc, _ := newEntityFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		in   EntityInput
	}{
		{"empty title", EntityInput{Title: "", Kind: core.Goal, HomeCurrency: "PHP"}},
		{"bad kind", EntityInput{Title: "t", Kind: "wallet", HomeCurrency: "PHP"}},
		{"bad currency", EntityInput{Title: "t", Kind: core.Goal, HomeCurrency: "php"}},
		{"bad target", EntityInput{Title: "t", Kind: core.Goal, HomeCurrency: "PHP", Target: "-5"}},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, "u1", tc.in); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestUpdateTargetOwnerOnly(t *testing.T) {
	svc, st := newEntityFixture()
	ctx := context.Background()

	e, err := svc.Create(ctx, "u1", EntityInput{Title: "t", Kind: core.Budget, HomeCurrency: "PHP", Target: "100"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.UpdateTarget(ctx, e.ID, "u2", "200"); !errors.Is(err, core.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := svc.UpdateTarget(ctx, e.ID, "u1", "200"); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	fresh, _ := st.GetEntity(ctx, e.ID)
	if fresh.TargetCents != 20000 {
		t.Fatalf("target = %d", fresh.TargetCents)
	}
}

func TestDeleteDelegatesOwnerCheck(t *testing.T) {
	svc, _ := newEntityFixture()
	ctx := context.Background()

	e, err := svc.Create(ctx, "u1", EntityInput{Title: "t", Kind: core.Goal, HomeCurrency: "PHP"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(ctx, e.ID, "u2"); !errors.Is(err, core.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := svc.Delete(ctx, e.ID, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, e.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListForUser(t *testing.T) {
	svc, _ := newEntityFixture()
	ctx := context.Background()

	if _, err := svc.Create(ctx, "u1", EntityInput{Title: "a", Kind: core.Goal, HomeCurrency: "PHP"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, "u2", EntityInput{Title: "b", Kind: core.Goal, HomeCurrency: "PHP"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, err := svc.ListForUser(ctx, "u1")
	if err != nil || len(mine) != 1 || mine[0].Title != "a" {
		t.Fatalf("list: entities=%v err=%v", mine, err)
	}
}
