package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fintrack/internal/convert"
	"fintrack/internal/core"
	"fintrack/internal/invites"
	"fintrack/internal/ledger"
	"fintrack/internal/rates"
	"fintrack/internal/services"
	"fintrack/internal/store/memory"
)

type stubProvider struct {
	err error
}

func (p stubProvider) Fetch(_ context.Context, base core.CurrencyCode) (rates.Table, error) {
	if p.err != nil {
		return rates.Table{}, p.err
	}
	return rates.Table{
		Base: base,
		AsOf: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Rates: map[core.CurrencyCode]float64{
			base:  1,
			"PHP": 56.0,
			"EUR": 0.92,
		},
	}, nil
}

func newTestServer(t *testing.T, provider rates.Provider) *Server {
	t.Helper()
	st := memory.New()
	cached := rates.NewCached(provider, time.Hour)
	conv := convert.New(cached, rates.DefaultFallback())
	lg := ledger.NewService(st)

	srv := NewServer(":0", Deps{
		Entities:      services.NewEntityService(st, lg),
		Contributions: services.NewContributionService(st, lg, conv, nil),
		Ledger:        lg,
		Invites:       invites.NewService(st, st),
		Rates:         cached,
		InviteTTL:     time.Hour,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Name", "Tester")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func createTestEntity(t *testing.T, srv *Server, owner string) entityResponse {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/entities", owner, map[string]string{
		"title":         "Trip fund",
		"kind":          "goal",
		"home_currency": "PHP",
		"target":        "5000",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create entity status=%d body=%s", rr.Code, rr.Body.String())
	}
	return decode[entityResponse](t, rr)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, stubProvider{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestEntityLifecycle(t *testing.T) {
	srv := newTestServer(t, stubProvider{})

	// Identity header is required for creation.
	rr := doJSON(t, srv, http.MethodPost, "/entities", "", map[string]string{"title": "x"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing identity status=%d", rr.Code)
	}

	e := createTestEntity(t, srv, "owner")
	if e.TargetCents != 500000 || e.HomeCurrency != "PHP" {
		t.Fatalf("unexpected entity %+v", e)
	}

	rr = doJSON(t, srv, http.MethodGet, "/entities/"+e.ID, "owner", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/entities", "owner", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	if list := decode[[]entityResponse](t, rr); len(list) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(list))
	}

	// Non-owner delete is forbidden; owner delete cascades.
	rr = doJSON(t, srv, http.MethodDelete, "/entities/"+e.ID, "intruder", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("intruder delete status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodDelete, "/entities/"+e.ID, "owner", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("owner delete status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/entities/"+e.ID, "owner", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestContributeAndSummary(t *testing.T) {
	srv := newTestServer(t, stubProvider{})
	e := createTestEntity(t, srv, "owner")

	rr := doJSON(t, srv, http.MethodPost, "/entities/"+e.ID+"/contributions", "owner", map[string]string{
		"amount":   "50",
		"currency": "USD",
		"kind":     "credit",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("contribute status=%d body=%s", rr.Code, rr.Body.String())
	}
	ev := decode[eventResponse](t, rr)
	if ev.ConvertedCents != 280000 || ev.ConvertedAmount != "2800.00" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Fallback {
		t.Fatalf("live conversion flagged as fallback")
	}

	rr = doJSON(t, srv, http.MethodGet, "/entities/"+e.ID+"/summary", "owner", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d", rr.Code)
	}
	sum := decode[summaryResponse](t, rr)
	if sum.CreditCents != 280000 || sum.BalanceCents != 280000 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.ProgressPercent != 56 {
		t.Fatalf("progress = %v", sum.ProgressPercent)
	}

	// A further contribution invalidates the cached summary.
	rr = doJSON(t, srv, http.MethodPost, "/entities/"+e.ID+"/contributions", "owner", map[string]string{
		"amount":   "1000",
		"currency": "PHP",
		"kind":     "debit",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("debit status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/entities/"+e.ID+"/summary", "owner", nil)
	sum = decode[summaryResponse](t, rr)
	if sum.DebitCents != 100000 || sum.BalanceCents != 180000 {
		t.Fatalf("stale summary %+v", sum)
	}
}

func TestTransferLeftover(t *testing.T) {
	srv := newTestServer(t, stubProvider{})

	rr := doJSON(t, srv, http.MethodPost, "/entities", "owner", map[string]string{
		"title": "Groceries", "kind": "budget", "home_currency": "PHP", "target": "5000",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create budget status=%d body=%s", rr.Code, rr.Body.String())
	}
	budget := decode[entityResponse](t, rr)
	goal := createTestEntity(t, srv, "owner")

	// Spend part of the allowance, leaving 3000.00 PHP.
	rr = doJSON(t, srv, http.MethodPost, "/entities/"+budget.ID+"/contributions", "owner", map[string]string{
		"amount": "2000", "currency": "PHP", "kind": "debit",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("debit status=%d", rr.Code)
	}
	// Prime the summary cache so the transfer must invalidate it.
	doJSON(t, srv, http.MethodGet, "/entities/"+budget.ID+"/summary", "owner", nil)

	rr = doJSON(t, srv, http.MethodPost, "/entities/"+budget.ID+"/transfer-leftover", "owner",
		map[string]string{"goal_id": goal.ID})
	if rr.Code != http.StatusCreated {
		t.Fatalf("transfer status=%d body=%s", rr.Code, rr.Body.String())
	}
	res := decode[transferResponse](t, rr)
	if res.LeftoverCents != 300000 || res.ConvertedCents != 300000 || res.Rate != 1 {
		t.Fatalf("unexpected transfer %+v", res)
	}

	rr = doJSON(t, srv, http.MethodGet, "/entities/"+budget.ID+"/summary", "owner", nil)
	if sum := decode[summaryResponse](t, rr); sum.BalanceCents != 0 || sum.ProgressPercent != 0 {
		t.Fatalf("budget not drained: %+v", sum)
	}
	rr = doJSON(t, srv, http.MethodGet, "/entities/"+goal.ID+"/summary", "owner", nil)
	if sum := decode[summaryResponse](t, rr); sum.CreditCents != 300000 || sum.ProgressPercent != 60 {
		t.Fatalf("goal not credited: %+v", sum)
	}

	// The drained budget has nothing left to move.
	rr = doJSON(t, srv, http.MethodPost, "/entities/"+budget.ID+"/transfer-leftover", "owner",
		map[string]string{"goal_id": goal.ID})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("second transfer status=%d", rr.Code)
	}
}

func TestTransferLeftoverStatuses(t *testing.T) {
	srv := newTestServer(t, stubProvider{})

	rr := doJSON(t, srv, http.MethodPost, "/entities", "owner", map[string]string{
		"title": "Groceries", "kind": "budget", "home_currency": "PHP", "target": "100",
	})
	budget := decode[entityResponse](t, rr)
	goal := createTestEntity(t, srv, "owner")

	cases := []struct {
		name   string
		userID string
		body   map[string]string
		status int
	}{
		{"missing identity", "", map[string]string{"goal_id": goal.ID}, http.StatusBadRequest},
		{"missing goal_id", "owner", map[string]string{}, http.StatusBadRequest},
		{"non-owner", "someone-else", map[string]string{"goal_id": goal.ID}, http.StatusForbidden},
		{"goal gone", "owner", map[string]string{"goal_id": "missing"}, http.StatusNotFound},
		{"goal is a budget", "owner", map[string]string{"goal_id": budget.ID}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rr := doJSON(t, srv, http.MethodPost, "/entities/"+budget.ID+"/transfer-leftover", tc.userID, tc.body)
		if rr.Code != tc.status {
			t.Fatalf("%s: status=%d want %d body=%s", tc.name, rr.Code, tc.status, rr.Body.String())
		}
	}
}

func TestContributeValidationStatuses(t *testing.T) {
	srv := newTestServer(t, stubProvider{})
	e := createTestEntity(t, srv, "owner")

	cases := []struct {
		name   string
		userID string
		body   map[string]string
		status int
	}{
		{"bad amount", "owner", map[string]string{"amount": "abc", "currency": "USD", "kind": "credit"}, http.StatusBadRequest},
		{"bad currency", "owner", map[string]string{"amount": "1", "currency": "usd", "kind": "credit"}, http.StatusBadRequest},
		{"bad kind", "owner", map[string]string{"amount": "1", "currency": "USD", "kind": "transfer"}, http.StatusBadRequest},
		{"non participant", "outsider", map[string]string{"amount": "1", "currency": "USD", "kind": "credit"}, http.StatusForbidden},
	}
	for _, tc := range cases {
		rr := doJSON(t, srv, http.MethodPost, "/entities/"+e.ID+"/contributions", tc.userID, tc.body)
		if rr.Code != tc.status {
			t.Fatalf("%s: status=%d want %d", tc.name, rr.Code, tc.status)
		}
	}

	rr := doJSON(t, srv, http.MethodPost, "/entities/missing/contributions", "owner", map[string]string{
		"amount": "1", "currency": "USD", "kind": "credit",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing entity status=%d", rr.Code)
	}
}

func TestListContributions(t *testing.T) {
	srv := newTestServer(t, stubProvider{})
	e := createTestEntity(t, srv, "owner")

	for i := 0; i < 3; i++ {
		rr := doJSON(t, srv, http.MethodPost, "/entities/"+e.ID+"/contributions", "owner", map[string]string{
			"amount": "100", "currency": "PHP", "kind": "credit",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("contribute %d: status=%d", i, rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/entities/"+e.ID+"/contributions?limit=2", "owner", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	if events := decode[[]eventResponse](t, rr); len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	rr = doJSON(t, srv, http.MethodGet, "/entities/"+e.ID+"/contributions?limit=abc", "owner", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status=%d", rr.Code)
	}
}

func TestBreakdown(t *testing.T) {
	srv := newTestServer(t, stubProvider{})
	e := createTestEntity(t, srv, "owner")

	rr := doJSON(t, srv, http.MethodPost, "/entities/"+e.ID+"/contributions", "owner", map[string]string{
		"amount": "100", "currency": "PHP", "kind": "credit",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("contribute status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/entities/"+e.ID+"/breakdown", "owner", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("breakdown status=%d body=%s", rr.Code, rr.Body.String())
	}
	split := decode[[]actorTotalsResponse](t, rr)
	if len(split) != 1 || split[0].ActorID != "owner" || split[0].CreditCents != 10000 {
		t.Fatalf("unexpected breakdown %+v", split)
	}

	rr = doJSON(t, srv, http.MethodGet, "/entities/missing/breakdown", "owner", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing entity status=%d", rr.Code)
	}
}

func TestInvitationFlow(t *testing.T) {
	srv := newTestServer(t, stubProvider{})
	e := createTestEntity(t, srv, "owner")

	// Only the owner issues codes.
	rr := doJSON(t, srv, http.MethodPost, "/invitations", "intruder", map[string]string{"entity_id": e.ID})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("intruder invite status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/invitations", "owner", map[string]string{"entity_id": e.ID})
	if rr.Code != http.StatusCreated {
		t.Fatalf("invite status=%d body=%s", rr.Code, rr.Body.String())
	}
	inv := decode[invitationResponse](t, rr)
	if len(inv.Code) != 6 {
		t.Fatalf("code = %q", inv.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/invitations/join", "friend", map[string]string{"code": inv.Code})
	if rr.Code != http.StatusOK {
		t.Fatalf("join status=%d body=%s", rr.Code, rr.Body.String())
	}
	joined := decode[entityResponse](t, rr)
	if joined.ID != e.ID {
		t.Fatalf("joined wrong entity %+v", joined)
	}

	rr = doJSON(t, srv, http.MethodPost, "/invitations/join", "friend", map[string]string{"code": "WRONG!"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad code status=%d", rr.Code)
	}

	// The new participant can contribute now.
	rr = doJSON(t, srv, http.MethodPost, "/entities/"+e.ID+"/contributions", "friend", map[string]string{
		"amount": "100", "currency": "PHP", "kind": "credit",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("friend contribute status=%d", rr.Code)
	}
}

func TestRatesEndpoint(t *testing.T) {
	srv := newTestServer(t, stubProvider{})

	rr := doJSON(t, srv, http.MethodGet, "/rates", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("rates status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decode[ratesResponse](t, rr)
	if resp.Base != "USD" || resp.Rates["PHP"] != 56.0 {
		t.Fatalf("unexpected rates %+v", resp)
	}

	rr = doJSON(t, srv, http.MethodGet, "/rates?base=bad", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad base status=%d", rr.Code)
	}
}

func TestRatesEndpointProviderDown(t *testing.T) {
	srv := newTestServer(t, stubProvider{err: rates.ErrNetwork})

	rr := doJSON(t, srv, http.MethodGet, "/rates", "", nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("provider-down status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, stubProvider{})
	rr := doJSON(t, srv, http.MethodGet, "/rates", "", nil)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing frame options header")
	}
}
