package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"referral-ledger/models"
)

func TestMembershipClientGetTier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer svc-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/v1/internal/memberships/vip-user":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"user_id":"vip-user","current_tier":"vip"}`))
		case "/api/v1/internal/memberships/platinum-user":
			w.Write([]byte(`{"user_id":"platinum-user","current_tier":"Platinum"}`))
		case "/api/v1/internal/memberships/blank-user":
			w.Write([]byte(`{"user_id":"blank-user","current_tier":""}`))
		case "/api/v1/internal/memberships/broken":
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewMembershipClient(srv.URL, "svc-token")
	ctx := context.Background()

	tier, err := client.GetTier(ctx, "vip-user")
	if err != nil || tier != TierVIP {
		t.Fatalf("vip-user = %q, %v", tier, err)
	}

	tier, err = client.GetTier(ctx, "nobody")
	if err != nil || tier != DefaultTier {
		t.Fatalf("missing membership = %q, %v", tier, err)
	}

	tier, err = client.GetTier(ctx, "platinum-user")
	if err != nil || tier != MembershipTier("Platinum") {
		t.Fatalf("unknown tier should pass through, got %q, %v", tier, err)
	}

	tier, err = client.GetTier(ctx, "blank-user")
	if err != nil || tier != DefaultTier {
		t.Fatalf("blank tier = %q, %v", tier, err)
	}

	if _, err := client.GetTier(ctx, "broken"); err == nil {
		t.Fatalf("expected error on 500")
	}

	bad := NewMembershipClient(srv.URL, "wrong")
	if _, err := bad.GetTier(ctx, "vip-user"); err == nil {
		t.Fatalf("expected error on 401")
	}
}

func TestUnknownTierFromMembershipServiceEarnsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current_tier":"Platinum"}`))
	}))
	defer srv.Close()

	svc, _ := newCommissionService(t, NewMembershipClient(srv.URL, "svc-token"))
	chainFixture(t, svc.DB)

	res := svc.ProcessCommissions(context.Background(), "D", models.EventTypeSignup, dec("1000"), "evt-platinum")
	if !res.Success || res.CommissionsProcessed != 0 || !res.TotalAmount.IsZero() {
		t.Fatalf("unexpected %+v", res)
	}
	if len(res.Levels) != 3 {
		t.Fatalf("levels=%d want 3", len(res.Levels))
	}
	for _, lr := range res.Levels {
		if lr.Outcome != OutcomeSkipped || lr.Tier != MembershipTier("Platinum") {
			t.Fatalf("level %d = %+v", lr.Level, lr)
		}
	}
	for _, id := range []string{"A", "B", "C"} {
		if got := balanceOf(t, svc.DB, id); !got.IsZero() {
			t.Fatalf("wallet %s credited %s", id, got)
		}
	}
}
