package envelope

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"settlegate/internal/domain"
)

func buildTestEnvelope(t *testing.T) domain.Envelope {
	t.Helper()
	env, err := New().
		ID("env-7").
		Send(decimal.RequireFromString("250.75"), "EUR", "acct:vendor").
		MaxFee(decimal.RequireFromString("0.25")).
		ExpiresAt(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)).
		AllowRoutes(domain.RouteDirect, domain.RouteCorridor).
		Policy(domain.PolicyHybridEd25519, 2).
		Rationale("vendor payout batch 12").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return env
}

func TestBuilderAssignsIDWhenMissing(t *testing.T) {
	env, err := New().
		Send(decimal.NewFromInt(1), "USD", "acct:x").
		ExpiresAt(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)).
		Policy(domain.PolicyClassicalOnly, 1).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if env.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestBuilderRejectsIncompleteEnvelope(t *testing.T) {
	_, err := New().
		Send(decimal.NewFromInt(1), "USD", "acct:x").
		Policy(domain.PolicyClassicalOnly, 1).
		Build()
	if !errors.Is(err, domain.ErrStructural) {
		t.Fatalf("err = %v, want ErrStructural", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	env := buildTestEnvelope(t)

	data, err := Marshal(env)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ID != env.ID || decoded.Destination != env.Destination {
		t.Errorf("decoded = %+v", decoded)
	}
	if !decoded.Amount.Value.Equal(env.Amount.Value) {
		t.Errorf("amount = %s, want %s", decoded.Amount.Value, env.Amount.Value)
	}
	if !decoded.Constraints.Expiry.Equal(env.Constraints.Expiry) {
		t.Errorf("expiry = %v, want %v", decoded.Constraints.Expiry, env.Constraints.Expiry)
	}
	if len(decoded.AllowedRouteTypes) != 2 {
		t.Errorf("route types = %v", decoded.AllowedRouteTypes)
	}
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	if _, err := Unmarshal([]byte(`{"action":"send"`)); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := Unmarshal([]byte(`{"action":"send","amount_value":"abc","amount_currency":"USD","destination":"d","expiry":"2026-03-10T00:00:00Z","crypto_policy_id":"classical-only"}`)); !errors.Is(err, domain.ErrStructural) {
		t.Fatalf("err = %v, want ErrStructural", err)
	}
}

func TestCanonicalMatchesHash(t *testing.T) {
	env := buildTestEnvelope(t)

	canonical, err := Canonical(env)
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	again, err := Canonical(env)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(canonical, again) {
		t.Fatal("canonical bytes must be stable")
	}
	hash, err := Hash(env)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if len(hash) != 32 {
		t.Fatalf("hash length = %d, want 32", len(hash))
	}
}
