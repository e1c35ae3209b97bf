package attest

import (
	"context"
	"errors"
	"testing"
	"time"

	"settlegate/internal/domain"
	gatecrypto "settlegate/internal/infra/crypto"
	"settlegate/internal/infra/keys/soft"
)

func newTestRegistry(t *testing.T) (*Registry, *soft.Manager) {
	t.Helper()
	keys := soft.NewManager()
	if err := keys.ProvisionEpoch("gate-1", 7); err != nil {
		t.Fatalf("provision keys: %v", err)
	}
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return NewRegistry("gate-1", keys, clock), keys
}

func TestSelectUnsupportedPolicy(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Select("hybrid-rsa-sphincs")
	if !errors.Is(err, domain.ErrUnsupportedPolicy) {
		t.Fatalf("expected ErrUnsupportedPolicy, got %v", err)
	}
}

func TestHybridEd25519AttestationShape(t *testing.T) {
	reg, keys := newTestRegistry(t)
	attestor, err := reg.Select(domain.PolicyHybridEd25519)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	canonical := []byte(`{"amount_value":"100","id":"env-1"}`)
	att, err := attestor.Attest(context.Background(), "env-1", canonical, 7)
	if err != nil {
		t.Fatalf("attest: %v", err)
	}
	if att.ClassicalSig == nil || att.ClassicalSig.Alg != domain.AlgEd25519 {
		t.Fatalf("expected ed25519 classical signature, got %+v", att.ClassicalSig)
	}
	if att.PQSig == nil || att.PQSig.Alg != domain.AlgMLDSA65 {
		t.Fatalf("expected ml-dsa-65 signature, got %+v", att.PQSig)
	}
	if err := ValidateShape(att); err != nil {
		t.Fatalf("shape validation failed: %v", err)
	}
	if err := Verify(context.Background(), att, canonical, keys, "gate-1"); err != nil {
		t.Fatalf("verify fresh attestation: %v", err)
	}
}

func TestPolicyFieldPresence(t *testing.T) {
	reg, _ := newTestRegistry(t)
	canonical := []byte(`{"id":"env-2"}`)

	cases := []struct {
		policy        domain.CryptoPolicyID
		wantClassical bool
		wantPQ        bool
	}{
		{domain.PolicyClassicalOnly, true, false},
		{domain.PolicyHybridEd25519, true, true},
		{domain.PolicyHybridSecp256k1, true, true},
		{domain.PolicyPQCOnly, false, true},
	}
	for _, tc := range cases {
		attestor, err := reg.Select(tc.policy)
		if err != nil {
			t.Fatalf("select %s: %v", tc.policy, err)
		}
		att, err := attestor.Attest(context.Background(), "env-2", canonical, 7)
		if err != nil {
			t.Fatalf("attest %s: %v", tc.policy, err)
		}
		if got := att.ClassicalSig != nil; got != tc.wantClassical {
			t.Errorf("%s: classical signature presence = %v, want %v", tc.policy, got, tc.wantClassical)
		}
		if got := att.PQSig != nil; got != tc.wantPQ {
			t.Errorf("%s: post-quantum signature presence = %v, want %v", tc.policy, got, tc.wantPQ)
		}
	}
}

func TestVerifyFailsWhenHybridFieldMissing(t *testing.T) {
	reg, keys := newTestRegistry(t)
	attestor, err := reg.Select(domain.PolicyHybridEd25519)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	canonical := []byte(`{"id":"env-3"}`)
	att, err := attestor.Attest(context.Background(), "env-3", canonical, 7)
	if err != nil {
		t.Fatalf("attest: %v", err)
	}

	noPQ := att
	noPQ.PQSig = nil
	if err := Verify(context.Background(), noPQ, canonical, keys, "gate-1"); err == nil {
		t.Fatal("verify must fail with missing post-quantum signature")
	}

	noClassical := att
	noClassical.ClassicalSig = nil
	if err := Verify(context.Background(), noClassical, canonical, keys, "gate-1"); err == nil {
		t.Fatal("verify must fail with missing classical signature")
	}
}

func TestVerifyFailsOnTamperedCanonicalBytes(t *testing.T) {
	reg, keys := newTestRegistry(t)
	attestor, err := reg.Select(domain.PolicyPQCOnly)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	canonical := []byte(`{"amount_value":"100","id":"env-4"}`)
	att, err := attestor.Attest(context.Background(), "env-4", canonical, 7)
	if err != nil {
		t.Fatalf("attest: %v", err)
	}
	tampered := []byte(`{"amount_value":"999","id":"env-4"}`)
	if err := Verify(context.Background(), att, tampered, keys, "gate-1"); err == nil {
		t.Fatal("verify must fail on tampered canonical bytes")
	}
}

func TestAttestHashMatchesCanonicalHash(t *testing.T) {
	reg, _ := newTestRegistry(t)
	attestor, err := reg.Select(domain.PolicyClassicalOnly)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	canonical := []byte(`{"id":"env-5"}`)
	att, err := attestor.Attest(context.Background(), "env-5", canonical, 7)
	if err != nil {
		t.Fatalf("attest: %v", err)
	}
	want := gatecrypto.HashCanonical(canonical)
	if string(att.EnvelopeHash) != string(want) {
		t.Fatal("attestation hash does not match canonical hash")
	}
	if att.HashAlg != domain.HashAlgSHA256V1 {
		t.Fatalf("unexpected hash alg %q", att.HashAlg)
	}
}

func TestAttestTimeoutIsFailure(t *testing.T) {
	reg, _ := newTestRegistry(t)
	attestor, err := reg.Select(domain.PolicyHybridEd25519)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	if _, err := attestor.Attest(ctx, "env-6", []byte(`{"id":"env-6"}`), 7); err == nil {
		t.Fatal("expected attestation failure on expired context")
	}
}
