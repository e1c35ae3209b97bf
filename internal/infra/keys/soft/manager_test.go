package soft

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"settlegate/internal/domain"
)

func TestSignAndVerifyPerAlgorithm(t *testing.T) {
	m := NewManager()
	if err := m.ProvisionEpoch("gate-1", 1); err != nil {
		t.Fatalf("provision: %v", err)
	}
	ctx := context.Background()
	payload := make([]byte, 32)
	copy(payload, "settlement-hash-for-testing-0001")

	t.Run("ed25519", func(t *testing.T) {
		ref := domain.KeyRef{SignerID: "gate-1", Alg: domain.AlgEd25519, Epoch: 1}
		sig, err := m.Sign(ctx, ref, payload)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		pub, err := m.PublicKey(ctx, ref)
		if err != nil {
			t.Fatalf("public key: %v", err)
		}
		if !ed25519.Verify(pub, payload, sig) {
			t.Fatal("ed25519 signature did not verify")
		}
	})

	t.Run("secp256k1", func(t *testing.T) {
		ref := domain.KeyRef{SignerID: "gate-1", Alg: domain.AlgSecp256k1, Epoch: 1}
		sig, err := m.Sign(ctx, ref, payload)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		pubBytes, err := m.PublicKey(ctx, ref)
		if err != nil {
			t.Fatalf("public key: %v", err)
		}
		pub, err := secp256k1.ParsePubKey(pubBytes)
		if err != nil {
			t.Fatalf("parse pubkey: %v", err)
		}
		parsed, err := secpecdsa.ParseDERSignature(sig)
		if err != nil {
			t.Fatalf("parse signature: %v", err)
		}
		if !parsed.Verify(payload, pub) {
			t.Fatal("secp256k1 signature did not verify")
		}
	})

	t.Run("ml-dsa-65", func(t *testing.T) {
		ref := domain.KeyRef{SignerID: "gate-1", Alg: domain.AlgMLDSA65, Epoch: 1}
		sig, err := m.Sign(ctx, ref, payload)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		pubBytes, err := m.PublicKey(ctx, ref)
		if err != nil {
			t.Fatalf("public key: %v", err)
		}
		pub, err := mldsaScheme.UnmarshalBinaryPublicKey(pubBytes)
		if err != nil {
			t.Fatalf("parse pubkey: %v", err)
		}
		if !mldsaScheme.Verify(pub, payload, sig, nil) {
			t.Fatal("ml-dsa-65 signature did not verify")
		}
	})
}

func TestEpochsHoldDistinctKeys(t *testing.T) {
	m := NewManager()
	if err := m.ProvisionEpoch("gate-1", 1); err != nil {
		t.Fatalf("provision epoch 1: %v", err)
	}
	if err := m.ProvisionEpoch("gate-1", 2); err != nil {
		t.Fatalf("provision epoch 2: %v", err)
	}
	ctx := context.Background()
	pub1, err := m.PublicKey(ctx, domain.KeyRef{SignerID: "gate-1", Alg: domain.AlgEd25519, Epoch: 1})
	if err != nil {
		t.Fatalf("public key epoch 1: %v", err)
	}
	pub2, err := m.PublicKey(ctx, domain.KeyRef{SignerID: "gate-1", Alg: domain.AlgEd25519, Epoch: 2})
	if err != nil {
		t.Fatalf("public key epoch 2: %v", err)
	}
	if string(pub1) == string(pub2) {
		t.Fatal("epochs share key material")
	}
}

func TestSignUnknownRefFails(t *testing.T) {
	m := NewManager()
	_, err := m.Sign(context.Background(), domain.KeyRef{SignerID: "gate-1", Alg: domain.AlgEd25519, Epoch: 9}, []byte("x"))
	if err == nil {
		t.Fatal("expected error for unprovisioned key")
	}
}

func TestSignHonorsContextCancellation(t *testing.T) {
	m := NewManager()
	if err := m.ProvisionEpoch("gate-1", 1); err != nil {
		t.Fatalf("provision: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Sign(ctx, domain.KeyRef{SignerID: "gate-1", Alg: domain.AlgEd25519, Epoch: 1}, []byte("x"))
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestRotationManagerAppliesDueHints(t *testing.T) {
	m := NewManager()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rm := NewRotationManager(m, func() time.Time { return now })

	hints := []domain.EpochHint{
		{SignerID: "gate-1", TargetEpoch: 2, NotBefore: now.Add(-time.Hour)},
		{SignerID: "gate-2", TargetEpoch: 5, NotBefore: now.Add(time.Hour)},
	}
	applied, err := rm.Apply(context.Background(), hints)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(applied) != 1 || applied[0].SignerID != "gate-1" {
		t.Fatalf("expected only the due hint applied, got %+v", applied)
	}
	if _, err := m.PublicKey(context.Background(), domain.KeyRef{SignerID: "gate-1", Alg: domain.AlgMLDSA65, Epoch: 2}); err != nil {
		t.Fatalf("expected epoch 2 keys provisioned: %v", err)
	}
	if _, err := m.PublicKey(context.Background(), domain.KeyRef{SignerID: "gate-2", Alg: domain.AlgEd25519, Epoch: 5}); err == nil {
		t.Fatal("future hint must not be applied")
	}
}
