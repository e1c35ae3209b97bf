package attest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"settlegate/internal/domain"
	gatecrypto "settlegate/internal/infra/crypto"
)

// suiteSpec binds one crypto policy to its signing procedure. The table is
// closed: policies are enumerated at compile time and bound at registry
// construction, with no runtime registration.
type suiteSpec struct {
	id           string
	policy       domain.CryptoPolicyID
	classicalAlg string
	pqAlg        string
}

var suiteTable = []suiteSpec{
	{id: "ed25519-v1", policy: domain.PolicyClassicalOnly, classicalAlg: domain.AlgEd25519},
	{id: "hybrid-ed25519-mldsa65-v1", policy: domain.PolicyHybridEd25519, classicalAlg: domain.AlgEd25519, pqAlg: domain.AlgMLDSA65},
	{id: "hybrid-secp256k1-mldsa65-v1", policy: domain.PolicyHybridSecp256k1, classicalAlg: domain.AlgSecp256k1, pqAlg: domain.AlgMLDSA65},
	{id: "mldsa65-v1", policy: domain.PolicyPQCOnly, pqAlg: domain.AlgMLDSA65},
}

// Attestor produces exactly one Attestation over canonical envelope bytes.
// Attest may block on key custody; it honors ctx deadlines, and a deadline
// hit is a failure the caller must not retry implicitly.
type Attestor interface {
	SuiteID() string
	Attest(ctx context.Context, envelopeID string, canonical []byte, keyEpoch uint64) (domain.Attestation, error)
}

type Registry struct {
	attestors map[domain.CryptoPolicyID]*suiteAttestor
}

func NewRegistry(signerID string, keys domain.KeyManager, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	attestors := make(map[domain.CryptoPolicyID]*suiteAttestor, len(suiteTable))
	for _, spec := range suiteTable {
		attestors[spec.policy] = &suiteAttestor{
			spec:     spec,
			signerID: signerID,
			keys:     keys,
			clock:    clock,
		}
	}
	return &Registry{attestors: attestors}
}

// Select resolves the declared crypto policy to its attestor, failing fast on
// anything outside the closed policy set.
func (r *Registry) Select(policy domain.CryptoPolicyID) (Attestor, error) {
	attestor, ok := r.attestors[policy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedPolicy, policy)
	}
	return attestor, nil
}

type suiteAttestor struct {
	spec     suiteSpec
	signerID string
	keys     domain.KeyManager
	clock    func() time.Time
}

func (a *suiteAttestor) SuiteID() string {
	return a.spec.id
}

func (a *suiteAttestor) Attest(ctx context.Context, envelopeID string, canonical []byte, keyEpoch uint64) (domain.Attestation, error) {
	if envelopeID == "" {
		return domain.Attestation{}, fmt.Errorf("%w: envelope id is required", domain.ErrStructural)
	}
	if len(canonical) == 0 {
		return domain.Attestation{}, fmt.Errorf("%w: canonical bytes are required", domain.ErrStructural)
	}
	hash := gatecrypto.HashCanonical(canonical)

	att := domain.Attestation{
		ID:           uuid.NewString(),
		EnvelopeID:   envelopeID,
		EnvelopeHash: hash,
		HashAlg:      domain.HashAlgSHA256V1,
		SuiteID:      a.spec.id,
		PolicyID:     a.spec.policy,
		KeyEpoch:     keyEpoch,
		CreatedAt:    a.clock().UTC(),
	}

	if a.spec.classicalAlg != "" {
		sig, err := a.sign(ctx, a.spec.classicalAlg, keyEpoch, hash)
		if err != nil {
			return domain.Attestation{}, fmt.Errorf("classical signature: %w", err)
		}
		att.ClassicalSig = sig
	}
	if a.spec.pqAlg != "" {
		sig, err := a.sign(ctx, a.spec.pqAlg, keyEpoch, hash)
		if err != nil {
			return domain.Attestation{}, fmt.Errorf("post-quantum signature: %w", err)
		}
		att.PQSig = sig
	}
	return att, nil
}

func (a *suiteAttestor) sign(ctx context.Context, alg string, epoch uint64, hash []byte) (*domain.Signature, error) {
	ref := domain.KeyRef{SignerID: a.signerID, Alg: alg, Epoch: epoch}
	value, err := a.keys.Sign(ctx, ref, hash)
	if err != nil {
		return nil, err
	}
	return &domain.Signature{
		Alg:   alg,
		KID:   keyID(ref),
		Value: value,
	}, nil
}

// keyID names the key by reference so audit consumers can locate it without
// the gate ever having touched the material.
func keyID(ref domain.KeyRef) string {
	return fmt.Sprintf("%s/%s/%d", ref.SignerID, ref.Alg, ref.Epoch)
}
