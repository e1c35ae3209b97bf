package attest

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"settlegate/internal/domain"
	gatecrypto "settlegate/internal/infra/crypto"
)

var mldsaScheme sign.Scheme = mldsa65.Scheme()

// KeyResolver resolves a key reference to public key bytes. Offline
// verification can back this with a static key set; the live gate backs it
// with the key manager.
type KeyResolver interface {
	PublicKey(ctx context.Context, ref domain.KeyRef) ([]byte, error)
}

// ValidateShape checks the signature-field presence invariant against the
// declared policy without any cryptographic work.
func ValidateShape(att domain.Attestation) error {
	spec, ok := specForPolicy(att.PolicyID)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedPolicy, att.PolicyID)
	}
	if att.HashAlg != domain.HashAlgSHA256V1 {
		return fmt.Errorf("%w: unknown hash alg %q", domain.ErrStructural, att.HashAlg)
	}
	if spec.classicalAlg != "" && att.ClassicalSig == nil {
		return fmt.Errorf("%w: policy %s requires a classical signature", domain.ErrStructural, att.PolicyID)
	}
	if spec.classicalAlg == "" && att.ClassicalSig != nil {
		return fmt.Errorf("%w: policy %s forbids a classical signature", domain.ErrStructural, att.PolicyID)
	}
	if spec.pqAlg != "" && att.PQSig == nil {
		return fmt.Errorf("%w: policy %s requires a post-quantum signature", domain.ErrStructural, att.PolicyID)
	}
	if spec.pqAlg == "" && att.PQSig != nil {
		return fmt.Errorf("%w: policy %s forbids a post-quantum signature", domain.ErrStructural, att.PolicyID)
	}
	if att.ClassicalSig != nil && att.ClassicalSig.Alg != spec.classicalAlg {
		return fmt.Errorf("%w: classical alg %q does not match suite", domain.ErrStructural, att.ClassicalSig.Alg)
	}
	if att.PQSig != nil && att.PQSig.Alg != spec.pqAlg {
		return fmt.Errorf("%w: post-quantum alg %q does not match suite", domain.ErrStructural, att.PQSig.Alg)
	}
	return nil
}

// Verify recomputes the canonical hash, checks field presence against the
// declared policy, then verifies each signature independently.
func Verify(ctx context.Context, att domain.Attestation, canonical []byte, resolver KeyResolver, signerID string) error {
	if err := ValidateShape(att); err != nil {
		return err
	}
	hash := gatecrypto.HashCanonical(canonical)
	if !bytes.Equal(hash, att.EnvelopeHash) {
		return errors.New("envelope hash mismatch")
	}
	for _, sig := range []*domain.Signature{att.ClassicalSig, att.PQSig} {
		if sig == nil {
			continue
		}
		ref := domain.KeyRef{SignerID: signerID, Alg: sig.Alg, Epoch: att.KeyEpoch}
		pub, err := resolver.PublicKey(ctx, ref)
		if err != nil {
			return fmt.Errorf("resolve %s public key: %w", sig.Alg, err)
		}
		if err := verifySignature(sig.Alg, pub, hash, sig.Value); err != nil {
			return fmt.Errorf("%s: %w", sig.Alg, err)
		}
	}
	return nil
}

func verifySignature(alg string, pub, payload, sig []byte) error {
	switch alg {
	case domain.AlgEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return fmt.Errorf("invalid ed25519 public key length: %d", len(pub))
		}
		if !ed25519.Verify(pub, payload, sig) {
			return errors.New("signature verification failed")
		}
		return nil
	case domain.AlgSecp256k1:
		pubKey, err := secp256k1.ParsePubKey(pub)
		if err != nil {
			return fmt.Errorf("invalid secp256k1 public key: %w", err)
		}
		parsed, err := secpecdsa.ParseDERSignature(sig)
		if err != nil {
			return fmt.Errorf("invalid secp256k1 signature encoding: %w", err)
		}
		if !parsed.Verify(payload, pubKey) {
			return errors.New("signature verification failed")
		}
		return nil
	case domain.AlgMLDSA65:
		pubKey, err := mldsaScheme.UnmarshalBinaryPublicKey(pub)
		if err != nil {
			return fmt.Errorf("invalid ml-dsa-65 public key: %w", err)
		}
		if !mldsaScheme.Verify(pubKey, payload, sig, nil) {
			return errors.New("signature verification failed")
		}
		return nil
	default:
		return fmt.Errorf("unsupported signature algorithm %q", alg)
	}
}

func specForPolicy(policy domain.CryptoPolicyID) (suiteSpec, bool) {
	for _, spec := range suiteTable {
		if spec.policy == policy {
			return spec, true
		}
	}
	return suiteSpec{}, false
}
