package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"settlegate/internal/domain"
	"settlegate/internal/infra/attest"
	"settlegate/pkg/envelope"
)

type attestationFile struct {
	ID           string         `json:"id"`
	EnvelopeID   string         `json:"envelope_id"`
	EnvelopeHash string         `json:"envelope_hash"`
	HashAlg      string         `json:"hash_alg"`
	SuiteID      string         `json:"suite_id"`
	PolicyID     string         `json:"policy_id"`
	KeyEpoch     uint64         `json:"key_epoch"`
	ClassicalSig *signatureFile `json:"classical_sig,omitempty"`
	PQSig        *signatureFile `json:"pq_sig,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type signatureFile struct {
	Alg   string `json:"alg"`
	KID   string `json:"kid"`
	Value string `json:"value"`
}

// staticResolver maps algorithm names to pinned public keys. CLI
// verification is offline: keys come from flags, never from the gate.
type staticResolver struct {
	keys map[string][]byte
}

func (r *staticResolver) PublicKey(_ context.Context, ref domain.KeyRef) ([]byte, error) {
	pub, ok := r.keys[ref.Alg]
	if !ok {
		return nil, fmt.Errorf("no public key provided for %s", ref.Alg)
	}
	return pub, nil
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var envelopePath string
	var attestationPath string
	var signerID string
	var classicalPubHex string
	var pqPubHex string

	fs.StringVar(&envelopePath, "envelope", "", "envelope JSON path")
	fs.StringVar(&attestationPath, "attestation", "", "attestation JSON path")
	fs.StringVar(&signerID, "signer-id", "", "signer id the attestation was minted under")
	fs.StringVar(&classicalPubHex, "classical-pubkey-hex", "", "classical public key hex (ed25519 raw or secp256k1 compressed)")
	fs.StringVar(&pqPubHex, "pq-pubkey-hex", "", "ml-dsa-65 public key hex")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if envelopePath == "" || attestationPath == "" || signerID == "" {
		fmt.Fprintln(os.Stderr, "verify requires --envelope, --attestation and --signer-id")
		return 1
	}

	env, err := loadEnvelope(envelopePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	att, err := loadAttestation(attestationPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	if att.EnvelopeID != env.ID {
		fmt.Fprintf(os.Stderr, "attestation is for envelope %s, not %s\n", att.EnvelopeID, env.ID)
		return 1
	}

	resolver := &staticResolver{keys: map[string][]byte{}}
	if att.ClassicalSig != nil {
		if classicalPubHex == "" {
			fmt.Fprintln(os.Stderr, "attestation carries a classical signature; --classical-pubkey-hex is required")
			return 1
		}
		pub, err := hex.DecodeString(classicalPubHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode classical public key: %v\n", err)
			return 1
		}
		resolver.keys[att.ClassicalSig.Alg] = pub
	}
	if att.PQSig != nil {
		if pqPubHex == "" {
			fmt.Fprintln(os.Stderr, "attestation carries a post-quantum signature; --pq-pubkey-hex is required")
			return 1
		}
		pub, err := hex.DecodeString(pqPubHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "decode pq public key: %v\n", err)
			return 1
		}
		resolver.keys[att.PQSig.Alg] = pub
	}

	canonical, err := envelope.Canonical(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "canonicalize envelope: %v\n", err)
		return 1
	}
	if err := attest.Verify(context.Background(), att, canonical, resolver, signerID); err != nil {
		fmt.Fprintf(os.Stderr, "verification failed: %v\n", err)
		return 1
	}
	fmt.Printf("attestation %s verifies for envelope %s under suite %s\n", att.ID, env.ID, att.SuiteID)
	return 0
}

func loadAttestation(path string) (domain.Attestation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Attestation{}, fmt.Errorf("read attestation: %w", err)
	}
	var file attestationFile
	if err := json.Unmarshal(data, &file); err != nil {
		return domain.Attestation{}, fmt.Errorf("decode attestation: %w", err)
	}
	hash, err := hex.DecodeString(file.EnvelopeHash)
	if err != nil {
		return domain.Attestation{}, fmt.Errorf("decode envelope hash: %w", err)
	}
	att := domain.Attestation{
		ID:           file.ID,
		EnvelopeID:   file.EnvelopeID,
		EnvelopeHash: hash,
		HashAlg:      file.HashAlg,
		SuiteID:      file.SuiteID,
		PolicyID:     domain.CryptoPolicyID(file.PolicyID),
		KeyEpoch:     file.KeyEpoch,
		CreatedAt:    file.CreatedAt,
	}
	att.ClassicalSig, err = signatureFromFile(file.ClassicalSig)
	if err != nil {
		return domain.Attestation{}, err
	}
	att.PQSig, err = signatureFromFile(file.PQSig)
	if err != nil {
		return domain.Attestation{}, err
	}
	return att, nil
}

func signatureFromFile(file *signatureFile) (*domain.Signature, error) {
	if file == nil {
		return nil, nil
	}
	value, err := hex.DecodeString(file.Value)
	if err != nil {
		return nil, fmt.Errorf("decode %s signature: %w", file.Alg, err)
	}
	return &domain.Signature{Alg: file.Alg, KID: file.KID, Value: value}, nil
}
