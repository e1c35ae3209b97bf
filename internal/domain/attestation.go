package domain

import "time"

type CryptoPolicyID string

// The policy set is closed: every policy the gate will ever honor is
// enumerated here and bound to a concrete suite at registry construction.
const (
	PolicyClassicalOnly   CryptoPolicyID = "classical-only"
	PolicyHybridEd25519   CryptoPolicyID = "hybrid-ed25519-mldsa"
	PolicyHybridSecp256k1 CryptoPolicyID = "hybrid-secp256k1-mldsa"
	PolicyPQCOnly         CryptoPolicyID = "pqc-only"
)

const (
	AlgEd25519   = "ed25519"
	AlgSecp256k1 = "secp256k1"
	AlgMLDSA65   = "ml-dsa-65"
)

// HashAlgSHA256V1 tags the fixed, versioned hash function attestations sign
// over. Bumping the hash means a new tag, never a silent change.
const HashAlgSHA256V1 = "sha256/v1"

type Signature struct {
	Alg   string
	KID   string
	Value []byte
}

// Attestation binds an envelope's canonical hash to one or two signatures
// under a named suite and key epoch. Created exactly once per validated
// envelope and immutable afterwards; CreatedAt drives freshness checks.
type Attestation struct {
	ID           string
	EnvelopeID   string
	EnvelopeHash []byte
	HashAlg      string
	SuiteID      string
	PolicyID     CryptoPolicyID
	KeyEpoch     uint64
	ClassicalSig *Signature
	PQSig        *Signature
	CreatedAt    time.Time
}

func (a Attestation) Age(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}
