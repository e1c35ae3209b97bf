package crypto

import (
	"crypto/sha256"
	"time"

	"settlegate/internal/domain"
)

// envelopePayload fixes the canonical shape of an envelope. Field set and
// tags must never change for a given hash tag; decimals are rendered as
// strings so canonical bytes do not depend on float formatting.
type envelopePayload struct {
	ID                string   `json:"id"`
	Action            string   `json:"action"`
	AmountValue       string   `json:"amount_value"`
	AmountCurrency    string   `json:"amount_currency"`
	Destination       string   `json:"destination"`
	MaxSlippageBps    int      `json:"max_slippage_bps"`
	MaxFee            string   `json:"max_fee"`
	Expiry            string   `json:"expiry"`
	MaxVolatilityBps  int      `json:"max_volatility_bps"`
	ComplianceFlags   []string `json:"compliance_flags,omitempty"`
	AllowedRouteTypes []string `json:"allowed_route_types,omitempty"`
	RequiredProofIDs  []string `json:"required_proof_ids,omitempty"`
	CryptoPolicyID    string   `json:"crypto_policy_id"`
	KeyEpoch          uint64   `json:"key_epoch"`
	Rationale         string   `json:"rationale"`
}

// CanonicalEnvelope serializes the envelope canonically. Repeated calls on
// the same envelope yield byte-identical output.
func CanonicalEnvelope(env domain.Envelope) ([]byte, error) {
	payload := envelopePayload{
		ID:               env.ID,
		Action:           string(env.Action),
		AmountValue:      env.Amount.Value.String(),
		AmountCurrency:   env.Amount.Currency,
		Destination:      env.Destination,
		MaxSlippageBps:   env.Constraints.MaxSlippageBps,
		MaxFee:           env.Constraints.MaxFee.String(),
		Expiry:           env.Constraints.Expiry.UTC().Format(time.RFC3339Nano),
		MaxVolatilityBps: env.Risk.MaxVolatilityBps,
		CryptoPolicyID:   string(env.CryptoPolicyID),
		KeyEpoch:         env.KeyEpoch,
		Rationale:        env.Rationale,
	}
	if len(env.Risk.ComplianceFlags) > 0 {
		payload.ComplianceFlags = append([]string(nil), env.Risk.ComplianceFlags...)
	}
	if len(env.AllowedRouteTypes) > 0 {
		payload.AllowedRouteTypes = make([]string, 0, len(env.AllowedRouteTypes))
		for _, rt := range env.AllowedRouteTypes {
			payload.AllowedRouteTypes = append(payload.AllowedRouteTypes, string(rt))
		}
	}
	if len(env.RequiredProofIDs) > 0 {
		payload.RequiredProofIDs = append([]string(nil), env.RequiredProofIDs...)
	}
	return Canonicalize(payload)
}

// HashCanonical computes the versioned envelope hash (domain.HashAlgSHA256V1)
// over canonical bytes.
func HashCanonical(canonical []byte) []byte {
	sum := sha256.Sum256(canonical)
	return sum[:]
}

// EnvelopeHash is the canonical-serialize-then-hash convenience used by both
// attestation and verification.
func EnvelopeHash(env domain.Envelope) ([]byte, error) {
	canonical, err := CanonicalEnvelope(env)
	if err != nil {
		return nil, err
	}
	return HashCanonical(canonical), nil
}
