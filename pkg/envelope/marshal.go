package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"settlegate/internal/domain"
	cryptoinfra "settlegate/internal/infra/crypto"
)

// wireEnvelope is the interchange JSON form. It is distinct from the
// canonical attestation payload: wire form is for humans and tooling,
// canonical form is for signing.
type wireEnvelope struct {
	ID                string    `json:"id,omitempty"`
	Action            string    `json:"action"`
	AmountValue       string    `json:"amount_value"`
	AmountCurrency    string    `json:"amount_currency"`
	Destination       string    `json:"destination"`
	MaxSlippageBps    int       `json:"max_slippage_bps,omitempty"`
	MaxFee            string    `json:"max_fee,omitempty"`
	Expiry            time.Time `json:"expiry"`
	MaxVolatilityBps  int       `json:"max_volatility_bps,omitempty"`
	ComplianceFlags   []string  `json:"compliance_flags,omitempty"`
	AllowedRouteTypes []string  `json:"allowed_route_types,omitempty"`
	RequiredProofIDs  []string  `json:"required_proof_ids,omitempty"`
	CryptoPolicyID    string    `json:"crypto_policy_id"`
	KeyEpoch          uint64    `json:"key_epoch"`
	Rationale         string    `json:"rationale,omitempty"`
}

func Marshal(env domain.Envelope) ([]byte, error) {
	routeTypes := make([]string, 0, len(env.AllowedRouteTypes))
	for _, rt := range env.AllowedRouteTypes {
		routeTypes = append(routeTypes, string(rt))
	}
	wire := wireEnvelope{
		ID:                env.ID,
		Action:            string(env.Action),
		AmountValue:       env.Amount.Value.String(),
		AmountCurrency:    env.Amount.Currency,
		Destination:       env.Destination,
		MaxSlippageBps:    env.Constraints.MaxSlippageBps,
		MaxFee:            env.Constraints.MaxFee.String(),
		Expiry:            env.Constraints.Expiry.UTC(),
		MaxVolatilityBps:  env.Risk.MaxVolatilityBps,
		ComplianceFlags:   env.Risk.ComplianceFlags,
		AllowedRouteTypes: routeTypes,
		RequiredProofIDs:  env.RequiredProofIDs,
		CryptoPolicyID:    string(env.CryptoPolicyID),
		KeyEpoch:          env.KeyEpoch,
		Rationale:         env.Rationale,
	}
	return json.MarshalIndent(wire, "", "  ")
}

func Unmarshal(data []byte) (domain.Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return domain.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	amount, err := decimal.NewFromString(wire.AmountValue)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: amount_value %q", domain.ErrStructural, wire.AmountValue)
	}
	maxFee := decimal.Zero
	if wire.MaxFee != "" {
		maxFee, err = decimal.NewFromString(wire.MaxFee)
		if err != nil {
			return domain.Envelope{}, fmt.Errorf("%w: max_fee %q", domain.ErrStructural, wire.MaxFee)
		}
	}
	routeTypes := make([]domain.RouteType, 0, len(wire.AllowedRouteTypes))
	for _, rt := range wire.AllowedRouteTypes {
		routeTypes = append(routeTypes, domain.RouteType(rt))
	}
	env := domain.Envelope{
		ID:          wire.ID,
		Action:      domain.ActionKind(wire.Action),
		Amount:      domain.Money{Value: amount, Currency: wire.AmountCurrency},
		Destination: wire.Destination,
		Constraints: domain.Constraints{
			MaxSlippageBps: wire.MaxSlippageBps,
			MaxFee:         maxFee,
			Expiry:         wire.Expiry,
		},
		Risk: domain.RiskBounds{
			MaxVolatilityBps: wire.MaxVolatilityBps,
			ComplianceFlags:  wire.ComplianceFlags,
		},
		AllowedRouteTypes: routeTypes,
		RequiredProofIDs:  wire.RequiredProofIDs,
		CryptoPolicyID:    domain.CryptoPolicyID(wire.CryptoPolicyID),
		KeyEpoch:          wire.KeyEpoch,
		Rationale:         wire.Rationale,
	}
	if err := env.Validate(); err != nil {
		return domain.Envelope{}, err
	}
	return env, nil
}

// Canonical returns the canonical signing bytes for the envelope.
func Canonical(env domain.Envelope) ([]byte, error) {
	return cryptoinfra.CanonicalEnvelope(env)
}

// Hash returns the versioned envelope hash tooling can compare against an
// attestation's envelope_hash field.
func Hash(env domain.Envelope) ([]byte, error) {
	return cryptoinfra.EnvelopeHash(env)
}
