package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ActionKind string

const (
	ActionSend  ActionKind = "send"
	ActionSwap  ActionKind = "swap"
	ActionBatch ActionKind = "batch"
)

type Money struct {
	Value    decimal.Decimal
	Currency string
}

type Constraints struct {
	MaxSlippageBps int
	MaxFee         decimal.Decimal
	Expiry         time.Time
}

type RiskBounds struct {
	MaxVolatilityBps int
	ComplianceFlags  []string
}

// Envelope is the bounded intent handed to the gate. It is treated as
// immutable from the moment it passes Validate; the canonical serialization
// of a validated envelope is what attestation signs over.
type Envelope struct {
	ID                string
	Action            ActionKind
	Amount            Money
	Destination       string
	Constraints       Constraints
	Risk              RiskBounds
	AllowedRouteTypes []RouteType
	RequiredProofIDs  []string
	CryptoPolicyID    CryptoPolicyID
	KeyEpoch          uint64
	Rationale         string
}

// Expired reports whether the envelope is expired at now. The boundary is
// inclusive: an envelope whose expiry equals now is already expired.
func (e Envelope) Expired(now time.Time) bool {
	return !now.Before(e.Constraints.Expiry)
}

// Validate checks structural well-formedness. It never consults network
// state; rule-level checks belong to the validator.
func (e Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: envelope id is required", ErrStructural)
	}
	switch e.Action {
	case ActionSend, ActionSwap, ActionBatch:
	default:
		return fmt.Errorf("%w: unknown action kind %q", ErrStructural, e.Action)
	}
	if !e.Amount.Value.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrStructural)
	}
	if strings.TrimSpace(e.Amount.Currency) == "" {
		return fmt.Errorf("%w: currency code is required", ErrStructural)
	}
	if strings.TrimSpace(e.Destination) == "" {
		return fmt.Errorf("%w: destination is required", ErrStructural)
	}
	if e.Constraints.MaxFee.IsNegative() {
		return fmt.Errorf("%w: max fee must not be negative", ErrStructural)
	}
	if e.Constraints.Expiry.IsZero() {
		return fmt.Errorf("%w: expiry is required", ErrStructural)
	}
	for _, rt := range e.AllowedRouteTypes {
		switch rt {
		case RouteDirect, RouteExchange, RouteCorridor:
		default:
			return fmt.Errorf("%w: unknown route type %q", ErrStructural, rt)
		}
	}
	if e.CryptoPolicyID == "" {
		return fmt.Errorf("%w: crypto policy id is required", ErrStructural)
	}
	return nil
}

// AllowsRoute reports whether the envelope permits the given route type.
// An empty allow-list means unrestricted.
func (e Envelope) AllowsRoute(rt RouteType) bool {
	if len(e.AllowedRouteTypes) == 0 {
		return true
	}
	for _, allowed := range e.AllowedRouteTypes {
		if allowed == rt {
			return true
		}
	}
	return false
}
