// Package envelope builds and serializes bounded-intent envelopes on the
// client side, so planners can construct and hash an envelope without
// talking to a running gate.
package envelope

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"settlegate/internal/domain"
)

// Builder accumulates envelope fields and produces a validated
// domain.Envelope. Zero value is usable.
type Builder struct {
	env domain.Envelope
}

func New() *Builder {
	return &Builder{}
}

func (b *Builder) ID(id string) *Builder {
	b.env.ID = id
	return b
}

func (b *Builder) Send(value decimal.Decimal, currency, destination string) *Builder {
	b.env.Action = domain.ActionSend
	b.env.Amount = domain.Money{Value: value, Currency: currency}
	b.env.Destination = destination
	return b
}

func (b *Builder) Swap(value decimal.Decimal, currency, destination string) *Builder {
	b.env.Action = domain.ActionSwap
	b.env.Amount = domain.Money{Value: value, Currency: currency}
	b.env.Destination = destination
	return b
}

func (b *Builder) MaxFee(fee decimal.Decimal) *Builder {
	b.env.Constraints.MaxFee = fee
	return b
}

func (b *Builder) MaxSlippageBps(bps int) *Builder {
	b.env.Constraints.MaxSlippageBps = bps
	return b
}

func (b *Builder) ExpiresAt(t time.Time) *Builder {
	b.env.Constraints.Expiry = t.UTC()
	return b
}

func (b *Builder) MaxVolatilityBps(bps int) *Builder {
	b.env.Risk.MaxVolatilityBps = bps
	return b
}

func (b *Builder) ComplianceFlags(flags ...string) *Builder {
	b.env.Risk.ComplianceFlags = append([]string(nil), flags...)
	return b
}

func (b *Builder) AllowRoutes(types ...domain.RouteType) *Builder {
	b.env.AllowedRouteTypes = append([]domain.RouteType(nil), types...)
	return b
}

func (b *Builder) RequireProofs(ids ...string) *Builder {
	b.env.RequiredProofIDs = append([]string(nil), ids...)
	return b
}

func (b *Builder) Policy(policy domain.CryptoPolicyID, keyEpoch uint64) *Builder {
	b.env.CryptoPolicyID = policy
	b.env.KeyEpoch = keyEpoch
	return b
}

func (b *Builder) Rationale(text string) *Builder {
	b.env.Rationale = text
	return b
}

// Build validates and returns the envelope. A missing id gets a fresh uuid;
// everything else must have been set explicitly.
func (b *Builder) Build() (domain.Envelope, error) {
	env := b.env
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if err := env.Validate(); err != nil {
		return domain.Envelope{}, err
	}
	return env, nil
}
