package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"settlegate/internal/domain"
	"settlegate/internal/infra/attest"
)

type Clock func() time.Time

type RouteComputer interface {
	Compute(env domain.Envelope, state domain.LedgerState) (domain.SelectedRoute, error)
}

type RuleValidator interface {
	Validate(ctx context.Context, route domain.SelectedRoute, env domain.Envelope, state domain.LedgerState, sourceBalance decimal.Decimal) domain.ValidationOutcome
}

type SuiteRegistry interface {
	Select(policy domain.CryptoPolicyID) (attest.Attestor, error)
}

type SubmissionRouter interface {
	Route(ctx context.Context, att domain.Attestation, env domain.Envelope) (domain.SubmissionResult, error)
}

// AuditRepository receives the gate's append-only records. Implementations
// must never mutate or delete; the store is the audit trail.
type AuditRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
}

// RecordStore persists the gate's outbound records for the external audit
// store: attestations, submissions, and rotation plans, each keyed by its id.
type RecordStore interface {
	AppendAttestation(ctx context.Context, att domain.Attestation) error
	AppendSubmission(ctx context.Context, result domain.SubmissionResult) error
	AppendPlan(ctx context.Context, plan domain.RotationPlan) error
}
