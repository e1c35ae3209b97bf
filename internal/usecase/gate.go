package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"settlegate/internal/domain"
	gatecrypto "settlegate/internal/infra/crypto"
)

// ExecutionGate runs the deterministic authorization pipeline for one
// envelope: route computation, rule validation, attestation, submission.
// Nothing in it exercises judgment; every step is rule evaluation or a
// cryptographic operation, and any failure propagates instead of defaulting
// to success.
type ExecutionGate struct {
	Routes  RouteComputer
	Rules   RuleValidator
	Suites  SuiteRegistry
	Router  SubmissionRouter
	Records RecordStore
	Audit   *AuditEmitter
}

// AuthorizeResult is the complete success shape: callers see either all of
// this or a precise rejection, never a partial state.
type AuthorizeResult struct {
	Route       domain.SelectedRoute
	Outcome     domain.ValidationOutcome
	Attestation domain.Attestation
	Submission  domain.SubmissionResult
}

func (g *ExecutionGate) Authorize(ctx context.Context, env domain.Envelope, state domain.LedgerState, sourceBalance decimal.Decimal) (AuthorizeResult, error) {
	if err := env.Validate(); err != nil {
		g.auditRejection(ctx, env, "STRUCTURAL", err)
		return AuthorizeResult{}, err
	}

	route, err := g.Routes.Compute(env, state)
	if err != nil {
		g.auditRejection(ctx, env, "NO_ROUTE_AVAILABLE", err)
		return AuthorizeResult{}, err
	}

	outcome := g.Rules.Validate(ctx, route, env, state, sourceBalance)
	if !outcome.Valid {
		violation := &domain.RuleViolationError{Findings: outcome.Errors}
		g.auditRejection(ctx, env, "POLICY_VIOLATION", violation)
		return AuthorizeResult{Route: route, Outcome: outcome}, violation
	}

	canonical, err := gatecrypto.CanonicalEnvelope(env)
	if err != nil {
		wrapped := fmt.Errorf("%w: canonicalize envelope: %v", domain.ErrStructural, err)
		g.auditRejection(ctx, env, "STRUCTURAL", wrapped)
		return AuthorizeResult{}, wrapped
	}

	attestor, err := g.Suites.Select(env.CryptoPolicyID)
	if err != nil {
		g.auditRejection(ctx, env, "UNSUPPORTED_POLICY", err)
		return AuthorizeResult{}, err
	}

	att, err := attestor.Attest(ctx, env.ID, canonical, env.KeyEpoch)
	if err != nil {
		g.auditRejection(ctx, env, "ATTESTATION_FAILED", err)
		return AuthorizeResult{}, fmt.Errorf("attest envelope %s: %w", env.ID, err)
	}
	if g.Records != nil {
		if err := g.Records.AppendAttestation(ctx, att); err != nil {
			return AuthorizeResult{}, fmt.Errorf("record attestation %s: %w", att.ID, err)
		}
	}
	if g.Audit != nil {
		g.Audit.EmitAttestationMinted(ctx, att)
	}

	result, err := g.Router.Route(ctx, att, env)
	if err != nil {
		if g.Audit != nil {
			g.Audit.EmitSubmissionBlocked(ctx, env.ID, att.ID, err)
		}
		return AuthorizeResult{}, err
	}
	if g.Records != nil {
		if err := g.Records.AppendSubmission(ctx, result); err != nil {
			return AuthorizeResult{}, fmt.Errorf("record submission %s: %w", result.ID, err)
		}
	}
	if g.Audit != nil {
		g.Audit.EmitSubmissionRouted(ctx, result)
	}

	return AuthorizeResult{
		Route:       route,
		Outcome:     outcome,
		Attestation: att,
		Submission:  result,
	}, nil
}

func (g *ExecutionGate) auditRejection(ctx context.Context, env domain.Envelope, code string, cause error) {
	if g.Audit == nil {
		return
	}
	g.Audit.EmitEnvelopeRejected(ctx, env.ID, code, cause)
}
