package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"settlegate/internal/domain"
	"settlegate/internal/infra/policyopa"
)

type ComplianceScreener interface {
	Screen(ctx context.Context, input policyopa.ScreenInput) (policyopa.ScreenResult, error)
}

type Config struct {
	// Ceiling is the per-transaction amount ceiling. Zero disables the check.
	Ceiling decimal.Decimal
	// Reserve is the mandatory balance reserve kept untouched by any
	// transaction.
	Reserve decimal.Decimal
	// WarnConfidence is the warn-only route confidence threshold.
	WarnConfidence float64
	Compliance     ComplianceScreener
	Clock          func() time.Time
}

// Validator applies the full ordered rule set to an envelope+route pair.
// Every rule always runs: a failing rule never short-circuits the ones after
// it, and a rule that panics or errors internally counts as failed, never as
// skipped.
type Validator struct {
	cfg Config
}

func NewValidator(cfg Config) *Validator {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.WarnConfidence == 0 {
		cfg.WarnConfidence = 0.7
	}
	return &Validator{cfg: cfg}
}

func (v *Validator) Validate(ctx context.Context, route domain.SelectedRoute, env domain.Envelope, state domain.LedgerState, sourceBalance decimal.Decimal) domain.ValidationOutcome {
	var outcome domain.ValidationOutcome

	v.runRule(domain.RuleAmountCeilingExceeded, &outcome, func() []domain.Finding {
		if v.cfg.Ceiling.IsPositive() && env.Amount.Value.GreaterThan(v.cfg.Ceiling) {
			return []domain.Finding{{
				Code:   domain.RuleAmountCeilingExceeded,
				Detail: fmt.Sprintf("amount %s exceeds ceiling %s", env.Amount.Value, v.cfg.Ceiling),
			}}
		}
		return nil
	})

	v.runRule(domain.RuleInsufficientBalance, &outcome, func() []domain.Finding {
		required := env.Amount.Value.Add(route.EstimatedFee).Add(v.cfg.Reserve)
		if sourceBalance.LessThan(required) {
			return []domain.Finding{{
				Code:   domain.RuleInsufficientBalance,
				Detail: fmt.Sprintf("balance %s below required %s (amount + fee + reserve)", sourceBalance, required),
			}}
		}
		return nil
	})

	v.runRule(domain.RuleComplianceCheckFailed, &outcome, func() []domain.Finding {
		if v.cfg.Compliance == nil {
			return []domain.Finding{{
				Code:   domain.RuleComplianceCheckFailed,
				Detail: "no compliance screener configured",
			}}
		}
		result, err := v.cfg.Compliance.Screen(ctx, policyopa.ScreenInput{
			Destination:     env.Destination,
			Blocklist:       state.Blocklist,
			ComplianceFlags: env.Risk.ComplianceFlags,
		})
		if err != nil {
			return []domain.Finding{{
				Code:   domain.RuleComplianceCheckFailed,
				Detail: fmt.Sprintf("compliance screen error: %v", err),
			}}
		}
		if result.Allow {
			return nil
		}
		findings := make([]domain.Finding, 0, len(result.Deny))
		for _, denial := range result.Deny {
			findings = append(findings, domain.Finding{
				Code:   domain.RuleCode(denial.Code),
				Detail: denial.Message,
			})
		}
		if len(findings) == 0 {
			findings = append(findings, domain.Finding{
				Code:   domain.RuleComplianceCheckFailed,
				Detail: "compliance policy denied without a code",
			})
		}
		return findings
	})

	v.runRule(domain.RuleFeeAboveMax, &outcome, func() []domain.Finding {
		if route.EstimatedFee.GreaterThan(env.Constraints.MaxFee) {
			return []domain.Finding{{
				Code:   domain.RuleFeeAboveMax,
				Detail: fmt.Sprintf("route fee %s exceeds max fee %s", route.EstimatedFee, env.Constraints.MaxFee),
			}}
		}
		return nil
	})

	v.runRule(domain.RuleEnvelopeExpired, &outcome, func() []domain.Finding {
		if env.Expired(v.cfg.Clock().UTC()) {
			return []domain.Finding{{
				Code:   domain.RuleEnvelopeExpired,
				Detail: fmt.Sprintf("envelope expired at %s", env.Constraints.Expiry.UTC().Format(time.RFC3339)),
			}}
		}
		return nil
	})

	v.runRule(domain.RuleProofMissing, &outcome, func() []domain.Finding {
		var findings []domain.Finding
		for _, proofID := range env.RequiredProofIDs {
			if !wellFormedProofID(proofID) {
				findings = append(findings, domain.Finding{
					Code:   domain.RuleProofMissing,
					Detail: fmt.Sprintf("required proof id %q is not structurally present", proofID),
				})
			}
		}
		return findings
	})

	// Warn-only: low confidence never blocks.
	if route.Confidence < v.cfg.WarnConfidence {
		outcome.Warnings = append(outcome.Warnings, domain.Finding{
			Code:   domain.RuleLowRouteConfidence,
			Detail: fmt.Sprintf("route confidence %.2f below threshold %.2f", route.Confidence, v.cfg.WarnConfidence),
		})
	}

	outcome.Valid = len(outcome.Errors) == 0
	return outcome
}

// runRule executes one rule and appends its findings. A panic inside the
// rule is converted into a failure of that rule: the validator fails closed
// and keeps evaluating the remaining rules.
func (v *Validator) runRule(code domain.RuleCode, outcome *domain.ValidationOutcome, eval func() []domain.Finding) {
	defer func() {
		if r := recover(); r != nil {
			outcome.Errors = append(outcome.Errors, domain.Finding{
				Code:   code,
				Detail: fmt.Sprintf("rule evaluation panicked: %v", r),
			})
		}
	}()
	outcome.Errors = append(outcome.Errors, eval()...)
}

// Proof identifiers are scheme-qualified: "scheme:value" with both parts
// non-empty.
func wellFormedProofID(id string) bool {
	scheme, value, found := strings.Cut(id, ":")
	return found && strings.TrimSpace(scheme) != "" && strings.TrimSpace(value) != ""
}
