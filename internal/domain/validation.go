package domain

import (
	"fmt"
	"strings"
)

type RuleCode string

const (
	RuleAmountCeilingExceeded RuleCode = "AMOUNT_CEILING_EXCEEDED"
	RuleInsufficientBalance   RuleCode = "INSUFFICIENT_BALANCE"
	RuleDestinationBlocklist  RuleCode = "DESTINATION_BLOCKLISTED"
	RuleComplianceCheckFailed RuleCode = "COMPLIANCE_CHECK_FAILED"
	RuleFeeAboveMax           RuleCode = "FEE_ABOVE_MAX"
	RuleEnvelopeExpired       RuleCode = "ENVELOPE_EXPIRED"
	RuleProofMissing          RuleCode = "PROOF_MISSING"
	RuleLowRouteConfidence    RuleCode = "LOW_ROUTE_CONFIDENCE"
)

type Finding struct {
	Code   RuleCode
	Detail string
}

// ValidationOutcome is produced once per envelope+route pair and is immutable
// thereafter. Valid iff the error list is empty; warnings never block.
type ValidationOutcome struct {
	Valid    bool
	Errors   []Finding
	Warnings []Finding
}

func (o ValidationOutcome) ErrorCodes() []RuleCode {
	codes := make([]RuleCode, 0, len(o.Errors))
	for _, f := range o.Errors {
		codes = append(codes, f.Code)
	}
	return codes
}

// RuleViolationError carries the full ordered finding list so callers and the
// audit log see every failed rule, not just the first.
type RuleViolationError struct {
	Findings []Finding
}

func (e *RuleViolationError) Error() string {
	codes := make([]string, 0, len(e.Findings))
	for _, f := range e.Findings {
		codes = append(codes, string(f.Code))
	}
	return fmt.Sprintf("policy violation: %s", strings.Join(codes, ","))
}

func (e *RuleViolationError) Unwrap() error {
	return ErrPolicyViolation
}
