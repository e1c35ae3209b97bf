package domain

import "errors"

var (
	ErrStructural         = errors.New("structurally invalid input")
	ErrPolicyViolation    = errors.New("policy violation")
	ErrUnsupportedPolicy  = errors.New("unsupported crypto policy")
	ErrNoRouteAvailable   = errors.New("no route available")
	ErrAttestationExpired = errors.New("attestation expired")
	ErrRoutingHalted      = errors.New("routing halted")
	ErrDependencyCycle    = errors.New("dependency cycle")
	ErrBackendFailure     = errors.New("backend failure")
	ErrNotFound           = errors.New("not found")
)
