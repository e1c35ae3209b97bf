package submit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"settlegate/internal/domain"
)

// DefaultMaxAttestationAge bounds how stale an attestation may be before the
// router refuses to touch the network on its behalf.
const DefaultMaxAttestationAge = 5 * time.Minute

// Backend finalizes one attested submission against a settlement network.
type Backend interface {
	Kind() domain.BackendKind
	Submit(ctx context.Context, att domain.Attestation, env domain.Envelope) (string, error)
}

// Router dispatches an attested package to exactly one backend. It never
// retries: a fresh, immutable attestation is the idempotency key for
// caller-driven retries, and re-minting one requires rerunning the pipeline.
type Router struct {
	backend Backend
	halt    *HaltSwitch
	maxAge  time.Duration
	clock   func() time.Time
}

func NewRouter(backend Backend, halt *HaltSwitch, maxAge time.Duration, clock func() time.Time) *Router {
	if maxAge <= 0 {
		maxAge = DefaultMaxAttestationAge
	}
	if clock == nil {
		clock = time.Now
	}
	return &Router{backend: backend, halt: halt, maxAge: maxAge, clock: clock}
}

func (r *Router) Route(ctx context.Context, att domain.Attestation, env domain.Envelope) (domain.SubmissionResult, error) {
	now := r.clock().UTC()

	// Freshness first: a stale attestation must produce zero side effects.
	if att.Age(now) >= r.maxAge {
		return domain.SubmissionResult{}, fmt.Errorf("%w: attestation %s aged %s beyond %s",
			domain.ErrAttestationExpired, att.ID, att.Age(now).Round(time.Second), r.maxAge)
	}

	if halted, reason := r.halt.State(); halted {
		return domain.SubmissionResult{}, fmt.Errorf("%w: %s", domain.ErrRoutingHalted, reason)
	}

	txID, err := r.backend.Submit(ctx, att, env)
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("%w: %s: %v", domain.ErrBackendFailure, r.backend.Kind(), err)
	}

	return domain.SubmissionResult{
		ID:            uuid.NewString(),
		EnvelopeID:    env.ID,
		AttestationID: att.ID,
		Accepted:      true,
		Backend:       r.backend.Kind(),
		BackendTxID:   txID,
		SubmittedAt:   now,
	}, nil
}

func (r *Router) Halt(reason string) {
	r.halt.Halt(reason)
}

func (r *Router) Resume() {
	r.halt.Resume()
}

func (r *Router) IsHalted() bool {
	return r.halt.Halted()
}
