package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"settlegate/internal/domain"
)

// AuditEmitter shapes gate activity into append-only audit events. Emission
// failures are reported to the caller of Emit but never block the pipeline
// helpers: an audit store outage must not hold value-moving decisions
// hostage, the submission record is the authoritative trail.
type AuditEmitter struct {
	Repo  AuditRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{Repo: repo, Clock: clock}
}

func (e *AuditEmitter) Emit(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if event.Type == "" || event.SubjectID == "" || event.Result == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	return e.Repo.Append(ctx, event)
}

func (e *AuditEmitter) EmitEnvelopeRejected(ctx context.Context, envelopeID, code string, cause error) {
	payload := map[string]any{}
	if cause != nil {
		payload["cause"] = cause.Error()
	}
	_, _ = e.Emit(ctx, domain.AuditEvent{
		Type:      domain.AuditEnvelopeRejected,
		SubjectID: envelopeID,
		Result:    domain.AuditResultFailure,
		ErrorCode: code,
		Payload:   payload,
	})
}

func (e *AuditEmitter) EmitAttestationMinted(ctx context.Context, att domain.Attestation) {
	_, _ = e.Emit(ctx, domain.AuditEvent{
		Type:      domain.AuditAttestationMinted,
		SubjectID: att.ID,
		Result:    domain.AuditResultSuccess,
		Payload: map[string]any{
			"envelope_id": att.EnvelopeID,
			"suite_id":    att.SuiteID,
			"policy_id":   string(att.PolicyID),
			"key_epoch":   att.KeyEpoch,
		},
	})
}

func (e *AuditEmitter) EmitSubmissionRouted(ctx context.Context, result domain.SubmissionResult) {
	_, _ = e.Emit(ctx, domain.AuditEvent{
		Type:      domain.AuditSubmissionRouted,
		SubjectID: result.AttestationID,
		Result:    domain.AuditResultSuccess,
		Payload: map[string]any{
			"submission_id": result.ID,
			"envelope_id":   result.EnvelopeID,
			"backend":       string(result.Backend),
			"backend_tx_id": result.BackendTxID,
		},
	})
}

func (e *AuditEmitter) EmitSubmissionBlocked(ctx context.Context, envelopeID, attestationID string, cause error) {
	eventType := domain.AuditEnvelopeRejected
	code := "BACKEND_FAILURE"
	switch {
	case errors.Is(cause, domain.ErrRoutingHalted):
		eventType = domain.AuditSubmissionHalted
		code = "ROUTING_HALTED"
	case errors.Is(cause, domain.ErrAttestationExpired):
		code = "ATTESTATION_EXPIRED"
	}
	_, _ = e.Emit(ctx, domain.AuditEvent{
		Type:      eventType,
		SubjectID: attestationID,
		Result:    domain.AuditResultFailure,
		ErrorCode: code,
		Payload: map[string]any{
			"envelope_id": envelopeID,
			"cause":       cause.Error(),
		},
	})
}

func (e *AuditEmitter) EmitPlanBuilt(ctx context.Context, plan domain.RotationPlan) {
	_, _ = e.Emit(ctx, domain.AuditEvent{
		Type:      domain.AuditPlanBuilt,
		SubjectID: plan.ID,
		Result:    domain.AuditResultSuccess,
		Payload: map[string]any{
			"entries":   len(plan.Entries),
			"objective": plan.Objective,
		},
	})
}

func (e *AuditEmitter) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}
