package domain

import "time"

type AuditEventType string

const (
	AuditEnvelopeAccepted  AuditEventType = "envelope.accepted"
	AuditEnvelopeRejected  AuditEventType = "envelope.rejected"
	AuditAttestationMinted AuditEventType = "attestation.minted"
	AuditSubmissionRouted  AuditEventType = "submission.routed"
	AuditSubmissionHalted  AuditEventType = "submission.halted"
	AuditPlanBuilt         AuditEventType = "rotation_plan.built"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFailure AuditResult = "failure"
)

// AuditEvent is an append-only record emitted toward the external audit
// store. SubjectID keys the record: envelope id, attestation id, or plan id
// depending on the event type.
type AuditEvent struct {
	ID        string
	Type      AuditEventType
	SubjectID string
	Result    AuditResult
	ErrorCode string
	Payload   map[string]any
	CreatedAt time.Time
}
