package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"settlegate/internal/domain"
)

// RecordRepository persists the gate's outbound records. Every method is a
// bare insert: records are immutable once written and duplicate ids are a
// hard error, never an upsert.
type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) AppendAttestation(ctx context.Context, att domain.Attestation) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := AttestationRecordModel{
		ID:            uuid.NewString(),
		AttestationID: att.ID,
		EnvelopeID:    att.EnvelopeID,
		EnvelopeHash:  copyBytes(att.EnvelopeHash),
		HashAlg:       att.HashAlg,
		SuiteID:       att.SuiteID,
		PolicyID:      string(att.PolicyID),
		KeyEpoch:      int64(att.KeyEpoch),
		CreatedAt:     att.CreatedAt.UTC().Truncate(time.Microsecond),
	}
	if att.ClassicalSig != nil {
		model.ClassicalAlg = strPtr(att.ClassicalSig.Alg)
		model.ClassicalKID = strPtr(att.ClassicalSig.KID)
		model.ClassicalSig = copyBytes(att.ClassicalSig.Value)
	}
	if att.PQSig != nil {
		model.PQAlg = strPtr(att.PQSig.Alg)
		model.PQKID = strPtr(att.PQSig.KID)
		model.PQSig = copyBytes(att.PQSig.Value)
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("append attestation record: %w", err)
	}
	return nil
}

func (r *RecordRepository) AppendSubmission(ctx context.Context, result domain.SubmissionResult) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := SubmissionRecordModel{
		ID:            uuid.NewString(),
		SubmissionID:  result.ID,
		EnvelopeID:    result.EnvelopeID,
		AttestationID: result.AttestationID,
		Accepted:      result.Accepted,
		Backend:       string(result.Backend),
		BackendTxID:   result.BackendTxID,
		SubmittedAt:   result.SubmittedAt.UTC().Truncate(time.Microsecond),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("append submission record: %w", err)
	}
	return nil
}

func (r *RecordRepository) AppendPlan(ctx context.Context, plan domain.RotationPlan) error {
	if r.db == nil {
		return errDBUnavailable
	}
	entriesJSON, err := json.Marshal(plan.Entries)
	if err != nil {
		return fmt.Errorf("encode plan entries: %w", err)
	}
	model := RotationPlanModel{
		ID:          plan.ID,
		EntriesJSON: entriesJSON,
		Objective:   plan.Objective,
		BuiltAt:     plan.BuiltAt.UTC().Truncate(time.Microsecond),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("append rotation plan record: %w", err)
	}
	return nil
}

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func strPtr(s string) *string {
	return &s
}
