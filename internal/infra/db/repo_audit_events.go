package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"settlegate/internal/domain"
)

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if r.db == nil {
		return domain.AuditEvent{}, errDBUnavailable
	}
	if event.Type == "" {
		return domain.AuditEvent{}, errors.New("event type is required")
	}
	if event.SubjectID == "" {
		return domain.AuditEvent{}, errors.New("subject id is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.CreatedAt = event.CreatedAt.UTC().Truncate(time.Microsecond)

	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("encode audit payload: %w", err)
	}
	model := AuditEventModel{
		ID:          event.ID,
		EventType:   string(event.Type),
		SubjectID:   event.SubjectID,
		Result:      string(event.Result),
		ErrorCode:   event.ErrorCode,
		PayloadJSON: payloadJSON,
		CreatedAt:   event.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.AuditEvent{}, fmt.Errorf("append audit event: %w", err)
	}
	return event, nil
}

// ListBySubject returns the events recorded for one envelope, attestation,
// or plan id in insertion order.
func (r *AuditEventRepository) ListBySubject(ctx context.Context, subjectID string) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, model := range models {
		event, err := auditEventFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

func auditEventFromModel(model AuditEventModel) (domain.AuditEvent, error) {
	payload := map[string]any{}
	if len(model.PayloadJSON) > 0 {
		if err := json.Unmarshal(model.PayloadJSON, &payload); err != nil {
			return domain.AuditEvent{}, fmt.Errorf("decode audit payload %s: %w", model.ID, err)
		}
	}
	return domain.AuditEvent{
		ID:        model.ID,
		Type:      domain.AuditEventType(model.EventType),
		SubjectID: model.SubjectID,
		Result:    domain.AuditResult(model.Result),
		ErrorCode: model.ErrorCode,
		Payload:   payload,
		CreatedAt: model.CreatedAt,
	}, nil
}
