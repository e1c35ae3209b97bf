package soft

import (
	"context"
	"errors"
	"time"

	"settlegate/internal/domain"
)

// RotationManager applies rotation-plan entries to the soft key store. It is
// operations tooling: the execution path never calls it.
type RotationManager struct {
	keys  *Manager
	clock func() time.Time
}

func NewRotationManager(keys *Manager, clock func() time.Time) *RotationManager {
	if clock == nil {
		clock = time.Now
	}
	return &RotationManager{keys: keys, clock: clock}
}

// Apply provisions key material for every plan entry whose NotBefore has
// passed, and returns the epoch hints that were honored.
func (r *RotationManager) Apply(ctx context.Context, hints []domain.EpochHint) ([]domain.EpochHint, error) {
	if r == nil || r.keys == nil {
		return nil, errors.New("key manager is required")
	}
	now := r.clock().UTC()
	applied := make([]domain.EpochHint, 0, len(hints))
	for _, hint := range hints {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if now.Before(hint.NotBefore) {
			continue
		}
		if err := r.keys.ProvisionEpoch(hint.SignerID, hint.TargetEpoch); err != nil {
			return applied, err
		}
		applied = append(applied, hint)
	}
	return applied, nil
}
