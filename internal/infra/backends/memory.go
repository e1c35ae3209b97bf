package backends

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"settlegate/internal/domain"
)

// Memory is the deterministic test backend: it finalizes nothing, records
// everything, and derives transaction ids purely from the submission content
// so replays are byte-for-byte reproducible.
type Memory struct {
	mu          sync.Mutex
	submissions []Recorded
}

type Recorded struct {
	AttestationID string
	EnvelopeID    string
	TxID          string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Kind() domain.BackendKind {
	return domain.BackendMemory
}

func (m *Memory) Submit(ctx context.Context, att domain.Attestation, env domain.Envelope) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(att.EnvelopeHash)
	h.Write([]byte(att.ID))
	txID := "mem-" + hex.EncodeToString(h.Sum(nil))[:16]

	m.mu.Lock()
	m.submissions = append(m.submissions, Recorded{
		AttestationID: att.ID,
		EnvelopeID:    env.ID,
		TxID:          txID,
	})
	m.mu.Unlock()
	return txID, nil
}

// Submissions returns a copy of everything submitted so far.
func (m *Memory) Submissions() []Recorded {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Recorded, len(m.submissions))
	copy(out, m.submissions)
	return out
}
