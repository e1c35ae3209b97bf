package backends

import (
	"context"
	"testing"

	"settlegate/internal/domain"
)

func TestMemoryTxIDDeterministic(t *testing.T) {
	att := domain.Attestation{ID: "att-1", EnvelopeHash: []byte("hash-bytes")}
	env := domain.Envelope{ID: "env-1"}

	first := NewMemory()
	second := NewMemory()
	tx1, err := first.Submit(context.Background(), att, env)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	tx2, err := second.Submit(context.Background(), att, env)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if tx1 != tx2 {
		t.Fatalf("tx ids differ for identical submissions: %s vs %s", tx1, tx2)
	}
}

func TestMemoryRecordsSubmissions(t *testing.T) {
	mem := NewMemory()
	att := domain.Attestation{ID: "att-1", EnvelopeHash: []byte("h")}
	if _, err := mem.Submit(context.Background(), att, domain.Envelope{ID: "env-1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	recs := mem.Submissions()
	if len(recs) != 1 || recs[0].AttestationID != "att-1" || recs[0].EnvelopeID != "env-1" {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestMemoryHonorsContext(t *testing.T) {
	mem := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := mem.Submit(ctx, domain.Attestation{ID: "att-1"}, domain.Envelope{ID: "env-1"}); err == nil {
		t.Fatal("expected context error")
	}
	if len(mem.Submissions()) != 0 {
		t.Fatal("canceled submit must record nothing")
	}
}
