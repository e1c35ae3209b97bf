package submit

import (
	"context"
	"errors"
	"testing"
	"time"

	"settlegate/internal/domain"
	"settlegate/internal/infra/backends"
)

var routerNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func freshAttestation() domain.Attestation {
	return domain.Attestation{
		ID:           "att-1",
		EnvelopeID:   "env-1",
		EnvelopeHash: []byte("0123456789abcdef0123456789abcdef"),
		HashAlg:      domain.HashAlgSHA256V1,
		SuiteID:      "hybrid-ed25519-mldsa65-v1",
		PolicyID:     domain.PolicyHybridEd25519,
		KeyEpoch:     7,
		CreatedAt:    routerNow.Add(-time.Minute),
	}
}

func testRouter(backend Backend) (*Router, *HaltSwitch) {
	halt := NewHaltSwitch()
	return NewRouter(backend, halt, DefaultMaxAttestationAge, func() time.Time { return routerNow }), halt
}

func TestRouteSubmitsToBackend(t *testing.T) {
	mem := backends.NewMemory()
	router, _ := testRouter(mem)

	result, err := router.Route(context.Background(), freshAttestation(), domain.Envelope{ID: "env-1"})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !result.Accepted || result.BackendTxID == "" {
		t.Fatalf("expected accepted result with tx id, got %+v", result)
	}
	if result.Backend != domain.BackendMemory {
		t.Fatalf("unexpected backend %s", result.Backend)
	}
	if len(mem.Submissions()) != 1 {
		t.Fatalf("expected one backend submission, got %d", len(mem.Submissions()))
	}
}

func TestHaltBlocksBeforeAnyNetworkCall(t *testing.T) {
	mem := backends.NewMemory()
	router, _ := testRouter(mem)

	router.Halt("incident")
	_, err := router.Route(context.Background(), freshAttestation(), domain.Envelope{ID: "env-1"})
	if !errors.Is(err, domain.ErrRoutingHalted) {
		t.Fatalf("expected ErrRoutingHalted, got %v", err)
	}
	if len(mem.Submissions()) != 0 {
		t.Fatal("halted routing must make zero backend calls")
	}

	router.Resume()
	if _, err := router.Route(context.Background(), freshAttestation(), domain.Envelope{ID: "env-1"}); err != nil {
		t.Fatalf("route after resume: %v", err)
	}
	if len(mem.Submissions()) != 1 {
		t.Fatalf("expected one submission after resume, got %d", len(mem.Submissions()))
	}
}

func TestHaltReasonSurfaced(t *testing.T) {
	router, halt := testRouter(backends.NewMemory())
	router.Halt("incident")
	halted, reason := halt.State()
	if !halted || reason != "incident" {
		t.Fatalf("expected halted with reason, got %v %q", halted, reason)
	}
}

func TestIsHaltedIdempotentReads(t *testing.T) {
	router, _ := testRouter(backends.NewMemory())
	for i := 0; i < 100; i++ {
		if router.IsHalted() {
			t.Fatal("halt state changed without an intervening halt/resume")
		}
	}
	router.Halt("drill")
	for i := 0; i < 100; i++ {
		if !router.IsHalted() {
			t.Fatal("halt state changed without an intervening halt/resume")
		}
	}
}

func TestStaleAttestationRejectedWithoutSideEffects(t *testing.T) {
	mem := backends.NewMemory()
	router, _ := testRouter(mem)

	stale := freshAttestation()
	stale.CreatedAt = routerNow.Add(-10 * time.Minute)
	_, err := router.Route(context.Background(), stale, domain.Envelope{ID: "env-1"})
	if !errors.Is(err, domain.ErrAttestationExpired) {
		t.Fatalf("expected ErrAttestationExpired, got %v", err)
	}
	if len(mem.Submissions()) != 0 {
		t.Fatal("stale attestation must make zero backend calls")
	}
}

type failingBackend struct{}

func (failingBackend) Kind() domain.BackendKind { return domain.BackendNative }
func (failingBackend) Submit(context.Context, domain.Attestation, domain.Envelope) (string, error) {
	return "", errors.New("connection refused")
}

func TestBackendFailureSurfacedNotRetried(t *testing.T) {
	router, _ := testRouter(failingBackend{})
	_, err := router.Route(context.Background(), freshAttestation(), domain.Envelope{ID: "env-1"})
	if !errors.Is(err, domain.ErrBackendFailure) {
		t.Fatalf("expected ErrBackendFailure, got %v", err)
	}
}
