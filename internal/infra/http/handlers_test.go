package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"settlegate/internal/config"
	"settlegate/internal/domain"
	"settlegate/internal/infra/attest"
	"settlegate/internal/infra/backends"
	"settlegate/internal/infra/keys/soft"
	"settlegate/internal/infra/policyopa"
	"settlegate/internal/infra/routes"
	"settlegate/internal/infra/rules"
	"settlegate/internal/infra/submit"
	"settlegate/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticLedger struct {
	state   domain.LedgerState
	balance decimal.Decimal
}

func (l *staticLedger) Snapshot(ctx context.Context, currency string) (domain.LedgerState, error) {
	return l.state, nil
}

func (l *staticLedger) SourceBalance(ctx context.Context, account, currency string) (decimal.Decimal, error) {
	return l.balance, nil
}

type allowAllScreener struct{}

func (allowAllScreener) Screen(ctx context.Context, input policyopa.ScreenInput) (policyopa.ScreenResult, error) {
	return policyopa.ScreenResult{Allow: true}, nil
}

type sinkRecords struct {
	attestations int
	submissions  int
	plans        int
}

func (s *sinkRecords) AppendAttestation(ctx context.Context, att domain.Attestation) error {
	s.attestations++
	return nil
}

func (s *sinkRecords) AppendSubmission(ctx context.Context, result domain.SubmissionResult) error {
	s.submissions++
	return nil
}

func (s *sinkRecords) AppendPlan(ctx context.Context, plan domain.RotationPlan) error {
	s.plans++
	return nil
}

type sinkAudit struct {
	events []domain.AuditEvent
}

func (s *sinkAudit) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	s.events = append(s.events, event)
	return event, nil
}

type serverFixture struct {
	server  *Server
	halt    *submit.HaltSwitch
	records *sinkRecords
	backend *backends.Memory
}

func newTestServer(t *testing.T) serverFixture {
	t.Helper()

	now := func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	keys := soft.NewManager()
	if err := keys.ProvisionEpoch("gate", 1); err != nil {
		t.Fatalf("provision keys: %v", err)
	}

	halt := submit.NewHaltSwitch()
	backend := backends.NewMemory()
	records := &sinkRecords{}

	gate := &usecase.ExecutionGate{
		Routes: routes.NewComputer(),
		Rules: rules.NewValidator(rules.Config{
			Ceiling:    decimal.NewFromInt(10000),
			Reserve:    decimal.NewFromInt(10),
			Compliance: allowAllScreener{},
			Clock:      now,
		}),
		Suites:  attest.NewRegistry("gate", keys, now),
		Router:  submit.NewRouter(backend, halt, time.Minute, now),
		Records: records,
		Audit:   usecase.NewAuditEmitter(&sinkAudit{}, now),
	}

	cfg := config.Config{AdminAPIKey: "test-admin-key"}
	server := NewServer(cfg, ServerDeps{
		Gate:    gate,
		Planner: usecase.NewRotationPlanner(usecase.GreedySolver{}, now),
		Records: records,
		Audit:   gate.Audit,
		Ledger: &staticLedger{
			state:   domain.LedgerState{FeeEstimate: decimal.NewFromFloat(0.1)},
			balance: decimal.NewFromInt(1000),
		},
		Halt:  halt,
		Hints: soft.NewRotationManager(keys, now),
	})
	return serverFixture{server: server, halt: halt, records: records, backend: backend}
}

func submitBody() map[string]any {
	return map[string]any{
		"envelope_id":    "env-1",
		"source_account": "acct:source",
		"action":         "send",
		"amount":         map[string]any{"value": "100", "currency": "USD"},
		"destination":    "acct:receiver",
		"constraints": map[string]any{
			"max_fee": "0.5",
			"expiry":  "2026-03-02T00:00:00Z",
		},
		"crypto_policy_id": "hybrid-ed25519-mldsa",
		"key_epoch":        1,
		"rationale":        "supplier invoice 4471",
	}
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	s.Handler().ServeHTTP(w, req)
	return w
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": "test-admin-key"}
}

func TestSubmitHappyPath(t *testing.T) {
	fx := newTestServer(t)

	w := doJSON(t, fx.server, http.MethodPost, "/v1/submissions", submitBody(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp submitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EnvelopeID != "env-1" {
		t.Errorf("envelope_id = %q", resp.EnvelopeID)
	}
	if resp.Route.Type != "direct" {
		t.Errorf("route type = %q, want direct", resp.Route.Type)
	}
	if resp.Attestation.ClassicalSig == nil || resp.Attestation.PQSig == nil {
		t.Error("hybrid policy must carry both signatures")
	}
	if resp.Backend != "memory" || resp.BackendTxID == "" {
		t.Errorf("backend = %q tx = %q", resp.Backend, resp.BackendTxID)
	}
	if fx.records.attestations != 1 || fx.records.submissions != 1 {
		t.Errorf("records: %d attestations, %d submissions", fx.records.attestations, fx.records.submissions)
	}
}

func TestSubmitRejectsExpiredEnvelope(t *testing.T) {
	fx := newTestServer(t)

	body := submitBody()
	body["constraints"] = map[string]any{"max_fee": "0.5", "expiry": "2026-02-01T00:00:00Z"}

	w := doJSON(t, fx.server, http.MethodPost, "/v1/submissions", body, nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "POLICY_VIOLATION" {
		t.Errorf("code = %q", resp.Code)
	}
	if resp.Details["findings"] == nil {
		t.Error("expected findings in error details")
	}
	if len(fx.backend.Submissions()) != 0 {
		t.Error("rejected envelope must not reach the backend")
	}
}

func TestSubmitRejectsMalformedEnvelope(t *testing.T) {
	fx := newTestServer(t)

	body := submitBody()
	body["destination"] = ""

	w := doJSON(t, fx.server, http.MethodPost, "/v1/submissions", body, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "STRUCTURAL" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestHaltBlocksSubmissionsUntilResume(t *testing.T) {
	fx := newTestServer(t)

	w := doJSON(t, fx.server, http.MethodPost, "/v1/admin/halt", haltRequest{Reason: "incident 42"}, adminHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("halt status = %d", w.Code)
	}

	w = doJSON(t, fx.server, http.MethodPost, "/v1/submissions", submitBody(), nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503, body = %s", w.Code, w.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "ROUTING_HALTED" {
		t.Errorf("code = %q", resp.Code)
	}
	if len(fx.backend.Submissions()) != 0 {
		t.Error("halted gate must produce zero backend calls")
	}

	w = doJSON(t, fx.server, http.MethodPost, "/v1/admin/resume", nil, adminHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("resume status = %d", w.Code)
	}

	body := submitBody()
	body["envelope_id"] = "env-2"
	w = doJSON(t, fx.server, http.MethodPost, "/v1/submissions", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("post-resume status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestAdminEndpointsRequireKey(t *testing.T) {
	fx := newTestServer(t)

	w := doJSON(t, fx.server, http.MethodPost, "/v1/admin/halt", haltRequest{Reason: "x"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	w = doJSON(t, fx.server, http.MethodPost, "/v1/admin/halt", haltRequest{Reason: "x"},
		map[string]string{"X-Admin-Key": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAdminStatusReportsHaltReason(t *testing.T) {
	fx := newTestServer(t)
	fx.halt.Halt("planned maintenance")

	w := doJSON(t, fx.server, http.MethodGet, "/v1/admin/status", nil, adminHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["halted"] != true || resp["reason"] != "planned maintenance" {
		t.Errorf("resp = %v", resp)
	}
}

func TestBuildPlanEndpoint(t *testing.T) {
	fx := newTestServer(t)

	body := buildPlanRequest{
		Nodes: []planNodeRequest{
			{
				SignerID: "gate",
				Tier:     0,
				Window: windowRequest{
					Start: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
					End:   time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC),
				},
				DowntimeBudgetMS: 60000,
			},
		},
		Horizon: windowRequest{
			Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		BaseEpoch: 1,
	}

	w := doJSON(t, fx.server, http.MethodPost, "/v1/plans", body, adminHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp buildPlanResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.PlanID == "" || len(resp.Entries) != 1 || len(resp.Hints) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Entries[0].TargetEpoch != 2 {
		t.Errorf("target epoch = %d, want 2", resp.Entries[0].TargetEpoch)
	}
	if fx.records.plans != 1 {
		t.Errorf("plan records = %d, want 1", fx.records.plans)
	}
}

func TestBuildPlanRejectsCycle(t *testing.T) {
	fx := newTestServer(t)

	window := windowRequest{
		Start: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 5, 6, 0, 0, 0, time.UTC),
	}
	body := buildPlanRequest{
		Nodes: []planNodeRequest{
			{SignerID: "a", Window: window, DependsOn: []string{"b"}},
			{SignerID: "b", Window: window, DependsOn: []string{"a"}},
		},
		Horizon: windowRequest{
			Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		BaseEpoch: 1,
	}

	w := doJSON(t, fx.server, http.MethodPost, "/v1/plans", body, adminHeaders())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != "DEPENDENCY_CYCLE" {
		t.Errorf("code = %q", resp.Code)
	}
	if fx.records.plans != 0 {
		t.Error("no plan record may exist for a rejected plan")
	}
}
