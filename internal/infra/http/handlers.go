package http

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"settlegate/internal/domain"
	"settlegate/internal/usecase"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type moneyRequest struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type constraintsRequest struct {
	MaxSlippageBps int       `json:"max_slippage_bps"`
	MaxFee         string    `json:"max_fee"`
	Expiry         time.Time `json:"expiry"`
}

type riskRequest struct {
	MaxVolatilityBps int      `json:"max_volatility_bps"`
	ComplianceFlags  []string `json:"compliance_flags"`
}

type submitRequest struct {
	EnvelopeID        string             `json:"envelope_id"`
	SourceAccount     string             `json:"source_account"`
	Action            string             `json:"action"`
	Amount            moneyRequest       `json:"amount"`
	Destination       string             `json:"destination"`
	Constraints       constraintsRequest `json:"constraints"`
	Risk              riskRequest        `json:"risk"`
	AllowedRouteTypes []string           `json:"allowed_route_types"`
	RequiredProofIDs  []string           `json:"required_proof_ids"`
	CryptoPolicyID    string             `json:"crypto_policy_id"`
	KeyEpoch          uint64             `json:"key_epoch"`
	Rationale         string             `json:"rationale"`
}

type routeResponse struct {
	Type             string   `json:"type"`
	Hops             []string `json:"hops"`
	EstimatedFee     string   `json:"estimated_fee"`
	EstimatedLatency string   `json:"estimated_latency"`
	Confidence       float64  `json:"confidence"`
}

type findingResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type outcomeResponse struct {
	Valid    bool              `json:"valid"`
	Errors   []findingResponse `json:"errors,omitempty"`
	Warnings []findingResponse `json:"warnings,omitempty"`
}

type signatureResponse struct {
	Alg   string `json:"alg"`
	KID   string `json:"kid"`
	Value string `json:"value"`
}

type attestationResponse struct {
	ID           string             `json:"id"`
	EnvelopeHash string             `json:"envelope_hash"`
	HashAlg      string             `json:"hash_alg"`
	SuiteID      string             `json:"suite_id"`
	PolicyID     string             `json:"policy_id"`
	KeyEpoch     uint64             `json:"key_epoch"`
	ClassicalSig *signatureResponse `json:"classical_sig,omitempty"`
	PQSig        *signatureResponse `json:"pq_sig,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

type submitResponse struct {
	EnvelopeID   string              `json:"envelope_id"`
	Route        routeResponse       `json:"route"`
	Alternatives []routeResponse     `json:"alternatives,omitempty"`
	Outcome      outcomeResponse     `json:"outcome"`
	Attestation  attestationResponse `json:"attestation"`
	SubmissionID string              `json:"submission_id"`
	Backend      string              `json:"backend"`
	BackendTxID  string              `json:"backend_tx_id"`
	SubmittedAt  time.Time           `json:"submitted_at"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	if s.gate == nil || s.ledger == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "gate not configured")
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if strings.TrimSpace(req.SourceAccount) == "" {
		writeErrorCode(c, http.StatusBadRequest, "STRUCTURAL", "source_account is required")
		return
	}
	if !s.enforceRateLimit(c, "submissions", req.SourceAccount) {
		return
	}

	env, err := envelopeFromRequest(req)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	state, err := s.ledger.Snapshot(ctx, env.Amount.Currency)
	if err != nil {
		writeErrorCode(c, http.StatusBadGateway, "LEDGER_UNAVAILABLE", "ledger state unavailable")
		return
	}
	balance, err := s.ledger.SourceBalance(ctx, req.SourceAccount, env.Amount.Currency)
	if err != nil {
		writeErrorCode(c, http.StatusBadGateway, "LEDGER_UNAVAILABLE", "balance unavailable")
		return
	}

	result, err := s.gate.Authorize(ctx, env, state, balance)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, submitResponseFromResult(env.ID, result))
}

func envelopeFromRequest(req submitRequest) (domain.Envelope, error) {
	amount, err := decimal.NewFromString(req.Amount.Value)
	if err != nil {
		return domain.Envelope{}, structuralErr("amount.value must be a decimal string")
	}
	maxFee := decimal.Zero
	if req.Constraints.MaxFee != "" {
		maxFee, err = decimal.NewFromString(req.Constraints.MaxFee)
		if err != nil {
			return domain.Envelope{}, structuralErr("constraints.max_fee must be a decimal string")
		}
	}
	routeTypes := make([]domain.RouteType, 0, len(req.AllowedRouteTypes))
	for _, rt := range req.AllowedRouteTypes {
		routeTypes = append(routeTypes, domain.RouteType(rt))
	}
	id := req.EnvelopeID
	if id == "" {
		id = uuid.NewString()
	}
	return domain.Envelope{
		ID:          id,
		Action:      domain.ActionKind(req.Action),
		Amount:      domain.Money{Value: amount, Currency: req.Amount.Currency},
		Destination: req.Destination,
		Constraints: domain.Constraints{
			MaxSlippageBps: req.Constraints.MaxSlippageBps,
			MaxFee:         maxFee,
			Expiry:         req.Constraints.Expiry,
		},
		Risk: domain.RiskBounds{
			MaxVolatilityBps: req.Risk.MaxVolatilityBps,
			ComplianceFlags:  req.Risk.ComplianceFlags,
		},
		AllowedRouteTypes: routeTypes,
		RequiredProofIDs:  req.RequiredProofIDs,
		CryptoPolicyID:    domain.CryptoPolicyID(req.CryptoPolicyID),
		KeyEpoch:          req.KeyEpoch,
		Rationale:         req.Rationale,
	}, nil
}

func submitResponseFromResult(envelopeID string, result usecase.AuthorizeResult) submitResponse {
	alternatives := make([]routeResponse, 0, len(result.Route.Alternatives))
	for _, alt := range result.Route.Alternatives {
		alternatives = append(alternatives, routeResponseFrom(alt))
	}
	return submitResponse{
		EnvelopeID:   envelopeID,
		Route:        routeResponseFrom(result.Route.Route),
		Alternatives: alternatives,
		Outcome:      outcomeResponseFrom(result.Outcome),
		Attestation:  attestationResponseFrom(result.Attestation),
		SubmissionID: result.Submission.ID,
		Backend:      string(result.Submission.Backend),
		BackendTxID:  result.Submission.BackendTxID,
		SubmittedAt:  result.Submission.SubmittedAt,
	}
}

func routeResponseFrom(route domain.Route) routeResponse {
	return routeResponse{
		Type:             string(route.Type),
		Hops:             route.Hops,
		EstimatedFee:     route.EstimatedFee.String(),
		EstimatedLatency: route.EstimatedLatency.String(),
		Confidence:       route.Confidence,
	}
}

func outcomeResponseFrom(outcome domain.ValidationOutcome) outcomeResponse {
	return outcomeResponse{
		Valid:    outcome.Valid,
		Errors:   findingResponsesFrom(outcome.Errors),
		Warnings: findingResponsesFrom(outcome.Warnings),
	}
}

func findingResponsesFrom(findings []domain.Finding) []findingResponse {
	if len(findings) == 0 {
		return nil
	}
	out := make([]findingResponse, 0, len(findings))
	for _, f := range findings {
		out = append(out, findingResponse{Code: string(f.Code), Detail: f.Detail})
	}
	return out
}

func attestationResponseFrom(att domain.Attestation) attestationResponse {
	return attestationResponse{
		ID:           att.ID,
		EnvelopeHash: hex.EncodeToString(att.EnvelopeHash),
		HashAlg:      att.HashAlg,
		SuiteID:      att.SuiteID,
		PolicyID:     string(att.PolicyID),
		KeyEpoch:     att.KeyEpoch,
		ClassicalSig: signatureResponseFrom(att.ClassicalSig),
		PQSig:        signatureResponseFrom(att.PQSig),
		CreatedAt:    att.CreatedAt,
	}
}

func signatureResponseFrom(sig *domain.Signature) *signatureResponse {
	if sig == nil {
		return nil
	}
	return &signatureResponse{
		Alg:   sig.Alg,
		KID:   sig.KID,
		Value: hex.EncodeToString(sig.Value),
	}
}

type haltRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleHalt(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.halt == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "halt switch not configured")
		return
	}
	var req haltRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeErrorCode(c, http.StatusBadRequest, "STRUCTURAL", "reason is required")
		return
	}
	s.halt.Halt(req.Reason)
	c.JSON(http.StatusOK, gin.H{"halted": true, "reason": req.Reason})
}

func (s *Server) handleResume(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.halt == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "halt switch not configured")
		return
	}
	s.halt.Resume()
	c.JSON(http.StatusOK, gin.H{"halted": false})
}

func (s *Server) handleStatus(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	halted, reason := false, ""
	if s.halt != nil {
		halted, reason = s.halt.State()
	}
	resp := gin.H{"halted": halted}
	if reason != "" {
		resp["reason"] = reason
	}
	c.JSON(http.StatusOK, resp)
}

type windowRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type planNodeRequest struct {
	SignerID         string        `json:"signer_id"`
	Tier             int           `json:"tier"`
	Window           windowRequest `json:"window"`
	DowntimeBudgetMS int64         `json:"downtime_budget_ms"`
	DependsOn        []string      `json:"depends_on"`
}

type buildPlanRequest struct {
	Nodes      []planNodeRequest `json:"nodes"`
	Horizon    windowRequest     `json:"horizon"`
	BaseEpoch  uint64            `json:"base_epoch"`
	ApplyHints bool              `json:"apply_hints"`
}

type planEntryResponse struct {
	SignerID    string    `json:"signer_id"`
	TargetEpoch uint64    `json:"target_epoch"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type epochHintResponse struct {
	SignerID    string    `json:"signer_id"`
	TargetEpoch uint64    `json:"target_epoch"`
	NotBefore   time.Time `json:"not_before"`
}

type buildPlanResponse struct {
	PlanID       string              `json:"plan_id"`
	Entries      []planEntryResponse `json:"entries"`
	Objective    float64             `json:"objective"`
	BuiltAt      time.Time           `json:"built_at"`
	Hints        []epochHintResponse `json:"hints"`
	AppliedHints []epochHintResponse `json:"applied_hints,omitempty"`
}

func (s *Server) handleBuildPlan(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.planner == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "UNAVAILABLE", "planner not configured")
		return
	}
	var req buildPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}

	nodes := make([]domain.RotationNode, 0, len(req.Nodes))
	for _, n := range req.Nodes {
		nodes = append(nodes, domain.RotationNode{
			SignerID:       n.SignerID,
			Tier:           n.Tier,
			Window:         domain.RotationWindow{Start: n.Window.Start, End: n.Window.End},
			DowntimeBudget: time.Duration(n.DowntimeBudgetMS) * time.Millisecond,
			DependsOn:      n.DependsOn,
		})
	}
	constraints := domain.PlanConstraints{
		Horizon:   domain.RotationWindow{Start: req.Horizon.Start, End: req.Horizon.End},
		BaseEpoch: req.BaseEpoch,
	}

	plan, err := s.planner.BuildPlan(nodes, constraints)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	if s.records != nil {
		if err := s.records.AppendPlan(ctx, plan); err != nil {
			writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "record plan")
			return
		}
	}
	if s.audit != nil {
		s.audit.EmitPlanBuilt(ctx, plan)
	}

	hints := usecase.EpochHints(plan)
	resp := buildPlanResponse{
		PlanID:    plan.ID,
		Objective: plan.Objective,
		BuiltAt:   plan.BuiltAt,
	}
	for _, entry := range plan.Entries {
		resp.Entries = append(resp.Entries, planEntryResponse{
			SignerID:    entry.SignerID,
			TargetEpoch: entry.TargetEpoch,
			ScheduledAt: entry.ScheduledAt,
		})
	}
	for _, hint := range hints {
		resp.Hints = append(resp.Hints, epochHintResponse{
			SignerID:    hint.SignerID,
			TargetEpoch: hint.TargetEpoch,
			NotBefore:   hint.NotBefore,
		})
	}
	if req.ApplyHints && s.hints != nil {
		applied, err := s.hints.Apply(ctx, hints)
		if err != nil {
			writeErrorCode(c, http.StatusInternalServerError, "INTERNAL", "apply epoch hints")
			return
		}
		for _, hint := range applied {
			resp.AppliedHints = append(resp.AppliedHints, epochHintResponse{
				SignerID:    hint.SignerID,
				TargetEpoch: hint.TargetEpoch,
				NotBefore:   hint.NotBefore,
			})
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	key := c.GetHeader("X-Admin-Key")
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}

func structuralErr(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrStructural, msg)
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrStructural):
		status, code = http.StatusBadRequest, "STRUCTURAL"
	case errors.Is(err, domain.ErrUnsupportedPolicy):
		status, code = http.StatusBadRequest, "UNSUPPORTED_POLICY"
	case errors.Is(err, domain.ErrDependencyCycle):
		status, code = http.StatusBadRequest, "DEPENDENCY_CYCLE"
	case errors.Is(err, domain.ErrNoRouteAvailable):
		status, code = http.StatusUnprocessableEntity, "NO_ROUTE_AVAILABLE"
	case errors.Is(err, domain.ErrPolicyViolation):
		status, code = http.StatusUnprocessableEntity, "POLICY_VIOLATION"
	case errors.Is(err, domain.ErrAttestationExpired):
		status, code = http.StatusConflict, "ATTESTATION_EXPIRED"
	case errors.Is(err, domain.ErrRoutingHalted):
		status, code = http.StatusServiceUnavailable, "ROUTING_HALTED"
	case errors.Is(err, domain.ErrBackendFailure):
		status, code = http.StatusBadGateway, "BACKEND_FAILURE"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	}

	var violation *domain.RuleViolationError
	if errors.As(err, &violation) {
		findings := make([]map[string]string, 0, len(violation.Findings))
		for _, f := range violation.Findings {
			findings = append(findings, map[string]string{
				"code":   string(f.Code),
				"detail": f.Detail,
			})
		}
		c.JSON(status, errorResponse{
			Code:    code,
			Message: err.Error(),
			Details: map[string]any{"findings": findings},
		})
		return
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
