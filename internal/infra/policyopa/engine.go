package policyopa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.settlegate.compliance.result"

// defaultModule is the built-in screening policy used when no bundle path is
// configured: reject blocklisted destinations and envelopes flagged with an
// active hold.
const defaultModule = `package settlegate.compliance

deny[entry] {
	input.destination == input.blocklist[_]
	entry := {"code": "DESTINATION_BLOCKLISTED", "message": "destination is blocklisted"}
}

deny[entry] {
	input.compliance_flags[_] == "sanctions-hold"
	entry := {"code": "COMPLIANCE_HOLD", "message": "envelope is under a sanctions hold"}
}

result := {"allow": allow, "deny": deny_list} {
	deny_list := [e | e := deny[_]]
	allow := count(deny_list) == 0
}
`

type ScreenInput struct {
	Destination     string   `json:"destination"`
	Blocklist       []string `json:"blocklist"`
	ComplianceFlags []string `json:"compliance_flags"`
}

type ScreenDenial struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ScreenResult struct {
	Allow bool           `json:"allow"`
	Deny  []ScreenDenial `json:"deny"`
}

// Engine evaluates the compliance policy over a fixed, pre-compiled rego
// query. Evaluation of a fixed bundle is deterministic, which keeps the
// validator's replay guarantee intact.
type Engine struct {
	query    rego.PreparedEvalQuery
	bundleID string
}

func NewEngine(ctx context.Context) (*Engine, error) {
	return newEngine(ctx, "builtin", rego.Module("compliance.rego", defaultModule))
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath, bundleID string) (*Engine, error) {
	return newEngine(ctx, bundleID, rego.Load([]string{bundlePath}, nil))
}

func newEngine(ctx context.Context, bundleID string, source func(*rego.Rego)) (*Engine, error) {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		source,
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{query: prepared, bundleID: bundleID}, nil
}

func (e *Engine) BundleID() string {
	return e.bundleID
}

func (e *Engine) Screen(ctx context.Context, input ScreenInput) (ScreenResult, error) {
	if e == nil {
		return ScreenResult{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return ScreenResult{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return ScreenResult{}, errors.New("empty policy result")
	}
	return decodeResult(results[0].Expressions[0].Value)
}

func decodeResult(value any) (ScreenResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return ScreenResult{}, err
	}
	var result ScreenResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return ScreenResult{}, fmt.Errorf("decode policy result: %w", err)
	}
	return result, nil
}
