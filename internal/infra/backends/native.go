package backends

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"settlegate/internal/domain"
)

// Native submits attested packages to the native ledger's transaction
// endpoint. One HTTP call per Submit, no retries here.
type Native struct {
	addr       string
	httpClient *http.Client
}

func NewNative(addr string) *Native {
	return &Native{
		addr:       strings.TrimRight(addr, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (n *Native) Kind() domain.BackendKind {
	return domain.BackendNative
}

type nativeSubmission struct {
	EnvelopeID     string            `json:"envelope_id"`
	EnvelopeHash   string            `json:"envelope_hash"`
	HashAlg        string            `json:"hash_alg"`
	SuiteID        string            `json:"suite_id"`
	KeyEpoch       uint64            `json:"key_epoch"`
	ClassicalSig   *wireSignature    `json:"classical_sig,omitempty"`
	PQSig          *wireSignature    `json:"pq_sig,omitempty"`
	Action         string            `json:"action"`
	AmountValue    string            `json:"amount_value"`
	AmountCurrency string            `json:"amount_currency"`
	Destination    string            `json:"destination"`
	Meta           map[string]string `json:"meta,omitempty"`
}

type wireSignature struct {
	Alg   string `json:"alg"`
	KID   string `json:"kid"`
	Value string `json:"value"`
}

type nativeResponse struct {
	TxID     string `json:"tx_id"`
	Engine   string `json:"engine_result,omitempty"`
	Accepted bool   `json:"accepted"`
}

func (n *Native) Submit(ctx context.Context, att domain.Attestation, env domain.Envelope) (string, error) {
	if n.addr == "" {
		return "", errors.New("native ledger addr is not configured")
	}
	body, err := json.Marshal(buildSubmission(att, env))
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.addr+"/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("native ledger rejected submission: status %d", resp.StatusCode)
	}
	var out nativeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode native ledger response: %w", err)
	}
	if !out.Accepted || out.TxID == "" {
		return "", fmt.Errorf("native ledger did not accept submission: %s", out.Engine)
	}
	return out.TxID, nil
}

func buildSubmission(att domain.Attestation, env domain.Envelope) nativeSubmission {
	sub := nativeSubmission{
		EnvelopeID:     env.ID,
		EnvelopeHash:   hex.EncodeToString(att.EnvelopeHash),
		HashAlg:        att.HashAlg,
		SuiteID:        att.SuiteID,
		KeyEpoch:       att.KeyEpoch,
		Action:         string(env.Action),
		AmountValue:    env.Amount.Value.String(),
		AmountCurrency: env.Amount.Currency,
		Destination:    env.Destination,
	}
	if att.ClassicalSig != nil {
		sub.ClassicalSig = &wireSignature{
			Alg:   att.ClassicalSig.Alg,
			KID:   att.ClassicalSig.KID,
			Value: base64.StdEncoding.EncodeToString(att.ClassicalSig.Value),
		}
	}
	if att.PQSig != nil {
		sub.PQSig = &wireSignature{
			Alg:   att.PQSig.Alg,
			KID:   att.PQSig.KID,
			Value: base64.StdEncoding.EncodeToString(att.PQSig.Value),
		}
	}
	return sub
}
