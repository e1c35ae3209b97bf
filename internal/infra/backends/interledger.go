package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"settlegate/internal/domain"
)

// Interledger pushes attested packages into a cross-network corridor
// connector. Same contract as the native backend: one call, no retries.
type Interledger struct {
	addr       string
	corridorID string
	httpClient *http.Client
}

func NewInterledger(addr, corridorID string) *Interledger {
	return &Interledger{
		addr:       strings.TrimRight(addr, "/"),
		corridorID: corridorID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (i *Interledger) Kind() domain.BackendKind {
	return domain.BackendInterledger
}

type corridorResponse struct {
	TransferID string `json:"transfer_id"`
	State      string `json:"state"`
}

func (i *Interledger) Submit(ctx context.Context, att domain.Attestation, env domain.Envelope) (string, error) {
	if i.addr == "" {
		return "", errors.New("interledger connector addr is not configured")
	}
	payload := buildSubmission(att, env)
	payload.Meta = map[string]string{"corridor_id": i.corridorID}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.addr+"/v1/corridors/"+i.corridorID+"/transfers", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("corridor rejected transfer: status %d", resp.StatusCode)
	}
	var out corridorResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode corridor response: %w", err)
	}
	if out.TransferID == "" {
		return "", fmt.Errorf("corridor returned no transfer id (state %q)", out.State)
	}
	return out.TransferID, nil
}
