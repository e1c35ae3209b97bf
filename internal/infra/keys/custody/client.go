package custody

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"settlegate/internal/domain"
)

// Client signs through a remote key-custody service (vault or HSM front-end).
// It implements domain.KeyManager: the gate hands over a KeyRef and payload
// and gets back a signature; private key material never leaves custody.
type Client struct {
	addr       string
	token      string
	httpClient *http.Client
}

func New(addr, token string) *Client {
	return &Client{
		addr:       strings.TrimRight(addr, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type signRequest struct {
	SignerID string `json:"signer_id"`
	Alg      string `json:"alg"`
	Epoch    uint64 `json:"epoch"`
	Payload  string `json:"payload"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

type publicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

func (c *Client) Sign(ctx context.Context, ref domain.KeyRef, payload []byte) ([]byte, error) {
	body, err := json.Marshal(signRequest{
		SignerID: ref.SignerID,
		Alg:      ref.Alg,
		Epoch:    ref.Epoch,
		Payload:  base64.StdEncoding.EncodeToString(payload),
	})
	if err != nil {
		return nil, err
	}
	var resp signResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sign", body, &resp); err != nil {
		return nil, err
	}
	sig, err := base64.StdEncoding.DecodeString(resp.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding from custody: %w", err)
	}
	return sig, nil
}

func (c *Client) PublicKey(ctx context.Context, ref domain.KeyRef) ([]byte, error) {
	path := fmt.Sprintf("/v1/keys/%s/%s/%d", ref.SignerID, ref.Alg, ref.Epoch)
	var resp publicKeyResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	pub, err := base64.StdEncoding.DecodeString(resp.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding from custody: %w", err)
	}
	return pub, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c == nil {
		return errors.New("custody client is nil")
	}
	if c.addr == "" || c.token == "" {
		return errors.New("custody addr or token missing")
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.addr+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Custody-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("custody %s %s failed: status %d", method, path, resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}
