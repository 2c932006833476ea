// Package prover is an HTTP client for the external ZK proving service that
// executes and proves the Alipay receipt guest program. Proof generation
// itself is out of scope for this relay; this package only talks to the
// service that runs it.
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the external prover's execute/prove HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	programID  string
	httpClient *http.Client
}

// NewClient constructs a Client. baseURL should not have a trailing slash.
func NewClient(baseURL, apiKey, programID string) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		programID: programID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ExecuteRequest is the guest-program input: the raw receipt PDF bytes and
// the fixed line-number list the relay and the guest agree on.
type ExecuteRequest struct {
	ProgramID   string   `json:"program_id"`
	ReceiptData []byte   `json:"receipt_data"`
	LineNumbers []uint32 `json:"line_numbers"`
}

// ExecuteResult is the guest program's revealed output: the 32-byte
// commitment the relay compares against its own expected hash.
type ExecuteResult struct {
	Output [32]byte `json:"output"`
}

// Execute runs the guest program without generating a proof — a cheap
// sanity check used by the validate step before committing to the
// expensive full-proof run.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	req.ProgramID = c.programID
	var out ExecuteResult
	if err := c.postJSON(ctx, "/v1/execute", req, &out); err != nil {
		return nil, fmt.Errorf("prover execute: %w", err)
	}
	return &out, nil
}

// ProveRequest asks for a full proof of the same inputs already executed.
// This call is slow — on the order of minutes — and is only issued from the
// background settle task, never inline with an HTTP handler.
type ProveRequest struct {
	ProgramID   string   `json:"program_id"`
	ReceiptData []byte   `json:"receipt_data"`
	LineNumbers []uint32 `json:"line_numbers"`
}

// ProveResult is the full proof artifact, ready to submit on-chain.
type ProveResult struct {
	UserPublicValues []byte `json:"user_public_values"`
	Accumulator      []byte `json:"accumulator"`
	ProofData        []byte `json:"proof_data"`
	ProofID          string `json:"proof_id"`
}

// Prove generates a full proof. Callers are expected to have already run
// Execute and confirmed the output matches their expected hash.
func (c *Client) Prove(ctx context.Context, req ProveRequest) (*ProveResult, error) {
	req.ProgramID = c.programID
	var out ProveResult
	if err := c.postJSON(ctx, "/v1/prove", req, &out); err != nil {
		return nil, fmt.Errorf("prover prove: %w", err)
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prover returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
