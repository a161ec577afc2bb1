// Package sfn provides a minimal Step Functions client for validating
// generated state machine definitions against a real or local endpoint.
package sfn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	targetValidate = "AWSStepFunctions.ValidateStateMachineDefinition"
	contentType    = "application/x-amz-json-1.0"
)

// Diagnostic is a single finding from the validation service.
type Diagnostic struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// ValidationResult is the response of a definition validation call.
type ValidationResult struct {
	Result      string       `json:"result"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// OK reports whether the definition passed validation.
func (r *ValidationResult) OK() bool {
	return r.Result == "OK"
}

// Client talks the AWS JSON 1.0 protocol to a Step Functions endpoint.
// It carries no credentials; the expected targets are local emulators
// such as LocalStack or Step Functions Local.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client for the given endpoint URL.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type validateRequest struct {
	Definition string `json:"definition"`
	Type       string `json:"type"`
}

// ValidateDefinition submits an ASL definition for validation and returns
// the service's diagnostics.
func (c *Client) ValidateDefinition(ctx context.Context, definition string) (*ValidationResult, error) {
	body, err := json.Marshal(validateRequest{Definition: definition, Type: "STANDARD"})
	if err != nil {
		return nil, fmt.Errorf("encoding validation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building validation request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Target", targetValidate)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling validation endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading validation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("validation endpoint returned %d: %s", resp.StatusCode, data)
	}

	var result ValidationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding validation response: %w", err)
	}
	return &result, nil
}
