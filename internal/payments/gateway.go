package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const chargeTimeout = 10 * time.Second

// ChargeRequest is a create-and-confirm charge in minor currency units. The
// idempotency key is the transaction code, so a network retry of the same
// payment cannot charge twice.
type ChargeRequest struct {
	IdempotencyKey string `json:"-"`
	AmountCents    int64  `json:"amount"`
	Currency       string `json:"currency,omitempty"`
	MethodRef      string `json:"payment_method"`
}

// ChargeResult carries the processor's reference for a successful charge.
type ChargeResult struct {
	Reference string
}

// Gateway wraps the external payment processor.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// DeclinedError is a charge the processor rejected (as opposed to a transport
// failure). Both leave the transaction unchanged; declines carry the reason.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	return "charge declined: " + e.Reason
}

// HTTPGateway talks to a processor's REST charge endpoint with a bounded
// timeout. Timeouts and transport errors surface as retryable errors; the
// caller's transaction is left untouched.
type HTTPGateway struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewHTTPGateway(baseURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: chargeTimeout},
	}
}

type chargeResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if req.Currency == "" {
		req.Currency = "usd"
	}
	body, err := json.Marshal(req)
	if err != nil {
		return ChargeResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.APIKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := g.HTTPClient.Do(httpReq)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	var cr chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return ChargeResult{}, fmt.Errorf("decode gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || cr.Status != "succeeded" {
		reason := cr.FailureReason
		if reason == "" {
			reason = fmt.Sprintf("gateway status %d", resp.StatusCode)
		}
		return ChargeResult{}, &DeclinedError{Reason: reason}
	}
	if cr.ID == "" {
		return ChargeResult{}, fmt.Errorf("gateway returned no charge id")
	}
	return ChargeResult{Reference: cr.ID}, nil
}
