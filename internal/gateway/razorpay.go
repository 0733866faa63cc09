package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ms-registration/internal/config"
	"ms-registration/internal/errs"
	"ms-registration/internal/logger"
)

// Client talks to the Razorpay orders API. All calls carry a bounded timeout
// through the injected http.Client.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	logger    *logger.Logger
}

func NewClient(cfg config.GatewayConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    log,
	}
}

// KeyID is the public key handle the client-side checkout widget needs.
func (c *Client) KeyID() string { return c.keyID }

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateRemoteOrder opens a payable order at the gateway for the exact
// server-computed total and returns the gateway's order reference. Non-2xx
// responses come back as a GatewayError whose status class tells the caller
// whether a retry makes sense; the raw body stays in the logs.
func (c *Client) CreateRemoteOrder(ctx context.Context, totalAmount int64, currency, receiptID string, metadata map[string]string) (string, error) {
	payload := createOrderRequest{
		Amount:   totalAmount,
		Currency: currency,
		Receipt:  receiptID,
		Notes:    metadata,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gateway order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("GATEWAY", fmt.Sprintf("Gateway order creation failed for receipt %s: %v", receiptID, err))
		return "", &errs.GatewayError{
			StatusCode:    http.StatusServiceUnavailable,
			PublicMessage: "payment service unavailable",
			InternalBody:  err.Error(),
			Err:           err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("GATEWAY", fmt.Sprintf("Gateway returned status %d for receipt %s: %s", resp.StatusCode, receiptID, string(respBody)))
		return "", &errs.GatewayError{
			StatusCode:    resp.StatusCode,
			PublicMessage: "payment service unavailable",
			InternalBody:  string(respBody),
		}
	}

	var remote createOrderResponse
	if err := json.Unmarshal(respBody, &remote); err != nil {
		c.logger.Error("GATEWAY", fmt.Sprintf("Failed to decode gateway response for receipt %s: %v", receiptID, err))
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}

	c.logger.Info("GATEWAY", fmt.Sprintf("Created gateway order %s for receipt %s (%d %s)", remote.ID, receiptID, remote.Amount, remote.Currency))
	return remote.ID, nil
}

// VerifySignature checks a claimed payment against the shared secret. This is
// the sole authority on whether a payment is genuine.
func (c *Client) VerifySignature(gatewayOrderRef, gatewayPaymentRef, signature string) error {
	if VerifyPaymentSignature(gatewayOrderRef, gatewayPaymentRef, signature, c.keySecret) {
		return nil
	}
	c.logger.LogSecurity("SIGNATURE", fmt.Sprintf("Signature mismatch for gateway order %s", gatewayOrderRef))
	return errs.ErrSignatureInvalid
}
