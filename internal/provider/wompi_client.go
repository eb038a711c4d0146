// Package provider talks to the payment provider's transaction API.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/apperr"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/telemetry"
)

type Transaction struct {
	ID                string     `json:"id"`
	Reference         string     `json:"reference"`
	Status            string     `json:"status"`
	StatusMessage     string     `json:"status_message,omitempty"`
	AmountInCents     int64      `json:"amount_in_cents"`
	Currency          string     `json:"currency"`
	PaymentMethodType string     `json:"payment_method_type,omitempty"`
	CustomerEmail     string     `json:"customer_email,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	FinalizedAt       *time.Time `json:"finalized_at,omitempty"`
}

type envelope struct {
	Data *Transaction `json:"data"`
}

// TransactionFetcher is the lookup the verification endpoint depends on.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
}

type Client struct {
	baseURL    string
	publicKey  string
	httpClient *http.Client
}

func NewClient(baseURL, publicKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		publicKey:  publicKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetTransaction fetches the canonical transaction record by provider id.
func (c *Client) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	ctx, span := telemetry.Tracer("navegantes/provider").Start(ctx, "provider.GetTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("provider.transaction_id", id))

	start := time.Now()
	status := "error"
	defer func() {
		telemetry.ProviderLookups.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}()

	endpoint := fmt.Sprintf("%s/transactions/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperr.Internal("Failed to build provider request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.publicKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider unreachable")
		telemetry.Logger.Error("Provider transaction lookup failed",
			zap.String("transaction_id", id),
			zap.Error(err),
		)
		return nil, apperr.Upstream("Failed to verify transaction with provider", 0, err)
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Upstream("Failed to read provider response", 0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, resp.Status)
		telemetry.Logger.Warn("Provider returned non-2xx for transaction lookup",
			zap.String("transaction_id", id),
			zap.Int("status", resp.StatusCode),
		)
		return nil, apperr.Upstream("Failed to verify transaction with provider", resp.StatusCode, nil)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperr.Upstream("Malformed provider response", 0, err)
	}
	tx := env.Data
	if tx == nil {
		// Some sandbox proxies return the transaction without the envelope.
		tx = &Transaction{}
		if err := json.Unmarshal(body, tx); err != nil {
			return nil, apperr.Upstream("Malformed provider response", 0, err)
		}
	}
	if tx.ID == "" {
		tx.ID = id
	}

	return tx, nil
}
