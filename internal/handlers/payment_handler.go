package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/apperr"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/config"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/middleware"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/models"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/provider"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/reconcile"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/signature"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/telemetry"
)

const EventTransactionUpdated = "transaction.updated"

// Reconciler is the reconciliation entry point shared by both status paths.
type Reconciler interface {
	Reconcile(ctx context.Context, in reconcile.Input) (*reconcile.Result, error)
}

type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Transaction *provider.Transaction `json:"transaction"`
	} `json:"data"`
	SentAt      string `json:"sent_at"`
	Environment string `json:"environment"`
}

type PaymentHandler struct {
	cfg        *config.Config
	fetcher    provider.TransactionFetcher
	reconciler Reconciler
}

func NewPaymentHandler(cfg *config.Config, fetcher provider.TransactionFetcher, reconciler Reconciler) *PaymentHandler {
	return &PaymentHandler{
		cfg:        cfg,
		fetcher:    fetcher,
		reconciler: reconciler,
	}
}

func (h *PaymentHandler) IntegritySignature(c *gin.Context) {
	var req models.IntegritySignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("Invalid request body"))
		return
	}
	if req.Reference == "" || req.AmountMinorUnits <= 0 || req.Currency == "" {
		telemetry.SignaturesIssued.WithLabelValues("invalid").Inc()
		respondError(c, apperr.Validation("Missing required parameters"))
		return
	}

	sig, err := signature.Generate(req.Reference, req.AmountMinorUnits, req.Currency, h.cfg.IntegritySecret)
	if err != nil {
		if apperr.Is(err, apperr.KindConfiguration) {
			telemetry.Logger.Error("Integrity secret is not configured")
		}
		telemetry.SignaturesIssued.WithLabelValues("error").Inc()
		respondError(c, err)
		return
	}

	telemetry.SignaturesIssued.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, models.IntegritySignatureResponse{
		Signature:        sig,
		Reference:        req.Reference,
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
	})
}

// VerifyTransaction re-fetches the transaction from the provider and
// reconciles the customer with the canonical status.
func (h *PaymentHandler) VerifyTransaction(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.VerifyTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TransactionID == "" {
		respondError(c, apperr.Validation("Transaction ID is required"))
		return
	}

	tx, err := h.fetcher.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.reconciler.Reconcile(ctx, reconcile.Input{
		Reference:      tx.Reference,
		TransactionID:  req.TransactionID,
		ProviderStatus: tx.Status,
		Source:         reconcile.SourceClient,
	})
	if err != nil {
		telemetry.Logger.Warn("Transaction verification failed",
			zap.String("transaction_id", req.TransactionID),
			zap.String("reference", tx.Reference),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction": tx,
		"customer":    result.Customer,
		"success":     result.Approved,
	})
}

// Webhook handles provider notifications. It answers 200 on every path
// except a bad signature (401, from middleware) or a malformed event (400),
// so the provider does not keep retrying deliveries we already handled.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()

	var event WebhookEvent
	if err := json.Unmarshal(middleware.GetRawBody(c), &event); err != nil {
		telemetry.WebhookDeliveries.WithLabelValues("malformed").Inc()
		respondError(c, apperr.Validation("Invalid event payload"))
		return
	}

	if event.Event != EventTransactionUpdated {
		telemetry.WebhookDeliveries.WithLabelValues("ignored").Inc()
		telemetry.Logger.Info("Ignoring webhook event", zap.String("event", event.Event))
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	tx := event.Data.Transaction
	if tx == nil || tx.Reference == "" || tx.ID == "" {
		telemetry.WebhookDeliveries.WithLabelValues("malformed").Inc()
		respondError(c, apperr.Validation("Invalid event structure"))
		return
	}

	result, err := h.reconciler.Reconcile(ctx, reconcile.Input{
		Reference:      tx.Reference,
		TransactionID:  tx.ID,
		ProviderStatus: tx.Status,
		Source:         reconcile.SourceWebhook,
	})
	if err != nil {
		telemetry.WebhookDeliveries.WithLabelValues(string(apperr.KindOf(err))).Inc()
		telemetry.Logger.Error("Webhook reconciliation failed",
			zap.String("transaction_id", tx.ID),
			zap.String("reference", tx.Reference),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	telemetry.WebhookDeliveries.WithLabelValues("processed").Inc()
	telemetry.Logger.Info("Webhook processed",
		zap.String("transaction_id", tx.ID),
		zap.String("status", string(result.Customer.Status)),
		zap.Bool("applied", result.Applied),
	)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err)})
}
