package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/apperr"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/config"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/interfaces"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/models"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/signature"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/telemetry"
)

type RegistrationHandler struct {
	cfg  *config.Config
	repo interfaces.CustomerRepository
	now  func() time.Time
}

func NewRegistrationHandler(cfg *config.Config, repo interfaces.CustomerRepository) *RegistrationHandler {
	return &RegistrationHandler{cfg: cfg, repo: repo, now: time.Now}
}

func (h *RegistrationHandler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": models.Plans(), "currency": h.cfg.Currency})
}

// CreateRegistration stores a pending customer under a fresh payment
// reference and returns what the hosted checkout widget needs.
func (h *RegistrationHandler) CreateRegistration(c *gin.Context) {
	ctx := c.Request.Context()

	var req models.CreateRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.Logger.Warn("Invalid registration request", zap.Error(err))
		respondError(c, apperr.Validation("Please complete every field of the form"))
		return
	}

	plan, ok := models.LookupPlan(models.PlanID(strings.ToLower(string(req.Plan))))
	if !ok {
		respondError(c, apperr.Validation("Unknown membership plan"))
		return
	}

	reference := NewReference(h.now())
	sig, err := signature.Generate(reference, plan.AmountInCents, h.cfg.Currency, h.cfg.IntegritySecret)
	if err != nil {
		telemetry.Logger.Error("Failed to sign registration", zap.Error(err))
		respondError(c, err)
		return
	}

	customer := &models.Customer{
		ID:             uuid.New().String(),
		FirstNames:     strings.TrimSpace(req.FirstNames),
		LastNames:      strings.TrimSpace(req.LastNames),
		Identification: strings.TrimSpace(req.Identification),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		BirthDate:      req.BirthDate,
		Address:        strings.TrimSpace(req.Address),
		City:           strings.TrimSpace(req.City),
		Plan:           plan.ID,
		AmountInCents:  plan.AmountInCents,
		Reference:      reference,
		Status:         models.StatusPending,
	}

	if err := h.repo.Create(ctx, customer); err != nil {
		if errors.Is(err, interfaces.ErrDuplicateReference) {
			respondError(c, apperr.Conflict("Payment reference collision, please retry"))
			return
		}
		telemetry.Logger.Error("Failed to save customer",
			zap.String("reference", reference),
			zap.Error(err),
		)
		respondError(c, apperr.Internal("Failed to save registration", err))
		return
	}

	telemetry.Logger.Info("Registration created",
		zap.String("customer_id", customer.ID),
		zap.String("reference", reference),
		zap.String("plan", string(plan.ID)),
		zap.String("trace_id", telemetry.TraceID(ctx)),
	)

	c.JSON(http.StatusCreated, models.RegistrationResponse{
		Customer:      customer,
		Reference:     reference,
		AmountInCents: plan.AmountInCents,
		Currency:      h.cfg.Currency,
		Signature:     sig,
		PublicKey:     h.cfg.PublicKey(),
	})
}

func (h *RegistrationHandler) GetRegistration(c *gin.Context) {
	customer, err := h.repo.GetByReference(c.Request.Context(), c.Param("reference"))
	if errors.Is(err, interfaces.ErrCustomerNotFound) {
		respondError(c, apperr.NotFound("Registration not found"))
		return
	}
	if err != nil {
		respondError(c, apperr.Internal("Failed to fetch registration", err))
		return
	}

	c.JSON(http.StatusOK, customer)
}

// NewReference returns "NAV-<unix millis>-<9 random chars>".
func NewReference(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
	return fmt.Sprintf("NAV-%d-%s", now.UnixMilli(), suffix)
}
