// Package reconcile applies provider-reported transaction statuses to
// customer records. The client verification endpoint and the provider
// webhook both go through Reconciler.
package reconcile

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/apperr"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/events"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/interfaces"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/models"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/notify"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/telemetry"
)

const (
	SourceClient  = "client"
	SourceWebhook = "webhook"
)

// maxAttempts bounds re-reads after a compare-and-set loses a race.
const maxAttempts = 3

type Input struct {
	Reference      string
	TransactionID  string
	ProviderStatus string
	Source         string
}

type Result struct {
	Customer *models.Customer
	// Approved reports whether the record ends in the approved status.
	Approved bool
	// Applied is false when the report was a replay or the policy rejected it.
	Applied  bool
	Previous models.TransactionStatus
}

type Reconciler struct {
	repo      interfaces.CustomerRepository
	notifier  notify.Notifier
	publisher events.Publisher
	policy    Policy
	currency  string
	now       func() time.Time
}

func NewReconciler(repo interfaces.CustomerRepository, notifier notify.Notifier, publisher events.Publisher, policy Policy, currency string) *Reconciler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Reconciler{
		repo:      repo,
		notifier:  notifier,
		publisher: publisher,
		policy:    policy,
		currency:  currency,
		now:       time.Now,
	}
}

// Reconcile looks up the customer by payment reference and records the
// provider's transaction id and status. An unknown reference fails with a
// not found error and writes nothing. A notice goes out only when the
// record moves into approved, so replays never notify twice.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) (*Result, error) {
	ctx, span := telemetry.Tracer("navegantes/reconcile").Start(ctx, "reconcile.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.reference", in.Reference),
		attribute.String("provider.transaction_id", in.TransactionID),
		attribute.String("reconcile.source", in.Source),
	)

	if in.Reference == "" {
		return nil, apperr.Validation("Payment reference is required")
	}
	next := models.NormalizeStatus(in.ProviderStatus)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		customer, err := r.repo.GetByReference(ctx, in.Reference)
		if errors.Is(err, interfaces.ErrCustomerNotFound) {
			telemetry.Reconciliations.WithLabelValues(in.Source, "not_found").Inc()
			telemetry.Logger.Warn("Customer not found for payment reference",
				zap.String("reference", in.Reference),
				zap.String("source", in.Source),
			)
			return nil, apperr.NotFound("Customer not found")
		}
		if err != nil {
			return nil, apperr.Internal("Failed to load customer", err)
		}

		previous := customer.Status
		txID := in.TransactionID
		if txID == "" && customer.TransactionID != nil {
			txID = *customer.TransactionID
		}

		if previous == next && customer.TransactionID != nil && *customer.TransactionID == txID {
			telemetry.Reconciliations.WithLabelValues(in.Source, "replay").Inc()
			return r.result(customer, previous, false), nil
		}

		if !r.policy.Allows(previous, next) {
			telemetry.Reconciliations.WithLabelValues(in.Source, "rejected").Inc()
			telemetry.Logger.Warn("Status transition rejected by reconcile policy",
				zap.String("reference", in.Reference),
				zap.String("policy", string(r.policy)),
				zap.String("from", string(previous)),
				zap.String("to", string(next)),
				zap.String("source", in.Source),
			)
			return r.result(customer, previous, false), nil
		}

		err = r.repo.CompareAndSetStatus(ctx, customer.ID, customer.Version, txID, next)
		if errors.Is(err, interfaces.ErrVersionConflict) {
			telemetry.Logger.Info("Customer changed concurrently, re-reading",
				zap.String("reference", in.Reference),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, apperr.Internal("Failed to update customer", err)
		}

		now := r.now()
		customer.TransactionID = &txID
		customer.Status = next
		customer.Version++
		customer.UpdatedAt = now

		telemetry.Reconciliations.WithLabelValues(in.Source, "applied").Inc()
		telemetry.Logger.Info("Transaction reconciled",
			zap.String("reference", in.Reference),
			zap.String("transaction_id", txID),
			zap.String("from", string(previous)),
			zap.String("to", string(next)),
			zap.String("source", in.Source),
			zap.String("trace_id", telemetry.TraceID(ctx)),
		)

		r.publisher.PublishTransactionUpdated(ctx, events.TransactionUpdated{
			CustomerID:     customer.ID,
			Reference:      customer.Reference,
			TransactionID:  txID,
			Status:         string(next),
			PreviousStatus: string(previous),
			Version:        customer.Version,
			Source:         in.Source,
			Timestamp:      now,
		})

		if next == models.StatusApproved && previous != models.StatusApproved {
			r.notifyActivation(ctx, customer, txID, in.Source, now)
		}

		return r.result(customer, previous, true), nil
	}

	telemetry.Reconciliations.WithLabelValues(in.Source, "conflict").Inc()
	return nil, apperr.Conflict("Customer record is being updated concurrently")
}

func (r *Reconciler) notifyActivation(ctx context.Context, c *models.Customer, txID, source string, at time.Time) {
	err := r.notifier.Notify(ctx, notify.Activation{
		Customer:      *c,
		TransactionID: txID,
		Currency:      r.currency,
		Source:        source,
		At:            at,
	})
	if err != nil {
		telemetry.Logger.Error("Activation notice failed",
			zap.String("reference", c.Reference),
			zap.Error(apperr.Notifier("notify activation", err)),
		)
	}
}

func (r *Reconciler) result(c *models.Customer, previous models.TransactionStatus, applied bool) *Result {
	return &Result{
		Customer: c,
		Approved: c.Status == models.StatusApproved,
		Applied:  applied,
		Previous: previous,
	}
}
