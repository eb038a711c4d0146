package notify

import (
	"context"
	"encoding/json"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/apperr"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/telemetry"
)

const ActivationSubject = "membership.activated"

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type activationEvent struct {
	CustomerID    string `json:"customer_id"`
	Reference     string `json:"reference"`
	Plan          string `json:"plan"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	TransactionID string `json:"transaction_id"`
	AmountInCents int64  `json:"amount_in_cents"`
	Currency      string `json:"currency"`
	Source        string `json:"source"`
	ActivatedAt   string `json:"activated_at"`
}

// NatsNotifier announces activations so the learning platform can grant access.
type NatsNotifier struct {
	conn Publisher
}

func NewNatsNotifier(conn Publisher) *NatsNotifier {
	return &NatsNotifier{conn: conn}
}

func (n *NatsNotifier) Notify(_ context.Context, a Activation) error {
	payload, err := json.Marshal(activationEvent{
		CustomerID:    a.Customer.ID,
		Reference:     a.Customer.Reference,
		Plan:          string(a.Customer.Plan),
		Email:         a.Customer.Email,
		Name:          a.Customer.FullName(),
		TransactionID: a.TransactionID,
		AmountInCents: a.Customer.AmountInCents,
		Currency:      a.Currency,
		Source:        a.Source,
		ActivatedAt:   a.At.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return apperr.Notifier("Failed to encode activation event", err)
	}

	if err := n.conn.Publish(ActivationSubject, payload); err != nil {
		telemetry.Notifications.WithLabelValues("nats", "error").Inc()
		return apperr.Notifier("Failed to publish activation event", err)
	}
	telemetry.Notifications.WithLabelValues("nats", "sent").Inc()
	return nil
}
