// Package notify delivers membership activation notices. Delivery is best
// effort: callers log failures and carry on.
package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/models"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/telemetry"
)

// Activation describes a membership whose payment was just approved.
type Activation struct {
	Customer      models.Customer
	TransactionID string
	Currency      string
	// Source is "client" or "webhook".
	Source string
	At     time.Time
}

type Notifier interface {
	Notify(ctx context.Context, a Activation) error
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a Activation) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async runs the wrapped notifier in the background with its own timeout,
// detached from the caller's request context.
type Async struct {
	next    Notifier
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration) *Async {
	return &Async{next: next, timeout: timeout}
}

func (a *Async) Notify(_ context.Context, act Activation) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Notify(ctx, act); err != nil {
			telemetry.Logger.Error("Failed to deliver activation notice",
				zap.String("reference", act.Customer.Reference),
				zap.String("transaction_id", act.TransactionID),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until in-flight notices finish.
func (a *Async) Wait() {
	a.wg.Wait()
}

// Nop discards notices.
type Nop struct{}

func (Nop) Notify(context.Context, Activation) error { return nil }

// FormatAmount renders minor units the way es-CO displays currency,
// e.g. 15000000 COP -> "$150.000 COP".
func FormatAmount(minorUnits int64, currency string) string {
	fixed := decimal.New(minorUnits, -2).Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if minorUnits < 0 {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if frac != "00" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	if currency != "" {
		b.WriteByte(' ')
		b.WriteString(currency)
	}
	return b.String()
}
