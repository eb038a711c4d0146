package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/apperr"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/telemetry"
)

var bogota = time.FixedZone("America/Bogota", -5*60*60)

var activationTemplate = template.Must(template.New("activation").Parse(`
<h2>Nueva Membresía Activada</h2>
<p><strong>Cliente:</strong> {{.Name}}</p>
<p><strong>Identificación:</strong> {{.Identification}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Teléfono:</strong> {{.Phone}}</p>
<p><strong>Plan:</strong> {{.Plan}}</p>
<p><strong>Monto:</strong> {{.Amount}}</p>
<p><strong>ID Transacción:</strong> {{.TransactionID}}</p>
<p><strong>Referencia:</strong> {{.Reference}}</p>
<p><strong>Fecha:</strong> {{.Date}}</p>
<p><strong>Procesado por:</strong> {{.Source}}</p>
`))

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailNotifier mails an activation summary to the staff inbox.
type EmailNotifier struct {
	sender emailSender
	from   string
	to     []string
}

func NewEmailNotifier(apiKey, from string, to []string) *EmailNotifier {
	return &EmailNotifier{
		sender: resend.NewClient(apiKey).Emails,
		from:   from,
		to:     to,
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, a Activation) error {
	html, err := renderActivation(a)
	if err != nil {
		return apperr.Notifier("Failed to render activation email", err)
	}

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      n.to,
		Subject: fmt.Sprintf("Nueva Membresía Activada - %s", a.Customer.FullName()),
		Html:    html,
	}

	sent, err := n.sender.SendWithContext(ctx, params)
	if err != nil {
		telemetry.Notifications.WithLabelValues("email", "error").Inc()
		return apperr.Notifier("Failed to send activation email", err)
	}

	telemetry.Notifications.WithLabelValues("email", "sent").Inc()
	telemetry.Logger.Info("Activation email sent",
		zap.String("reference", a.Customer.Reference),
		zap.String("email_id", sent.Id),
	)
	return nil
}

func renderActivation(a Activation) (string, error) {
	source := "Verificación del cliente"
	if a.Source == "webhook" {
		source = "Webhook automático"
	}

	var buf bytes.Buffer
	err := activationTemplate.Execute(&buf, map[string]string{
		"Name":           a.Customer.FullName(),
		"Identification": a.Customer.Identification,
		"Email":          a.Customer.Email,
		"Phone":          a.Customer.Phone,
		"Plan":           string(a.Customer.Plan),
		"Amount":         FormatAmount(a.Customer.AmountInCents, a.Currency),
		"TransactionID":  a.TransactionID,
		"Reference":      a.Customer.Reference,
		"Date":           a.At.In(bogota).Format("02/01/2006, 15:04:05"),
		"Source":         source,
	})
	return buf.String(), err
}
