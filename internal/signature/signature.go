// Package signature computes the checkout integrity signature and verifies
// provider webhook signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/apperr"
)

// Generate returns hex(SHA-256(reference || amount || currency || secret)).
// The concatenation has no separators and amount is written in decimal;
// the provider recomputes the same digest, so any change here breaks checkout.
func Generate(reference string, amountMinorUnits int64, currency, secret string) (string, error) {
	if secret == "" {
		return "", apperr.Configuration("Integrity secret is not configured")
	}
	if reference == "" || currency == "" || amountMinorUnits <= 0 {
		return "", apperr.Validation("reference, amount_minor_units and currency are required")
	}

	var b strings.Builder
	b.WriteString(reference)
	b.WriteString(strconv.FormatInt(amountMinorUnits, 10))
	b.WriteString(currency)
	b.WriteString(secret)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

// Sign returns the lowercase hex HMAC-SHA256 of body under secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks provided against the HMAC of the raw, unparsed body.
func VerifyWebhook(rawBody []byte, provided, secret string) bool {
	expected := Sign(rawBody, secret)
	got := strings.ToLower(strings.TrimSpace(provided))
	return hmac.Equal([]byte(expected), []byte(got))
}

type Outcome int

const (
	// Skipped means no secret or no signature header was available.
	Skipped Outcome = iota
	Valid
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "skipped"
	}
}

// Verifier holds the configured webhook secret.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Check verifies a delivery. Verification is skipped, not failed, when the
// secret is unset or the signature header is missing.
func (v *Verifier) Check(rawBody []byte, provided string) Outcome {
	if v.secret == "" || provided == "" {
		return Skipped
	}
	if VerifyWebhook(rawBody, provided, v.secret) {
		return Valid
	}
	return Invalid
}

func (v *Verifier) Configured() bool {
	return v.secret != ""
}
