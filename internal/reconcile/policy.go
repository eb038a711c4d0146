package reconcile

import (
	"fmt"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/models"
)

// Policy decides whether a reported status may replace the stored one.
type Policy string

const (
	// ApprovedSticky never moves a record out of approved. Other final
	// statuses may still be corrected by a later report.
	ApprovedSticky Policy = "approved-sticky"
	// FirstWriteWins keeps the first final status ever stored.
	FirstWriteWins Policy = "first-write-wins"
	// LastWriteWins lets any final status replace another.
	LastWriteWins Policy = "last-write-wins"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case ApprovedSticky, FirstWriteWins, LastWriteWins:
		return p, nil
	case "":
		return ApprovedSticky, nil
	default:
		return "", fmt.Errorf("unknown reconcile policy %q", s)
	}
}

// Allows reports whether current may transition to next. Under every
// policy a final status is never replaced by a non-final one.
func (p Policy) Allows(current, next models.TransactionStatus) bool {
	if current == next {
		return true
	}
	if !current.IsTerminal() {
		return true
	}
	if !next.IsTerminal() {
		return false
	}

	switch p {
	case FirstWriteWins:
		return false
	case LastWriteWins:
		return true
	default:
		return current != models.StatusApproved
	}
}
