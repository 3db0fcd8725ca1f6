package wompi

import (
	"strings"

	"github.com/alaska-tech/veciapp-backend/internal/modules/payments"
)

var statusMap = map[string]payments.State{
	"PENDING":            payments.StatePending,
	"APPROVED":           payments.StateCompleted,
	"DECLINED":           payments.StateFailed,
	"ERROR":              payments.StateFailed,
	"VOIDED":             payments.StateRefunded,
	"REFUNDED":           payments.StateRefunded,
	"PARTIALLY_REFUNDED": payments.StateRefunded,
}

// MapStatus translates a gateway status; anything unknown is pending.
func MapStatus(status string) payments.State {
	if s, ok := statusMap[strings.ToUpper(strings.TrimSpace(status))]; ok {
		return s
	}
	return payments.StatePending
}
