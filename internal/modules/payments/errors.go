package payments

import "errors"

var (
	// ErrValidationRejected: the gateway (or local validation) refused the input. Not retried.
	ErrValidationRejected = errors.New("validation rejected")
	// ErrGatewayUnavailable: network failure, timeout or 5xx from the gateway.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrInvalidPayload     = errors.New("invalid webhook payload")
	ErrPaymentNotFound    = errors.New("payment not found")
	// ErrUpdateFailed: the conditional update lost every race within the retry budget.
	ErrUpdateFailed       = errors.New("payment update failed")
	ErrNoTransaction      = errors.New("payment has no gateway transaction")
	ErrDuplicateReference = errors.New("duplicate payment reference")
)
