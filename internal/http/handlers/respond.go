package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/alaska-tech/veciapp-backend/internal/modules/payments"
	"github.com/alaska-tech/veciapp-backend/internal/shared/apperr"
)

// ok writes the success envelope {data, error, status}.
func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data, "error": nil, "status": status})
}

// toAppErr maps payment failures to the API error taxonomy.
func toAppErr(err error) *apperr.AppError {
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	switch {
	case errors.Is(err, payments.ErrValidationRejected):
		return apperr.InvalidErr(publicReason(err, payments.ErrValidationRejected, "The payment was rejected."), nil).WithCause(err)
	case errors.Is(err, payments.ErrGatewayUnavailable):
		return apperr.UnavailableErr("The payment gateway is unavailable, try again later.").WithCause(err)
	case errors.Is(err, payments.ErrPaymentNotFound):
		return apperr.NotFoundErr("Payment not found.").WithCause(err)
	case errors.Is(err, payments.ErrNoTransaction):
		return apperr.InvalidErr("The payment has no gateway transaction to sync.", nil).WithCause(err)
	case errors.Is(err, payments.ErrUpdateFailed), errors.Is(err, payments.ErrDuplicateReference):
		return apperr.ConflictErr("The payment is being updated, try again.").WithCause(err)
	case errors.Is(err, payments.ErrInvalidSignature):
		return apperr.UnauthorizedErr("Invalid signature.").WithCause(err)
	case errors.Is(err, payments.ErrInvalidPayload):
		return apperr.InvalidErr("Invalid payload.", nil).WithCause(err)
	}
	return apperr.Wrap(err)
}

// publicReason keeps the gateway's own explanation, which is meant for end users.
func publicReason(err, sentinel error, fallback string) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return fallback
}
