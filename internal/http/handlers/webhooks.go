package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alaska-tech/veciapp-backend/internal/archive"
	"github.com/alaska-tech/veciapp-backend/internal/modules/payments"
)

const (
	HeaderSignature = "X-Wompi-Signature"
	HeaderTimestamp = "X-Wompi-Timestamp"
	HeaderAttempt   = "X-Wompi-Attempt"

	// deliveries below this attempt number are told to retry on failure
	maxRetryAttempt = 3

	maxWebhookBody = 1 << 20
)

type WebhookProcessor interface {
	Handle(ctx context.Context, d payments.WebhookDelivery) (payments.WebhookResult, error)
}

type WebhookHandler struct {
	Logger    *slog.Logger
	Processor WebhookProcessor
	Archive   archive.Archive // optional
}

func NewWebhookHandler(logger *slog.Logger, p WebhookProcessor, a archive.Archive) *WebhookHandler {
	return &WebhookHandler{Logger: logger, Processor: p, Archive: a}
}

// POST /api/payments/webhook
// Unauthenticated; the signature headers are verified by the processor.
func (h *WebhookHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		webhookFail(c, http.StatusBadRequest, "invalid body", false)
		return
	}

	attempt := 1
	if n, err := strconv.Atoi(strings.TrimSpace(c.GetHeader(HeaderAttempt))); err == nil && n > 0 {
		attempt = n
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(HeaderTimestamp)), 10, 64)
	if err != nil {
		h.Logger.WarnContext(ctx, "webhook without usable timestamp", "attempt", attempt)
		webhookFail(c, http.StatusUnauthorized, "invalid signature", false)
		return
	}

	res, err := h.Processor.Handle(ctx, payments.WebhookDelivery{
		Signature: c.GetHeader(HeaderSignature),
		Timestamp: ts,
		Attempt:   attempt,
		Body:      body,
	})

	switch {
	case err == nil:
		h.archive(ctx, body)
		ok(c, http.StatusOK, gin.H{
			"received":  true,
			"processed": true,
			"message":   res.Message,
			"outcome":   res.Outcome,
			"paymentId": res.PaymentID,
		})

	case errors.Is(err, payments.ErrInvalidSignature):
		webhookFail(c, http.StatusUnauthorized, "invalid signature", false)

	case errors.Is(err, payments.ErrInvalidPayload):
		webhookFail(c, http.StatusBadRequest, "invalid payload", false)

	case errors.Is(err, payments.ErrPaymentNotFound):
		h.archive(ctx, body)
		h.Logger.ErrorContext(ctx, "webhook for unknown payment", "attempt", attempt, "err", err)
		webhookFail(c, http.StatusNotFound, "payment not found", false)

	default:
		h.archive(ctx, body)
		retry := attempt < maxRetryAttempt
		h.Logger.ErrorContext(ctx, "webhook processing failed", "attempt", attempt, "retry", retry, "err", err)
		msg := "processing error, will retry"
		if !retry {
			msg = "max retries reached"
		}
		webhookFail(c, http.StatusInternalServerError, msg, retry)
	}
}

func (h *WebhookHandler) archive(ctx context.Context, body []byte) {
	if h.Archive == nil {
		return
	}
	res, err := h.Archive.Put(ctx, bytes.NewReader(body), archive.PutInput{Kind: "webhooks", ContentType: "application/json"})
	if err != nil {
		h.Logger.WarnContext(ctx, "webhook archive failed", "err", err)
		return
	}
	h.Logger.DebugContext(ctx, "webhook archived", "key", res.Key)
}

func webhookFail(c *gin.Context, status int, msg string, retry bool) {
	c.JSON(status, gin.H{
		"data":   gin.H{"success": false, "retry": retry},
		"error":  msg,
		"status": status,
	})
}
