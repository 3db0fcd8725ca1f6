package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const EventTransactionUpdated = "transaction.updated"

// WebhookDelivery is one inbound gateway notification as received by the transport.
type WebhookDelivery struct {
	Signature string
	Timestamp int64
	Attempt   int
	Body      []byte
}

type WebhookResult struct {
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	Outcome   Outcome `json:"outcome"`
	PaymentID string  `json:"paymentId,omitempty"`
}

type webhookEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		Transaction *webhookTransaction `json:"transaction"`
	} `json:"data"`
}

type webhookTransaction struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	StatusMessage *string `json:"status_message"`
}

type WebhookService struct {
	store   Store
	journal EventJournal
	gateway Gateway
	applier *Applier
	secret  string
	logger  *slog.Logger
	now     func() time.Time
}

// NewWebhookService wires the reconciler. journal may be nil.
func NewWebhookService(store Store, journal EventJournal, gw Gateway, applier *Applier, secret string) *WebhookService {
	return &WebhookService{
		store:   store,
		journal: journal,
		gateway: gw,
		applier: applier,
		secret:  secret,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

func (s *WebhookService) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Handle applies one delivery. A rejected signature leaves no trace besides a log line;
// every verified delivery is journaled with its outcome.
func (s *WebhookService) Handle(ctx context.Context, d WebhookDelivery) (WebhookResult, error) {
	// An undecodable body verifies against an empty event name, so an unsigned
	// delivery is always reported as a signature failure first.
	var env webhookEnvelope
	decodeErr := json.Unmarshal(d.Body, &env)
	if decodeErr != nil {
		env.Event = ""
	}

	if !s.gateway.VerifySignature(d.Signature, env.Event, d.Timestamp, s.secret) {
		s.logger.WarnContext(ctx, "webhook signature rejected", "event", env.Event, "timestamp", d.Timestamp, "attempt", d.Attempt)
		return WebhookResult{}, ErrInvalidSignature
	}
	if decodeErr != nil {
		s.logger.WarnContext(ctx, "webhook body is not json", "attempt", d.Attempt, "err", decodeErr)
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidPayload, decodeErr)
	}

	ev := &WebhookEvent{
		ID:              uuid.NewString(),
		Event:           env.Event,
		DeliveryAttempt: d.Attempt,
		PayloadJSON:     datatypes.JSON(d.Body),
		ReceivedAt:      s.now().UTC(),
	}

	if env.Event != EventTransactionUpdated {
		s.logger.InfoContext(ctx, "webhook event ignored", "event", env.Event)
		s.journalize(ctx, ev, OutcomeIgnored, nil)
		return WebhookResult{Success: true, Message: "Non-transaction event ignored", Outcome: OutcomeIgnored}, nil
	}

	tx := env.Data.Transaction
	if tx == nil || tx.ID == "" {
		err := fmt.Errorf("%w: no transaction data", ErrInvalidPayload)
		s.journalize(ctx, ev, OutcomeRejected, err)
		return WebhookResult{}, err
	}
	ev.TransactionID = &tx.ID
	ev.Status = tx.Status

	s.logger.InfoContext(ctx, "processing webhook", "transaction_id", tx.ID, "status", tx.Status, "attempt", d.Attempt)

	p, err := s.store.FindByTransactionID(ctx, tx.ID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			s.logger.ErrorContext(ctx, "webhook references unknown transaction", "transaction_id", tx.ID)
		}
		s.journalize(ctx, ev, OutcomeRejected, err)
		return WebhookResult{}, err
	}
	ev.PaymentID = &p.ID

	var statusMessage string
	if tx.StatusMessage != nil {
		statusMessage = *tx.StatusMessage
	}
	outcome, err := s.applier.Apply(ctx, p.ID, Observation{
		Status:          tx.Status,
		StatusMessage:   statusMessage,
		Raw:             rawTransaction(d.Body),
		Source:          SourceWebhook,
		DeliveryAttempt: d.Attempt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "webhook apply failed", "payment_id", p.ID, "transaction_id", tx.ID, "err", err)
		s.journalize(ctx, ev, OutcomeRejected, err)
		return WebhookResult{}, err
	}
	s.journalize(ctx, ev, outcome, nil)

	msg := "Webhook processed successfully"
	if outcome == OutcomeDuplicate {
		msg = "Payment already in target state"
	}
	return WebhookResult{Success: true, Message: msg, Outcome: outcome, PaymentID: p.ID}, nil
}

func (s *WebhookService) journalize(ctx context.Context, ev *WebhookEvent, outcome Outcome, procErr error) {
	if s.journal == nil {
		return
	}
	ev.Outcome = string(outcome)
	if procErr != nil {
		msg := truncate(procErr.Error(), 250)
		ev.ProcessError = &msg
	} else {
		processed := s.now().UTC()
		ev.ProcessedAt = &processed
	}
	if err := s.journal.Record(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "failed to journal webhook event", "event", ev.Event, "err", err)
	}
}

// rawTransaction keeps every field the gateway sent, not only the ones we decode.
func rawTransaction(body []byte) json.RawMessage {
	var env struct {
		Data struct {
			Transaction json.RawMessage `json:"transaction"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Data.Transaction) == 0 {
		return nil
	}
	return env.Data.Transaction
}
