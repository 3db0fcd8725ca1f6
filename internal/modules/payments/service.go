package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Service drives the synchronous "charge now" flow.
type Service struct {
	store    Store
	gateway  Gateway
	refs     *ReferenceGenerator
	currency string
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(store Store, gw Gateway, refs *ReferenceGenerator, currency string) *Service {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Service{store: store, gateway: gw, refs: refs, currency: currency, logger: slog.Default(), now: time.Now}
}

func (s *Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

type ChargeInput struct {
	OrderID       string `json:"orderId"`
	CustomerID    string `json:"customerId"`
	VendorID      string `json:"vendorId"`
	CardToken     string `json:"token"`
	AmountCents   int64  `json:"amountInCents"`
	Currency      string `json:"currency"`
	Installments  int    `json:"installments"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	CustomerName  string `json:"customerName"`
	Description   string `json:"description"`
	InvoiceNumber string `json:"invoiceNumber"`
}

func (in ChargeInput) validate() error {
	switch {
	case strings.TrimSpace(in.OrderID) == "":
		return fmt.Errorf("%w: order id required", ErrValidationRejected)
	case strings.TrimSpace(in.CustomerID) == "":
		return fmt.Errorf("%w: customer id required", ErrValidationRejected)
	case strings.TrimSpace(in.VendorID) == "":
		return fmt.Errorf("%w: vendor id required", ErrValidationRejected)
	case strings.TrimSpace(in.CardToken) == "":
		return fmt.Errorf("%w: card token required", ErrValidationRejected)
	case in.AmountCents <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrValidationRejected)
	}
	return nil
}

func (s *Service) TokenizeCard(ctx context.Context, card CardData) (string, error) {
	if strings.TrimSpace(card.Number) == "" || strings.TrimSpace(card.CVC) == "" {
		return "", fmt.Errorf("%w: card number and cvc required", ErrValidationRejected)
	}
	return s.gateway.TokenizeCard(ctx, card)
}

// ChargeCard always leaves a row behind once the gateway is contacted: a new payment in
// the mapped state on success, or a failed row carrying the error before the error is
// returned to the caller.
func (s *Service) ChargeCard(ctx context.Context, in ChargeInput) (Payment, error) {
	if err := in.validate(); err != nil {
		return Payment{}, err
	}

	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = s.currency
	}
	installments := in.Installments
	if installments < 1 {
		installments = 1
	}

	reference := s.refs.Next(in.OrderID)
	now := s.now().UTC()
	p := Payment{
		ID:            uuid.NewString(),
		OrderID:       in.OrderID,
		CustomerID:    in.CustomerID,
		VendorID:      in.VendorID,
		Type:          TypeCreditCard,
		State:         StatePending,
		AmountCents:   in.AmountCents,
		Currency:      currency,
		Reference:     reference,
		GatewayName:   s.gateway.Name(),
		InvoiceNumber: strPtr(in.InvoiceNumber),
		PaymentDate:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	meta := map[string]any{
		"customer_email": in.CustomerEmail,
		"customer_phone": in.CustomerPhone,
		"customer_name":  in.CustomerName,
		"description":    in.Description,
	}

	acceptance, err := s.gateway.AcceptanceToken(ctx)
	if err != nil {
		return s.recordFailure(ctx, p, meta, err)
	}

	tx, err := s.gateway.CreateTransaction(ctx, TransactionRequest{
		AcceptanceToken: acceptance,
		AmountCents:     in.AmountCents,
		Currency:        currency,
		CustomerEmail:   in.CustomerEmail,
		CardToken:       in.CardToken,
		Installments:    installments,
		Reference:       reference,
		CustomerPhone:   in.CustomerPhone,
		CustomerName:    in.CustomerName,
	})
	if err != nil {
		return s.recordFailure(ctx, p, meta, err)
	}

	p.State = s.gateway.MapStatus(tx.Status)
	p.TransactionID = strPtr(tx.ID)
	p.CardBrand = strPtr(tx.CardBrand)
	p.CardLastFour = strPtr(tx.CardLastFour)
	p.RawResponse = datatypes.JSON(tx.Raw)
	if !tx.CreatedAt.IsZero() {
		p.PaymentDate = tx.CreatedAt.UTC()
	}
	if p.State == StateFailed {
		p.FailureReason = failureReason(Observation{Status: tx.Status, StatusMessage: tx.StatusMessage})
	}
	meta["gateway_status"] = tx.Status
	p.Metadata = encodeMeta(meta)

	if err := s.store.Create(ctx, &p); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist payment", "reference", reference, "transaction_id", tx.ID, "err", err)
		return s.recordUnpersisted(ctx, p, meta, fmt.Errorf("persist payment %s: %w", reference, err))
	}

	s.logger.InfoContext(ctx, "card payment created",
		"payment_id", p.ID, "order_id", p.OrderID, "transaction_id", tx.ID,
		"gateway_status", tx.Status, "state", p.State)
	return p, nil
}

func (s *Service) recordFailure(ctx context.Context, p Payment, meta map[string]any, cause error) (Payment, error) {
	msg := truncate(cause.Error(), 255)
	p.State = StateFailed
	p.FailureReason = &msg
	raw, _ := json.Marshal(map[string]string{"error": cause.Error()})
	p.RawResponse = datatypes.JSON(raw)
	meta["error"] = cause.Error()
	p.Metadata = encodeMeta(meta)

	s.logger.WarnContext(ctx, "card payment attempt failed", "payment_id", p.ID, "order_id", p.OrderID, "reference", p.Reference, "err", cause)

	if err := s.store.Create(ctx, &p); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist failed payment attempt", "reference", p.Reference, "err", err)
		return Payment{}, errors.Join(cause, fmt.Errorf("persist failed attempt: %w", err))
	}
	return p, cause
}

// recordUnpersisted retries the write of a charge the gateway already accepted. The row
// keeps the gateway state and transaction id so webhooks and sync can still reconcile it;
// a failed state here would be terminal and hide a captured payment.
func (s *Service) recordUnpersisted(ctx context.Context, p Payment, meta map[string]any, persistErr error) (Payment, error) {
	meta["persist_error"] = truncate(persistErr.Error(), 255)
	p.Metadata = encodeMeta(meta)
	p.UpdatedAt = s.now().UTC()

	if err := s.store.Create(ctx, &p); err != nil {
		s.logger.ErrorContext(ctx, "charge accepted by gateway but not recorded",
			"payment_id", p.ID, "reference", p.Reference, "transaction_id", deref(p.TransactionID), "err", err)
		return Payment{}, errors.Join(persistErr, fmt.Errorf("persist attempt audit: %w", err))
	}

	s.logger.WarnContext(ctx, "card payment recorded on second write",
		"payment_id", p.ID, "transaction_id", deref(p.TransactionID), "state", p.State)
	return p, nil
}

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, id string) (Payment, error) {
	return s.store.FindByID(ctx, id)
}

func encodeMeta(meta map[string]any) datatypes.JSON {
	b, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
