package payments

import (
	"context"
	"fmt"
	"log/slog"
)

// SyncService polls the gateway for a payment whose webhook may have been lost.
type SyncService struct {
	store   Store
	gateway Gateway
	applier *Applier
	logger  *slog.Logger
}

func NewSyncService(store Store, gw Gateway, applier *Applier) *SyncService {
	return &SyncService{store: store, gateway: gw, applier: applier, logger: slog.Default()}
}

func (s *SyncService) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *SyncService) Sync(ctx context.Context, paymentID string) (Payment, error) {
	p, err := s.store.FindByID(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if p.TransactionID == nil || *p.TransactionID == "" {
		return Payment{}, fmt.Errorf("%w: payment %s", ErrNoTransaction, paymentID)
	}

	tx, err := s.gateway.FetchTransaction(ctx, *p.TransactionID)
	if err != nil {
		s.logger.WarnContext(ctx, "sync fetch failed", "payment_id", p.ID, "transaction_id", *p.TransactionID, "err", err)
		return Payment{}, err
	}

	outcome, err := s.applier.Apply(ctx, p.ID, Observation{
		Status:        tx.Status,
		StatusMessage: tx.StatusMessage,
		Raw:           tx.Raw,
		Source:        SourceSync,
	})
	if err != nil {
		return Payment{}, err
	}
	s.logger.InfoContext(ctx, "payment synced", "payment_id", p.ID, "gateway_status", tx.Status, "outcome", outcome)

	return s.store.FindByID(ctx, p.ID)
}
