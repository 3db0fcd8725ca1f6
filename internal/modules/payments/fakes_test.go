package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alaska-tech/veciapp-backend/internal/shared/retry"
)

// memStore mimics the conditional UPDATE of the SQL store.
type memStore struct {
	mu       sync.Mutex
	rows     map[string]Payment
	creates  int
	updates  int
	failNext error
	// failTimes repeats failNext on that many consecutive creates; zero means once.
	failTimes int

	// loseRaces makes the next N conditional updates report zero rows.
	loseRaces int

	// beforeUpdate runs outside the lock right before the conditional update, letting a
	// test inject a competing writer.
	beforeUpdate func(id string)
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]Payment{}}
}

func (m *memStore) Create(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		if m.failTimes > 1 {
			m.failTimes--
		} else {
			m.failNext = nil
		}
		return err
	}
	for _, r := range m.rows {
		if r.Reference == p.Reference {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, p.Reference)
		}
	}
	m.rows[p.ID] = *p
	m.creates++
	return nil
}

func (m *memStore) FindByID(_ context.Context, id string) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return Payment{}, fmt.Errorf("%w: id=%s", ErrPaymentNotFound, id)
	}
	return p, nil
}

func (m *memStore) FindByTransactionID(_ context.Context, txID string) (Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.TransactionID != nil && *p.TransactionID == txID {
			return p, nil
		}
	}
	return Payment{}, fmt.Errorf("%w: transaction_id=%s", ErrPaymentNotFound, txID)
}

func (m *memStore) UpdateIfState(_ context.Context, id string, expected State, upd StateUpdate) (int64, error) {
	if m.beforeUpdate != nil {
		m.beforeUpdate(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loseRaces > 0 {
		m.loseRaces--
		return 0, nil
	}
	p, ok := m.rows[id]
	if !ok || p.State != expected {
		return 0, nil
	}
	p.State = upd.State
	p.RawResponse = upd.RawResponse
	p.FailureReason = upd.FailureReason
	p.Metadata = upd.Metadata
	p.UpdatedAt = upd.UpdatedAt
	m.rows[id] = p
	m.updates++
	return 1, nil
}

func (m *memStore) put(p Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = p
}

func (m *memStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates + m.updates
}

type memJournal struct {
	mu     sync.Mutex
	events []WebhookEvent
}

func (j *memJournal) Record(_ context.Context, ev *WebhookEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, *ev)
	return nil
}

// fakeGateway uses the real signature and mapping rules so reconciler tests exercise them.
type fakeGateway struct {
	acceptanceErr error
	createErr     error
	createTx      Transaction
	fetchErr      error
	fetchTx       Transaction
	tokenErr      error

	lastRequest TransactionRequest
	fetches     int
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) AcceptanceToken(context.Context) (string, error) {
	if g.acceptanceErr != nil {
		return "", g.acceptanceErr
	}
	return "acc_tok", nil
}

func (g *fakeGateway) TokenizeCard(_ context.Context, card CardData) (string, error) {
	if g.tokenErr != nil {
		return "", g.tokenErr
	}
	return "tok_" + card.Number[len(card.Number)-4:], nil
}

func (g *fakeGateway) CreateTransaction(_ context.Context, req TransactionRequest) (Transaction, error) {
	g.lastRequest = req
	if g.createErr != nil {
		return Transaction{}, g.createErr
	}
	tx := g.createTx
	tx.Reference = req.Reference
	return tx, nil
}

func (g *fakeGateway) FetchTransaction(_ context.Context, id string) (Transaction, error) {
	g.fetches++
	if g.fetchErr != nil {
		return Transaction{}, g.fetchErr
	}
	tx := g.fetchTx
	tx.ID = id
	return tx, nil
}

func (g *fakeGateway) VerifySignature(signature, event string, timestamp int64, secret string) bool {
	return signature == testSign(event, timestamp, secret)
}

func (g *fakeGateway) MapStatus(status string) State {
	switch strings.ToUpper(status) {
	case "APPROVED":
		return StateCompleted
	case "DECLINED", "ERROR":
		return StateFailed
	case "VOIDED", "REFUNDED", "PARTIALLY_REFUNDED":
		return StateRefunded
	}
	return StatePending
}

func testSign(event string, timestamp int64, secret string) string {
	return fmt.Sprintf("%d.%s:%s", timestamp, event, secret)
}

func noSleepPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		Backoff:     retry.Linear(time.Millisecond),
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func strp(s string) *string { return &s }

func seedPayment(store *memStore, id, txID string, state State) Payment {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := Payment{
		ID:            id,
		OrderID:       "order-1",
		CustomerID:    "cust-1",
		VendorID:      "vend-1",
		Type:          TypeCreditCard,
		State:         state,
		AmountCents:   150000,
		Currency:      "COP",
		Reference:     "ORDER_order-1_" + id,
		TransactionID: strp(txID),
		GatewayName:   "fake",
		PaymentDate:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	store.put(p)
	return p
}
