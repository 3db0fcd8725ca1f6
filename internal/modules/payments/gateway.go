package payments

import (
	"context"
	"encoding/json"
	"time"
)

// CardData is the raw instrument sent for tokenization; it never touches storage.
type CardData struct {
	Number     string `json:"number"`
	CVC        string `json:"cvc"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CardHolder string `json:"card_holder"`
}

type TransactionRequest struct {
	AcceptanceToken string
	AmountCents     int64
	Currency        string
	CustomerEmail   string
	CardToken       string
	Installments    int
	Reference       string
	CustomerPhone   string
	CustomerName    string
}

// Transaction is the gateway's view of a charge.
type Transaction struct {
	ID            string
	Reference     string
	Status        string // gateway vocabulary, see Gateway.MapStatus
	StatusMessage string
	AmountCents   int64
	Currency      string
	CardBrand     string
	CardLastFour  string
	CreatedAt     time.Time

	Raw json.RawMessage // full gateway payload for audit
}

// Gateway is the remote payment processor. Business rejections (declines) come back as
// a Transaction with a non-approved status; only transport and validation failures are
// errors, wrapped with ErrGatewayUnavailable or ErrValidationRejected.
type Gateway interface {
	Name() string
	AcceptanceToken(ctx context.Context) (string, error)
	TokenizeCard(ctx context.Context, card CardData) (string, error)
	CreateTransaction(ctx context.Context, req TransactionRequest) (Transaction, error)
	FetchTransaction(ctx context.Context, transactionID string) (Transaction, error)

	// Webhook authenticity. Malformed input yields false, never a panic.
	VerifySignature(signature, event string, timestamp int64, secret string) bool
	// MapStatus is total: unknown statuses map to StatePending.
	MapStatus(status string) State
}
