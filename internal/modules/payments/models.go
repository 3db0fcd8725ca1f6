package payments

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateRefunded  State = "refunded"
)

// Terminal states never move again.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateRefunded:
		return true
	}
	return false
}

func (s State) Valid() bool {
	return s == StatePending || s.Terminal()
}

const (
	TypeCreditCard  = "credit_card"
	DefaultCurrency = "COP"
)

// Payment is one charge attempt. Rows are never deleted.
type Payment struct {
	ID         string `gorm:"type:char(36);primaryKey" json:"id"`
	OrderID    string `gorm:"type:varchar(64);not null;index:ix_payments_order_id" json:"orderId"`
	CustomerID string `gorm:"type:varchar(64);not null;index:ix_payments_customer_id" json:"customerId"`
	VendorID   string `gorm:"type:varchar(64);not null;index:ix_payments_vendor_id" json:"vendorId"`
	Type       string `gorm:"type:varchar(32);not null" json:"type"`
	State      State  `gorm:"type:varchar(16);not null" json:"state"`

	AmountCents int64  `gorm:"not null" json:"amountInCents"`
	Currency    string `gorm:"type:char(3);not null" json:"currency"`

	Reference     string  `gorm:"type:varchar(191);not null;uniqueIndex:ux_payments_reference" json:"reference"`
	TransactionID *string `gorm:"type:varchar(128);index:ix_payments_transaction_id" json:"transactionId,omitempty"`
	GatewayName   string  `gorm:"type:varchar(32);not null" json:"gatewayName"`

	CardBrand    *string `gorm:"type:varchar(32)" json:"cardBrand,omitempty"`
	CardLastFour *string `gorm:"type:varchar(4)" json:"cardLastFour,omitempty"`

	RawResponse   datatypes.JSON `gorm:"type:json" json:"rawResponse,omitempty"`
	FailureReason *string        `gorm:"type:varchar(255)" json:"failureReason,omitempty"`
	InvoiceNumber *string        `gorm:"type:varchar(64)" json:"invoiceNumber,omitempty"`
	Metadata      datatypes.JSON `gorm:"type:json" json:"metadata,omitempty"`

	PaymentDate time.Time `gorm:"not null" json:"paymentDate"`
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null" json:"updatedAt"`
}

func (Payment) TableName() string { return "payments" }

// Meta decodes the metadata bag; a broken or empty column yields an empty map.
func (p Payment) Meta() map[string]any {
	out := map[string]any{}
	if len(p.Metadata) == 0 {
		return out
	}
	_ = json.Unmarshal(p.Metadata, &out)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// WebhookEvent journals every verified gateway delivery.
type WebhookEvent struct {
	ID              string         `gorm:"type:char(36);primaryKey"`
	Event           string         `gorm:"type:varchar(64);not null"`
	TransactionID   *string        `gorm:"type:varchar(128);index:ix_payment_webhook_events_transaction_id"`
	PaymentID       *string        `gorm:"type:char(36)"`
	Status          string         `gorm:"type:varchar(32);not null"`
	DeliveryAttempt int            `gorm:"not null"`
	Outcome         string         `gorm:"type:varchar(16);not null"`
	PayloadJSON     datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt   time.Time  `gorm:"not null"`
	ProcessedAt  *time.Time `gorm:"index:ix_payment_webhook_events_processed_at"`
	ProcessError *string    `gorm:"type:varchar(255)"`
}

func (WebhookEvent) TableName() string { return "payment_webhook_events" }

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
