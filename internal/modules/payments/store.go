package payments

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// Store is the durable table of payment attempts.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	FindByID(ctx context.Context, id string) (Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (Payment, error)

	// UpdateIfState writes upd only while the row is still in expected and reports the
	// number of rows affected; zero means another writer got there first.
	UpdateIfState(ctx context.Context, id string, expected State, upd StateUpdate) (int64, error)
}

type StateUpdate struct {
	State         State
	RawResponse   datatypes.JSON
	FailureReason *string
	Metadata      datatypes.JSON
	UpdatedAt     time.Time
}

// EventJournal records verified webhook deliveries.
type EventJournal interface {
	Record(ctx context.Context, ev *WebhookEvent) error
}

type ListParams struct {
	CustomerID string
	VendorID   string
	State      State // optional filter
	Page       int   // zero-based
	Limit      int
}

type ListResult struct {
	Items    []Payment `json:"data"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	LastPage int       `json:"lastPage"`
}

// Queries are the read-only listings served to the API.
type Queries interface {
	FindByID(ctx context.Context, id string) (Payment, error)
	ListByCustomer(ctx context.Context, in ListParams) (ListResult, error)
	ListByVendor(ctx context.Context, in ListParams) (ListResult, error)
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
}
