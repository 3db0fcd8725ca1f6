package payments

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alaska-tech/veciapp-backend/internal/database"
)

type Repo struct{ db *gorm.DB }

var newestFirst = clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Create(ctx context.Context, p *Payment) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateReference, p.Reference)
		}
		return err
	}
	return nil
}

func (r *Repo) FindByID(ctx context.Context, id string) (Payment, error) {
	var p Payment
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Payment{}, fmt.Errorf("%w: id=%s", ErrPaymentNotFound, id)
		}
		return Payment{}, err
	}
	return p, nil
}

func (r *Repo) FindByTransactionID(ctx context.Context, transactionID string) (Payment, error) {
	var p Payment
	if err := r.db.WithContext(ctx).First(&p, "transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Payment{}, fmt.Errorf("%w: transaction_id=%s", ErrPaymentNotFound, transactionID)
		}
		return Payment{}, err
	}
	return p, nil
}

// UpdateIfState is a single conditional UPDATE; the row lock of the storage engine
// serializes concurrent writers. MySQL reports changed rows, which is always 1 on a
// winning write because updated_at moves.
func (r *Repo) UpdateIfState(ctx context.Context, id string, expected State, upd StateUpdate) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND state = ?", id, expected).
		Updates(map[string]any{
			"state":          upd.State,
			"raw_response":   upd.RawResponse,
			"failure_reason": upd.FailureReason,
			"metadata":       upd.Metadata,
			"updated_at":     upd.UpdatedAt,
		})
	return res.RowsAffected, res.Error
}

func (r *Repo) ListByCustomer(ctx context.Context, in ListParams) (ListResult, error) {
	q := r.db.WithContext(ctx).Model(&Payment{}).Where("customer_id = ?", in.CustomerID)
	if in.State != "" {
		q = q.Where("state = ?", in.State)
	}
	return r.page(q, in)
}

func (r *Repo) ListByVendor(ctx context.Context, in ListParams) (ListResult, error) {
	q := r.db.WithContext(ctx).Model(&Payment{}).Where("vendor_id = ?", in.VendorID)
	if in.State != "" {
		q = q.Where("state = ?", in.State)
	}
	return r.page(q, in)
}

func (r *Repo) ListByOrder(ctx context.Context, orderID string) ([]Payment, error) {
	var out []Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order(newestFirst).
		Find(&out).Error
	return out, err
}

func (r *Repo) page(q *gorm.DB, in ListParams) (ListResult, error) {
	page := in.Page
	if page < 0 {
		page = 0
	}
	limit := in.Limit
	switch {
	case limit < 1:
		limit = 10
	case limit > 100:
		limit = 100
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return ListResult{}, err
	}

	var items []Payment
	if err := q.Session(&gorm.Session{}).
		Order(newestFirst).
		Limit(limit).
		Offset(page * limit).
		Find(&items).Error; err != nil {
		return ListResult{}, err
	}

	lastPage := int((total + int64(limit) - 1) / int64(limit))
	return ListResult{Items: items, Total: total, Page: page, Limit: limit, LastPage: lastPage}, nil
}

// Record appends a webhook delivery to the journal.
func (r *Repo) Record(ctx context.Context, ev *WebhookEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

// Migrate creates or alters the payments and journal tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Payment{}, &WebhookEvent{})
}
