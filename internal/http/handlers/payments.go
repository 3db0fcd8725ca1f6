package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alaska-tech/veciapp-backend/internal/http/middleware"
	"github.com/alaska-tech/veciapp-backend/internal/http/validation"
	"github.com/alaska-tech/veciapp-backend/internal/modules/payments"
	"github.com/alaska-tech/veciapp-backend/internal/shared/apperr"
)

type PaymentService interface {
	TokenizeCard(ctx context.Context, card payments.CardData) (string, error)
	ChargeCard(ctx context.Context, in payments.ChargeInput) (payments.Payment, error)
}

type PaymentSyncer interface {
	Sync(ctx context.Context, paymentID string) (payments.Payment, error)
}

type PaymentHandler struct {
	Logger  *slog.Logger
	Service PaymentService
	Queries payments.Queries
	Syncer  PaymentSyncer
}

func NewPaymentHandler(logger *slog.Logger, svc PaymentService, q payments.Queries, syncer PaymentSyncer) *PaymentHandler {
	return &PaymentHandler{Logger: logger, Service: svc, Queries: q, Syncer: syncer}
}

type tokenRequest struct {
	Number     string `json:"number" binding:"required,numeric,min=12,max=19"`
	CVC        string `json:"cvc" binding:"required,numeric,min=3,max=4"`
	ExpMonth   string `json:"exp_month" binding:"required,numeric,len=2"`
	ExpYear    string `json:"exp_year" binding:"required,numeric,len=2"`
	CardHolder string `json:"card_holder" binding:"required,min=5,max=64"`
}

// POST /api/payments/token
func (h *PaymentHandler) CreateToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Check the card data.", validation.FromBindError(err, &req)))
		return
	}

	tok, err := h.Service.TokenizeCard(c.Request.Context(), payments.CardData{
		Number:     req.Number,
		CVC:        req.CVC,
		ExpMonth:   req.ExpMonth,
		ExpYear:    req.ExpYear,
		CardHolder: req.CardHolder,
	})
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}

	ok(c, http.StatusOK, gin.H{"token": tok, "message": "Card token created"})
}

type chargeRequest struct {
	OrderID       string `json:"orderId" binding:"required,max=64"`
	CustomerID    string `json:"customerId" binding:"required,max=64"`
	VendorID      string `json:"vendorId" binding:"required,max=64"`
	Token         string `json:"token" binding:"required"`
	AmountInCents int64  `json:"amountInCents" binding:"required,gt=0"`
	Currency      string `json:"currency" binding:"omitempty,len=3"`
	Installments  int    `json:"installments" binding:"omitempty,min=1,max=36"`
	CustomerEmail string `json:"customerEmail" binding:"required,email"`
	CustomerPhone string `json:"customerPhone" binding:"omitempty,max=32"`
	CustomerName  string `json:"customerName" binding:"omitempty,max=128"`
	Description   string `json:"description" binding:"omitempty,max=255"`
	InvoiceNumber string `json:"invoiceNumber" binding:"omitempty,max=64"`
}

// POST /api/payments/card
func (h *PaymentHandler) ChargeCard(c *gin.Context) {
	var req chargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Check the payment data.", validation.FromBindError(err, &req)))
		return
	}

	p, err := h.Service.ChargeCard(c.Request.Context(), payments.ChargeInput{
		OrderID:       req.OrderID,
		CustomerID:    req.CustomerID,
		VendorID:      req.VendorID,
		CardToken:     req.Token,
		AmountCents:   req.AmountInCents,
		Currency:      req.Currency,
		Installments:  req.Installments,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		CustomerName:  req.CustomerName,
		Description:   req.Description,
		InvoiceNumber: req.InvoiceNumber,
	})
	if err != nil {
		h.Logger.WarnContext(c.Request.Context(), "charge failed",
			"order_id", req.OrderID, "payment_id", p.ID, "err", err)
		middleware.Fail(c, toAppErr(err))
		return
	}

	msg := "Payment in process"
	switch p.State {
	case payments.StateCompleted:
		msg = "Payment processed successfully"
	case payments.StateFailed:
		msg = "Payment declined"
	}
	ok(c, http.StatusCreated, gin.H{
		"id":            p.ID,
		"transactionId": p.TransactionID,
		"reference":     p.Reference,
		"state":         p.State,
		"failureReason": p.FailureReason,
		"message":       msg,
	})
}

// GET /api/payments/:paymentId
func (h *PaymentHandler) Get(c *gin.Context) {
	p, err := h.Queries.FindByID(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}
	ok(c, http.StatusOK, p)
}

// GET /api/payments/customer/:customerId?limit=&page=&state=
func (h *PaymentHandler) ListByCustomer(c *gin.Context) {
	params, err := listParams(c)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	params.CustomerID = c.Param("customerId")

	res, err := h.Queries.ListByCustomer(c.Request.Context(), params)
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}
	okPage(c, res)
}

// GET /api/payments/vendor/:vendorId?limit=&page=&state=
func (h *PaymentHandler) ListByVendor(c *gin.Context) {
	params, err := listParams(c)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	params.VendorID = c.Param("vendorId")

	res, err := h.Queries.ListByVendor(c.Request.Context(), params)
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}
	okPage(c, res)
}

// GET /api/payments/order/:orderId
func (h *PaymentHandler) ListByOrder(c *gin.Context) {
	items, err := h.Queries.ListByOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}
	if items == nil {
		items = []payments.Payment{}
	}
	ok(c, http.StatusOK, items)
}

// PUT /api/payments/sync/:paymentId
func (h *PaymentHandler) Sync(c *gin.Context) {
	p, err := h.Syncer.Sync(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		middleware.Fail(c, toAppErr(err))
		return
	}
	ok(c, http.StatusOK, p)
}

func listParams(c *gin.Context) (payments.ListParams, error) {
	var p payments.ListParams
	fields := map[string]string{}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields["limit"] = "Must be a positive integer."
		}
		p.Limit = n
	}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields["page"] = "Must be zero or a positive integer."
		}
		p.Page = n
	}
	if v := c.Query("state"); v != "" {
		p.State = payments.State(v)
		if !p.State.Valid() {
			fields["state"] = "Must be one of: pending completed failed refunded."
		}
	}

	if len(fields) > 0 {
		return payments.ListParams{}, apperr.InvalidErr("Invalid query parameters.", fields)
	}
	return p, nil
}

func okPage(c *gin.Context, res payments.ListResult) {
	items := res.Items
	if items == nil {
		items = []payments.Payment{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":   items,
		"error":  nil,
		"status": http.StatusOK,
		"meta": gin.H{
			"total":    res.Total,
			"page":     res.Page,
			"limit":    res.Limit,
			"lastPage": res.LastPage,
		},
	})
}
