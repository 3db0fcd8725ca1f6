package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alaska-tech/veciapp-backend/internal/archive"
	"github.com/alaska-tech/veciapp-backend/internal/http/handlers"
	"github.com/alaska-tech/veciapp-backend/internal/modules/payments"
)

var jwtSecret = []byte("0123456789abcdef0123")

func init() { gin.SetMode(gin.TestMode) }

type mockService struct {
	TokenizeFunc func(ctx context.Context, card payments.CardData) (string, error)
	ChargeFunc   func(ctx context.Context, in payments.ChargeInput) (payments.Payment, error)
}

func (m *mockService) TokenizeCard(ctx context.Context, card payments.CardData) (string, error) {
	return m.TokenizeFunc(ctx, card)
}

func (m *mockService) ChargeCard(ctx context.Context, in payments.ChargeInput) (payments.Payment, error) {
	return m.ChargeFunc(ctx, in)
}

type mockQueries struct {
	FindFunc     func(ctx context.Context, id string) (payments.Payment, error)
	CustomerFunc func(ctx context.Context, in payments.ListParams) (payments.ListResult, error)
	VendorFunc   func(ctx context.Context, in payments.ListParams) (payments.ListResult, error)
	OrderFunc    func(ctx context.Context, orderID string) ([]payments.Payment, error)
}

func (m *mockQueries) FindByID(ctx context.Context, id string) (payments.Payment, error) {
	return m.FindFunc(ctx, id)
}

func (m *mockQueries) ListByCustomer(ctx context.Context, in payments.ListParams) (payments.ListResult, error) {
	return m.CustomerFunc(ctx, in)
}

func (m *mockQueries) ListByVendor(ctx context.Context, in payments.ListParams) (payments.ListResult, error) {
	return m.VendorFunc(ctx, in)
}

func (m *mockQueries) ListByOrder(ctx context.Context, orderID string) ([]payments.Payment, error) {
	return m.OrderFunc(ctx, orderID)
}

type mockSyncer struct {
	SyncFunc func(ctx context.Context, id string) (payments.Payment, error)
}

func (m *mockSyncer) Sync(ctx context.Context, id string) (payments.Payment, error) {
	return m.SyncFunc(ctx, id)
}

type mockProcessor struct {
	HandleFunc func(ctx context.Context, d payments.WebhookDelivery) (payments.WebhookResult, error)
}

func (m *mockProcessor) Handle(ctx context.Context, d payments.WebhookDelivery) (payments.WebhookResult, error) {
	return m.HandleFunc(ctx, d)
}

type okPinger struct{ err error }

func (p okPinger) PingContext(context.Context) error { return p.err }

type fixture struct {
	svc     *mockService
	queries *mockQueries
	syncer  *mockSyncer
	proc    *mockProcessor
	archive archive.Archive
	router  *gin.Engine
}

func newFixture(t *testing.T, arch archive.Archive) *fixture {
	t.Helper()
	l := slog.New(slog.NewJSONHandler(io.Discard, nil))
	f := &fixture{
		svc:     &mockService{},
		queries: &mockQueries{},
		syncer:  &mockSyncer{},
		proc:    &mockProcessor{},
		archive: arch,
	}
	f.router = NewRouter(Deps{
		Logger:    l,
		JWTSecret: jwtSecret,
		DB:        okPinger{},
		Payments:  handlers.NewPaymentHandler(l, f.svc, f.queries, f.syncer),
		Webhooks:  handlers.NewWebhookHandler(l, f.proc, arch),
	})
	return f
}

func bearer(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwtSecret)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (f *fixture) do(t *testing.T, method, path, auth string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func validCharge() map[string]any {
	return map[string]any{
		"orderId":       "order-1",
		"customerId":    "cust-1",
		"vendorId":      "vend-1",
		"token":         "tok_test_1",
		"amountInCents": 150000,
		"customerEmail": "buyer@example.com",
	}
}

func TestRoutes_RequireAuthExceptWebhookAndHealth(t *testing.T) {
	f := newFixture(t, nil)
	for _, rt := range []struct{ method, path string }{
		{http.MethodPost, "/api/payments/token"},
		{http.MethodPost, "/api/payments/card"},
		{http.MethodGet, "/api/payments/pay-1"},
		{http.MethodGet, "/api/payments/customer/cust-1"},
		{http.MethodGet, "/api/payments/vendor/vend-1"},
		{http.MethodGet, "/api/payments/order/order-1"},
		{http.MethodPut, "/api/payments/sync/pay-1"},
	} {
		w, body := f.do(t, rt.method, rt.path, "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.path)
		assert.EqualValues(t, http.StatusUnauthorized, body["status"], rt.path)
	}

	w, body := f.do(t, http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestChargeCard(t *testing.T) {
	f := newFixture(t, nil)
	var got payments.ChargeInput
	f.svc.ChargeFunc = func(_ context.Context, in payments.ChargeInput) (payments.Payment, error) {
		got = in
		tx := "tx-1"
		return payments.Payment{ID: "pay-1", TransactionID: &tx, Reference: "ORDER_order-1_1_001abc", State: payments.StateCompleted}, nil
	}

	w, body := f.do(t, http.MethodPost, "/api/payments/card", bearer(t), validCharge(), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, http.StatusCreated, body["status"])
	assert.Nil(t, body["error"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "pay-1", data["id"])
	assert.Equal(t, "tx-1", data["transactionId"])
	assert.Equal(t, "completed", data["state"])
	assert.Equal(t, "Payment processed successfully", data["message"])

	assert.Equal(t, "tok_test_1", got.CardToken)
	assert.Equal(t, int64(150000), got.AmountCents)
}

func TestChargeCard_BindErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.ChargeFunc = func(context.Context, payments.ChargeInput) (payments.Payment, error) {
		t.Fatal("service must not be called")
		return payments.Payment{}, nil
	}

	in := validCharge()
	in["amountInCents"] = 0
	in["customerEmail"] = "nope"
	w, body := f.do(t, http.MethodPost, "/api/payments/card", bearer(t), in, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "amountInCents")
	assert.Contains(t, fields, "customerEmail")

	w, _ = f.do(t, http.MethodPost, "/api/payments/card", bearer(t), "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChargeCard_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("%w: Token de aceptación inválido", payments.ErrValidationRejected), http.StatusBadRequest, "Token de aceptación inválido"},
		{fmt.Errorf("%w: dial tcp: refused", payments.ErrGatewayUnavailable), http.StatusServiceUnavailable, "The payment gateway is unavailable, try again later."},
		{errors.New("db down"), http.StatusInternalServerError, "An unexpected error occurred."},
	}
	for _, tc := range cases {
		f := newFixture(t, nil)
		f.svc.ChargeFunc = func(context.Context, payments.ChargeInput) (payments.Payment, error) {
			return payments.Payment{ID: "pay-failed", State: payments.StateFailed}, tc.err
		}
		w, body := f.do(t, http.MethodPost, "/api/payments/card", bearer(t), validCharge(), nil)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Equal(t, tc.msg, body["error"])
		assert.Nil(t, body["data"])
	}
}

func TestCreateToken(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.TokenizeFunc = func(_ context.Context, card payments.CardData) (string, error) {
		assert.Equal(t, "Ana Buyer", card.CardHolder)
		return "tok_test_4242", nil
	}

	card := map[string]any{"number": "4242424242424242", "cvc": "123", "exp_month": "08", "exp_year": "28", "card_holder": "Ana Buyer"}
	w, body := f.do(t, http.MethodPost, "/api/payments/token", bearer(t), card, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok_test_4242", body["data"].(map[string]any)["token"])

	card["exp_month"] = "8"
	w, body = f.do(t, http.MethodPost, "/api/payments/token", bearer(t), card, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["fields"], "exp_month")
}

func TestGetAndSync(t *testing.T) {
	f := newFixture(t, nil)
	f.queries.FindFunc = func(_ context.Context, id string) (payments.Payment, error) {
		if id == "pay-1" {
			return payments.Payment{ID: "pay-1", State: payments.StatePending}, nil
		}
		return payments.Payment{}, fmt.Errorf("%w: id=%s", payments.ErrPaymentNotFound, id)
	}
	f.syncer.SyncFunc = func(_ context.Context, id string) (payments.Payment, error) {
		if id == "pay-2" {
			return payments.Payment{}, fmt.Errorf("%w: payment pay-2", payments.ErrNoTransaction)
		}
		return payments.Payment{ID: id, State: payments.StateCompleted}, nil
	}

	w, body := f.do(t, http.MethodGet, "/api/payments/pay-1", bearer(t), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", body["data"].(map[string]any)["state"])

	w, body = f.do(t, http.MethodGet, "/api/payments/missing", bearer(t), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Payment not found.", body["error"])

	w, body = f.do(t, http.MethodPut, "/api/payments/sync/pay-1", bearer(t), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", body["data"].(map[string]any)["state"])

	w, _ = f.do(t, http.MethodPut, "/api/payments/sync/pay-2", bearer(t), nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListings(t *testing.T) {
	f := newFixture(t, nil)
	var gotParams payments.ListParams
	f.queries.CustomerFunc = func(_ context.Context, in payments.ListParams) (payments.ListResult, error) {
		gotParams = in
		return payments.ListResult{Items: []payments.Payment{{ID: "p1"}}, Total: 11, Page: in.Page, Limit: 5, LastPage: 3}, nil
	}
	f.queries.VendorFunc = func(_ context.Context, in payments.ListParams) (payments.ListResult, error) {
		return payments.ListResult{Limit: 10}, nil
	}
	f.queries.OrderFunc = func(context.Context, string) ([]payments.Payment, error) { return nil, nil }

	w, body := f.do(t, http.MethodGet, "/api/payments/customer/cust-1?limit=5&page=2&state=failed", bearer(t), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payments.ListParams{CustomerID: "cust-1", State: payments.StateFailed, Page: 2, Limit: 5}, gotParams)
	assert.Len(t, body["data"], 1)
	meta := body["meta"].(map[string]any)
	assert.EqualValues(t, 11, meta["total"])
	assert.EqualValues(t, 3, meta["lastPage"])

	w, body = f.do(t, http.MethodGet, "/api/payments/customer/cust-1?state=lost&page=-1", bearer(t), nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["fields"], "state")
	assert.Contains(t, body["fields"], "page")

	w, body = f.do(t, http.MethodGet, "/api/payments/vendor/vend-1", bearer(t), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, body["data"])

	w, body = f.do(t, http.MethodGet, "/api/payments/order/order-1", bearer(t), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, body["data"])
}

func webhookHeaders(attempt int) map[string]string {
	return map[string]string{
		handlers.HeaderSignature: "1700000000.abcd",
		handlers.HeaderTimestamp: "1700000000",
		handlers.HeaderAttempt:   strconv.Itoa(attempt),
	}
}

func TestWebhook_Success(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, archive.NewLocal(dir))
	var got payments.WebhookDelivery
	f.proc.HandleFunc = func(_ context.Context, d payments.WebhookDelivery) (payments.WebhookResult, error) {
		got = d
		return payments.WebhookResult{Success: true, Message: "Webhook processed successfully", Outcome: payments.OutcomeApplied, PaymentID: "pay-1"}, nil
	}

	payload := `{"event":"transaction.updated","data":{"transaction":{"id":"tx-1","status":"APPROVED"}}}`
	w, body := f.do(t, http.MethodPost, "/api/payments/webhook", "", payload, webhookHeaders(2))
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["processed"])
	assert.Equal(t, "applied", data["outcome"])

	assert.Equal(t, "1700000000.abcd", got.Signature)
	assert.Equal(t, int64(1700000000), got.Timestamp)
	assert.Equal(t, 2, got.Attempt)
	assert.JSONEq(t, payload, string(got.Body))

	var archived []string
	require.NoError(t, filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			archived = append(archived, p)
		}
		return err
	}))
	require.Len(t, archived, 1)
	b, err := os.ReadFile(archived[0])
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(b))
}

func TestWebhook_FailureResponses(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		attempt int
		status  int
		retry   bool
	}{
		{"bad signature", payments.ErrInvalidSignature, 1, http.StatusUnauthorized, false},
		{"bad payload", fmt.Errorf("%w: no transaction data", payments.ErrInvalidPayload), 1, http.StatusBadRequest, false},
		{"unknown payment", fmt.Errorf("%w: transaction_id=tx-9", payments.ErrPaymentNotFound), 1, http.StatusNotFound, false},
		{"update failed early", fmt.Errorf("%w: payment p", payments.ErrUpdateFailed), 1, http.StatusInternalServerError, true},
		{"update failed attempt 2", fmt.Errorf("%w: payment p", payments.ErrUpdateFailed), 2, http.StatusInternalServerError, true},
		{"update failed last", fmt.Errorf("%w: payment p", payments.ErrUpdateFailed), 3, http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.proc.HandleFunc = func(context.Context, payments.WebhookDelivery) (payments.WebhookResult, error) {
				return payments.WebhookResult{}, tc.err
			}
			w, body := f.do(t, http.MethodPost, "/api/payments/webhook", "", `{"event":"transaction.updated"}`, webhookHeaders(tc.attempt))
			assert.Equal(t, tc.status, w.Code)
			data := body["data"].(map[string]any)
			assert.Equal(t, false, data["success"])
			assert.Equal(t, tc.retry, data["retry"])
		})
	}
}

func TestWebhook_MissingTimestamp(t *testing.T) {
	f := newFixture(t, nil)
	f.proc.HandleFunc = func(context.Context, payments.WebhookDelivery) (payments.WebhookResult, error) {
		t.Fatal("processor must not be called")
		return payments.WebhookResult{}, nil
	}
	w, _ := f.do(t, http.MethodPost, "/api/payments/webhook", "", `{}`, map[string]string{handlers.HeaderSignature: "1.ab"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
