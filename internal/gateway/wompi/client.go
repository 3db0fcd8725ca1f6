// Package wompi is the HTTP client for the Wompi payment gateway.
package wompi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alaska-tech/veciapp-backend/internal/modules/payments"
)

const maxResponseBytes = 1 << 20

var _ payments.Gateway = (*Client)(nil)

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient copies cfg. httpClient may be nil.
func NewClient(cfg *Config, httpClient *http.Client) *Client {
	c := *cfg
	if c.BaseURL == "" {
		c.BaseURL = SandboxBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.Timeout}
	}

	limit := rate.Inf
	if c.RequestsPerSecond > 0 {
		limit = rate.Limit(c.RequestsPerSecond)
	}
	burst := c.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{cfg: c, http: httpClient, limiter: rate.NewLimiter(limit, burst)}
}

func (c *Client) Name() string { return "wompi" }

func (c *Client) AcceptanceToken(ctx context.Context) (string, error) {
	var out struct {
		Data struct {
			PresignedAcceptance struct {
				AcceptanceToken string `json:"acceptance_token"`
			} `json:"presigned_acceptance"`
		} `json:"data"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/merchants/"+url.PathEscape(c.cfg.PublicKey), "", nil, &out); err != nil {
		return "", err
	}
	tok := out.Data.PresignedAcceptance.AcceptanceToken
	if tok == "" {
		return "", fmt.Errorf("%w: merchant response has no acceptance token", payments.ErrGatewayUnavailable)
	}
	return tok, nil
}

func (c *Client) TokenizeCard(ctx context.Context, card payments.CardData) (string, error) {
	var out struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/tokens/cards", c.cfg.PublicKey, card, &out); err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("%w: card token missing from response", payments.ErrGatewayUnavailable)
	}
	return out.Data.ID, nil
}

type paymentMethod struct {
	Type         string `json:"type"`
	Token        string `json:"token"`
	Installments int    `json:"installments"`
}

type customerData struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	FullName    string `json:"full_name,omitempty"`
}

type transactionRequest struct {
	AcceptanceToken string        `json:"acceptance_token"`
	AmountInCents   int64         `json:"amount_in_cents"`
	Currency        string        `json:"currency"`
	CustomerEmail   string        `json:"customer_email"`
	PaymentMethod   paymentMethod `json:"payment_method"`
	Reference       string        `json:"reference"`
	CustomerData    *customerData `json:"customer_data,omitempty"`
}

func (c *Client) CreateTransaction(ctx context.Context, req payments.TransactionRequest) (payments.Transaction, error) {
	installments := req.Installments
	if installments < 1 {
		installments = 1
	}
	body := transactionRequest{
		AcceptanceToken: req.AcceptanceToken,
		AmountInCents:   req.AmountCents,
		Currency:        req.Currency,
		CustomerEmail:   req.CustomerEmail,
		PaymentMethod:   paymentMethod{Type: "CARD", Token: req.CardToken, Installments: installments},
		Reference:       req.Reference,
	}
	if req.CustomerPhone != "" || req.CustomerName != "" {
		body.CustomerData = &customerData{PhoneNumber: req.CustomerPhone, FullName: req.CustomerName}
	}

	raw, err := c.do(ctx, http.MethodPost, "/transactions", c.cfg.PrivateKey, body, nil)
	if err != nil {
		return payments.Transaction{}, err
	}
	return decodeTransaction(raw)
}

func (c *Client) FetchTransaction(ctx context.Context, transactionID string) (payments.Transaction, error) {
	if transactionID == "" {
		return payments.Transaction{}, fmt.Errorf("%w: empty transaction id", payments.ErrValidationRejected)
	}
	raw, err := c.do(ctx, http.MethodGet, "/transactions/"+url.PathEscape(transactionID), c.cfg.PrivateKey, nil, nil)
	if err != nil {
		return payments.Transaction{}, err
	}
	return decodeTransaction(raw)
}

func (c *Client) VerifySignature(signature, event string, timestamp int64, secret string) bool {
	return VerifySignature(signature, event, timestamp, secret)
}

func (c *Client) MapStatus(status string) payments.State {
	return MapStatus(status)
}

type apiError struct {
	Error struct {
		Type     string              `json:"type"`
		Reason   string              `json:"reason"`
		Messages map[string][]string `json:"messages"`
	} `json:"error"`
}

// do sends one request. 5xx, 429 and transport failures wrap ErrGatewayUnavailable;
// other 4xx wrap ErrValidationRejected with the gateway's reason.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", payments.ErrGatewayUnavailable, method, path, err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", payments.ErrGatewayUnavailable, method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: read body: %v", payments.ErrGatewayUnavailable, method, path, err)
	}

	switch {
	case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s %s: status %d", payments.ErrGatewayUnavailable, method, path, res.StatusCode)
	case res.StatusCode >= 400:
		return nil, fmt.Errorf("%w: %s", payments.ErrValidationRejected, rejectReason(raw, res.StatusCode))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", payments.ErrGatewayUnavailable, path, err)
		}
	}
	return raw, nil
}

func rejectReason(body []byte, status int) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Error.Reason != "" {
			return e.Error.Reason
		}
		if len(e.Error.Messages) > 0 {
			fields := make([]string, 0, len(e.Error.Messages))
			for f := range e.Error.Messages {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			parts := make([]string, 0, len(fields))
			for _, f := range fields {
				parts = append(parts, f+": "+strings.Join(e.Error.Messages[f], ", "))
			}
			return strings.Join(parts, "; ")
		}
	}
	return fmt.Sprintf("gateway returned status %d", status)
}

type transactionPayload struct {
	ID            string  `json:"id"`
	Reference     string  `json:"reference"`
	Status        string  `json:"status"`
	StatusMessage *string `json:"status_message"`
	AmountInCents int64   `json:"amount_in_cents"`
	Currency      string  `json:"currency"`
	CreatedAt     string  `json:"created_at"`
	PaymentMethod struct {
		Extra struct {
			Brand    string `json:"brand"`
			LastFour string `json:"last_four"`
		} `json:"extra"`
	} `json:"payment_method"`
}

// decodeTransaction accepts both {"data":{...}} and {"data":{"transaction":{...}}}.
func decodeTransaction(body []byte) (payments.Transaction, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Data) == 0 {
		return payments.Transaction{}, fmt.Errorf("%w: transaction response has no data", payments.ErrGatewayUnavailable)
	}

	raw := env.Data
	var nested struct {
		Transaction json.RawMessage `json:"transaction"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested.Transaction) > 0 {
		raw = nested.Transaction
	}

	var p transactionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return payments.Transaction{}, fmt.Errorf("%w: decode transaction: %v", payments.ErrGatewayUnavailable, err)
	}
	if p.ID == "" {
		return payments.Transaction{}, fmt.Errorf("%w: transaction id missing from response", payments.ErrGatewayUnavailable)
	}

	tx := payments.Transaction{
		ID:           p.ID,
		Reference:    p.Reference,
		Status:       p.Status,
		AmountCents:  p.AmountInCents,
		Currency:     p.Currency,
		CardBrand:    p.PaymentMethod.Extra.Brand,
		CardLastFour: p.PaymentMethod.Extra.LastFour,
		Raw:          raw,
	}
	if p.StatusMessage != nil {
		tx.StatusMessage = *p.StatusMessage
	}
	if t, err := time.Parse(time.RFC3339Nano, p.CreatedAt); err == nil {
		tx.CreatedAt = t
	}
	return tx, nil
}
