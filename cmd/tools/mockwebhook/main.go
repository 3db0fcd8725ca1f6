package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/alaska-tech/veciapp-backend/internal/gateway/wompi"
	"github.com/alaska-tech/veciapp-backend/internal/modules/payments"
)

type transaction struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	StatusMessage *string `json:"status_message"`
	Reference     string  `json:"reference,omitempty"`
	AmountInCents int64   `json:"amount_in_cents"`
	Currency      string  `json:"currency"`
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Transaction transaction `json:"transaction"`
	} `json:"data"`
	SentAt    string `json:"sent_at"`
	Timestamp int64  `json:"timestamp"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/api/payments/webhook", "Webhook URL")
	secret := flag.String("secret", os.Getenv("WOMPI_WEBHOOK_SECRET"), "Webhook secret")
	event := flag.String("event", payments.EventTransactionUpdated, "Event name")
	txID := flag.String("tx", "", "Gateway transaction id (required)")
	status := flag.String("status", "APPROVED", "Gateway status (PENDING, APPROVED, DECLINED, ERROR, VOIDED, REFUNDED)")
	message := flag.String("message", "", "status_message")
	reference := flag.String("reference", "", "Payment reference")
	amount := flag.Int64("amount", 150000, "Amount in cents")
	currency := flag.String("currency", payments.DefaultCurrency, "Currency")
	attempt := flag.Int("attempt", 1, "Delivery attempt header")
	dryRun := flag.Bool("dry-run", false, "Only print headers and body, don't send")

	flag.Parse()

	if *secret == "" {
		fmt.Fprintf(os.Stderr, "Error: secret not provided and WOMPI_WEBHOOK_SECRET not set\n")
		os.Exit(1)
	}
	if *txID == "" {
		fmt.Fprintf(os.Stderr, "Error: -tx is required\n")
		os.Exit(1)
	}

	now := time.Now()
	payload := webhookPayload{Event: *event, SentAt: now.UTC().Format(time.RFC3339), Timestamp: now.Unix()}
	payload.Data.Transaction = transaction{
		ID:            *txID,
		Status:        *status,
		Reference:     *reference,
		AmountInCents: *amount,
		Currency:      *currency,
	}
	if *message != "" {
		payload.Data.Transaction.StatusMessage = message
	}

	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling payload: %v\n", err)
		os.Exit(1)
	}

	sig := wompi.Sign(*event, now.Unix(), *secret)
	ts := strconv.FormatInt(now.Unix(), 10)

	fmt.Printf("X-Wompi-Signature: %s\n", sig)
	fmt.Printf("X-Wompi-Timestamp: %s\n", ts)
	fmt.Printf("X-Wompi-Attempt: %d\n", *attempt)
	fmt.Printf("Body: %s\n", string(body))

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", *url)
	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating request: %v\n", err)
		os.Exit(1)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Wompi-Signature", sig)
	req.Header.Set("X-Wompi-Timestamp", ts)
	req.Header.Set("X-Wompi-Attempt", strconv.Itoa(*attempt))

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(respBody))

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
