package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"github.com/alaska-tech/veciapp-backend/internal/shared/retry"
)

type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"   // event kind we do not act on
	OutcomeDuplicate Outcome = "duplicate" // state already equals the target
	OutcomeApplied   Outcome = "applied"   // state moved forward
	OutcomeAudited   Outcome = "audited"   // terminal row, raw payload recorded only
	OutcomeRejected  Outcome = "rejected"  // journal only: processing failed
)

const (
	SourceWebhook = "webhook"
	SourceSync    = "sync"
)

// DefaultUpdateAttempts bounds the conditional update retries.
const DefaultUpdateAttempts = 3

// Observation is one gateway report about a transaction, from a webhook or a poll.
type Observation struct {
	Status          string
	StatusMessage   string
	Raw             json.RawMessage
	Source          string
	DeliveryAttempt int
}

// Applier is the single write path for gateway-originated state changes.
type Applier struct {
	store     Store
	mapStatus func(string) State
	policy    retry.Policy
	logger    *slog.Logger
	now       func() time.Time
}

func NewApplier(store Store, mapStatus func(string) State, policy retry.Policy) *Applier {
	return &Applier{store: store, mapStatus: mapStatus, policy: policy, logger: slog.Default(), now: time.Now}
}

func (a *Applier) SetLogger(logger *slog.Logger) {
	a.logger = logger
}

// Apply re-reads the row on every attempt, so a redelivery after ErrUpdateFailed is safe.
func (a *Applier) Apply(ctx context.Context, paymentID string, obs Observation) (Outcome, error) {
	target := a.mapStatus(obs.Status)

	var outcome Outcome
	err := a.policy.Do(ctx, func(attempt int) (bool, error) {
		cur, err := a.store.FindByID(ctx, paymentID)
		if err != nil {
			return false, err
		}

		if cur.State == target {
			outcome = OutcomeDuplicate
			return true, nil
		}

		now := a.now().UTC()
		meta := cur.Meta()
		upd := StateUpdate{RawResponse: cur.RawResponse, UpdatedAt: now}
		if len(obs.Raw) > 0 {
			upd.RawResponse = datatypes.JSON(obs.Raw)
		}

		if cur.State.Terminal() {
			// never regress; keep the payload for audit
			upd.State = cur.State
			upd.FailureReason = cur.FailureReason
			meta["ignored_status"] = obs.Status
			outcome = OutcomeAudited
		} else {
			upd.State = target
			if target == StateFailed {
				upd.FailureReason = failureReason(obs)
			}
			outcome = OutcomeApplied
		}

		meta["webhook_attempts"] = intValue(meta["webhook_attempts"]) + 1
		meta["last_webhook_attempt"] = now.Format(time.RFC3339Nano)
		meta["update_attempt"] = attempt
		meta["source"] = obs.Source
		if obs.DeliveryAttempt > 0 {
			meta["delivery_attempt"] = obs.DeliveryAttempt
		}
		b, err := json.Marshal(meta)
		if err != nil {
			return false, err
		}
		upd.Metadata = datatypes.JSON(b)

		n, err := a.store.UpdateIfState(ctx, cur.ID, cur.State, upd)
		if err != nil {
			return false, err
		}
		if n == 0 {
			a.logger.WarnContext(ctx, "payment update lost race", "payment_id", cur.ID, "expected_state", cur.State, "attempt", attempt)
			return false, nil
		}
		return true, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		a.logger.ErrorContext(ctx, "payment update retries exhausted", "payment_id", paymentID, "target_state", target)
		return "", fmt.Errorf("%w: payment %s: %v", ErrUpdateFailed, paymentID, err)
	}
	if err != nil {
		return "", err
	}

	a.logger.InfoContext(ctx, "payment observation applied",
		"payment_id", paymentID, "gateway_status", obs.Status, "target_state", target,
		"outcome", outcome, "source", obs.Source)
	return outcome, nil
}

func failureReason(obs Observation) *string {
	msg := obs.StatusMessage
	if msg == "" {
		msg = "gateway status " + obs.Status
	}
	msg = truncate(msg, 255)
	return &msg
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}
