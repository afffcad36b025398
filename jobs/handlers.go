package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/events"
	"github.com/atlas-erp/atlas-erp/internal/ledger/budgets"
)

// NewBudgetApplyHandler processes TaskTypeBudgetApply tasks by accruing the
// spend through the budget service.
func NewBudgetApplyHandler(svc *budgets.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload BudgetApplyPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error("budget apply payload malformed", slog.Any("error", err))
			return asynq.SkipRetry
		}
		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			logger.Error("budget apply amount malformed",
				slog.String("amount", payload.Amount), slog.Any("error", err))
			return asynq.SkipRetry
		}
		return svc.ApplySpend(ctx, payload.AccountID, amount)
	}
}

// NewEventPublishHandler processes TaskTypeEventPublish tasks by appending
// the event to the outbound stream.
func NewEventPublishHandler(pub *events.Publisher, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload EventPublishPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Error("event publish payload malformed", slog.Any("error", err))
			return asynq.SkipRetry
		}
		return pub.Publish(ctx, events.Event{
			Type:    events.Type(payload.Type),
			At:      payload.At,
			Payload: payload.Payload,
		})
	}
}
