package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-erp/internal/events"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeBudgetApply accrues a posting's spend onto matching budgets.
	TaskTypeBudgetApply = "budget:apply"
	// TaskTypeEventPublish appends a domain event to the outbound stream.
	TaskTypeEventPublish = "event:publish"
)

// BudgetApplyPayload carries one account's spend from a posting.
type BudgetApplyPayload struct {
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
}

// NewBudgetApplyTask constructs an Asynq task for budget spend accrual.
func NewBudgetApplyTask(payload BudgetApplyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBudgetApply, data, asynq.Queue(QueueDefault)), nil
}

// EventPublishPayload wraps a domain event for queued delivery.
type EventPublishPayload struct {
	Type    string         `json:"type"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload"`
}

// NewEventPublishTask constructs an Asynq task for event delivery.
func NewEventPublishTask(payload EventPublishPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeEventPublish, data, asynq.Queue(QueueDefault)), nil
}

// Enqueuer hands ledger side effects to the worker. It satisfies the
// services' BudgetNotifier and EventSink ports, keeping budget accrual and
// event delivery off the request path.
type Enqueuer struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewEnqueuer wraps an Asynq client.
func NewEnqueuer(client *asynq.Client, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{client: client, logger: logger}
}

// NotifySpend queues spend accrual for one account.
func (e *Enqueuer) NotifySpend(ctx context.Context, accountID string, amount decimal.Decimal) error {
	task, err := NewBudgetApplyTask(BudgetApplyPayload{
		AccountID: accountID,
		Amount:    amount.String(),
	})
	if err != nil {
		return fmt.Errorf("jobs: build budget apply task: %w", err)
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("jobs: enqueue budget apply: %w", err)
	}
	return nil
}

// Publish queues a domain event for stream delivery.
func (e *Enqueuer) Publish(ctx context.Context, evt events.Event) error {
	task, err := NewEventPublishTask(EventPublishPayload{
		Type:    string(evt.Type),
		At:      evt.At,
		Payload: evt.Payload,
	})
	if err != nil {
		return fmt.Errorf("jobs: build event publish task: %w", err)
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("jobs: enqueue event publish: %w", err)
	}
	return nil
}
