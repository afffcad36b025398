// Package events defines the ledger's outbound domain events and the Redis
// stream publisher that carries them to reporting/alerting consumers.
// Delivery is fire-and-forget: a publish failure is logged, never propagated
// back into the ledger's consistency boundary.
package events

import (
	"encoding/json"
	"time"
)

// Type names an outbound domain event.
type Type string

const (
	TypeTransactionPosted Type = "transaction_posted"
	TypeTransactionVoided Type = "transaction_voided"
	TypeBudgetExceeded    Type = "budget_exceeded"
	TypeBalanceAdjusted   Type = "balance_adjusted"
)

// Event is the envelope written to the outbound stream. Payload carries the
// identifiers, amounts and timestamps a consumer needs to reconstruct the
// change without re-querying the ledger.
type Event struct {
	Type    Type           `json:"type"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload"`
}

// New builds an event stamped with the given time.
func New(t Type, at time.Time, payload map[string]any) Event {
	return Event{Type: t, At: at, Payload: payload}
}

// MarshalPayload renders the payload as JSON for transport.
func (e Event) MarshalPayload() ([]byte, error) {
	return json.Marshal(e.Payload)
}
