package models

import "time"

// Event types published after a payment reaches a terminal state.
const (
	EventPaymentCompleted = "payment_completed"
	EventPaymentFailed    = "payment_failed"
)

// PaymentEvent is the message emitted to Kafka when a payment is
// finalized. Delivery is best-effort; the ledgers never depend on it.
type PaymentEvent struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	PaymentID     string    `json:"payment_id"`
	Method        string    `json:"method"`
	Amount        string    `json:"amount"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
