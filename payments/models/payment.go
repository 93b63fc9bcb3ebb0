package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment methods. Mobile money settles asynchronously through the
// gateway; card and bank transfer settle at creation time.
const (
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
	MethodMobileMoney  = "mobile_money"
)

// Payment statuses. completed and failed are terminal.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Payment struct {
	ID      uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID uuid.UUID       `gorm:"type:uuid;not null;index" json:"orderRef"`
	Method  string          `gorm:"type:varchar(20);not null" json:"method"`
	Amount  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status  string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	// CorrelationID is minted and persisted before the gateway push so a
	// callback can always be resolved to this record.
	CorrelationID *string `gorm:"uniqueIndex" json:"correlationId,omitempty"`
	// CheckoutRequestID is the gateway's own request identifier, stored
	// once the push is acknowledged.
	CheckoutRequestID *string `gorm:"uniqueIndex" json:"checkoutRequestId,omitempty"`
	// TransactionID is the gateway receipt, or a synthesized id for
	// methods that settle synchronously. Set only on completion.
	TransactionID *string `json:"transactionId,omitempty"`

	PayerPhone   string         `gorm:"type:varchar(20)" json:"payerPhone,omitempty"`
	CustomerInfo datatypes.JSON `gorm:"type:jsonb" json:"customerInfo"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Terminal reports whether the payment has reached a final state. Terminal
// payments are never mutated again.
func (p *Payment) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// ValidMethod reports whether m is a known payment method.
func ValidMethod(m string) bool {
	switch m {
	case MethodCard, MethodBankTransfer, MethodMobileMoney:
		return true
	}
	return false
}
