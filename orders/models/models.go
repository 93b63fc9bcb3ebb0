package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order statuses. The machine is monotonic pending → paid → shipped;
// cancelled is reachable only from pending.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusCancelled = "cancelled"
)

type Order struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Items        []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lineItems"`
	TotalAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"totalAmount"`
	Status       string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CustomerInfo datatypes.JSON  `gorm:"type:jsonb" json:"customerInfo"`
	PaymentID    *uuid.UUID      `gorm:"type:uuid" json:"paymentId,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null" json:"productId"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unitPrice"`
}

// ValidTransition reports whether an order may move from one status to
// another. Same-status writes are allowed so idempotent updates pass.
func ValidTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case OrderStatusPending:
		return to == OrderStatusPaid || to == OrderStatusCancelled
	case OrderStatusPaid:
		return to == OrderStatusShipped
	default:
		return false
	}
}
