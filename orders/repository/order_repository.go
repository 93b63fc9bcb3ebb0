package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"opencart-backend/orders/models"
)

// ErrActiveReference is returned by Delete when a pending or completed
// payment still references the order.
var ErrActiveReference = errors.New("order is referenced by an active payment")

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindAll(ctx context.Context) ([]models.Order, error)
	// Update writes the order conditioned on its status still being
	// fromStatus, so a concurrent transition (a callback flipping the order
	// to paid) is never overwritten with stale state. Returns false when
	// the condition did not hold.
	Update(ctx context.Context, order *models.Order, fromStatus string) (bool, error)
	// Delete removes the order unless a pending or completed payment
	// references it; the check and delete run in one transaction holding a
	// row lock, so it cannot race payment creation.
	Delete(ctx context.Context, id uuid.UUID) error
	// MarkPaid flips the order to paid and records the settling payment,
	// conditioned on the order still being pending. Returns false when the
	// condition did not hold (the transition was already applied, or the
	// order left pending some other way).
	MarkPaid(ctx context.Context, orderID, paymentID uuid.UUID) (bool, error)
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) FindAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// Update writes the order fields and replaces its line items in one
// transaction. The write is conditional on fromStatus; payment_id is never
// touched here, it belongs to MarkPaid.
func (r *GormOrderRepository) Update(ctx context.Context, order *models.Order, fromStatus string) (bool, error) {
	var applied bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, fromStatus).
			Updates(map[string]interface{}{
				"status":        order.Status,
				"total_amount":  order.TotalAmount,
				"customer_info": order.CustomerInfo,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		applied = true

		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
		}
		return tx.Create(&order.Items).Error
	})
	return applied, err
}

func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := LockForUpdate(tx, id); err != nil {
			return err
		}

		// Same lock CreateExclusive takes on the payment side, so a payment
		// being created for this order and this delete serialize.
		var count int64
		if err := tx.Table("payments").
			Where("order_id = ? AND status IN ?", id, []string{"pending", "completed"}).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrActiveReference
		}

		return tx.Where("id = ?", id).Delete(&models.Order{}).Error
	})
}

func (r *GormOrderRepository) MarkPaid(ctx context.Context, orderID, paymentID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":     models.OrderStatusPaid,
			"payment_id": paymentID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// LockForUpdate loads the order row under a FOR UPDATE lock. It must be
// called inside a transaction; the lock is held until that transaction ends.
func LockForUpdate(tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
