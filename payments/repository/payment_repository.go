package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	omodels "opencart-backend/orders/models"
	orderrepo "opencart-backend/orders/repository"
	"opencart-backend/payments/models"
)

// ErrActivePayment is returned by CreateExclusive when a pending or
// completed payment already references the order.
var ErrActivePayment = errors.New("active payment already exists for order")

// ErrOrderNotPending is returned by CreateExclusive when the order has
// left the pending state and no longer accepts payments.
var ErrOrderNotPending = errors.New("order is not pending")

var activeStatuses = []string{models.StatusPending, models.StatusCompleted}

// PaymentRepository defines the interface for payment data access. All
// state transitions are conditional writes; there is no in-process locking.
type PaymentRepository interface {
	// CreateExclusive inserts the payment only if the order is still
	// pending and no pending or completed payment references it. Both
	// checks and the insert run in one transaction holding a row lock on
	// the order, so concurrent duplicate requests cannot both succeed and
	// a concurrent cancellation cannot be paid.
	CreateExclusive(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindAll(ctx context.Context) ([]models.Payment, error)
	// FindByCallbackRef resolves a payment from callback identifiers: the
	// gateway's checkout request id first, then the locally minted
	// correlation id.
	FindByCallbackRef(ctx context.Context, checkoutRequestID, correlationID string) (*models.Payment, error)
	ActiveExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	// Finalize moves a pending payment into a terminal status. Returns
	// false when the payment was not pending; callers treat that as an
	// idempotent no-op.
	Finalize(ctx context.Context, id uuid.UUID, status string, transactionID *string) (bool, error)
	SetCheckoutRequestID(ctx context.Context, id uuid.UUID, checkoutRequestID string) error
	Delete(ctx context.Context, id uuid.UUID) error
	// SweepStalePending fails pending payments of the given method created
	// before the cutoff, releasing their orders for a new attempt.
	SweepStalePending(ctx context.Context, method string, cutoff time.Time) (int64, error)
	// FindCompletedWithUnpaidOrders returns completed payments whose order
	// never flipped to paid, for the recovery pass.
	FindCompletedWithUnpaidOrders(ctx context.Context) ([]models.Payment, error)
}

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) PaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) CreateExclusive(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the parent order row; serializes competing createPayment
		// calls for the same order.
		order, err := orderrepo.LockForUpdate(tx, payment.OrderID)
		if err != nil {
			return err
		}
		// Only pending orders accept payments. Checked under the lock so a
		// concurrent cancellation cannot slip between validation and insert.
		if order.Status != omodels.OrderStatusPending {
			return ErrOrderNotPending
		}

		var count int64
		if err := tx.Model(&models.Payment{}).
			Where("order_id = ? AND status IN ?", payment.OrderID, activeStatuses).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrActivePayment
		}

		return tx.Create(payment).Error
	})
}

func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *GormPaymentRepository) FindAll(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *GormPaymentRepository) FindByCallbackRef(ctx context.Context, checkoutRequestID, correlationID string) (*models.Payment, error) {
	var payment models.Payment
	query := r.db.WithContext(ctx)

	switch {
	case checkoutRequestID != "" && correlationID != "":
		query = query.Where("checkout_request_id = ? OR correlation_id = ?", checkoutRequestID, correlationID)
	case checkoutRequestID != "":
		query = query.Where("checkout_request_id = ?", checkoutRequestID)
	case correlationID != "":
		query = query.Where("correlation_id = ?", correlationID)
	default:
		return nil, gorm.ErrRecordNotFound
	}

	if err := query.First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *GormPaymentRepository) ActiveExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("order_id = ? AND status IN ?", orderID, activeStatuses).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormPaymentRepository) Finalize(ctx context.Context, id uuid.UUID, status string, transactionID *string) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{"status": status}
	switch status {
	case models.StatusCompleted:
		updates["completed_at"] = &now
		if transactionID != nil {
			updates["transaction_id"] = transactionID
		}
	case models.StatusFailed:
		updates["failed_at"] = &now
	}

	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *GormPaymentRepository) SetCheckoutRequestID(ctx context.Context, id uuid.UUID, checkoutRequestID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Update("checkout_request_id", checkoutRequestID).Error
}

func (r *GormPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Payment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormPaymentRepository) SweepStalePending(ctx context.Context, method string, cutoff time.Time) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("method = ? AND status = ? AND created_at < ?", method, models.StatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":    models.StatusFailed,
			"failed_at": &now,
		})
	return result.RowsAffected, result.Error
}

func (r *GormPaymentRepository) FindCompletedWithUnpaidOrders(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = payments.order_id").
		Where("payments.status = ? AND orders.status = ?", models.StatusCompleted, omodels.OrderStatusPending).
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
