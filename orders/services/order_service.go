package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "opencart-backend/common/errors"
	"opencart-backend/orders/models"
	"opencart-backend/orders/repository"
)

type CreateOrderRequest struct {
	Items        []OrderItemRequest `json:"lineItems" binding:"required,dive"`
	CustomerInfo json.RawMessage    `json:"customerInfo"`
}

type OrderItemRequest struct {
	ProductID uuid.UUID `json:"productId" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type UpdateOrderRequest struct {
	Items        []OrderItemRequest `json:"lineItems"`
	Status       *string            `json:"status"`
	CustomerInfo json.RawMessage    `json:"customerInfo"`
}

// ActivePaymentChecker reports whether a pending or completed payment
// references an order. Implemented by the payment repository.
type ActivePaymentChecker interface {
	ActiveExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type OrderService struct {
	orderRepo repository.OrderRepository
	catalog   CatalogClient
	payments  ActivePaymentChecker
	logger    *zap.Logger
}

func NewOrderService(orderRepo repository.OrderRepository, catalog CatalogClient, payments ActivePaymentChecker, logger *zap.Logger) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		catalog:   catalog,
		payments:  payments,
		logger:    logger,
	}
}

// CreateOrder validates the request, prices every line item from the
// catalog and persists the order as pending. Client-supplied prices are
// never consulted; the catalog is the only price authority.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperrors.ErrValidation.WithMessage("At least one line item is required")
	}

	items, total, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		Items:        items,
		TotalAmount:  total,
		Status:       models.OrderStatusPending,
		CustomerInfo: customerInfoJSON(req.CustomerInfo),
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.logger.Error("Failed to create order", zap.Error(err))
		return nil, apperrors.ErrInternal.With(err)
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// UpdateOrder applies a partial update. A line-item change reprices the
// order from the catalog; a status change must follow the order state
// machine.
func (s *OrderService) UpdateOrder(ctx context.Context, id uuid.UUID, req *UpdateOrderRequest) (*models.Order, error) {
	order, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	fromStatus := order.Status

	if req.Status != nil {
		if !models.ValidTransition(order.Status, *req.Status) {
			return nil, apperrors.ErrValidation.WithMessage(
				"Invalid status transition " + order.Status + " -> " + *req.Status)
		}
		order.Status = *req.Status
	}

	if len(req.Items) > 0 {
		items, total, err := s.priceItems(ctx, req.Items)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		order.Items = items
		order.TotalAmount = total
	}

	if len(req.CustomerInfo) > 0 {
		order.CustomerInfo = customerInfoJSON(req.CustomerInfo)
	}

	applied, err := s.orderRepo.Update(ctx, order, fromStatus)
	if err != nil {
		s.logger.Error("Failed to update order", zap.String("order_id", id.String()), zap.Error(err))
		return nil, apperrors.ErrInternal.With(err)
	}
	if !applied {
		// The order's status moved between read and write, most likely a
		// payment callback flipping it to paid.
		return nil, apperrors.ErrConflict.WithMessage("Order was modified concurrently")
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.loadOrder(ctx, id)
}

func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orderRepo.FindAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		return nil, apperrors.ErrInternal.With(err)
	}
	return orders, nil
}

// DeleteOrder removes an order unless a pending or completed payment still
// references it.
func (s *OrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if _, err := s.loadOrder(ctx, id); err != nil {
		return err
	}

	active, err := s.payments.ActiveExistsForOrder(ctx, id)
	if err != nil {
		s.logger.Error("Failed to check payments for order", zap.String("order_id", id.String()), zap.Error(err))
		return apperrors.ErrInternal.With(err)
	}
	if active {
		return apperrors.ErrConflict.WithMessage("Order is referenced by an active payment")
	}

	if err := s.orderRepo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return apperrors.ErrNotFound.WithMessage("Order not found")
		case errors.Is(err, repository.ErrActiveReference):
			// A payment was created between the check above and the delete;
			// the repository re-checks under the order row lock.
			return apperrors.ErrConflict.WithMessage("Order is referenced by an active payment")
		default:
			return apperrors.ErrInternal.With(err)
		}
	}
	return nil
}

func (s *OrderService) loadOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Order not found")
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", id.String()), zap.Error(err))
		return nil, apperrors.ErrInternal.With(err)
	}
	return order, nil
}

func (s *OrderService) priceItems(ctx context.Context, reqs []OrderItemRequest) ([]models.OrderItem, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(reqs))
	total := decimal.Zero

	for _, item := range reqs {
		prod, err := s.catalog.FetchProduct(ctx, item.ProductID)
		if err != nil {
			s.logger.Warn("Failed to resolve product", zap.String("product_id", item.ProductID.String()), zap.Error(err))
			return nil, decimal.Zero, apperrors.ErrValidation.WithMessage(
				"Product " + item.ProductID.String() + " not found")
		}

		items = append(items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: prod.Price,
		})
		total = total.Add(prod.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	return items, total, nil
}

func customerInfoJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
