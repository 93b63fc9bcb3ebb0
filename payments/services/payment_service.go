package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "opencart-backend/common/errors"
	omodels "opencart-backend/orders/models"
	"opencart-backend/payments/models"
	"opencart-backend/payments/repository"
)

// amountTolerance is the maximum accepted difference between the payment
// amount and the order's authoritative total.
var amountTolerance = decimal.New(1, -2) // 0.01

type CreatePaymentRequest struct {
	OrderID      uuid.UUID       `json:"orderRef" binding:"required"`
	Method       string          `json:"method" binding:"required"`
	Amount       decimal.Decimal `json:"amount"`
	PayerPhone   string          `json:"payerPhone"`
	CustomerInfo json.RawMessage `json:"customerInfo"`
}

// OrderStore is the slice of the order ledger the payment ledger needs:
// reads, and the conditional pending→paid transition.
type OrderStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*omodels.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentID uuid.UUID) (bool, error)
}

// EventPublisher emits payment lifecycle events. Publishing is
// best-effort; failures are logged and never affect ledger state.
type EventPublisher interface {
	SendPaymentEvent(event models.PaymentEvent) error
}

type PaymentService struct {
	paymentRepo repository.PaymentRepository
	orders      OrderStore
	gateway     GatewayClient
	events      EventPublisher
	logger      *zap.Logger
}

func NewPaymentService(paymentRepo repository.PaymentRepository, orders OrderStore, gateway GatewayClient, events EventPublisher, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		orders:      orders,
		gateway:     gateway,
		events:      events,
		logger:      logger,
	}
}

// CreatePayment validates and initiates a payment against an order.
//
// Non-gateway methods settle immediately: the payment is persisted as
// completed and the order flipped to paid with a conditional write.
// Mobile money persists a pending payment carrying a fresh correlation id
// before the gateway is invoked; the outcome arrives later via callback.
func (s *PaymentService) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*models.Payment, error) {
	if !models.ValidMethod(req.Method) {
		return nil, apperrors.ErrValidation.WithMessage("Unknown payment method: " + req.Method)
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.ErrValidation.WithMessage("Amount must be positive")
	}

	order, err := s.orders.FindByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Order not found")
		}
		s.logger.Error("Failed to load order", zap.String("order_id", req.OrderID.String()), zap.Error(err))
		return nil, apperrors.ErrInternal.With(err)
	}

	// Cancelled, paid and shipped orders do not accept payments. The check
	// repeats inside CreateExclusive under the order row lock; this one just
	// fails fast before any gateway work.
	if order.Status != omodels.OrderStatusPending {
		return nil, apperrors.ErrConflict.WithMessage("Order is not awaiting payment")
	}

	total := orderTotal(order)
	if req.Amount.Sub(total).Abs().GreaterThan(amountTolerance) {
		return nil, apperrors.ErrAmountMismatch.WithMessage(fmt.Sprintf(
			"Payment amount (%s) does not match order total (%s)",
			req.Amount.StringFixed(2), total.StringFixed(2)))
	}

	payment := &models.Payment{
		ID:           uuid.New(),
		OrderID:      order.ID,
		Method:       req.Method,
		Amount:       req.Amount,
		Status:       models.StatusPending,
		PayerPhone:   req.PayerPhone,
		CustomerInfo: customerInfoJSON(req.CustomerInfo),
	}

	if req.Method == models.MethodMobileMoney {
		return s.initiateGatewayPayment(ctx, payment)
	}
	return s.completeSynchronously(ctx, payment)
}

// completeSynchronously settles card and bank-transfer payments at
// creation time.
func (s *PaymentService) completeSynchronously(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	txnID := synthesizeTransactionID()
	now := time.Now()
	payment.Status = models.StatusCompleted
	payment.TransactionID = &txnID
	payment.CompletedAt = &now

	if err := s.persistExclusive(ctx, payment); err != nil {
		return nil, err
	}

	// Conditional flip; a false result means the order left pending in the
	// meantime. The reconciler's recovery pass picks up any divergence.
	flipped, err := s.orders.MarkPaid(ctx, payment.OrderID, payment.ID)
	if err != nil {
		s.logger.Error("Failed to mark order paid",
			zap.String("order_id", payment.OrderID.String()), zap.Error(err))
	} else if !flipped {
		s.logger.Warn("Order was no longer pending when payment completed",
			zap.String("order_id", payment.OrderID.String()),
			zap.String("payment_id", payment.ID.String()))
	}

	s.publishEvent(payment, models.EventPaymentCompleted)
	return payment, nil
}

// initiateGatewayPayment persists the pending payment (correlation id
// included) first, then pushes to the gateway. A synchronous rejection
// marks the payment failed so it is never left dangling.
func (s *PaymentService) initiateGatewayPayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.PayerPhone == "" {
		return nil, apperrors.ErrValidation.WithMessage("payerPhone is required for mobile money")
	}

	correlationID := uuid.NewString()
	payment.CorrelationID = &correlationID

	if err := s.persistExclusive(ctx, payment); err != nil {
		return nil, err
	}

	ack, err := s.gateway.InitiatePush(ctx, payment.Amount, payment.PayerPhone, correlationID)
	if err != nil {
		s.logger.Warn("Gateway push rejected",
			zap.String("payment_id", payment.ID.String()), zap.Error(err))
		if _, failErr := s.paymentRepo.Finalize(ctx, payment.ID, models.StatusFailed, nil); failErr != nil {
			s.logger.Error("Failed to mark rejected payment failed",
				zap.String("payment_id", payment.ID.String()), zap.Error(failErr))
		}
		payment.Status = models.StatusFailed
		s.publishEvent(payment, models.EventPaymentFailed)
		return nil, apperrors.ErrGateway.With(err)
	}

	if err := s.paymentRepo.SetCheckoutRequestID(ctx, payment.ID, ack.CheckoutRequestID); err != nil {
		// The callback can still resolve via the correlation id.
		s.logger.Error("Failed to store checkout request id",
			zap.String("payment_id", payment.ID.String()), zap.Error(err))
	} else {
		payment.CheckoutRequestID = &ack.CheckoutRequestID
	}

	s.logger.Info("Mobile money payment initiated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("correlation_id", correlationID),
		zap.String("checkout_request_id", ack.CheckoutRequestID),
	)
	return payment, nil
}

func (s *PaymentService) persistExclusive(ctx context.Context, payment *models.Payment) error {
	if err := s.paymentRepo.CreateExclusive(ctx, payment); err != nil {
		switch {
		case errors.Is(err, repository.ErrActivePayment):
			return apperrors.ErrConflict.WithMessage("An active payment already exists for this order")
		case errors.Is(err, repository.ErrOrderNotPending):
			return apperrors.ErrConflict.WithMessage("Order is not awaiting payment")
		case errors.Is(err, gorm.ErrRecordNotFound):
			return apperrors.ErrNotFound.WithMessage("Order not found")
		default:
			s.logger.Error("Failed to persist payment",
				zap.String("order_id", payment.OrderID.String()), zap.Error(err))
			return apperrors.ErrInternal.With(err)
		}
	}
	return nil
}

// CallbackOutcome is the parsed result of a gateway callback.
type CallbackOutcome struct {
	CheckoutRequestID string
	CorrelationID     string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	// ConfirmedAmount is the amount the gateway reports as settled, when
	// the callback metadata carries one.
	ConfirmedAmount *decimal.Decimal
}

// HandleCallback finalizes the payment a gateway callback refers to. It
// never returns an error for unknown references or repeated deliveries;
// both are acknowledged no-ops.
func (s *PaymentService) HandleCallback(ctx context.Context, outcome *CallbackOutcome) error {
	payment, err := s.paymentRepo.FindByCallbackRef(ctx, outcome.CheckoutRequestID, outcome.CorrelationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("Callback for unknown payment",
				zap.String("checkout_request_id", outcome.CheckoutRequestID),
				zap.String("correlation_id", outcome.CorrelationID))
			return nil
		}
		return err
	}

	if payment.Terminal() {
		s.logger.Info("Duplicate callback ignored",
			zap.String("payment_id", payment.ID.String()),
			zap.String("status", payment.Status))
		return nil
	}

	if outcome.ResultCode == 0 {
		return s.completeFromCallback(ctx, payment, outcome)
	}
	return s.failFromCallback(ctx, payment, outcome)
}

func (s *PaymentService) completeFromCallback(ctx context.Context, payment *models.Payment, outcome *CallbackOutcome) error {
	// The gateway-confirmed amount is informational; the payment was
	// already validated against the order total at creation. A divergence
	// is logged for reconciliation, not acted on.
	if outcome.ConfirmedAmount != nil &&
		outcome.ConfirmedAmount.Sub(payment.Amount).Abs().GreaterThan(amountTolerance) {
		s.logger.Warn("Callback amount differs from recorded payment amount",
			zap.String("payment_id", payment.ID.String()),
			zap.String("recorded_amount", payment.Amount.StringFixed(2)),
			zap.String("confirmed_amount", outcome.ConfirmedAmount.StringFixed(2)))
	}

	var receipt *string
	if outcome.ReceiptNumber != "" {
		receipt = &outcome.ReceiptNumber
	}

	finalized, err := s.paymentRepo.Finalize(ctx, payment.ID, models.StatusCompleted, receipt)
	if err != nil {
		return err
	}
	if !finalized {
		// Lost the race to another delivery of the same callback.
		s.logger.Info("Payment already finalized",
			zap.String("payment_id", payment.ID.String()))
		return nil
	}

	flipped, err := s.orders.MarkPaid(ctx, payment.OrderID, payment.ID)
	if err != nil {
		return err
	}
	if !flipped {
		s.logger.Warn("Order was not pending at callback completion",
			zap.String("order_id", payment.OrderID.String()),
			zap.String("payment_id", payment.ID.String()))
	}

	payment.Status = models.StatusCompleted
	payment.TransactionID = receipt
	s.publishEvent(payment, models.EventPaymentCompleted)

	s.logger.Info("Payment completed via callback",
		zap.String("payment_id", payment.ID.String()),
		zap.String("receipt", outcome.ReceiptNumber))
	return nil
}

func (s *PaymentService) failFromCallback(ctx context.Context, payment *models.Payment, outcome *CallbackOutcome) error {
	finalized, err := s.paymentRepo.Finalize(ctx, payment.ID, models.StatusFailed, nil)
	if err != nil {
		return err
	}
	if finalized {
		payment.Status = models.StatusFailed
		s.publishEvent(payment, models.EventPaymentFailed)
		s.logger.Info("Payment failed via callback",
			zap.String("payment_id", payment.ID.String()),
			zap.Int("result_code", outcome.ResultCode),
			zap.String("result_desc", outcome.ResultDesc))
	}
	// The order stays pending and is eligible for a new attempt.
	return nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Payment not found")
		}
		return nil, apperrors.ErrInternal.With(err)
	}
	return payment, nil
}

func (s *PaymentService) ListPayments(ctx context.Context) ([]models.Payment, error) {
	payments, err := s.paymentRepo.FindAll(ctx)
	if err != nil {
		return nil, apperrors.ErrInternal.With(err)
	}
	return payments, nil
}

// OverrideStatus is the administrative escape hatch: it moves a pending
// payment into a terminal state through the same conditional write the
// callback path uses, so it cannot race a callback into a double apply.
func (s *PaymentService) OverrideStatus(ctx context.Context, id uuid.UUID, status string) (*models.Payment, error) {
	if status != models.StatusCompleted && status != models.StatusFailed {
		return nil, apperrors.ErrValidation.WithMessage("Status must be completed or failed")
	}

	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	var txnID *string
	if status == models.StatusCompleted {
		id := synthesizeTransactionID()
		txnID = &id
	}

	finalized, err := s.paymentRepo.Finalize(ctx, payment.ID, status, txnID)
	if err != nil {
		return nil, apperrors.ErrInternal.With(err)
	}
	if !finalized {
		return nil, apperrors.ErrConflict.WithMessage("Payment is already in a terminal state")
	}

	if status == models.StatusCompleted {
		if _, err := s.orders.MarkPaid(ctx, payment.OrderID, payment.ID); err != nil {
			s.logger.Error("Failed to mark order paid on override",
				zap.String("order_id", payment.OrderID.String()), zap.Error(err))
		}
	}

	return s.GetPayment(ctx, id)
}

// DeletePayment removes a payment record. Pending mobile-money payments
// are refused so a late callback never resolves to a deleted record.
func (s *PaymentService) DeletePayment(ctx context.Context, id uuid.UUID) error {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return err
	}

	if payment.Method == models.MethodMobileMoney && payment.Status == models.StatusPending {
		return apperrors.ErrConflict.WithMessage("Payment is awaiting a gateway callback")
	}

	if err := s.paymentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound.WithMessage("Payment not found")
		}
		return apperrors.ErrInternal.With(err)
	}
	return nil
}

func (s *PaymentService) publishEvent(payment *models.Payment, eventType string) {
	if s.events == nil {
		return
	}

	event := models.PaymentEvent{
		Type:      eventType,
		OrderID:   payment.OrderID.String(),
		PaymentID: payment.ID.String(),
		Method:    payment.Method,
		Amount:    payment.Amount.StringFixed(2),
		Timestamp: time.Now().UTC(),
	}
	if payment.TransactionID != nil {
		event.TransactionID = *payment.TransactionID
	}

	if err := s.events.SendPaymentEvent(event); err != nil {
		s.logger.Warn("Failed to publish payment event",
			zap.String("payment_id", payment.ID.String()), zap.Error(err))
	}
}

// orderTotal returns the order's stored total, recomputing it from line
// items when absent.
func orderTotal(order *omodels.Order) decimal.Decimal {
	if !order.TotalAmount.IsZero() {
		return order.TotalAmount
	}
	total := decimal.Zero
	for _, item := range order.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func synthesizeTransactionID() string {
	buf := make([]byte, 5)
	rand.Read(buf)
	return fmt.Sprintf("TXN-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

func customerInfoJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
