package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"opencart-backend/payments/models"
	"opencart-backend/payments/repository"
)

// Reconciler owns two recurring policies:
//
//   - stale pending mobile-money payments whose callback never arrived are
//     failed after a bounded window, releasing the order for a new attempt;
//   - orders left pending behind a completed payment (the conditional flip
//     lost a race or errored) are moved to paid.
type Reconciler struct {
	paymentRepo repository.PaymentRepository
	orders      OrderStore
	window      time.Duration
	interval    time.Duration
	logger      *zap.Logger
}

func NewReconciler(paymentRepo repository.PaymentRepository, orders OrderStore, window, interval time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		paymentRepo: paymentRepo,
		orders:      orders,
		window:      window,
		interval:    interval,
		logger:      logger,
	}
}

// Start runs the sweep loop until ctx is cancelled. Run it in a goroutine
// from main.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Reconciler started",
		zap.Duration("window", r.window),
		zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce executes one sweep and one recovery pass.
func (r *Reconciler) RunOnce(ctx context.Context) {
	r.sweepStalePending(ctx)
	r.recoverUnpaidOrders(ctx)
}

func (r *Reconciler) sweepStalePending(ctx context.Context) {
	cutoff := time.Now().Add(-r.window)
	swept, err := r.paymentRepo.SweepStalePending(ctx, models.MethodMobileMoney, cutoff)
	if err != nil {
		r.logger.Error("Stale payment sweep failed", zap.Error(err))
		return
	}
	if swept > 0 {
		r.logger.Info("Swept stale pending payments", zap.Int64("count", swept))
	}
}

func (r *Reconciler) recoverUnpaidOrders(ctx context.Context) {
	payments, err := r.paymentRepo.FindCompletedWithUnpaidOrders(ctx)
	if err != nil {
		r.logger.Error("Recovery query failed", zap.Error(err))
		return
	}

	for _, p := range payments {
		flipped, err := r.orders.MarkPaid(ctx, p.OrderID, p.ID)
		if err != nil {
			r.logger.Error("Recovery failed to mark order paid",
				zap.String("order_id", p.OrderID.String()), zap.Error(err))
			continue
		}
		if flipped {
			r.logger.Info("Recovered unpaid order behind completed payment",
				zap.String("order_id", p.OrderID.String()),
				zap.String("payment_id", p.ID.String()))
		}
	}
}
