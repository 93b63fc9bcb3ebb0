package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "opencart-backend/common/errors"
	"opencart-backend/payments/services"
)

type PaymentController struct {
	paymentService *services.PaymentService
	gateway        services.GatewayClient
	logger         *zap.Logger
}

func NewPaymentController(paymentService *services.PaymentService, gateway services.GatewayClient, logger *zap.Logger) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		gateway:        gateway,
		logger:         logger,
	}
}

// CreatePayment handles POST /payments.
func (pc *PaymentController) CreatePayment(ctx *gin.Context) {
	var req services.CreatePaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	payment, err := pc.paymentService.CreatePayment(ctx.Request.Context(), &req)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, payment)
}

// GetPayments handles GET /payments.
func (pc *PaymentController) GetPayments(ctx *gin.Context) {
	payments, err := pc.paymentService.ListPayments(ctx.Request.Context())
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, payments)
}

// GetPaymentByID handles GET /payments/:id.
func (pc *PaymentController) GetPaymentByID(ctx *gin.Context) {
	id, ok := parsePaymentID(ctx)
	if !ok {
		return
	}

	payment, err := pc.paymentService.GetPayment(ctx.Request.Context(), id)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, payment)
}

// UpdatePayment handles PUT /payments/:id, the administrative status
// override.
func (pc *PaymentController) UpdatePayment(ctx *gin.Context) {
	id, ok := parsePaymentID(ctx)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	payment, err := pc.paymentService.OverrideStatus(ctx.Request.Context(), id, req.Status)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, payment)
}

// DeletePayment handles DELETE /payments/:id.
func (pc *PaymentController) DeletePayment(ctx *gin.Context) {
	id, ok := parsePaymentID(ctx)
	if !ok {
		return
	}

	if err := pc.paymentService.DeletePayment(ctx.Request.Context(), id); err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Payment deleted successfully"})
}

func parsePaymentID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment ID format"})
		return uuid.Nil, false
	}
	return id, true
}
