package controllers

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"opencart-backend/payments/services"
)

// stkCallbackEnvelope is the gateway's callback shape. The endpoint is
// unauthenticated by gateway design, so the payload is validated
// defensively and never trusted beyond the identifiers it carries.
type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// MpesaCallback handles POST /mobile-money/callback. It always returns
// 200: a non-200 would make the gateway retry and amplify duplicate
// deliveries. Internal failures are logged only.
func (pc *PaymentController) MpesaCallback(ctx *gin.Context) {
	var envelope stkCallbackEnvelope
	if err := ctx.ShouldBindJSON(&envelope); err != nil {
		pc.logger.Warn("Malformed gateway callback", zap.Error(err))
		ctx.JSON(http.StatusOK, gin.H{"message": "Callback received"})
		return
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" && cb.MerchantRequestID == "" {
		pc.logger.Warn("Gateway callback missing stkCallback data")
		ctx.JSON(http.StatusOK, gin.H{"message": "Callback received"})
		return
	}

	outcome := &services.CallbackOutcome{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			if v, ok := item.Value.(string); ok {
				outcome.ReceiptNumber = v
			}
		case "AccountReference":
			if v, ok := item.Value.(string); ok {
				outcome.CorrelationID = v
			}
		case "Amount":
			if v, ok := item.Value.(float64); ok {
				amount := decimal.NewFromFloat(v)
				outcome.ConfirmedAmount = &amount
			}
		}
	}

	if err := pc.paymentService.HandleCallback(ctx.Request.Context(), outcome); err != nil {
		pc.logger.Error("Callback processing failed",
			zap.String("checkout_request_id", cb.CheckoutRequestID),
			zap.Error(err))
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Callback received"})
}

var phonePattern = regexp.MustCompile(`^254\d{9}$`)

// MpesaPush handles POST /mobile-money/push, a standalone push trigger not
// tied to a payment record.
func (pc *PaymentController) MpesaPush(ctx *gin.Context) {
	var req struct {
		Amount     decimal.Decimal `json:"amount"`
		PayerPhone string          `json:"payerPhone" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if !req.Amount.IsPositive() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
		return
	}
	if !phonePattern.MatchString(req.PayerPhone) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid phone number format. Must be 12 digits starting with '254'"})
		return
	}

	reference := fmt.Sprintf("PUSH-%s", uuid.NewString())
	ack, err := pc.gateway.InitiatePush(ctx.Request.Context(), req.Amount, req.PayerPhone, reference)
	if err != nil {
		pc.logger.Warn("Standalone push failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, gin.H{"error": "Failed to initiate push", "details": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, ack)
}
