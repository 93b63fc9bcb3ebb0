package routes

import (
	"github.com/gin-gonic/gin"

	"opencart-backend/payments/controllers"
)

func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController) {
	payments := r.Group("/payments")
	payments.POST("", pc.CreatePayment)
	payments.GET("", pc.GetPayments)
	payments.GET("/:id", pc.GetPaymentByID)
	payments.PUT("/:id", pc.UpdatePayment)
	payments.DELETE("/:id", pc.DeletePayment)

	// Gateway endpoints (no auth; the callback is validated defensively).
	r.POST("/mobile-money/push", pc.MpesaPush)
	r.POST("/mobile-money/callback", pc.MpesaCallback)
}
