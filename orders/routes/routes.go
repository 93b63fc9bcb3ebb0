package routes

import (
	"github.com/gin-gonic/gin"

	"opencart-backend/orders/controllers"
)

func RegisterOrderRoutes(r *gin.Engine, oc *controllers.OrderController) {
	orderRoutes := r.Group("/orders")
	orderRoutes.POST("", oc.CreateOrder)
	orderRoutes.GET("", oc.GetOrders)
	orderRoutes.GET("/:id", oc.GetOrderByID)
	orderRoutes.PUT("/:id", oc.UpdateOrder)
	orderRoutes.DELETE("/:id", oc.DeleteOrder)
}
