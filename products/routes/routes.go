package routes

import (
	"github.com/gin-gonic/gin"

	"opencart-backend/products/controllers"
)

func RegisterProductRoutes(r *gin.Engine, pc *controllers.ProductController) {
	products := r.Group("/products")
	products.POST("", pc.CreateProduct)
	products.GET("", pc.GetProducts)
	products.GET("/:id", pc.GetProductByID)
	products.PUT("/:id", pc.UpdateProduct)
	products.DELETE("/:id", pc.DeleteProduct)

	// Internal lookup used by the order service.
	products.GET("/internal/:id", pc.GetProductInternal)
}
