package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "opencart-backend/common/errors"
	"opencart-backend/products/models"
	"opencart-backend/products/services"
)

type ProductController struct {
	productService *services.ProductService
}

func NewProductController(productService *services.ProductService) *ProductController {
	return &ProductController{productService: productService}
}

func (pc *ProductController) CreateProduct(ctx *gin.Context) {
	var product models.Product
	if err := ctx.ShouldBindJSON(&product); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	if err := pc.productService.CreateProduct(ctx.Request.Context(), &product); err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, product)
}

func (pc *ProductController) GetProducts(ctx *gin.Context) {
	products, err := pc.productService.ListProducts(ctx.Request.Context())
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, products)
}

func (pc *ProductController) GetProductByID(ctx *gin.Context) {
	id, ok := parseProductID(ctx)
	if !ok {
		return
	}

	product, err := pc.productService.GetProduct(ctx.Request.Context(), id)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

// GetProductInternal serves the internal price lookup used by the order
// service when pricing line items.
func (pc *ProductController) GetProductInternal(ctx *gin.Context) {
	pc.GetProductByID(ctx)
}

func (pc *ProductController) UpdateProduct(ctx *gin.Context) {
	id, ok := parseProductID(ctx)
	if !ok {
		return
	}

	product, err := pc.productService.GetProduct(ctx.Request.Context(), id)
	if err != nil {
		apperrors.Respond(ctx, err)
		return
	}

	if err := ctx.ShouldBindJSON(product); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	product.ID = id

	if err := pc.productService.UpdateProduct(ctx.Request.Context(), product); err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, product)
}

func (pc *ProductController) DeleteProduct(ctx *gin.Context) {
	id, ok := parseProductID(ctx)
	if !ok {
		return
	}

	if err := pc.productService.DeleteProduct(ctx.Request.Context(), id); err != nil {
		apperrors.Respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

func parseProductID(ctx *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID format"})
		return uuid.Nil, false
	}
	return id, true
}
