package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "opencart-backend/common/errors"
	"opencart-backend/products/models"
	"opencart-backend/products/repository"
)

const productCachePrefix = "product:detail:"

type ProductService struct {
	repo   repository.ProductRepository
	cache  *redis.Client
	logger *zap.Logger
}

func NewProductService(repo repository.ProductRepository, cache *redis.Client, logger *zap.Logger) *ProductService {
	return &ProductService{repo: repo, cache: cache, logger: logger}
}

func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.Name == "" {
		return apperrors.ErrValidation.WithMessage("Product name is required")
	}
	if product.Price.IsNegative() {
		return apperrors.ErrValidation.WithMessage("Product price cannot be negative")
	}

	if err := s.repo.Create(ctx, product); err != nil {
		s.logger.Error("Failed to create product", zap.Error(err))
		return apperrors.ErrInternal.With(err)
	}
	return nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Product not found")
		}
		return nil, apperrors.ErrInternal.With(err)
	}
	return product, nil
}

func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, apperrors.ErrInternal.With(err)
	}
	return products, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := s.repo.Update(ctx, product); err != nil {
		return apperrors.ErrInternal.With(err)
	}
	s.invalidate(ctx, product.ID)
	return nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound.WithMessage("Product not found")
		}
		return apperrors.ErrInternal.With(err)
	}
	s.invalidate(ctx, id)
	return nil
}

// invalidate drops the cached detail entry consumers (the order service's
// catalog client) may hold for this product.
func (s *ProductService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, productCachePrefix+id.String()).Err(); err != nil {
		s.logger.Warn("Failed to invalidate product cache",
			zap.String("product_id", id.String()), zap.Error(err))
	}
}
