package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "opencart-backend/common/errors"
	"opencart-backend/products/models"
)

type stubProductRepo struct {
	products map[uuid.UUID]*models.Product
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{products: map[uuid.UUID]*models.Product{}}
}

func (r *stubProductRepo) Create(_ context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	r.products[product.ID] = product
	return nil
}

func (r *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func (r *stubProductRepo) FindAll(_ context.Context) ([]models.Product, error) {
	var out []models.Product
	for _, p := range r.products {
		out = append(out, *p)
	}
	return out, nil
}

func (r *stubProductRepo) Update(_ context.Context, product *models.Product) error {
	if _, ok := r.products[product.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.products[product.ID] = product
	return nil
}

func (r *stubProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.products[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.products, id)
	return nil
}

func TestCreateProduct(t *testing.T) {
	repo := newStubProductRepo()
	svc := NewProductService(repo, nil, zap.NewNop())

	product := &models.Product{
		Name:  "Widget",
		Price: decimal.RequireFromString("10.00"),
		Stock: 5,
	}
	require.NoError(t, svc.CreateProduct(context.Background(), product))
	assert.NotEqual(t, uuid.Nil, product.ID)
}

func TestCreateProduct_RequiresName(t *testing.T) {
	repo := newStubProductRepo()
	svc := NewProductService(repo, nil, zap.NewNop())

	err := svc.CreateProduct(context.Background(), &models.Product{
		Price: decimal.RequireFromString("10.00"),
	})

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.Code)
}

func TestCreateProduct_RejectsNegativePrice(t *testing.T) {
	repo := newStubProductRepo()
	svc := NewProductService(repo, nil, zap.NewNop())

	err := svc.CreateProduct(context.Background(), &models.Product{
		Name:  "Widget",
		Price: decimal.RequireFromString("-1.00"),
	})

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.Code)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := newStubProductRepo()
	svc := NewProductService(repo, nil, zap.NewNop())

	_, err := svc.GetProduct(context.Background(), uuid.New())

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 404, appErr.Code)
}

func TestDeleteProduct(t *testing.T) {
	repo := newStubProductRepo()
	svc := NewProductService(repo, nil, zap.NewNop())

	product := &models.Product{Name: "Widget", Price: decimal.RequireFromString("10.00")}
	require.NoError(t, svc.CreateProduct(context.Background(), product))

	require.NoError(t, svc.DeleteProduct(context.Background(), product.ID))
	assert.Empty(t, repo.products)
}
