package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	productCachePrefix = "product:detail:"
	productCacheTTL    = 5 * time.Minute
)

type Product struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// CatalogClient resolves product references against the catalog service.
type CatalogClient interface {
	FetchProduct(ctx context.Context, productID uuid.UUID) (*Product, error)
}

// ProductClient is an HTTP catalog client with an optional Redis
// read-through cache. A nil redis client disables caching.
type ProductClient struct {
	baseURL string
	client  *http.Client
	cache   *redis.Client
	logger  *zap.Logger
}

func NewProductClient(baseURL string, cache *redis.Client, logger *zap.Logger) *ProductClient {
	return &ProductClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		cache:   cache,
		logger:  logger,
	}
}

func (c *ProductClient) FetchProduct(ctx context.Context, productID uuid.UUID) (*Product, error) {
	if prod, ok := c.cachedProduct(ctx, productID); ok {
		return prod, nil
	}

	url := fmt.Sprintf("%s/products/internal/%s", c.baseURL, productID.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("product %s not found", productID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product service returned %d", resp.StatusCode)
	}

	var prod Product
	if err := json.NewDecoder(resp.Body).Decode(&prod); err != nil {
		return nil, err
	}

	c.cacheProduct(ctx, &prod)
	return &prod, nil
}

func (c *ProductClient) cachedProduct(ctx context.Context, productID uuid.UUID) (*Product, bool) {
	if c.cache == nil {
		return nil, false
	}

	data, err := c.cache.Get(ctx, productCachePrefix+productID.String()).Result()
	if err != nil {
		return nil, false
	}

	var prod Product
	if err := json.Unmarshal([]byte(data), &prod); err != nil {
		c.logger.Warn("Failed to unmarshal cached product", zap.Error(err))
		return nil, false
	}
	return &prod, true
}

func (c *ProductClient) cacheProduct(ctx context.Context, prod *Product) {
	if c.cache == nil {
		return
	}

	data, err := json.Marshal(prod)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, productCachePrefix+prod.ID.String(), data, productCacheTTL).Err(); err != nil {
		c.logger.Warn("Failed to cache product", zap.Error(err))
	}
}
