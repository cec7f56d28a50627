package service

import (
	"context"
	"fmt"

	"tg-storefront/internal/config"
	"tg-storefront/internal/model"
	"tg-storefront/internal/repository"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// productService implements ProductService.
type productService struct {
	productRepo repository.ProductRepository
	cache       *expirable.LRU[int64, model.Product]
	logger      zerolog.Logger
}

// NewProductService creates a new product service. Single-product reads are
// served from an expiring LRU sized by cacheCfg.
func NewProductService(productRepo repository.ProductRepository, cacheCfg config.CacheConfig, logger zerolog.Logger) ProductService {
	size := cacheCfg.ProductSize
	if size <= 0 {
		size = 1
	}
	return &productService{
		productRepo: productRepo,
		cache:       expirable.NewLRU[int64, model.Product](size, nil, cacheCfg.ProductTTL),
		logger:      logger.With().Str("service", "product").Logger(),
	}
}

// GetAll retrieves all products with pagination.
func (s *productService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	limit, offset = normalisePage(limit, offset)

	products, err := s.productRepo.GetAll(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to get all products")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	s.logger.Debug().
		Int("count", len(products)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved products")

	return products, nil
}

// GetByID retrieves a single product by ID.
func (s *productService) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	if id <= 0 {
		return nil, model.ErrInvalidID
	}

	if product, ok := s.cache.Get(id); ok {
		return &product, nil
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("product_id", id).Msg("failed to get product by ID")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if product == nil {
		s.logger.Debug().Int64("product_id", id).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	s.cache.Add(id, *product)
	return product, nil
}

// Delete removes a product and evicts it from the cache.
func (s *productService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return model.ErrInvalidID
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Remove(id)
	s.logger.Info().Int64("product_id", id).Msg("product deleted")
	return nil
}
