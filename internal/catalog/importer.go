package catalog

import (
	"context"
	"fmt"

	"tg-storefront/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LoadAll loads every path concurrently and returns the entries in path
// order. The first failure cancels the remaining loads.
func LoadAll(ctx context.Context, loader Loader, paths []string) ([]Entry, error) {
	results := make([][]Entry, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			entries, err := loader.Load(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to load catalog file %s: %w", path, err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Entry
	for _, entries := range results {
		all = append(all, entries...)
	}
	return all, nil
}

// ProductCreator stores a product with its options.
type ProductCreator interface {
	Create(ctx context.Context, product *model.Product) error
}

// Importer writes catalog entries to the product store.
type Importer struct {
	products ProductCreator
	logger   zerolog.Logger
}

// NewImporter creates an importer backed by products.
func NewImporter(products ProductCreator, logger zerolog.Logger) *Importer {
	return &Importer{
		products: products,
		logger:   logger.With().Str("component", "catalog-importer").Logger(),
	}
}

// Import creates one product per entry and returns the products created.
// It stops at the first failure; products created before it remain.
func (i *Importer) Import(ctx context.Context, entries []Entry) ([]model.Product, error) {
	created := make([]model.Product, 0, len(entries))
	for n, entry := range entries {
		product := entry.Product()
		if err := i.products.Create(ctx, product); err != nil {
			i.logger.Error().Err(err).Int("entry", n).Str("title", entry.Title).Msg("failed to import product")
			return created, fmt.Errorf("failed to import %q: %w", entry.Title, err)
		}
		created = append(created, *product)
	}

	i.logger.Info().Int("imported", len(created)).Msg("catalog imported")
	return created, nil
}
