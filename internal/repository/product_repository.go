package repository

import (
	"context"
	"errors"
	"fmt"

	"tg-storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const pgForeignKeyViolation = "23503"

const productColumns = `id, title, description, price, image, meta, created_at`

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

// GetAll retrieves products with their options, newest first.
func (r *productRepository) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	products, err := r.queryProducts(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to query products")
		return nil, err
	}

	if err := r.attachOptions(ctx, products); err != nil {
		return nil, err
	}

	return products, nil
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1
	`

	p, err := scanProduct(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Int64("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	products := []model.Product{p}
	if err := r.attachOptions(ctx, products); err != nil {
		return nil, err
	}

	return &products[0], nil
}

// GetByIDs retrieves multiple products by their IDs. Options are not loaded.
func (r *productRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
	`

	products, err := r.queryProducts(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query products by IDs")
		return nil, err
	}

	return products, nil
}

// Create inserts a product and its options atomically.
func (r *productRepository) Create(ctx context.Context, product *model.Product) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				r.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	meta := product.Meta
	if meta == nil {
		meta = map[string]any{}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO products (title, description, price, image, meta)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, product.Title, product.Description, product.Price, product.Image, meta).Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("title", product.Title).Msg("failed to create product")
		return fmt.Errorf("failed to create product: %w", err)
	}

	if len(product.Options) > 0 {
		batch := &pgx.Batch{}
		for i := range product.Options {
			product.Options[i].ProductID = product.ID
			values := product.Options[i].Values
			if values == nil {
				values = []string{}
			}
			batch.Queue(`
				INSERT INTO product_options (product_id, name, choices, position)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, product.ID, product.Options[i].Name, values, i)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range product.Options {
			if err = results.QueryRow().Scan(&product.Options[i].ID); err != nil {
				results.Close()
				r.logger.Error().
					Err(err).
					Int64("product_id", product.ID).
					Str("option", product.Options[i].Name).
					Msg("failed to create product option")
				return fmt.Errorf("failed to create product option: %w", err)
			}
		}
		if err = results.Close(); err != nil {
			return fmt.Errorf("failed to create product options: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Int64("product_id", product.ID).Msg("failed to commit transaction")
		return fmt.Errorf("failed to create product: %w", err)
	}

	r.logger.Debug().
		Int64("product_id", product.ID).
		Int("options", len(product.Options)).
		Msg("product created successfully")

	return nil
}

// Delete removes a product and, by cascade, its options.
func (r *productRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			r.logger.Warn().Int64("product_id", id).Msg("product is referenced by order items")
			return model.ErrProductInUse
		}
		r.logger.Error().Err(err).Int64("product_id", id).Msg("failed to delete product")
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return model.ErrProductNotFound
	}

	return nil
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// attachOptions loads the options of every product in one query.
func (r *productRepository) attachOptions(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}

	index := make(map[int64]int, len(products))
	ids := make([]int64, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = i
		products[i].Options = []model.ProductOption{}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, name, choices
		FROM product_options
		WHERE product_id = ANY($1)
		ORDER BY product_id, position, id
	`, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query product options")
		return fmt.Errorf("failed to query product options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var opt model.ProductOption
		if err := rows.Scan(&opt.ID, &opt.ProductID, &opt.Name, &opt.Values); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product option row")
			return fmt.Errorf("failed to scan product option: %w", err)
		}
		i := index[opt.ProductID]
		products[i].Options = append(products[i].Options, opt)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating product options: %w", err)
	}

	return nil
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Image, &p.Meta, &p.CreatedAt)
	return p, err
}
