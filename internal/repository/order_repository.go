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
	"github.com/shopspring/decimal"
)

const orderColumns = `id, telegram_user_id, status, total, address, extra, created_at`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CreateOrder inserts a new order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (telegram_user_id, status, total, address, extra)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	extra := order.Extra
	if extra == nil {
		extra = map[string]any{}
	}

	err := tx.QueryRow(ctx, query, order.CustomerID, order.Status, order.Total, order.Address, extra).
		Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		r.logger.Error().
			Err(err).
			Int64("telegram_user_id", order.CustomerID).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Int64("order_id", order.ID).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided
// transaction and fills in their generated IDs.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (order_id, product_id, quantity, price, options)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		options := item.Options
		if options == nil {
			options = map[string]string{}
		}
		batch.Queue(query, item.OrderID, item.ProductID, item.Quantity, item.Price, options)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := range items {
		if err := results.QueryRow().Scan(&items[i].ID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
				r.logger.Warn().
					Int64("order_id", items[i].OrderID).
					Int64("product_id", items[i].ProductID).
					Msg("order item references a missing product")
				return model.ErrProductNotFound
			}
			r.logger.Error().
				Err(err).
				Int64("order_id", items[i].OrderID).
				Int64("product_id", items[i].ProductID).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// UpdateTotal writes the order total within the provided transaction.
func (r *orderRepository) UpdateTotal(ctx context.Context, tx pgx.Tx, orderID int64, total decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `UPDATE orders SET total = $2 WHERE id = $1`, orderID, total)
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to update order total")
		return fmt.Errorf("failed to update order total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

// GetByID retrieves an order by its ID along with its items.
func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1
	`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Int64("order_id", id).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("order_id", id).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	orders := []model.Order{order}
	if err := r.attachItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}

	return &orders[0], nil
}

// List retrieves orders with their items, newest first.
func (r *orderRepository) List(ctx context.Context, limit, offset int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		r.logger.Error().Err(err).Int("limit", limit).Int("offset", offset).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order row")
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order rows")
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if err := r.attachItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// TransitionStatus locks the order row, consults guard and writes the new
// status. The transaction is committed before returning.
func (r *orderRepository) TransitionStatus(
	ctx context.Context,
	id int64,
	next model.Status,
	guard model.TransitionFunc,
) (_ *model.Order, _ model.Status, err error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				r.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	var previous model.Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = model.ErrOrderNotFound
			return nil, "", err
		}
		r.logger.Error().Err(err).Int64("order_id", id).Msg("failed to lock order")
		return nil, "", fmt.Errorf("failed to lock order: %w", err)
	}

	if guard != nil {
		if err = guard(previous, next); err != nil {
			return nil, "", err
		}
	}

	order, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET status = $2
		WHERE id = $1
		RETURNING `+orderColumns, id, next))
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", id).Msg("failed to update order status")
		return nil, "", fmt.Errorf("failed to update order status: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Int64("order_id", id).Msg("failed to commit transaction")
		return nil, "", fmt.Errorf("failed to update order status: %w", err)
	}

	r.logger.Debug().
		Int64("order_id", id).
		Str("from", string(previous)).
		Str("to", string(next)).
		Msg("order status updated")

	return &order, previous, nil
}

// Delete removes an order; its items go with it by cascade.
func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Int64("order_id", id).Msg("failed to delete order")
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

// attachItems loads the items of every order in one query.
func (r *orderRepository) attachItems(ctx context.Context, q querier, orders []model.Order) error {
	if len(orders) == 0 {
		return nil
	}

	index := make(map[int64]int, len(orders))
	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []model.OrderItem{}
	}

	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price, options
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id
	`, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query order items")
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.Options)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		i := index[item.OrderID]
		orders[i].Items = append(orders[i].Items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return fmt.Errorf("error iterating order items: %w", err)
	}

	return nil
}

func scanOrder(row pgx.Row) (model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &o.Total, &o.Address, &o.Extra, &o.CreatedAt)
	return o, err
}
