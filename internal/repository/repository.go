package repository

import (
	"context"

	"tg-storefront/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ProductRepository defines the interface for product data access operations.
type ProductRepository interface {
	// GetAll retrieves products with their options, newest first.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id int64) (*model.Product, error)

	// GetByIDs retrieves multiple products by their IDs.
	GetByIDs(ctx context.Context, ids []int64) ([]model.Product, error)

	// Create inserts a product and its options atomically.
	Create(ctx context.Context, product *model.Product) error

	// Delete removes a product and its options. Fails with
	// model.ErrProductInUse while order items reference it.
	Delete(ctx context.Context, id int64) error
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts the order row within the provided transaction and
	// fills in the generated ID and creation time.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts order items within the provided transaction.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// UpdateTotal writes the order total within the provided transaction.
	UpdateTotal(ctx context.Context, tx pgx.Tx, orderID int64, total decimal.Decimal) error

	// GetByID retrieves an order with its items. Returns nil when absent.
	GetByID(ctx context.Context, id int64) (*model.Order, error)

	// List retrieves orders with their items, newest first.
	List(ctx context.Context, limit, offset int) ([]model.Order, error)

	// TransitionStatus locks the order row, asks guard whether the move is
	// allowed and writes the new status. Returns the updated order and the
	// status it had before.
	TransitionStatus(ctx context.Context, id int64, next model.Status, guard model.TransitionFunc) (*model.Order, model.Status, error)

	// Delete removes an order together with its items.
	Delete(ctx context.Context, id int64) error
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
