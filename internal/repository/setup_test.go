package repository

import (
	"context"
	"testing"
	"time"

	"tg-storefront/internal/database"
	"tg-storefront/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL container and returns a pool with the
// schema applied.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	// Get connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)

	pool, err := database.Open(ctx, poolConfig)
	require.NoError(t, err)

	require.NoError(t, database.ApplySchema(ctx, pool))

	// Cleanup function
	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// seedProduct inserts a product row directly and returns its ID.
func seedProduct(t *testing.T, pool *pgxpool.Pool, title, price string) int64 {
	t.Helper()

	var id int64
	err := pool.QueryRow(context.Background(),
		"INSERT INTO products (title, price) VALUES ($1, $2) RETURNING id",
		title, decimal.RequireFromString(price),
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// seedOrder creates an order with items through the repository.
func seedOrder(t *testing.T, repo OrderRepository, customerID int64, items []model.OrderItem) *model.Order {
	t.Helper()

	ctx := context.Background()
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	order := &model.Order{CustomerID: customerID, Status: model.StatusCreated}
	require.NoError(t, repo.CreateOrder(ctx, tx, order))

	for i := range items {
		items[i].OrderID = order.ID
	}
	require.NoError(t, repo.CreateOrderItems(ctx, tx, items))

	order.Total = model.OrderTotal(items)
	require.NoError(t, repo.UpdateTotal(ctx, tx, order.ID, order.Total))
	require.NoError(t, tx.Commit(ctx))

	order.Items = items
	return order
}
