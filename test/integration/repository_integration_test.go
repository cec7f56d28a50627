package integration

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"tg-storefront/internal/catalog"
	"tg-storefront/internal/model"
	"tg-storefront/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogFile(t *testing.T, entries []catalog.Entry) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "menu.jsonl.gz")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	gz := gzip.NewWriter(file)
	enc := json.NewEncoder(gz)
	for _, entry := range entries {
		require.NoError(t, enc.Encode(entry))
	}
	require.NoError(t, gz.Close())
	return path
}

func TestCatalogImport_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	logger := zerolog.Nop()
	repo := repository.NewProductRepository(testDB.Pool, logger)
	ctx := context.Background()

	CleanupDB(t, testDB.Pool)

	path := writeCatalogFile(t, []catalog.Entry{
		{
			Title:   "Латте",
			Price:   decimal.RequireFromString("220.00"),
			Meta:    map[string]any{"category": "coffee"},
			Options: []catalog.OptionEntry{{Name: "milk", Values: []string{"whole", "oat"}}, {Name: "size", Values: []string{"S", "L"}}},
		},
		{
			Title: "Круассан",
			Price: decimal.RequireFromString("150.00"),
		},
	})

	entries, err := catalog.LoadAll(ctx, catalog.NewFileLoader(logger), []string{path})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	imported, err := catalog.NewImporter(repo, logger).Import(ctx, entries)
	require.NoError(t, err)
	require.Len(t, imported, 2)

	latte, err := repo.GetByID(ctx, imported[0].ID)
	require.NoError(t, err)
	require.NotNil(t, latte)
	assert.Equal(t, "Латте", latte.Title)
	assert.True(t, latte.Price.Equal(decimal.NewFromInt(220)))
	assert.Equal(t, "coffee", latte.Meta["category"])
	require.Len(t, latte.Options, 2)
	assert.Equal(t, "milk", latte.Options[0].Name)
	assert.Equal(t, []string{"S", "L"}, latte.Options[1].Values)

	products, err := repo.GetByIDs(ctx, []int64{imported[0].ID, imported[1].ID})
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestOrderRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	logger := zerolog.Nop()
	repo := repository.NewOrderRepository(testDB.Pool, logger)

	ctx := context.Background()

	createOrder := func(t *testing.T, productID int64) *model.Order {
		t.Helper()

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)
		defer tx.Rollback(ctx)

		order := &model.Order{CustomerID: testCustomerID, Status: model.StatusCreated}
		require.NoError(t, repo.CreateOrder(ctx, tx, order))

		items := []model.OrderItem{{OrderID: order.ID, ProductID: productID, Quantity: 2, Price: decimal.RequireFromString("50.00")}}
		require.NoError(t, repo.CreateOrderItems(ctx, tx, items))
		require.NoError(t, repo.UpdateTotal(ctx, tx, order.ID, model.OrderTotal(items)))
		require.NoError(t, tx.Commit(ctx))
		return order
	}

	t.Run("rolled back order leaves no rows", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)

		order := &model.Order{CustomerID: testCustomerID, Status: model.StatusCreated}
		require.NoError(t, repo.CreateOrder(ctx, tx, order))
		require.NoError(t, repo.CreateOrderItems(ctx, tx, []model.OrderItem{
			{OrderID: order.ID, ProductID: ids[0], Quantity: 1, Price: decimal.RequireFromString("50.00")},
		}))
		require.NoError(t, tx.Rollback(ctx))

		stored, err := repo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Nil(t, stored)

		var items int
		require.NoError(t, testDB.Pool.QueryRow(ctx, "SELECT count(*) FROM order_items").Scan(&items))
		assert.Zero(t, items)
	})

	t.Run("stored total matches items", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order := createOrder(t, ids[0])

		stored, err := repo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.True(t, stored.Total.Equal(decimal.NewFromInt(100)))
		assert.True(t, stored.Total.Equal(model.OrderTotal(stored.Items)))
	})

	t.Run("concurrent transitions are serialised", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)
		order := createOrder(t, ids[0])

		targets := []model.Status{
			model.StatusPaid, model.StatusAccepted, model.StatusCompleted,
			model.StatusRejected, model.StatusPaid, model.StatusAccepted,
		}

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			previous []model.Status
			errs     []error
		)
		for _, next := range targets {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, prev, err := repo.TransitionStatus(ctx, order.ID, next, model.CheckTransition)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				previous = append(previous, prev)
			}()
		}
		wg.Wait()

		require.Empty(t, errs)
		require.Len(t, previous, len(targets))

		fromCreated := 0
		for _, prev := range previous {
			if prev == model.StatusCreated {
				fromCreated++
			}
		}
		assert.Equal(t, 1, fromCreated)
	})

	t.Run("TransitionStatus on missing order", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		_, _, err := repo.TransitionStatus(ctx, 404, model.StatusPaid, model.CheckTransition)
		assert.ErrorIs(t, err, model.ErrOrderNotFound)
	})
}
