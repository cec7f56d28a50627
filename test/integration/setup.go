package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tg-storefront/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container with the storefront schema.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}

	pool, err := database.Open(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := database.ApplySchema(ctx, pool); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedProducts inserts a small menu and returns the product IDs in insertion
// order. The first product carries a "milk" option.
func SeedProducts(t *testing.T, pool *pgxpool.Pool) []int64 {
	t.Helper()

	ctx := context.Background()

	products := []struct {
		title string
		price string
	}{
		{"Капучино", "50.00"},
		{"Круассан", "30.00"},
		{"Сырники", "120.50"},
	}

	ids := make([]int64, 0, len(products))
	for _, p := range products {
		var id int64
		err := pool.QueryRow(ctx,
			"INSERT INTO products (title, price) VALUES ($1, $2) RETURNING id",
			p.title, decimal.RequireFromString(p.price),
		).Scan(&id)
		if err != nil {
			t.Fatalf("failed to seed product %s: %v", p.title, err)
		}
		ids = append(ids, id)
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO product_options (product_id, name, choices) VALUES ($1, 'milk', '["whole","oat"]')`,
		ids[0],
	)
	if err != nil {
		t.Fatalf("failed to seed product option: %v", err)
	}

	return ids
}

// CleanupDB removes all rows and resets identity sequences.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		"TRUNCATE order_items, orders, product_options, products RESTART IDENTITY CASCADE")
	if err != nil {
		t.Logf("failed to clean tables: %v", err)
	}
}

// BotAPICall is one request received by FakeBotAPI.
type BotAPICall struct {
	Method string
	Form   map[string]string
}

// FakeBotAPI stands in for the Bot API and records every call.
type FakeBotAPI struct {
	*httptest.Server
	mu    sync.Mutex
	calls []BotAPICall
}

// NewFakeBotAPI starts a Bot API double that accepts every call.
func NewFakeBotAPI(t *testing.T) *FakeBotAPI {
	t.Helper()

	f := &FakeBotAPI{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		call := BotAPICall{
			Method: r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:],
			Form:   make(map[string]string, len(r.PostForm)),
		}
		for key := range r.PostForm {
			call.Form[key] = r.PostForm.Get(key)
		}

		f.mu.Lock()
		f.calls = append(f.calls, call)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	t.Cleanup(f.Close)
	return f
}

// Calls returns the calls made to method, oldest first.
func (f *FakeBotAPI) Calls(method string) []BotAPICall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []BotAPICall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets the recorded calls.
func (f *FakeBotAPI) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}
