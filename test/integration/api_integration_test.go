package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tg-storefront/internal/bot"
	"tg-storefront/internal/config"
	"tg-storefront/internal/events"
	"tg-storefront/internal/handler"
	"tg-storefront/internal/metrics"
	"tg-storefront/internal/model"
	"tg-storefront/internal/repository"
	"tg-storefront/internal/router"
	"tg-storefront/internal/service"
	"tg-storefront/internal/telegram"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey        = "test-api-key"
	testWebhookSecret = "test-webhook-secret"
	testCustomerID    = 555
)

func setupTestServer(t *testing.T, testDB *TestDB, botAPI *FakeBotAPI) http.Handler {
	t.Helper()

	logger := zerolog.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	tgConfig := config.TelegramConfig{
		APIBase:        botAPI.URL,
		BotToken:       "123:TEST",
		ProviderToken:  "provider-token",
		Currency:       "RUB",
		CurrencyDigits: 2,
		RequestTimeout: 5 * time.Second,
		BotMode:        config.BotModeWebhook,
		WebhookSecret:  testWebhookSecret,
	}
	client := telegram.NewClient(tgConfig, m, logger)

	productRepo := repository.NewProductRepository(testDB.Pool, logger)
	orderRepo := repository.NewOrderRepository(testDB.Pool, logger)

	productService := service.NewProductService(productRepo, config.CacheConfig{ProductSize: 16, ProductTTL: time.Minute}, logger)
	orderService := service.NewOrderService(orderRepo, productRepo, client, events.NopPublisher{}, tgConfig, logger)

	frontEnd := bot.New(client, orderService, tgConfig, logger)

	return router.New(router.Config{
		Products: handler.NewProductHandler(productService, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
		Webhook:  frontEnd.WebhookHandler(testWebhookSecret),
		DB:       testDB.Pool,
		Metrics:  m,
		Gatherer: reg,
		APIKey:   testAPIKey,
		Logger:   logger,
	})
}

func doRequest(t *testing.T, server http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)
	return w
}

func createOrder(t *testing.T, server http.Handler, body string) model.Order {
	t.Helper()

	w := doRequest(t, server, http.MethodPost, "/api/orders/", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var order model.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	return order
}

func TestProductAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server := setupTestServer(t, testDB, NewFakeBotAPI(t))

	t.Run("GET /api/products/ returns all products", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedProducts(t, testDB.Pool)

		w := doRequest(t, server, http.MethodGet, "/api/products/", "")

		assert.Equal(t, http.StatusOK, w.Code)

		var products []model.Product
		require.NoError(t, json.NewDecoder(w.Body).Decode(&products))
		assert.Len(t, products, 3)
	})

	t.Run("GET /api/products with pagination", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		SeedProducts(t, testDB.Pool)

		w := doRequest(t, server, http.MethodGet, "/api/products?limit=2&offset=0", "")

		assert.Equal(t, http.StatusOK, w.Code)

		var products []model.Product
		require.NoError(t, json.NewDecoder(w.Body).Decode(&products))
		assert.Len(t, products, 2)
	})

	t.Run("GET /api/products/{id}/ returns product with options", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		w := doRequest(t, server, http.MethodGet, fmt.Sprintf("/api/products/%d/", ids[0]), "")

		assert.Equal(t, http.StatusOK, w.Code)

		var product model.Product
		require.NoError(t, json.NewDecoder(w.Body).Decode(&product))
		assert.Equal(t, ids[0], product.ID)
		assert.Equal(t, "Капучино", product.Title)
		assert.Equal(t, "50", product.Price.String())
		require.Len(t, product.Options, 1)
		assert.Equal(t, []string{"whole", "oat"}, product.Options[0].Values)
	})

	t.Run("GET /api/products/{id}/ returns 404 for non-existent product", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)

		w := doRequest(t, server, http.MethodGet, "/api/products/999/", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GET /api/products without API key returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		w := httptest.NewRecorder()

		server.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("GET /health returns 200 without API key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		server.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestOrderAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	botAPI := NewFakeBotAPI(t)
	server := setupTestServer(t, testDB, botAPI)

	t.Run("POST /api/orders/ computes total from product prices", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order := createOrder(t, server, fmt.Sprintf(
			`{"telegram_user_id":%d,"address":"ул. Ленина, 1","items":[{"product":%d,"quantity":2,"options":{"milk":"oat"}},{"product":%d}]}`,
			testCustomerID, ids[0], ids[1]))

		assert.Equal(t, model.StatusCreated, order.Status)
		assert.Equal(t, "130", order.Total.String())
		require.Len(t, order.Items, 2)
		assert.Equal(t, 1, order.Items[1].Quantity)
		assert.Equal(t, "oat", order.Items[0].Options["milk"])

		w := doRequest(t, server, http.MethodGet, fmt.Sprintf("/api/orders/%d", order.ID), "")
		require.Equal(t, http.StatusOK, w.Code)

		var stored model.Order
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
		assert.Equal(t, "130", stored.Total.String())
		assert.Equal(t, "ул. Ленина, 1", stored.Address)
		assert.Len(t, stored.Items, 2)
	})

	t.Run("POST /api/orders/ honours price override", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order := createOrder(t, server, fmt.Sprintf(
			`{"telegram_user_id":%d,"items":[{"product":%d,"quantity":3,"price":"45.50"}]}`,
			testCustomerID, ids[0]))

		assert.Equal(t, "136.5", order.Total.String())
	})

	t.Run("POST /api/orders/ with unknown product stores nothing", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		w := doRequest(t, server, http.MethodPost, "/api/orders/", fmt.Sprintf(
			`{"telegram_user_id":%d,"items":[{"product":%d},{"product":999}]}`, testCustomerID, ids[0]))

		assert.Equal(t, http.StatusNotFound, w.Code)

		var count int
		require.NoError(t, testDB.Pool.QueryRow(context.Background(), "SELECT count(*) FROM orders").Scan(&count))
		assert.Zero(t, count)
	})

	t.Run("POST /api/orders/ with zero quantity returns 400", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		w := doRequest(t, server, http.MethodPost, "/api/orders/", fmt.Sprintf(
			`{"telegram_user_id":%d,"items":[{"product":%d,"quantity":0}]}`, testCustomerID, ids[0]))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("POST /api/orders/ rejects a sub-cent price", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		w := doRequest(t, server, http.MethodPost, "/api/orders/", fmt.Sprintf(
			`{"telegram_user_id":%d,"items":[{"product":%d,"quantity":2,"price":"0.005"}]}`, testCustomerID, ids[0]))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), model.ErrCodeInvalidPrice)

		var count int
		require.NoError(t, testDB.Pool.QueryRow(context.Background(), "SELECT count(*) FROM orders").Scan(&count))
		assert.Zero(t, count)
	})

	t.Run("stored total equals the sum of stored items", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order := createOrder(t, server, fmt.Sprintf(
			`{"telegram_user_id":%d,"items":[{"product":%d,"quantity":3,"price":"0.01"},{"product":%d,"quantity":2}]}`,
			testCustomerID, ids[0], ids[2]))

		var stored, summed string
		err := testDB.Pool.QueryRow(context.Background(), `
			SELECT o.total::text, SUM(i.price * i.quantity)::numeric(10,2)::text
			FROM orders o JOIN order_items i ON i.order_id = o.id
			WHERE o.id = $1
			GROUP BY o.total`, order.ID).Scan(&stored, &summed)
		require.NoError(t, err)
		assert.Equal(t, summed, stored)
		assert.Equal(t, "241.03", stored)
		assert.Equal(t, "241.03", order.Total.StringFixed(2))
	})

	t.Run("set_status notifies the customer", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)
		botAPI.Reset()

		order := createOrder(t, server, fmt.Sprintf(
			`{"telegram_user_id":%d,"items":[{"product":%d}]}`, testCustomerID, ids[0]))

		w := doRequest(t, server, http.MethodPost, fmt.Sprintf("/api/orders/%d/set_status/", order.ID), `{"status":"accepted"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

		calls := botAPI.Calls("sendMessage")
		require.Len(t, calls, 1)
		assert.Equal(t, fmt.Sprint(testCustomerID), calls[0].Form["chat_id"])
		assert.Equal(t, fmt.Sprintf("Статус вашего заказа #%d: Принят", order.ID), calls[0].Form["text"])

		w = doRequest(t, server, http.MethodPost, fmt.Sprintf("/api/orders/%d/set_status/", order.ID), `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Статус не указан")
	})

	t.Run("send_invoice and webhook payment mark the order paid", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)
		botAPI.Reset()

		order := createOrder(t, server, fmt.Sprintf(
			`{"telegram_user_id":%d,"items":[{"product":%d,"quantity":2},{"product":%d}]}`,
			testCustomerID, ids[0], ids[1]))

		w := doRequest(t, server, http.MethodPost, fmt.Sprintf("/api/orders/%d/send_invoice/", order.ID), "")
		require.Equal(t, http.StatusOK, w.Code)

		var result model.InvoiceResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.OK)

		invoices := botAPI.Calls("sendInvoice")
		require.Len(t, invoices, 1)
		assert.Equal(t, "RUB", invoices[0].Form["currency"])
		assert.Equal(t, fmt.Sprintf("order:%d", order.ID), invoices[0].Form["payload"])
		assert.JSONEq(t, fmt.Sprintf(`[{"label":"Заказ #%d","amount":13000}]`, order.ID), invoices[0].Form["prices"])

		update := telegram.Update{
			UpdateID: 1,
			Message: &telegram.IncomingMessage{
				MessageID: 10,
				Chat:      telegram.Chat{ID: testCustomerID},
				SuccessfulPayment: &telegram.SuccessfulPayment{
					Currency:       "RUB",
					TotalAmount:    13000,
					InvoicePayload: fmt.Sprintf("order:%d", order.ID),
				},
			},
		}
		body, err := json.Marshal(update)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewReader(body))
		req.Header.Set(bot.SecretHeader, testWebhookSecret)
		hw := httptest.NewRecorder()
		server.ServeHTTP(hw, req)
		require.Equal(t, http.StatusOK, hw.Code)

		w = doRequest(t, server, http.MethodGet, fmt.Sprintf("/api/orders/%d/", order.ID), "")
		var paid model.Order
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paid))
		assert.Equal(t, model.StatusPaid, paid.Status)

		messages := botAPI.Calls("sendMessage")
		require.Len(t, messages, 2)
		assert.Equal(t, fmt.Sprintf("Ваш заказ #%d оплачен. Ожидайте подтверждения.", order.ID), messages[0].Form["text"])
		assert.Equal(t, fmt.Sprintf("✅ Оплата за заказ №%d прошла успешно!", order.ID), messages[1].Form["text"])
	})

	t.Run("webhook rejects a wrong secret", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(`{"update_id":1}`))
		req.Header.Set(bot.SecretHeader, "wrong")
		w := httptest.NewRecorder()

		server.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("referenced product cannot be deleted until its order is", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		order := createOrder(t, server, fmt.Sprintf(
			`{"telegram_user_id":%d,"items":[{"product":%d}]}`, testCustomerID, ids[0]))

		w := doRequest(t, server, http.MethodDelete, fmt.Sprintf("/api/products/%d/", ids[0]), "")
		assert.Equal(t, http.StatusConflict, w.Code)

		w = doRequest(t, server, http.MethodDelete, fmt.Sprintf("/api/orders/%d/", order.ID), "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doRequest(t, server, http.MethodDelete, fmt.Sprintf("/api/products/%d/", ids[0]), "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doRequest(t, server, http.MethodGet, fmt.Sprintf("/api/orders/%d/", order.ID), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GET /api/orders/ lists newest first", func(t *testing.T) {
		CleanupDB(t, testDB.Pool)
		ids := SeedProducts(t, testDB.Pool)

		first := createOrder(t, server, fmt.Sprintf(`{"telegram_user_id":1,"items":[{"product":%d}]}`, ids[0]))
		second := createOrder(t, server, fmt.Sprintf(`{"telegram_user_id":2,"items":[{"product":%d}]}`, ids[1]))

		w := doRequest(t, server, http.MethodGet, "/api/orders/", "")
		require.Equal(t, http.StatusOK, w.Code)

		var orders []model.Order
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
		require.Len(t, orders, 2)
		assert.Equal(t, second.ID, orders[0].ID)
		assert.Equal(t, first.ID, orders[1].ID)
	})
}

func TestCORS_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	server := setupTestServer(t, testDB, NewFakeBotAPI(t))

	t.Run("OPTIONS request returns CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
		w := httptest.NewRecorder()

		server.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "GET")
	})
}
