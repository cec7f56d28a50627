package router

import (
	"context"
	"net/http"

	"tg-storefront/internal/handler"
	"tg-storefront/internal/metrics"
	"tg-storefront/internal/middleware"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires the router's dependencies. Webhook and Gatherer are optional.
type Config struct {
	Products *handler.ProductHandler
	Orders   *handler.OrderHandler
	Webhook  http.Handler
	DB       Pinger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	APIKey   string
	Logger   zerolog.Logger
}

// New creates a new HTTP router with all routes and middleware configured.
// Every API path is served with and without a trailing slash.
func New(cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health(cfg.DB))
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(cfg.Gatherer))
	}

	handle(mux, "GET /api/products", cfg.Products.GetAll)
	handle(mux, "GET /api/products/{id}", cfg.Products.GetByID)
	handle(mux, "DELETE /api/products/{id}", cfg.Products.Delete)

	handle(mux, "POST /api/orders", cfg.Orders.Create)
	handle(mux, "GET /api/orders", cfg.Orders.List)
	handle(mux, "GET /api/orders/{id}", cfg.Orders.GetByID)
	handle(mux, "DELETE /api/orders/{id}", cfg.Orders.Delete)
	handle(mux, "POST /api/orders/{id}/send_invoice", cfg.Orders.SendInvoice)
	handle(mux, "POST /api/orders/{id}/mark_paid", cfg.Orders.MarkPaid)
	handle(mux, "POST /api/orders/{id}/set_status", cfg.Orders.SetStatus)

	if cfg.Webhook != nil {
		mux.Handle("POST /telegram/webhook", cfg.Webhook)
	}

	// Applied inside out: Recovery -> RequestID -> Logging -> Metrics -> CORS -> APIKeyAuth
	var h http.Handler = mux
	if cfg.APIKey != "" {
		h = middleware.APIKeyAuth(cfg.APIKey, cfg.Logger, "/health", "/metrics", "/telegram/webhook")(h)
	}
	h = middleware.CORS(h)
	h = middleware.Metrics(cfg.Metrics)(h)
	h = middleware.Logging(cfg.Logger)(h)
	h = middleware.RequestID(h)
	h = middleware.Recovery(cfg.Logger)(h)

	return h
}

func handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, h)
	mux.HandleFunc(pattern+"/{$}", h)
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status": "db_error"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	}
}
