package service

import (
	"context"

	"tg-storefront/internal/model"
	"tg-storefront/internal/telegram"
)

// ProductService defines operations for product management.
type ProductService interface {
	// GetAll retrieves products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id int64) (*model.Product, error)

	// Delete removes a product that no order references.
	Delete(ctx context.Context, id int64) error
}

// OrderService defines operations for order management.
type OrderService interface {
	// CreateOrder persists an order and its items as one unit.
	CreateOrder(ctx context.Context, req *model.OrderRequest) (*model.Order, error)

	// GetByID retrieves an order with its items.
	GetByID(ctx context.Context, id int64) (*model.Order, error)

	// List retrieves orders with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]model.Order, error)

	// Delete removes an order and its items.
	Delete(ctx context.Context, id int64) error

	// MarkPaid moves the order to paid and notifies the customer.
	MarkPaid(ctx context.Context, id int64) (*model.Order, error)

	// SetStatus moves the order to the given status and notifies the customer.
	SetStatus(ctx context.Context, id int64, rawStatus string) (*model.Order, error)

	// SendInvoice delivers a payment invoice for the order total.
	SendInvoice(ctx context.Context, id int64) (*model.InvoiceResult, error)
}

// Gateway is the subset of the Bot API the order service talks to.
type Gateway interface {
	SendMessage(ctx context.Context, msg telegram.Message, bestEffort bool) (*telegram.Response, error)
	SendInvoice(ctx context.Context, inv telegram.Invoice) (*telegram.Response, error)
}

func normalisePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
