package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a customer order.
type Order struct {
	ID         int64           `json:"id" db:"id"`
	CustomerID int64           `json:"telegram_user_id" db:"telegram_user_id"`
	Status     Status          `json:"status" db:"status"`
	Total      decimal.Decimal `json:"total" db:"total"`
	Address    string          `json:"address" db:"address"`
	Extra      map[string]any  `json:"extra" db:"extra"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	Items      []OrderItem     `json:"items"`
}

// OrderItem represents a line item in an order. Price is a snapshot taken
// when the order was created.
type OrderItem struct {
	ID        int64             `json:"id" db:"id"`
	OrderID   int64             `json:"-" db:"order_id"`
	ProductID int64             `json:"product" db:"product_id"`
	Quantity  int               `json:"quantity" db:"quantity"`
	Price     decimal.Decimal   `json:"price" db:"price"`
	Options   map[string]string `json:"options" db:"options"`
}

// LineTotal returns price × quantity for the item.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// AmountScale is the number of fraction digits stored for prices and totals.
const AmountScale = 2

// MaxAmount is the largest price or total the NUMERIC(10,2) columns hold.
var MaxAmount = decimal.RequireFromString("99999999.99")

// ValidAmount reports whether d is non-negative, has at most AmountScale
// fraction digits and fits in MaxAmount.
func ValidAmount(d decimal.Decimal) bool {
	return !d.IsNegative() &&
		d.Equal(d.Round(AmountScale)) &&
		d.LessThanOrEqual(MaxAmount)
}

// OrderTotal sums the line totals of items.
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// OrderRequest represents the request payload for creating an order.
type OrderRequest struct {
	CustomerID int64              `json:"telegram_user_id"`
	Address    string             `json:"address"`
	Extra      map[string]any     `json:"extra,omitempty"`
	Items      []OrderItemRequest `json:"items"`
}

// OrderItemRequest represents a single item in an order request. Quantity
// defaults to 1 and Price to the product's current price.
type OrderItemRequest struct {
	ProductID int64             `json:"product"`
	Quantity  *int              `json:"quantity,omitempty"`
	Price     *decimal.Decimal  `json:"price,omitempty"`
	Options   map[string]string `json:"options,omitempty"`
}

// SetStatusRequest is the body of the set_status action.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// StatusResult acknowledges a status change.
type StatusResult struct {
	Status string `json:"status"`
}

// InvoiceResult reports the outcome of an invoice delivery. Resp holds the
// gateway's decoded JSON on success, or its raw text otherwise.
type InvoiceResult struct {
	OK    bool            `json:"ok"`
	Resp  json.RawMessage `json:"resp,omitempty"`
	Error string          `json:"error,omitempty"`
}
