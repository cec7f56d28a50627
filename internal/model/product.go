package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalogue item.
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Image       *string         `json:"image" db:"image"`
	Meta        map[string]any  `json:"meta" db:"meta"`
	Options     []ProductOption `json:"options"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// ProductOption is a named choice axis of a product, e.g. "milk" with
// values "whole", "oat", "almond".
type ProductOption struct {
	ID        int64    `json:"id" db:"id"`
	ProductID int64    `json:"product" db:"product_id"`
	Name      string   `json:"name" db:"name"`
	Values    []string `json:"values" db:"choices"`
}
