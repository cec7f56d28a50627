// Package invoice builds payment invoices for orders and correlates payment
// confirmations back to them.
package invoice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tg-storefront/internal/config"
	"tg-storefront/internal/model"
	"tg-storefront/internal/telegram"

	"github.com/shopspring/decimal"
)

const payloadPrefix = "order"

// ErrMalformedPayload is returned when an invoice payload does not carry an
// order identifier.
var ErrMalformedPayload = errors.New("malformed invoice payload")

// EncodePayload returns the opaque payload attached to an order's invoice.
func EncodePayload(orderID int64) string {
	return payloadPrefix + ":" + strconv.FormatInt(orderID, 10)
}

// DecodePayload extracts the order identifier from the text after the last
// ':' of payload.
func DecodePayload(payload string) (int64, error) {
	raw := payload[strings.LastIndex(payload, ":")+1:]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPayload, payload)
	}
	return id, nil
}

// MinorUnits converts an amount in currency units to an integer count of
// minor units. The shift is exact; any remaining fraction is rounded
// half-to-even.
func MinorUnits(amount decimal.Decimal, digits int32) int64 {
	return amount.Shift(digits).RoundBank(0).IntPart()
}

// Build assembles the invoice for order according to the payment settings.
func Build(order *model.Order, cfg config.TelegramConfig) telegram.Invoice {
	label := fmt.Sprintf("Заказ #%d", order.ID)

	return telegram.Invoice{
		ChatID:         order.CustomerID,
		Title:          fmt.Sprintf("Оплата заказа #%d", order.ID),
		Description:    fmt.Sprintf("Оплата заказа на сумму %s руб.", order.Total.StringFixed(cfg.CurrencyDigits)),
		Payload:        EncodePayload(order.ID),
		ProviderToken:  cfg.ProviderToken,
		StartParameter: fmt.Sprintf("order_%d", order.ID),
		Currency:       cfg.Currency,
		Prices: []telegram.LabeledPrice{
			{Label: label, Amount: MinorUnits(order.Total, cfg.CurrencyDigits)},
		},
	}
}
