package service

import (
	"context"
	"errors"
	"fmt"

	"tg-storefront/internal/config"
	"tg-storefront/internal/events"
	"tg-storefront/internal/invoice"
	"tg-storefront/internal/model"
	"tg-storefront/internal/repository"
	"tg-storefront/internal/telegram"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	gateway     Gateway
	publisher   events.Publisher
	payments    config.TelegramConfig
	guard       model.TransitionFunc
	logger      zerolog.Logger
}

// NewOrderService creates a new order service. payments supplies the
// provider token and currency used for invoices.
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	gateway Gateway,
	publisher events.Publisher,
	payments config.TelegramConfig,
	logger zerolog.Logger,
) OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		gateway:     gateway,
		publisher:   publisher,
		payments:    payments,
		guard:       model.CheckTransition,
		logger:      logger.With().Str("service", "order").Logger(),
	}
}

// CreateOrder writes the order shell, its items and the computed total in
// one transaction.
func (s *orderService) CreateOrder(ctx context.Context, req *model.OrderRequest) (_ *model.Order, err error) {
	if err := s.validateOrderRequest(req); err != nil {
		return nil, err
	}

	products, err := s.resolveProducts(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, len(req.Items))
	for i, item := range req.Items {
		quantity := 1
		if item.Quantity != nil {
			quantity = *item.Quantity
		}
		price := products[item.ProductID].Price
		if item.Price != nil {
			price = *item.Price
		}
		options := item.Options
		if options == nil {
			options = map[string]string{}
		}
		items[i] = model.OrderItem{
			ProductID: item.ProductID,
			Quantity:  quantity,
			Price:     price,
			Options:   options,
		}
	}

	total := model.OrderTotal(items)
	if total.GreaterThan(model.MaxAmount) {
		return nil, model.ErrTotalTooLarge
	}

	extra := req.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	order := &model.Order{
		CustomerID: req.CustomerID,
		Status:     model.StatusCreated,
		Total:      decimal.Zero,
		Address:    req.Address,
		Extra:      extra,
	}

	tx, err := s.orderRepo.BeginTx(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		s.logger.Error().Err(err).Int64("customer_id", order.CustomerID).Msg("failed to create order")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
	}
	if err = s.orderRepo.CreateOrderItems(ctx, tx, items); err != nil {
		s.logger.Error().
			Err(err).
			Int64("order_id", order.ID).
			Int("item_count", len(items)).
			Msg("failed to create order items")
		return nil, fmt.Errorf("failed to create order items: %w", err)
	}

	if err = s.orderRepo.UpdateTotal(ctx, tx, order.ID, total); err != nil {
		s.logger.Error().Err(err).Int64("order_id", order.ID).Msg("failed to update order total")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		s.logger.Error().Err(err).Int64("order_id", order.ID).Msg("failed to commit transaction")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	order.Total = total
	order.Items = items

	s.logger.Info().
		Int64("order_id", order.ID).
		Int("item_count", len(items)).
		Str("total", total.StringFixed(2)).
		Msg("order created successfully")

	s.publish(ctx, events.OrderCreated(order))

	return order, nil
}

// GetByID retrieves an order with its items.
func (s *orderService) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	if id <= 0 {
		return nil, model.ErrInvalidID
	}

	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("order_id", id).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		s.logger.Debug().Int64("order_id", id).Msg("order not found")
		return nil, model.ErrOrderNotFound
	}

	return order, nil
}

// List retrieves orders with pagination.
func (s *orderService) List(ctx context.Context, limit, offset int) ([]model.Order, error) {
	limit, offset = normalisePage(limit, offset)

	orders, err := s.orderRepo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Int("limit", limit).Int("offset", offset).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Delete removes an order and its items.
func (s *orderService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return model.ErrInvalidID
	}

	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Int64("order_id", id).Msg("order deleted")
	return nil
}

// MarkPaid moves the order to paid regardless of its current status.
func (s *orderService) MarkPaid(ctx context.Context, id int64) (*model.Order, error) {
	return s.transition(ctx, id, model.StatusPaid, func(order *model.Order) string {
		return fmt.Sprintf("Ваш заказ #%d оплачен. Ожидайте подтверждения.", order.ID)
	})
}

// SetStatus validates rawStatus before anything is written.
func (s *orderService) SetStatus(ctx context.Context, id int64, rawStatus string) (*model.Order, error) {
	next, err := model.ParseStatus(rawStatus)
	if err != nil {
		s.logger.Warn().Int64("order_id", id).Str("status", rawStatus).Msg("rejected status value")
		return nil, err
	}

	return s.transition(ctx, id, next, func(order *model.Order) string {
		return fmt.Sprintf("Статус вашего заказа #%d: %s", order.ID, order.Status.Label())
	})
}

// SendInvoice reports gateway failures in the result instead of the error.
func (s *orderService) SendInvoice(ctx context.Context, id int64) (*model.InvoiceResult, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	inv := invoice.Build(order, s.payments)
	resp, err := s.gateway.SendInvoice(ctx, inv)
	if err != nil {
		var transportErr *telegram.TransportError
		if errors.As(err, &transportErr) {
			s.logger.Warn().Err(err).Int64("order_id", id).Msg("invoice delivery failed")
		} else {
			s.logger.Error().Err(err).Int64("order_id", id).Msg("failed to send invoice")
		}
		return &model.InvoiceResult{OK: false, Error: err.Error()}, nil
	}

	s.logger.Info().
		Int64("order_id", id).
		Int64("amount", inv.Prices[0].Amount).
		Str("currency", inv.Currency).
		Bool("ok", resp.OK).
		Msg("invoice sent")

	return &model.InvoiceResult{OK: resp.OK, Resp: resp.Payload()}, nil
}

// transition commits the status change, then notifies the customer and
// publishes the event. Neither follow-up can fail the call.
func (s *orderService) transition(
	ctx context.Context,
	id int64,
	next model.Status,
	notification func(*model.Order) string,
) (*model.Order, error) {
	if id <= 0 {
		return nil, model.ErrInvalidID
	}

	order, previous, err := s.orderRepo.TransitionStatus(ctx, id, next, s.guard)
	if err != nil {
		var domainErr *model.DomainError
		if !errors.As(err, &domainErr) {
			s.logger.Error().Err(err).Int64("order_id", id).Str("status", string(next)).Msg("failed to change order status")
		}
		return nil, err
	}

	s.logger.Info().
		Int64("order_id", id).
		Str("from", string(previous)).
		Str("to", string(next)).
		Msg("order status changed")

	s.notify(ctx, order.CustomerID, notification(order))
	s.publish(ctx, events.StatusChanged(order, previous))

	return order, nil
}

func (s *orderService) notify(ctx context.Context, chatID int64, text string) {
	resp, err := s.gateway.SendMessage(ctx, telegram.Message{ChatID: chatID, Text: text}, true)
	if err != nil {
		s.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("notification not sent")
		return
	}
	if resp != nil && !resp.OK {
		s.logger.Warn().Int("status", resp.StatusCode).Int64("chat_id", chatID).Msg("notification rejected")
	}
}

func (s *orderService) publish(ctx context.Context, event events.OrderEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Int64("order_id", event.OrderID).Str("type", event.Type).Msg("failed to publish event")
	}
}

// resolveProducts loads every referenced product, failing with
// ErrProductNotFound if any is missing.
func (s *orderService) resolveProducts(ctx context.Context, items []model.OrderItemRequest) (map[int64]model.Product, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error().Err(err).Int("product_count", len(ids)).Msg("failed to load products")
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	byID := make(map[int64]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			s.logger.Warn().Int64("product_id", id).Msg("product not found")
			return nil, model.ErrProductNotFound
		}
	}

	return byID, nil
}

// validateOrderRequest validates the order request.
func (s *orderService) validateOrderRequest(req *model.OrderRequest) error {
	if req == nil {
		return model.ErrEmptyOrder
	}

	if req.CustomerID == 0 {
		return model.ErrCustomerRequired
	}

	if len(req.Items) == 0 {
		return model.ErrEmptyOrder
	}

	for i, item := range req.Items {
		if item.ProductID <= 0 {
			return model.ErrInvalidID
		}

		if item.Quantity != nil && *item.Quantity <= 0 {
			s.logger.Warn().
				Int("item_index", i).
				Int64("product_id", item.ProductID).
				Int("quantity", *item.Quantity).
				Msg("invalid quantity")
			return model.ErrInvalidQuantity
		}

		if item.Price != nil && !model.ValidAmount(*item.Price) {
			s.logger.Warn().
				Int("item_index", i).
				Int64("product_id", item.ProductID).
				Str("price", item.Price.String()).
				Msg("invalid price")
			return model.ErrInvalidPrice
		}
	}

	return nil
}
