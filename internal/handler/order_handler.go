package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tg-storefront/internal/model"
	"tg-storefront/internal/service"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	service service.OrderService
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders/.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.OrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err, "failed to create order", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// List handles GET /api/orders/.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidQuery, err.Error(), h.logger)
		return
	}

	orders, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "failed to list orders", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// GetByID handles GET /api/orders/{id}/.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err, "", h.logger)
		return
	}

	order, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to retrieve order", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// Delete handles DELETE /api/orders/{id}/.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err, "", h.logger)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "failed to delete order", h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SendInvoice handles POST /api/orders/{id}/send_invoice/. Gateway failures
// come back as 200 with ok=false.
func (h *OrderHandler) SendInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err, "", h.logger)
		return
	}

	result, err := h.service.SendInvoice(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to send invoice", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// MarkPaid handles POST /api/orders/{id}/mark_paid/.
func (h *OrderHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err, "", h.logger)
		return
	}

	if _, err := h.service.MarkPaid(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "failed to mark order paid", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.StatusResult{Status: "ok"})
}

// SetStatus handles POST /api/orders/{id}/set_status/ with body {"status": ...}.
// An empty body is treated as a missing status.
func (h *OrderHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, err, "", h.logger)
		return
	}

	var req model.SetStatusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	if _, err := h.service.SetStatus(r.Context(), id, req.Status); err != nil {
		writeServiceError(w, r, err, "failed to update order status", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.StatusResult{Status: "ok"})
}
