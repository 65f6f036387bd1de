package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maxshopweb/checkout/internal/domain"
)

// OrderSubmitter is the coordinator surface. Implemented by
// *order.Coordinator.
type OrderSubmitter interface {
	Submit(ctx context.Context, ownerID, customerID string) (*domain.Order, error)
}

// OrderReader serves order lookups after submission. Implemented by
// *order.Repository.
type OrderReader interface {
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error)
}

type OrdersHandler struct {
	submitter OrderSubmitter
	reader    OrderReader
	timeout   time.Duration
}

func NewOrdersHandler(submitter OrderSubmitter, reader OrderReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		submitter: submitter,
		reader:    reader,
		timeout:   timeout,
	}
}

func (h *OrdersHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	o, err := h.submitter.Submit(ctx, owner, authenticatedUser(r))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	o, err := h.reader.GetOrderByID(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		handleDomainError(w, err)
		return
	}
	if o.OwnerID != owner {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	orders, err := h.reader.ListOrdersByOwner(ctx, owner)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}
