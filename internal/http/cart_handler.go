package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maxshopweb/checkout/internal/domain"
)

// CartService is the cart engine surface the handlers call. Implemented by
// *cart.Engine.
type CartService interface {
	GetCart(ctx context.Context, ownerID string) (*domain.Cart, domain.CartSummary, error)
	AddItem(ctx context.Context, ownerID string, product domain.Product, qty int) (*domain.Cart, domain.CartSummary, error)
	UpdateQuantity(ctx context.Context, ownerID string, productID int64, qty int) (*domain.Cart, domain.CartSummary, error)
	RemoveItem(ctx context.Context, ownerID string, productID int64) (*domain.Cart, domain.CartSummary, error)
	ClearCart(ctx context.Context, ownerID string) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout}
}

// AddItemRequest carries the product snapshot alongside the quantity; the
// catalog lives outside this service, so the caller supplies current pricing.
type AddItemRequest struct {
	ProductID    int64   `json:"product_id"`
	Name         string  `json:"name"`
	ListPrice    float64 `json:"list_price"`
	SpecialPrice float64 `json:"special_price"`
	Quantity     int     `json:"quantity"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	Cart    *domain.Cart       `json:"cart"`
	Summary domain.CartSummary `json:"summary"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	c, summary, err := h.carts.GetCart(ctx, owner)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: c, Summary: summary})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product := domain.Product{
		ID:           req.ProductID,
		Name:         req.Name,
		ListPrice:    req.ListPrice,
		SpecialPrice: req.SpecialPrice,
	}

	c, summary, err := h.carts.AddItem(ctx, owner, product, req.Quantity)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse{Cart: c, Summary: summary})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not exceed 99")
		return
	}

	c, summary, err := h.carts.UpdateQuantity(ctx, owner, productID, req.Quantity)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: c, Summary: summary})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	c, summary, err := h.carts.RemoveItem(ctx, owner, productID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: c, Summary: summary})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	if err := h.carts.ClearCart(ctx, owner); err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
