package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterDeps struct {
	Carts     CartService
	Checkout  CheckoutService
	Quotes    QuoteReader
	Guests    GuestResolver
	Orders    OrderSubmitter
	OrderRead OrderReader
	Addresses AddressProvider
	Timeout   time.Duration
}

// NewRouter mounts the storefront purchase API under /api/v1.
func NewRouter(deps RouterDeps) *chi.Mux {
	cartHandler := NewCartHandler(deps.Carts, deps.Timeout)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, deps.Carts, deps.Quotes, deps.Timeout)
	guestHandler := NewGuestHandler(deps.Guests, deps.Timeout)
	ordersHandler := NewOrdersHandler(deps.Orders, deps.OrderRead, deps.Timeout)
	addressesHandler := NewAddressesHandler(deps.Addresses, deps.Timeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(deps.Timeout))
	r.Use(middleware.Compress(5))
	r.Use(OwnerMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", checkoutHandler.Load)
			r.Get("/guard", checkoutHandler.Guard)
			r.Get("/shipping-quote", checkoutHandler.ShippingQuote)
			r.Put("/step", checkoutHandler.Navigate)
			r.Post("/steps/{step}/complete", checkoutHandler.CompleteStep)
			r.Put("/delivery", checkoutHandler.UpdateDelivery)
			r.Put("/payment-method", checkoutHandler.SetPaymentMethod)
			r.Post("/reset", checkoutHandler.Reset)
		})

		r.Route("/guest", func(r chi.Router) {
			r.Post("/", guestHandler.SignIn)
			r.Post("/convert", guestHandler.Convert)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordersHandler.Submit)
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/{order_id}", ordersHandler.GetOrder)
		})

		r.Get("/addresses", addressesHandler.ListAddresses)
	})

	return r
}
