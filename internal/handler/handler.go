// Package handler serves the storefront REST API: catalog reads, session
// carts and order placement.
package handler

import (
	"net/http"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// HeaderIdempotencyKey carries the client-generated key that deduplicates
// order placement retries.
const HeaderIdempotencyKey = "Idempotency-Key"

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler implements the API routes, delegating business logic to the cart
// and order services and the product repository.
type Handler struct {
	products     product.Repository
	carts        *cart.Service
	orders       *order.Service
	imageBaseURL string
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		orders:       orders,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Register adds every API route to mux under the /api prefix.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/categories", h.Categories)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.HandleFunc("GET /api/cart/{sessionId}", h.GetCart)
	mux.HandleFunc("POST /api/cart/{sessionId}", h.AddCartItem)
	mux.HandleFunc("DELETE /api/cart/{sessionId}", h.ClearCart)
	mux.HandleFunc("PUT /api/cart/{sessionId}/items/{itemId}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/{sessionId}/items/{itemId}", h.RemoveCartItem)

	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
}
