package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/wire"
)

// GetCart returns the session's cart, or 404 when none exists yet.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), r.PathValue("sessionId"))
	h.writeCart(w, r, c, err)
}

// AddCartItem adds a product to the session's cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req wire.AddItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.AddItem(r.Context(), r.PathValue("sessionId"), req.ProductID, req.Quantity)
	h.writeCart(w, r, c, err)
}

// UpdateCartItem sets the quantity of a cart line; zero or less removes it.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req wire.UpdateItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.UpdateItem(r.Context(), r.PathValue("sessionId"), itemID, req.Quantity)
	h.writeCart(w, r, c, err)
}

// RemoveCartItem deletes a cart line.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.carts.RemoveItem(r.Context(), r.PathValue("sessionId"), itemID)
	h.writeCart(w, r, c, err)
}

// ClearCart removes every line from the session's cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Clear(r.Context(), r.PathValue("sessionId"))
	h.writeCart(w, r, c, err)
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, c *cart.Cart, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		wire.EncodeData(e, func(e *jx.Encoder) { wire.EncodeCart(e, c, h.imageBaseURL) })
	})
}
