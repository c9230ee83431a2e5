package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/wire"
)

// CreateOrder places an order from the session's cart. A repeated
// Idempotency-Key returns the earlier order with 200 instead of 201.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req wire.CreateOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	key := r.Header.Get(HeaderIdempotencyKey)
	res, err := h.orders.Place(r.Context(), req.SessionID, key)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
		zctx.From(r.Context()).Info("Order replayed",
			zap.Int64("order_id", res.Order.ID),
			zap.String("idempotency_key", key),
		)
	}
	h.writeOrder(w, status, res.Order)
}

// GetOrder returns an order with its items.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOrder(w, http.StatusOK, o)
}

func (h *Handler) writeOrder(w http.ResponseWriter, status int, o *order.Order) {
	writeJSON(w, status, func(e *jx.Encoder) {
		wire.EncodeData(e, func(e *jx.Encoder) { wire.EncodeOrder(e, o, h.imageBaseURL) })
	})
}
