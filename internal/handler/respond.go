package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/order"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/wire"
)

// inputError marks malformed client input: bad path ids, query values or
// request bodies.
type inputError struct {
	msg string
	err error
}

func (e *inputError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *inputError) Unwrap() error { return e.err }

func badInput(msg string, err error) error {
	return &inputError{msg: msg, err: err}
}

// pathID parses the int64 path parameter name.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, badInput("invalid "+name, nil)
	}
	return id, nil
}

// decodeBody reads the request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{ Decode(*jx.Decoder) error }) error {
	buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return badInput("read body", err)
	}
	if err := v.Decode(jx.DecodeBytes(buf)); err != nil {
		if errors.Is(err, wire.ErrMissingField) {
			return err
		}
		return badInput("invalid request body", err)
	}
	return nil
}

// writeJSON writes a JSON response produced by f.
func writeJSON(w http.ResponseWriter, status int, f func(e *jx.Encoder)) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(wire.Encode(f))
}

// writeError maps err to a status code and writes a failed envelope.
// Server errors are logged and their details hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = ""
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		wire.EncodeError(e, http.StatusText(status), msg)
	})
}

func statusOf(err error) int {
	var (
		inErr    *inputError
		qtyErr   *cart.InvalidQuantityError
		stockErr *cart.InsufficientStockError
	)
	switch {
	case errors.As(err, &inErr),
		errors.As(err, &qtyErr),
		errors.Is(err, wire.ErrMissingField),
		errors.Is(err, order.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &stockErr),
		errors.Is(err, order.ErrIdempotencyKeyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
