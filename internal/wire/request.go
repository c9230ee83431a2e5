package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// ErrMissingField is returned when a required request field is absent.
var ErrMissingField = errors.New("missing required field")

// AddItemRequest is the body of POST /cart/{sessionId}.
type AddItemRequest struct {
	ProductID int64
	Quantity  int
}

// Encode writes r.
func (r AddItemRequest) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Int64(r.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(r.Quantity) })
	})
}

// Decode reads r. Quantity defaults to 1 when omitted.
func (r *AddItemRequest) Decode(d *jx.Decoder) error {
	var hasProduct, hasQuantity bool
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			hasProduct = true
			r.ProductID, err = d.Int64()
		case "quantity":
			hasQuantity = true
			r.Quantity, err = d.Int()
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode field %q", key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !hasProduct {
		return errors.Wrap(ErrMissingField, "productId")
	}
	if !hasQuantity {
		r.Quantity = 1
	}
	return nil
}

// UpdateItemRequest is the body of PUT /cart/{sessionId}/items/{itemId}.
type UpdateItemRequest struct {
	Quantity int
}

// Encode writes r.
func (r UpdateItemRequest) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("quantity", func(e *jx.Encoder) { e.Int(r.Quantity) })
	})
}

// Decode reads r.
func (r *UpdateItemRequest) Decode(d *jx.Decoder) error {
	var hasQuantity bool
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		hasQuantity = true
		q, err := d.Int()
		if err != nil {
			return errors.Wrap(err, `decode field "quantity"`)
		}
		r.Quantity = q
		return nil
	})
	if err != nil {
		return err
	}
	if !hasQuantity {
		return errors.Wrap(ErrMissingField, "quantity")
	}
	return nil
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	SessionID string
}

// Encode writes r.
func (r CreateOrderRequest) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("sessionId", func(e *jx.Encoder) { e.Str(r.SessionID) })
	})
}

// Decode reads r.
func (r *CreateOrderRequest) Decode(d *jx.Decoder) error {
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "sessionId" {
			return d.Skip()
		}
		s, err := decodeOptStr(d)
		if err != nil {
			return errors.Wrap(err, `decode field "sessionId"`)
		}
		r.SessionID = s
		return nil
	})
	if err != nil {
		return err
	}
	if r.SessionID == "" {
		return errors.Wrap(ErrMissingField, "sessionId")
	}
	return nil
}
