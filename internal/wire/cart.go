package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

// EncodeCart writes c, or null for a nil cart.
func EncodeCart(e *jx.Encoder, c *cart.Cart, imageBase string) {
	if c == nil {
		e.Null()
		return
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("sessionId", func(e *jx.Encoder) { e.Str(c.SessionID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range c.Items {
					encodeCartItem(e, it, imageBase)
				}
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, c.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, c.UpdatedAt) })
	})
}

func encodeCartItem(e *jx.Encoder, it cart.Item, imageBase string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
		e.Field("cartId", func(e *jx.Encoder) { e.Int64(it.CartID) })
		e.Field("productId", func(e *jx.Encoder) { e.Int64(it.ProductID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("product", func(e *jx.Encoder) { EncodeProduct(e, it.Product, imageBase) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, it.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, it.UpdatedAt) })
	})
}

// DecodeCart reads a cart object. A JSON null decodes to a nil cart.
func DecodeCart(d *jx.Decoder) (*cart.Cart, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	c := &cart.Cart{Items: []cart.Item{}}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Int64()
		case "sessionId":
			c.SessionID, err = decodeOptStr(d)
		case "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeCartItem(d)
				if err != nil {
					return err
				}
				c.Items = append(c.Items, it)
				return nil
			})
		case "createdAt":
			c.CreatedAt, err = decodeTime(d)
		case "updatedAt":
			c.UpdatedAt, err = decodeTime(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode field %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return c, nil
}

func decodeCartItem(d *jx.Decoder) (cart.Item, error) {
	var it cart.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			it.ID, err = d.Int64()
		case "cartId":
			it.CartID, err = d.Int64()
		case "productId":
			it.ProductID, err = d.Int64()
		case "quantity":
			it.Quantity, err = d.Int()
		case "product":
			it.Product, err = DecodeProduct(d)
		case "createdAt":
			it.CreatedAt, err = decodeTime(d)
		case "updatedAt":
			it.UpdatedAt, err = decodeTime(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode item field %q", key)
		}
		return nil
	})
	return it, err
}
