package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/order"
)

// EncodeOrder writes o.
func EncodeOrder(e *jx.Encoder, o *order.Order, imageBase string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("sessionId", func(e *jx.Encoder) { e.Str(o.SessionID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, o.Subtotal) })
		e.Field("tax", func(e *jx.Encoder) { encodeMoney(e, o.Tax) })
		e.Field("shipping", func(e *jx.Encoder) { encodeMoney(e, o.Shipping) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Int64(it.ID) })
						e.Field("orderId", func(e *jx.Encoder) { e.Int64(it.OrderID) })
						e.Field("productId", func(e *jx.Encoder) { e.Int64(it.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("price", func(e *jx.Encoder) { encodeMoney(e, it.Price) })
						e.Field("product", func(e *jx.Encoder) { EncodeProduct(e, it.Product, imageBase) })
					})
				}
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
	})
}

// DecodeOrder reads an order object.
func DecodeOrder(d *jx.Decoder) (*order.Order, error) {
	o := &order.Order{Items: []order.Item{}}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Int64()
		case "sessionId":
			o.SessionID, err = decodeOptStr(d)
		case "status":
			var s string
			s, err = decodeOptStr(d)
			o.Status = order.Status(s)
		case "subtotal":
			o.Subtotal, err = decodeMoney(d)
		case "tax":
			o.Tax, err = decodeMoney(d)
		case "shipping":
			o.Shipping, err = decodeMoney(d)
		case "total":
			o.Total, err = decodeMoney(d)
		case "items":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeOrderItem(d)
				if err != nil {
					return err
				}
				o.Items = append(o.Items, it)
				return nil
			})
		case "createdAt":
			o.CreatedAt, err = decodeTime(d)
		case "updatedAt":
			o.UpdatedAt, err = decodeTime(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode field %q", key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return o, nil
}

func decodeOrderItem(d *jx.Decoder) (order.Item, error) {
	var it order.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			it.ID, err = d.Int64()
		case "orderId":
			it.OrderID, err = d.Int64()
		case "productId":
			it.ProductID, err = d.Int64()
		case "quantity":
			it.Quantity, err = d.Int()
		case "price":
			it.Price, err = decodeMoney(d)
		case "product":
			it.Product, err = DecodeProduct(d)
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
