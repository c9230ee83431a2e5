package cartstore

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/wire"
)

// StorageKey is the kv key holding the persisted cart snapshot.
const StorageKey = "ecommerce-cart-storage"

const storageVersion = 0

// encodeState writes {"state":{"cart":...},"version":0}.
func encodeState(c *cart.Cart) string {
	return string(wire.Encode(func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("state", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("cart", func(e *jx.Encoder) { wire.EncodeCart(e, c, "") })
				})
			})
			e.Field("version", func(e *jx.Encoder) { e.Int(storageVersion) })
		})
	}))
}

func decodeState(s string) (*cart.Cart, error) {
	var c *cart.Cart
	err := jx.DecodeStr(s).Obj(func(d *jx.Decoder, key string) error {
		if key != "state" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "cart" {
				return d.Skip()
			}
			var err error
			c, err = wire.DecodeCart(d)
			return err
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cart snapshot")
	}
	return c, nil
}
