package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// EncodeProduct writes p. imageBase is prepended to relative image paths.
func EncodeProduct(e *jx.Encoder, p product.Product, imageBase string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, p.Price) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("images", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, img := range p.Images {
					e.Str(imageURL(imageBase, img))
				}
			})
		})
		if p.Thumbnail != "" {
			e.Field("thumbnail", func(e *jx.Encoder) { e.Str(imageURL(imageBase, p.Thumbnail)) })
		}
		if img := p.Image(); img != "" {
			e.Field("image", func(e *jx.Encoder) { e.Str(imageURL(imageBase, img)) })
		}
		e.Field("rating", func(e *jx.Encoder) { e.Float64(p.Rating) })
		e.Field("discountPercentage", func(e *jx.Encoder) { e.Float64(p.DiscountPercentage) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, p.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, p.UpdatedAt) })
	})
}

// EncodeProducts writes ps as a JSON array.
func EncodeProducts(e *jx.Encoder, ps []product.Product, imageBase string) {
	e.Arr(func(e *jx.Encoder) {
		for _, p := range ps {
			EncodeProduct(e, p, imageBase)
		}
	})
}

// DecodeProduct reads a product object. Unknown fields are skipped.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	var image string
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Int64()
		case "name":
			p.Name, err = decodeOptStr(d)
		case "description":
			p.Description, err = decodeOptStr(d)
		case "price":
			p.Price, err = decodeMoney(d)
		case "category":
			p.Category, err = decodeOptStr(d)
		case "stock":
			p.Stock, err = d.Int()
		case "images":
			if d.Next() == jx.Null {
				return d.Null()
			}
			err = d.Arr(func(d *jx.Decoder) error {
				s, err := d.Str()
				if err != nil {
					return err
				}
				p.Images = append(p.Images, s)
				return nil
			})
		case "thumbnail":
			p.Thumbnail, err = decodeOptStr(d)
		case "image":
			image, err = decodeOptStr(d)
		case "rating":
			p.Rating, err = decodeOptFloat(d)
		case "discountPercentage":
			p.DiscountPercentage, err = decodeOptFloat(d)
		case "createdAt":
			p.CreatedAt, err = decodeTime(d)
		case "updatedAt":
			p.UpdatedAt, err = decodeTime(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode field %q", key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, errors.Wrap(err, "decode product")
	}
	if p.Thumbnail == "" && len(p.Images) == 0 && image != "" {
		p.Thumbnail = image
	}
	return p, nil
}

// DecodeProducts reads a JSON array of products.
func DecodeProducts(d *jx.Decoder) ([]product.Product, error) {
	out := []product.Product{}
	err := d.Arr(func(d *jx.Decoder) error {
		p, err := DecodeProduct(d)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// EncodePagination writes a pagination object.
func EncodePagination(e *jx.Encoder, p product.Pagination) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("page", func(e *jx.Encoder) { e.Int(p.Page) })
		e.Field("limit", func(e *jx.Encoder) { e.Int(p.Limit) })
		e.Field("total", func(e *jx.Encoder) { e.Int(p.Total) })
		e.Field("totalPages", func(e *jx.Encoder) { e.Int(p.TotalPages) })
	})
}

// DecodePagination reads a pagination object.
func DecodePagination(d *jx.Decoder) (product.Pagination, error) {
	var p product.Pagination
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "page":
			p.Page, err = d.Int()
		case "limit":
			p.Limit, err = d.Int()
		case "total":
			p.Total, err = d.Int()
		case "totalPages":
			p.TotalPages, err = d.Int()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return product.Pagination{}, errors.Wrap(err, "decode pagination")
	}
	return p, nil
}

// EncodeStrings writes a JSON array of strings.
func EncodeStrings(e *jx.Encoder, ss []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range ss {
			e.Str(s)
		}
	})
}

// DecodeStrings reads a JSON array of strings.
func DecodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func imageURL(base, path string) string {
	if base == "" || path == "" || hasScheme(path) {
		return path
	}
	return base + path
}

func hasScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == ':':
			return i > 0
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9' && i > 0, c == '+', c == '-', c == '.':
		default:
			return false
		}
	}
	return false
}
