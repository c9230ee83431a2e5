package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Response is the envelope wrapping every API payload:
//
//	{"success": true, "data": ..., "pagination": {...}}
//	{"success": false, "error": "Not Found", "message": "cart not found"}
type Response struct {
	Success    bool
	Data       jx.Raw
	Error      string
	Message    string
	Pagination *product.Pagination
}

// DecodeResponse parses an envelope. Data references buf. A bare JSON array
// is accepted as a successful response carrying that array.
func DecodeResponse(buf []byte) (Response, error) {
	d := jx.DecodeBytes(buf)
	if d.Next() == jx.Array {
		raw, err := d.Raw()
		if err != nil {
			return Response{}, errors.Wrap(err, "decode response")
		}
		return Response{Success: true, Data: raw}, nil
	}

	var r Response
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "success":
			r.Success, err = d.Bool()
		case "data":
			r.Data, err = d.Raw()
		case "error":
			r.Error, err = decodeOptStr(d)
		case "message":
			r.Message, err = decodeOptStr(d)
		case "pagination":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var p product.Pagination
			p, err = DecodePagination(d)
			r.Pagination = &p
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return Response{}, errors.Wrap(err, "decode response")
	}
	return r, nil
}

// HasData reports whether the envelope carries a non-null payload.
func (r Response) HasData() bool {
	return len(r.Data) > 0 && r.Data.Type() != jx.Null
}

// DataDecoder returns a decoder positioned at the payload.
func (r Response) DataDecoder() *jx.Decoder {
	return jx.DecodeBytes(r.Data)
}

// EncodeData writes a successful envelope whose payload is produced by data.
func EncodeData(e *jx.Encoder, data func(e *jx.Encoder)) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
		e.Field("data", data)
	})
}

// EncodeList writes a successful paginated envelope.
func EncodeList(e *jx.Encoder, data func(e *jx.Encoder), p product.Pagination) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
		e.Field("data", data)
		e.Field("pagination", func(e *jx.Encoder) { EncodePagination(e, p) })
	})
}

// EncodeError writes a failed envelope.
func EncodeError(e *jx.Encoder, errText, message string) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("error", func(e *jx.Encoder) { e.Str(errText) })
		if message != "" {
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		}
	})
}
