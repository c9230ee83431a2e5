package httpmiddleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// HeaderRequestID carries the request identifier in both directions.
const HeaderRequestID = "X-Request-ID"

const maxIDLength = 128

// Correlation identifies a request and the storefront session it acts for.
type Correlation struct {
	RequestID string
	SessionID string
}

type correlationKey struct{}

// CorrelationFromContext returns the Correlation stored by Correlate, or the
// zero value.
func CorrelationFromContext(ctx context.Context) Correlation {
	c, _ := ctx.Value(correlationKey{}).(Correlation)
	return c
}

// Correlate stores a Correlation in the request context. A well-formed
// incoming X-Request-ID is kept, otherwise a UUID is generated; either way it
// is echoed in the response. The session comes from sessionFromRequest.
func Correlate() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := Correlation{
				RequestID: r.Header.Get(HeaderRequestID),
				SessionID: sessionFromRequest(r),
			}
			if !printableID(c.RequestID) {
				c.RequestID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, c.RequestID)

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationKey{}, c)))
		})
	}
}

// sessionFromRequest returns the X-Session-ID header, or the session segment
// of /api/cart/{sessionId} paths, or "".
func sessionFromRequest(r *http.Request) string {
	if sid := r.Header.Get(HeaderSessionID); printableID(sid) {
		return sid
	}
	if rest, ok := strings.CutPrefix(r.URL.Path, "/api/cart/"); ok {
		if sid, _, _ := strings.Cut(rest, "/"); printableID(sid) {
			return sid
		}
	}
	return ""
}

// printableID accepts 1 to 128 bytes of printable ASCII (0x20 to 0x7E).
func printableID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for i := range len(id) {
		if id[i] < 0x20 || id[i] > 0x7E {
			return false
		}
	}
	return true
}
