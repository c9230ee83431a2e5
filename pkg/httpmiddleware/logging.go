package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// InjectLogger stores lg in every request context, so handlers can retrieve
// it with zctx.From.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(zctx.Base(r.Context(), lg)))
		})
	}
}

// LogRequests logs every request once it completes. The logger is taken
// from the request context and annotated with the request id, session and route.
func LogRequests(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			fields := []zap.Field{
				zap.String("http.method", r.Method),
				zap.String("http.path", r.URL.Path),
			}
			c := CorrelationFromContext(ctx)
			if c.RequestID != "" {
				fields = append(fields, zap.String("request_id", c.RequestID))
			}
			if c.SessionID != "" {
				fields = append(fields, zap.String("session_id", c.SessionID))
			}
			if route, ok := find(r); ok {
				fields = append(fields, zap.String("http.route", route))
			}
			ctx = zctx.With(ctx, fields...)

			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r.WithContext(ctx))

			lg := zctx.From(ctx)
			status := sw.code()
			level := zap.DebugLevel
			switch {
			case status >= http.StatusInternalServerError:
				level = zap.ErrorLevel
			case status >= http.StatusBadRequest:
				level = zap.WarnLevel
			}
			if ce := lg.Check(level, "Request"); ce != nil {
				ce.Write(
					zap.Int("http.status", status),
					zap.Int("http.response_size", sw.size),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}
