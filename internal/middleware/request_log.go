package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"stray-match/internal/platform/logger"
	"stray-match/internal/platform/metrics"
)

// RequestLog loguea cada request y alimenta el histograma HTTP.
// La ruta se toma del patrón de chi para no explotar la cardinalidad.
func RequestLog(log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			elapsed := time.Since(start)
			metrics.ObserveHTTPRequest(r.Method, route, status, elapsed.Seconds())

			fields := map[string]any{
				"method":      r.Method,
				"route":       route,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": elapsed.Milliseconds(),
				"request_id":  chimw.GetReqID(r.Context()),
			}
			if claims, ok := GetClaims(r.Context()); ok {
				fields["user_id"] = claims.UserID
			}

			switch {
			case status >= 500:
				log.Error("request", fields)
			case r.URL.Path == "/health" || r.URL.Path == "/metrics":
				log.Debug("request", fields)
			default:
				log.Info("request", fields)
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
