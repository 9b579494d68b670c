package middleware

import (
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"

	"stray-match/internal/platform/logger"
)

// Recover convierte un panic en 500 JSON y lo loguea con el request id.
func Recover(log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// http.ErrAbortHandler se propaga: net/http lo usa para cortar la respuesta.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic recovered", map[string]any{
					"panic":      rec,
					"method":     r.Method,
					"path":       r.URL.Path,
					"request_id": chimw.GetReqID(r.Context()),
					"stack":      string(debug.Stack()),
				})
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal error"}`))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
