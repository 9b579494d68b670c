package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"stray-match/internal/platform/logger"
)

func TestRecover_ReturnsJSON500(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf, Format: logger.FormatJSON})

	h := Recover(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"error"`) {
		t.Fatalf("body = %q", rr.Body.String())
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("panic not logged: %q", buf.String())
	}
}

func TestRequestLog_UsesRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf, Format: logger.FormatJSON})

	r := chi.NewRouter()
	r.Use(RequestLog(log))
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}
	out := buf.String()
	if !strings.Contains(out, `"route":"/items/{id}"`) {
		t.Fatalf("route pattern not logged: %q", out)
	}
	if !strings.Contains(out, `"status":418`) {
		t.Fatalf("status not logged: %q", out)
	}
}

func TestAuthContext_DevHeaders(t *testing.T) {
	var got struct {
		ok      bool
		user    string
		service bool
	}
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf, Format: logger.FormatJSON})

	h := AuthContext(nil, log)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		c, ok := GetClaims(r.Context())
		got.ok, got.user, got.service = ok, c.UserID, c.IsService()
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", "u1")
	req.Header.Set("X-Debug-Role", "service_role")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !got.ok || got.user != "u1" || !got.service {
		t.Fatalf("claims = %+v", got)
	}
	if !strings.Contains(buf.String(), "X-Debug-Role accepted") || !strings.Contains(buf.String(), `"role":"service_role"`) {
		t.Fatalf("expected a warning for the debug role, got %q", buf.String())
	}

	buf.Reset()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Debug-User-ID", "u2")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !got.ok || got.service || buf.Len() != 0 {
		t.Fatalf("plain debug user must not warn: claims=%+v log=%q", got, buf.String())
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got.ok {
		t.Fatal("no header must mean no claims")
	}
}
