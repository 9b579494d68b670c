package analysis

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"stray-match/internal/domain/ratelimit"
	"stray-match/internal/middleware"
	"stray-match/internal/ports/tiers"
)

func RegisterRoutes(r chi.Router, svc *Service, tierOf tiers.Resolver) {
	r.Post("/analyze", analyzeHandler(svc, tierOf))
}

type analyzeRequest struct {
	Image string `json:"image"`
}

type analyzeResponse struct {
	Success  bool     `json:"success"`
	Analysis Analysis `json:"analysis"`
	Usage    Usage    `json:"usage"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// analyzeHandler godoc
// @Summary Analizar foto de un animal
// @Description Describe la foto (URL o base64) con el modelo de visión. Sujeto a rate limit por tier (minuto/hora/día); al excederlo responde 429 con `Retry-After`, `X-RateLimit-Remaining` y `X-RateLimit-Reset`.
// @Tags analysis
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body analyzeRequest true "Imagen como URL http(s), data URI o base64"
// @Success 200 {object} analyzeResponse
// @Failure 400 {object} errorResponse "imagen inválida"
// @Failure 401 {object} errorResponse "unauthorized"
// @Failure 429 {object} errorResponse "rate limit"
// @Failure 502 {object} errorResponse "modelo de visión no disponible"
// @Router /analyze [post]
func analyzeHandler(svc *Service, tierOf tiers.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
			return
		}

		tier := tiers.Free
		if tierOf != nil {
			if t, err := tierOf.TierOf(r.Context(), claims.UserID); err == nil {
				tier = t
			}
		}

		res, err := svc.Analyze(r.Context(), claims.UserID, tier, req.Image)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidImage):
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			case errors.Is(err, ErrUnauthorized):
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			case errors.Is(err, ratelimit.ErrRateLimited):
				ratelimit.WriteExceeded(w, res.Decision, time.Now())
			case errors.Is(err, ErrUnavailable):
				ratelimit.ApplyHeaders(w, res.Decision)
				writeJSON(w, http.StatusBadGateway, errorResponse{Error: "image analysis unavailable"})
			default:
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
			return
		}

		ratelimit.ApplyHeaders(w, res.Decision)
		writeJSON(w, http.StatusOK, analyzeResponse{
			Success:  true,
			Analysis: res.Analysis,
			Usage:    res.Usage,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
