package alerts

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"stray-match/internal/domain/animals"
	"stray-match/internal/middleware"
	"stray-match/internal/platform/geo"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/alerts/nearby", nearbyHandler(svc))
}

type nearbyRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	RadiusKm  float64  `json:"radiusKm,omitempty"`
}

type sightingResponse struct {
	ID          string             `json:"id"`
	AnimalType  animals.AnimalType `json:"animalType"`
	Latitude    float64            `json:"latitude"`
	Longitude   float64            `json:"longitude"`
	Color       string             `json:"color,omitempty"`
	Breed       string             `json:"breed,omitempty"`
	Description string             `json:"description,omitempty"`
	PhotoRef    string             `json:"photoRef"`
	SpottedAt   time.Time          `json:"spottedAt"`
}

type nearbyResponse struct {
	Sightings []sightingResponse `json:"sightings"`
	Notified  bool               `json:"notified"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// nearbyHandler godoc
// @Summary Avistamientos cercanos
// @Description Busca avistamientos de las últimas 24h cerca de la posición del usuario. Envía como máximo un push por zona cada 24h.
// @Tags alerts
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body nearbyRequest true "Posición actual y radio opcional (km)"
// @Success 200 {object} nearbyResponse
// @Failure 400 {object} errorResponse "coordenadas inválidas"
// @Failure 401 {object} errorResponse "unauthorized"
// @Failure 500 {object} errorResponse "internal error"
// @Router /alerts/nearby [post]
func nearbyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		var req nearbyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
			return
		}
		if req.Latitude == nil || req.Longitude == nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "latitude and longitude are required"})
			return
		}

		res, err := svc.Nearby(r.Context(), claims.UserID, geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}, req.RadiusKm)
		if err != nil {
			if errors.Is(err, ErrInvalidInput) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid coordinates"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}

		out := nearbyResponse{Sightings: make([]sightingResponse, 0, len(res.Sightings)), Notified: res.Notified}
		for _, s := range res.Sightings {
			out.Sightings = append(out.Sightings, sightingResponse{
				ID:          s.ID,
				AnimalType:  s.AnimalType,
				Latitude:    s.Location.Latitude,
				Longitude:   s.Location.Longitude,
				Color:       s.Color,
				Breed:       s.Breed,
				Description: s.Description,
				PhotoRef:    s.PhotoRef,
				SpottedAt:   s.SpottedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
