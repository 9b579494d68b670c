package matching

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"stray-match/internal/domain/animals"
	"stray-match/internal/domain/ratelimit"
	"stray-match/internal/middleware"
	"stray-match/internal/ports/tiers"
)

func RegisterRoutes(r chi.Router, orch *Orchestrator, store *Store, lost animals.LostAnimalRepository, tierOf tiers.Resolver) {
	r.Post("/match", runMatchHandler(orch, tierOf))
	r.Get("/matches", listMatchesHandler(store, lost))
}

type matchRequest struct {
	LostAnimalID string `json:"lostAnimalId,omitempty"`
	SightingID   string `json:"sightingId,omitempty"`
}

type matchResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type matchResultResponse struct {
	ID           string    `json:"id"`
	LostAnimalID string    `json:"lostAnimalId"`
	SightingID   string    `json:"sightingId"`
	Confidence   int       `json:"confidence"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"createdAt"`
}

// runMatchHandler godoc
// @Summary Ejecutar matching de mascotas perdidas
// @Description Dispara el pipeline para un avistamiento nuevo (`sightingId`) o un reporte de pérdida nuevo (`lostAnimalId`). Exactamente uno de los dos. La respuesta solo indica que el pipeline terminó; los matches se consultan con `GET /matches`.
// @Tags matching
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body matchRequest true "Trigger del pipeline"
// @Success 200 {object} matchResponse
// @Failure 400 {object} errorResponse "request malformado"
// @Failure 401 {object} errorResponse "unauthorized"
// @Failure 404 {object} errorResponse "registro de origen inexistente"
// @Failure 429 {object} errorResponse "rate limit"
// @Failure 500 {object} errorResponse "internal error"
// @Router /match [post]
func runMatchHandler(orch *Orchestrator, tierOf tiers.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req matchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}

		caller := Caller{
			UserID:  claims.UserID,
			Tier:    resolveTier(r, tierOf, claims.UserID),
			Service: claims.IsService(),
		}

		rep, err := orch.Run(r.Context(), caller, Trigger{
			SightingID:   strings.TrimSpace(req.SightingID),
			LostAnimalID: strings.TrimSpace(req.LostAnimalID),
		})
		if rep.RateLimit != nil {
			ratelimit.ApplyHeaders(w, *rep.RateLimit)
		}
		if err != nil {
			switch {
			case errors.Is(err, ErrUnauthorized):
				writeError(w, http.StatusUnauthorized, "unauthorized")
			case errors.Is(err, ErrMalformedRequest):
				writeError(w, http.StatusBadRequest, err.Error())
			case errors.Is(err, ErrOriginNotFound):
				writeError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, ratelimit.ErrRateLimited) && rep.RateLimit != nil:
				ratelimit.WriteExceeded(w, *rep.RateLimit, time.Now())
			default:
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, matchResponse{Success: true})
	}
}

// listMatchesHandler godoc
// @Summary Listar matches de un reporte de pérdida
// @Description Devuelve los matches persistidos para un reporte de pérdida del usuario autenticado.
// @Tags matching
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param lostAnimalId query string true "ID del reporte de pérdida"
// @Success 200 {array} matchResultResponse
// @Failure 400 {object} errorResponse "lostAnimalId requerido"
// @Failure 401 {object} errorResponse "unauthorized"
// @Failure 404 {object} errorResponse "lost animal not found"
// @Router /matches [get]
func listMatchesHandler(store *Store, lost animals.LostAnimalRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		lostID := strings.TrimSpace(r.URL.Query().Get("lostAnimalId"))
		if lostID == "" {
			writeError(w, http.StatusBadRequest, "lostAnimalId is required")
			return
		}

		// Solo el dueño (o un caller de servicio). Para terceros respondemos 404, no 403.
		l, err := lost.GetLostAnimal(r.Context(), lostID)
		if err != nil || (l.OwnerID != claims.UserID && !claims.IsService()) {
			if err != nil && !errors.Is(err, animals.ErrNotFound) {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			writeError(w, http.StatusNotFound, "lost animal not found")
			return
		}

		items, err := store.ListByLostAnimal(r.Context(), lostID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		out := make([]matchResultResponse, 0, len(items))
		for _, m := range items {
			out = append(out, matchResultResponse{
				ID:           m.ID,
				LostAnimalID: m.LostAnimalID,
				SightingID:   m.SightingID,
				Confidence:   m.Confidence,
				Reason:       m.Reason,
				CreatedAt:    m.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// resolveTier cae en Free si no hay resolver o si falla.
func resolveTier(r *http.Request, tierOf tiers.Resolver, userID string) tiers.Tier {
	if tierOf == nil {
		return tiers.Free
	}
	t, err := tierOf.TierOf(r.Context(), userID)
	if err != nil {
		return tiers.Free
	}
	return t
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeJSON está duplicado en cada módulo de handlers, igual que writeError.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
