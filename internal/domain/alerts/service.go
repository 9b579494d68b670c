package alerts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"stray-match/internal/domain/animals"
	"stray-match/internal/domain/candidates"
	"stray-match/internal/platform/cache"
	"stray-match/internal/platform/geo"
	"stray-match/internal/platform/logger"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	DefaultNearbyRadiusKm = 5.0
	maxNearbyRadiusKm     = 50.0
	nearbyLookbackDays    = 1
)

// SightingSource es el lado "sightings" de candidates.Search.
type SightingSource interface {
	Sightings(ctx context.Context, q candidates.Query) ([]animals.Sighting, candidates.Path, error)
}

// NearbyNotifier es el lado "nearby" de notifications.Dispatcher.
type NearbyNotifier interface {
	NotifyNearby(ctx context.Context, userID string, count int, typ animals.AnimalType) bool
}

// NearbyResult es lo que ve el handler.
type NearbyResult struct {
	Sightings []animals.Sighting
	Notified  bool
}

type Service struct {
	search   SightingSource
	notifier NearbyNotifier
	areas    *cache.TTL[string, *Areas]
	newAreas func() *Areas
	log      logger.Logger
}

type Option func(*Service)

// WithAreasFactory permite inyectar reloj/radios en los sets por usuario.
func WithAreasFactory(f func() *Areas) Option {
	return func(s *Service) {
		if f != nil {
			s.newAreas = f
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithUserCache(c *cache.TTL[string, *Areas]) Option {
	return func(s *Service) {
		if c != nil {
			s.areas = c
		}
	}
}

func NewService(search SightingSource, notifier NearbyNotifier, opts ...Option) *Service {
	s := &Service{
		search:   search,
		notifier: notifier,
		areas:    cache.NewTTL[string, *Areas](DefaultAreaTTL),
		newAreas: func() *Areas { return NewAreas() },
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(map[string]any{"component": "alerts"})
	return s
}

// Nearby busca avistamientos recientes (gatos y perros) cerca de p y avisa al
// usuario si la zona no fue notificada en las últimas 24h.
func (s *Service) Nearby(ctx context.Context, userID string, p geo.Point, radiusKm float64) (NearbyResult, error) {
	if strings.TrimSpace(userID) == "" || !p.Valid() {
		return NearbyResult{}, ErrInvalidInput
	}
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	if radiusKm > maxNearbyRadiusKm {
		radiusKm = maxNearbyRadiusKm
	}

	found := make([]animals.Sighting, 0)
	counts := make(map[animals.AnimalType]int)
	for _, typ := range []animals.AnimalType{animals.TypeCat, animals.TypeDog} {
		items, _, err := s.search.Sightings(ctx, candidates.Query{
			Origin:       p,
			AnimalType:   typ,
			RadiusKm:     radiusKm,
			LookbackDays: nearbyLookbackDays,
		})
		if err != nil {
			return NearbyResult{}, fmt.Errorf("search %s sightings: %w", typ, err)
		}
		// El fallback de candidates ignora el radio; acá lo reaplicamos.
		for _, it := range items {
			if it.Location.Valid() && geo.Within(p, it.Location, radiusKm) {
				found = append(found, it)
				counts[typ]++
			}
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].SpottedAt.After(found[j].SpottedAt) })

	res := NearbyResult{Sightings: found}
	if len(found) == 0 || s.notifier == nil {
		return res, nil
	}

	if !s.userAreas(userID).ShouldNotify(p) {
		return res, nil
	}

	typ := animals.AnimalType("")
	if len(counts) == 1 {
		for k := range counts {
			typ = k
		}
	}
	res.Notified = s.notifier.NotifyNearby(ctx, userID, len(found), typ)
	return res, nil
}

func (s *Service) userAreas(userID string) *Areas {
	if a, ok := s.areas.Get(userID); ok {
		// Renovamos el TTL del usuario activo.
		s.areas.Set(userID, a)
		return a
	}
	a := s.newAreas()
	s.areas.Set(userID, a)
	return a
}

// Prune poda el cache de usuarios inactivos.
func (s *Service) Prune() int {
	removed := s.areas.Prune()
	if removed > 0 {
		s.log.Debug("alerts cache pruned", map[string]any{"users_removed": removed})
	}
	return removed
}
