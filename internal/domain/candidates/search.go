// Package candidates busca avistamientos / reportes de pérdida cercanos
// con un camino espacial primario y un scan acotado como fallback.
package candidates

import (
	"context"
	"errors"
	"time"

	"stray-match/internal/domain/animals"
	"stray-match/internal/platform/logger"
	"stray-match/internal/platform/metrics"
)

const (
	DefaultRadiusKm     = 50.0
	DefaultLookbackDays = 30

	// DefaultScanLimit acota el fallback sin filtro espacial.
	DefaultScanLimit = 50
)

// ErrSearchDegraded es interno: se loguea cuando se usa el fallback, nunca se devuelve al caller.
var ErrSearchDegraded = errors.New("candidate search degraded")

// Query define el área y la ventana temporal de búsqueda.
type Query struct {
	Origin       animals.Coordinates
	AnimalType   animals.AnimalType
	RadiusKm     float64
	LookbackDays int
}

// Path indica qué camino produjo los resultados.
type Path string

const (
	PathSpatial Path = "spatial"
	PathScan    Path = "scan"
)

type Search struct {
	sightings animals.SightingRepository
	lost      animals.LostAnimalRepository
	scanLimit int
	log       logger.Logger
	now       func() time.Time
}

type Option func(*Search)

func WithScanLimit(n int) Option {
	return func(s *Search) {
		if n > 0 {
			s.scanLimit = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Search) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Search) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSearch(sightings animals.SightingRepository, lost animals.LostAnimalRepository, opts ...Option) *Search {
	s := &Search{
		sightings: sightings,
		lost:      lost,
		scanLimit: DefaultScanLimit,
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(map[string]any{"component": "candidates"})
	return s
}

// Sightings busca avistamientos recientes del mismo tipo cerca de q.Origin.
// Si el camino espacial falla (o el origen no tiene coordenadas resolubles)
// cae al scan acotado sin filtro de radio.
func (s *Search) Sightings(ctx context.Context, q Query) ([]animals.Sighting, Path, error) {
	q = s.withDefaults(q)
	since := s.since(q)

	if q.Origin.Valid() {
		out, err := s.sightings.FindSightingsNear(ctx, animals.NearQuery{
			Type:     q.AnimalType,
			Origin:   q.Origin,
			RadiusKm: q.RadiusKm,
			Since:    since,
		})
		if err == nil {
			metrics.RecordCandidates("sighting", string(PathSpatial), len(out))
			return out, PathSpatial, nil
		}
		s.degraded("sighting", causeOf(err), err)
	} else {
		s.degraded("sighting", "origin_unresolved", animals.ErrCoordinatesUndecodable)
	}

	out, err := s.sightings.ScanRecentSightings(ctx, animals.ScanQuery{
		Type:  q.AnimalType,
		Since: since,
		Limit: s.scanLimit,
	})
	if err != nil {
		return nil, PathScan, err
	}
	metrics.RecordCandidates("sighting", string(PathScan), len(out))
	return capSightings(out, s.scanLimit), PathScan, nil
}

// LostReports busca reportes de pérdida activos del mismo tipo cerca de q.Origin,
// con el mismo fallback que Sightings.
func (s *Search) LostReports(ctx context.Context, q Query) ([]animals.LostAnimal, Path, error) {
	q = s.withDefaults(q)
	since := s.since(q)

	if q.Origin.Valid() {
		out, err := s.lost.FindLostAnimalsNear(ctx, animals.NearQuery{
			Type:     q.AnimalType,
			Origin:   q.Origin,
			RadiusKm: q.RadiusKm,
			Since:    since,
		})
		if err == nil {
			metrics.RecordCandidates("lost", string(PathSpatial), len(out))
			return out, PathSpatial, nil
		}
		s.degraded("lost", causeOf(err), err)
	} else {
		s.degraded("lost", "origin_unresolved", animals.ErrCoordinatesUndecodable)
	}

	out, err := s.lost.ScanActiveLostAnimals(ctx, animals.ScanQuery{
		Type:  q.AnimalType,
		Since: since,
		Limit: s.scanLimit,
	})
	if err != nil {
		return nil, PathScan, err
	}
	metrics.RecordCandidates("lost", string(PathScan), len(out))
	return capLost(out, s.scanLimit), PathScan, nil
}

func (s *Search) withDefaults(q Query) Query {
	if q.RadiusKm <= 0 {
		q.RadiusKm = DefaultRadiusKm
	}
	if q.LookbackDays <= 0 {
		q.LookbackDays = DefaultLookbackDays
	}
	return q
}

func (s *Search) since(q Query) time.Time {
	return s.now().Add(-time.Duration(q.LookbackDays) * 24 * time.Hour)
}

func (s *Search) degraded(kind, cause string, err error) {
	metrics.RecordSearchFallback(kind, cause)
	s.log.Warn("spatial search unavailable, falling back to bounded scan", map[string]any{
		"kind":  kind,
		"cause": cause,
		"error": errors.Join(ErrSearchDegraded, err),
	})
}

func causeOf(err error) string {
	if errors.Is(err, animals.ErrCoordinatesUndecodable) {
		return "coordinates_undecodable"
	}
	return "spatial_error"
}

// Los repos ya reciben el Limit, pero no confiamos en que todos lo respeten.
func capSightings(in []animals.Sighting, n int) []animals.Sighting {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func capLost(in []animals.LostAnimal, n int) []animals.LostAnimal {
	if len(in) > n {
		return in[:n]
	}
	return in
}
