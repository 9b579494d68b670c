package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"stray-match/internal/domain/animals"
	"stray-match/internal/platform/geo"
)

// AnimalsRepo guarda sightings y reportes de pérdida en memoria (dev/tests).
// Implementa animals.SightingRepository y animals.LostAnimalRepository.
type AnimalsRepo struct {
	mu        sync.RWMutex
	sightings map[string]animals.Sighting
	lost      map[string]animals.LostAnimal
}

func NewAnimalsRepo() *AnimalsRepo {
	return &AnimalsRepo{
		sightings: make(map[string]animals.Sighting),
		lost:      make(map[string]animals.LostAnimal),
	}
}

func (r *AnimalsRepo) PutSighting(s animals.Sighting) error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("sighting id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sightings[s.ID] = s
	return nil
}

func (r *AnimalsRepo) PutLostAnimal(l animals.LostAnimal) error {
	if strings.TrimSpace(l.ID) == "" {
		return errors.New("lost animal id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost[l.ID] = l
	return nil
}

func (r *AnimalsRepo) GetSighting(ctx context.Context, id string) (animals.Sighting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sightings[id]
	if !ok {
		return animals.Sighting{}, animals.ErrNotFound
	}
	return s, nil
}

func (r *AnimalsRepo) FindSightingsNear(ctx context.Context, q animals.NearQuery) ([]animals.Sighting, error) {
	if !q.Origin.Valid() {
		return nil, animals.ErrCoordinatesUndecodable
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]animals.Sighting, 0)
	for _, s := range r.sightings {
		if s.AnimalType != q.Type || s.SpottedAt.Before(q.Since) {
			continue
		}
		// Igual que ST_DWithin: una ubicación NULL nunca entra.
		if !s.Location.Valid() || !geo.Within(q.Origin, s.Location, q.RadiusKm) {
			continue
		}
		out = append(out, s)
	}
	sortSightings(out)
	return out, nil
}

func (r *AnimalsRepo) ScanRecentSightings(ctx context.Context, q animals.ScanQuery) ([]animals.Sighting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]animals.Sighting, 0)
	for _, s := range r.sightings {
		if s.AnimalType == q.Type && !s.SpottedAt.Before(q.Since) {
			out = append(out, s)
		}
	}
	sortSightings(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *AnimalsRepo) GetLostAnimal(ctx context.Context, id string) (animals.LostAnimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.lost[id]
	if !ok {
		return animals.LostAnimal{}, animals.ErrNotFound
	}
	return l, nil
}

func (r *AnimalsRepo) FindLostAnimalsNear(ctx context.Context, q animals.NearQuery) ([]animals.LostAnimal, error) {
	if !q.Origin.Valid() {
		return nil, animals.ErrCoordinatesUndecodable
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]animals.LostAnimal, 0)
	for _, l := range r.lost {
		if !l.IsActive() || l.AnimalType != q.Type || l.CreatedAt.Before(q.Since) {
			continue
		}
		if !l.Location.Valid() || !geo.Within(q.Origin, l.Location, q.RadiusKm) {
			continue
		}
		out = append(out, l)
	}
	sortLost(out)
	return out, nil
}

func (r *AnimalsRepo) ScanActiveLostAnimals(ctx context.Context, q animals.ScanQuery) ([]animals.LostAnimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]animals.LostAnimal, 0)
	for _, l := range r.lost {
		if l.IsActive() && l.AnimalType == q.Type && !l.CreatedAt.Before(q.Since) {
			out = append(out, l)
		}
	}
	sortLost(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Más recientes primero, desempate por id para que el orden sea estable.
func sortSightings(s []animals.Sighting) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].SpottedAt.Equal(s[j].SpottedAt) {
			return s[i].ID < s[j].ID
		}
		return s[i].SpottedAt.After(s[j].SpottedAt)
	})
}

func sortLost(l []animals.LostAnimal) {
	sort.Slice(l, func(i, j int) bool {
		if l[i].CreatedAt.Equal(l[j].CreatedAt) {
			return l[i].ID < l[j].ID
		}
		return l[i].CreatedAt.After(l[j].CreatedAt)
	})
}
