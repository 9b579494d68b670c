package memory

import (
	"context"
	"sort"
	"sync"

	"stray-match/internal/domain/matching"
)

type matchKey struct {
	lostAnimalID string
	sightingID   string
}

// MatchesRepo respeta la unicidad (lost_animal_id, sighting_id) bajo un único lock.
type MatchesRepo struct {
	mu    sync.RWMutex
	byKey map[matchKey]matching.Result
}

func NewMatchesRepo() *MatchesRepo {
	return &MatchesRepo{byKey: make(map[matchKey]matching.Result)}
}

func (r *MatchesRepo) InsertIfAbsent(ctx context.Context, m matching.Result) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := matchKey{m.LostAnimalID, m.SightingID}
	if _, exists := r.byKey[k]; exists {
		return false, nil
	}
	r.byKey[k] = m
	return true, nil
}

func (r *MatchesRepo) Exists(ctx context.Context, lostAnimalID, sightingID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byKey[matchKey{lostAnimalID, sightingID}]
	return ok, nil
}

func (r *MatchesRepo) ListByLostAnimal(ctx context.Context, lostAnimalID string) ([]matching.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]matching.Result, 0)
	for k, m := range r.byKey {
		if k.lostAnimalID == lostAnimalID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
