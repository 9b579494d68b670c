package matching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stray-match/internal/platform/metrics"
)

type Store struct {
	repo      Repository
	threshold int
	now       func() time.Time
}

type StoreOption func(*Store)

func WithThreshold(n int) StoreOption {
	return func(s *Store) {
		if n > 0 && n <= 100 {
			s.threshold = n
		}
	}
}

func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(repo Repository, opts ...StoreOption) *Store {
	s := &Store{
		repo:      repo,
		threshold: AcceptThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AcceptIfNew persiste el par si confidence >= umbral y todavía no existe.
// Debajo del umbral se descarta sin error. Un duplicado devuelve Inserted=false.
func (s *Store) AcceptIfNew(ctx context.Context, lostAnimalID, sightingID string, confidence int, reason string) (Acceptance, error) {
	lostAnimalID = strings.TrimSpace(lostAnimalID)
	sightingID = strings.TrimSpace(sightingID)
	if lostAnimalID == "" || sightingID == "" {
		return Acceptance{}, ErrInvalidInput
	}

	if confidence < s.threshold {
		metrics.RecordMatch("below_threshold")
		return Acceptance{}, nil
	}

	r := Result{
		ID:           uuid.NewString(),
		LostAnimalID: lostAnimalID,
		SightingID:   sightingID,
		Confidence:   clampConfidence(float64(confidence)),
		Reason:       strings.TrimSpace(reason),
		CreatedAt:    s.now().UTC(),
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, r)
	if err != nil {
		metrics.RecordMatch("error")
		return Acceptance{}, fmt.Errorf("insert match: %w", err)
	}
	if !inserted {
		metrics.RecordMatch("duplicate")
		return Acceptance{}, nil
	}

	metrics.RecordMatch("inserted")
	return Acceptance{Inserted: true, Result: r}, nil
}

func (s *Store) AlreadyMatched(ctx context.Context, lostAnimalID, sightingID string) (bool, error) {
	return s.repo.Exists(ctx, lostAnimalID, sightingID)
}

func (s *Store) ListByLostAnimal(ctx context.Context, lostAnimalID string) ([]Result, error) {
	if strings.TrimSpace(lostAnimalID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByLostAnimal(ctx, lostAnimalID)
}
