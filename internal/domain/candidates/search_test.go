package candidates

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stray-match/internal/domain/animals"
)

// -------------------------
// Test repos
// -------------------------

type testRepo struct {
	sightings []animals.Sighting
	lost      []animals.LostAnimal

	nearErr   error
	nearCalls int
	scanCalls int
	lastScan  animals.ScanQuery
	lastNear  animals.NearQuery
}

func (r *testRepo) GetSighting(ctx context.Context, id string) (animals.Sighting, error) {
	return animals.Sighting{}, animals.ErrNotFound
}

func (r *testRepo) FindSightingsNear(ctx context.Context, q animals.NearQuery) ([]animals.Sighting, error) {
	r.nearCalls++
	r.lastNear = q
	if r.nearErr != nil {
		return nil, r.nearErr
	}
	out := make([]animals.Sighting, 0)
	for _, s := range r.sightings {
		if s.AnimalType == q.Type && !s.SpottedAt.Before(q.Since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *testRepo) ScanRecentSightings(ctx context.Context, q animals.ScanQuery) ([]animals.Sighting, error) {
	r.scanCalls++
	r.lastScan = q
	out := make([]animals.Sighting, 0)
	for _, s := range r.sightings {
		if s.AnimalType == q.Type && !s.SpottedAt.Before(q.Since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *testRepo) GetLostAnimal(ctx context.Context, id string) (animals.LostAnimal, error) {
	return animals.LostAnimal{}, animals.ErrNotFound
}

func (r *testRepo) FindLostAnimalsNear(ctx context.Context, q animals.NearQuery) ([]animals.LostAnimal, error) {
	r.nearCalls++
	if r.nearErr != nil {
		return nil, r.nearErr
	}
	return r.lost, nil
}

func (r *testRepo) ScanActiveLostAnimals(ctx context.Context, q animals.ScanQuery) ([]animals.LostAnimal, error) {
	r.scanCalls++
	r.lastScan = q
	return r.lost, nil
}

var now = time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)

func newTestSearch(repo *testRepo) *Search {
	return NewSearch(repo, repo, WithClock(func() time.Time { return now }))
}

func recentCats(n int) []animals.Sighting {
	out := make([]animals.Sighting, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, animals.Sighting{
			ID:         fmt.Sprintf("s-%d", i),
			AnimalType: animals.TypeCat,
			SpottedAt:  now.Add(-24 * time.Hour),
		})
	}
	return out
}

// -------------------------
// Tests
// -------------------------

func TestSightings_PrimaryPath_UsesDefaults(t *testing.T) {
	repo := &testRepo{sightings: recentCats(3)}
	s := newTestSearch(repo)

	out, path, err := s.Sightings(context.Background(), Query{
		Origin:     animals.Coordinates{Latitude: 40, Longitude: -73},
		AnimalType: animals.TypeCat,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != PathSpatial || len(out) != 3 {
		t.Fatalf("expected 3 spatial results, got %d via %s", len(out), path)
	}
	if repo.lastNear.RadiusKm != DefaultRadiusKm {
		t.Fatalf("expected default radius, got %v", repo.lastNear.RadiusKm)
	}
	if want := now.Add(-30 * 24 * time.Hour); !repo.lastNear.Since.Equal(want) {
		t.Fatalf("expected 30-day lookback, got %v", repo.lastNear.Since)
	}
	if repo.scanCalls != 0 {
		t.Fatalf("scan must not run when spatial path succeeds")
	}
}

func TestSightings_PrimaryEmpty_IsNotDegraded(t *testing.T) {
	repo := &testRepo{}
	s := newTestSearch(repo)

	out, path, err := s.Sightings(context.Background(), Query{
		Origin:     animals.Coordinates{Latitude: 40, Longitude: -73},
		AnimalType: animals.TypeDog,
	})
	if err != nil || path != PathSpatial || len(out) != 0 {
		t.Fatalf("expected empty spatial result, got %d via %s err=%v", len(out), path, err)
	}
	if repo.scanCalls != 0 {
		t.Fatalf("empty spatial result must not trigger the scan")
	}
}

func TestSightings_PrimaryError_FallsBackToScan(t *testing.T) {
	repo := &testRepo{sightings: recentCats(4), nearErr: errors.New("function st_dwithin does not exist")}
	s := newTestSearch(repo)

	out, path, err := s.Sightings(context.Background(), Query{
		Origin:       animals.Coordinates{Latitude: 40, Longitude: -73},
		AnimalType:   animals.TypeCat,
		RadiusKm:     1,
		LookbackDays: 10,
	})
	if err != nil {
		t.Fatalf("fallback must absorb the spatial error, got %v", err)
	}
	if path != PathScan || len(out) != 4 {
		t.Fatalf("expected 4 scan results, got %d via %s", len(out), path)
	}
	if repo.lastScan.Limit != DefaultScanLimit || repo.lastScan.Type != animals.TypeCat {
		t.Fatalf("unexpected scan query %+v", repo.lastScan)
	}
}

func TestSightings_UnresolvedOrigin_SkipsStraightToScan(t *testing.T) {
	repo := &testRepo{sightings: recentCats(2)}
	s := newTestSearch(repo)

	out, path, err := s.Sightings(context.Background(), Query{
		Origin:     animals.Unresolved(),
		AnimalType: animals.TypeCat,
	})
	if err != nil || path != PathScan || len(out) != 2 {
		t.Fatalf("expected scan results, got %d via %s err=%v", len(out), path, err)
	}
	if repo.nearCalls != 0 {
		t.Fatalf("spatial path must be skipped for unresolved origin")
	}
}

func TestSightings_ScanIsCapped(t *testing.T) {
	repo := &testRepo{sightings: recentCats(80), nearErr: animals.ErrCoordinatesUndecodable}
	s := newTestSearch(repo)

	out, path, err := s.Sightings(context.Background(), Query{
		Origin:     animals.Coordinates{Latitude: 40, Longitude: -73},
		AnimalType: animals.TypeCat,
	})
	if err != nil || path != PathScan {
		t.Fatalf("expected scan path, got %s err=%v", path, err)
	}
	if len(out) != DefaultScanLimit {
		t.Fatalf("expected scan capped at %d, got %d", DefaultScanLimit, len(out))
	}
}

func TestLostReports_PrimaryError_FallsBackToScan(t *testing.T) {
	repo := &testRepo{
		lost:    []animals.LostAnimal{{ID: "l-1", AnimalType: animals.TypeCat, Status: animals.LostActive}},
		nearErr: errors.New("timeout"),
	}
	s := newTestSearch(repo)

	out, path, err := s.LostReports(context.Background(), Query{
		Origin:     animals.Coordinates{Latitude: 40, Longitude: -73},
		AnimalType: animals.TypeCat,
	})
	if err != nil || path != PathScan || len(out) != 1 {
		t.Fatalf("expected 1 scan result, got %d via %s err=%v", len(out), path, err)
	}
}
