package matching

import (
	"context"
	"errors"
	"sync"
	"time"

	"stray-match/internal/domain/animals"
	"stray-match/internal/domain/candidates"
	"stray-match/internal/domain/ratelimit"
	"stray-match/internal/ports/tiers"
	"stray-match/internal/ports/vision"
)

// -------------------------
// Test fakes (in-memory)
// -------------------------

type testMatchRepo struct {
	mu      sync.Mutex
	rows    map[[2]string]Result
	inserts int
	err     error
}

func newTestMatchRepo() *testMatchRepo {
	return &testMatchRepo{rows: make(map[[2]string]Result)}
}

func (r *testMatchRepo) InsertIfAbsent(ctx context.Context, m Result) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	k := [2]string{m.LostAnimalID, m.SightingID}
	if _, ok := r.rows[k]; ok {
		return false, nil
	}
	r.rows[k] = m
	r.inserts++
	return true, nil
}

func (r *testMatchRepo) Exists(ctx context.Context, lostID, sightingID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[[2]string{lostID, sightingID}]
	return ok, nil
}

func (r *testMatchRepo) ListByLostAnimal(ctx context.Context, lostID string) ([]Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, 0)
	for k, v := range r.rows {
		if k[0] == lostID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *testMatchRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type testAnimals struct {
	sightings map[string]animals.Sighting
	lost      map[string]animals.LostAnimal
}

func (a *testAnimals) GetSighting(ctx context.Context, id string) (animals.Sighting, error) {
	s, ok := a.sightings[id]
	if !ok {
		return animals.Sighting{}, animals.ErrNotFound
	}
	return s, nil
}

func (a *testAnimals) FindSightingsNear(ctx context.Context, q animals.NearQuery) ([]animals.Sighting, error) {
	return nil, errors.New("not used")
}

func (a *testAnimals) ScanRecentSightings(ctx context.Context, q animals.ScanQuery) ([]animals.Sighting, error) {
	return nil, errors.New("not used")
}

func (a *testAnimals) GetLostAnimal(ctx context.Context, id string) (animals.LostAnimal, error) {
	l, ok := a.lost[id]
	if !ok {
		return animals.LostAnimal{}, animals.ErrNotFound
	}
	return l, nil
}

func (a *testAnimals) FindLostAnimalsNear(ctx context.Context, q animals.NearQuery) ([]animals.LostAnimal, error) {
	return nil, errors.New("not used")
}

func (a *testAnimals) ScanActiveLostAnimals(ctx context.Context, q animals.ScanQuery) ([]animals.LostAnimal, error) {
	return nil, errors.New("not used")
}

// testSearch devuelve todo lo del tipo pedido, ignorando geografía.
// Con mixed=true tampoco filtra por tipo (para ejercitar el pre-filtro).
type testSearch struct {
	sightings []animals.Sighting
	lost      []animals.LostAnimal
	mixed     bool
	lastQuery candidates.Query
}

func (s *testSearch) Sightings(ctx context.Context, q candidates.Query) ([]animals.Sighting, candidates.Path, error) {
	s.lastQuery = q
	out := make([]animals.Sighting, 0)
	for _, x := range s.sightings {
		if s.mixed || x.AnimalType == q.AnimalType {
			out = append(out, x)
		}
	}
	return out, candidates.PathSpatial, nil
}

func (s *testSearch) LostReports(ctx context.Context, q candidates.Query) ([]animals.LostAnimal, candidates.Path, error) {
	s.lastQuery = q
	out := make([]animals.LostAnimal, 0)
	for _, x := range s.lost {
		if x.AnimalType == q.AnimalType {
			out = append(out, x)
		}
	}
	return out, candidates.PathSpatial, nil
}

// testModel responde con un texto fijo y cuenta llamadas.
type testModel struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	last  vision.Request
}

func (m *testModel) Complete(ctx context.Context, req vision.Request) (vision.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = req
	if m.err != nil {
		return vision.Response{}, m.err
	}
	return vision.Response{Text: m.text, Model: "test", Usage: vision.Usage{InputTokens: 1000, OutputTokens: 50}}, nil
}

func (m *testModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type testUsage struct {
	mu     sync.Mutex
	events []ratelimit.UsageEvent
}

func (u *testUsage) RecordUsage(ctx context.Context, e ratelimit.UsageEvent) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.events = append(u.events, e)
	return nil
}

type notification struct {
	lostID     string
	sightingID string
	confidence int
}

type testNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *testNotifier) NotifyOwner(ctx context.Context, lost animals.LostAnimal, s animals.Sighting, confidence int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{lostID: lost.ID, sightingID: s.ID, confidence: confidence})
}

func (n *testNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type testGate struct {
	allow bool
	calls int
}

func (g *testGate) CheckAndConsume(ctx context.Context, userID string, tier tiers.Tier) ratelimit.Decision {
	g.calls++
	d := ratelimit.Decision{Allowed: g.allow, Tier: tier, ResetAt: testNow.Add(time.Minute)}
	if g.allow {
		d.Remaining = 5
	}
	return d
}

var testNow = time.Date(2025, 12, 22, 10, 0, 0, 0, time.UTC)

// -------------------------
// Fixtures
// -------------------------

func whiskers() animals.LostAnimal {
	return animals.LostAnimal{
		ID:         "lost-whiskers",
		OwnerID:    "owner-1",
		Name:       "Whiskers",
		AnimalType: animals.TypeCat,
		Location:   animals.Coordinates{Latitude: 40.0, Longitude: -73.0},
		Color:      "white",
		Breed:      "domestic shorthair",
		PhotoRef:   "https://img.example/whiskers.jpg",
		Status:     animals.LostActive,
		CreatedAt:  testNow.Add(-10 * 24 * time.Hour),
	}
}

func whiteCatSighting() animals.Sighting {
	return animals.Sighting{
		ID:         "sighting-white-cat",
		ReporterID: "reporter-1",
		AnimalType: animals.TypeCat,
		Location:   animals.Coordinates{Latitude: 40.01, Longitude: -73.01},
		Color:      "white",
		Breed:      "domestic shorthair",
		PhotoRef:   "https://img.example/white-cat.jpg",
		SpottedAt:  testNow.Add(-2 * 24 * time.Hour),
	}
}

func brownDogSighting() animals.Sighting {
	return animals.Sighting{
		ID:         "sighting-brown-dog",
		ReporterID: "reporter-2",
		AnimalType: animals.TypeDog,
		Location:   animals.Coordinates{Latitude: 40.01, Longitude: -73.01},
		Color:      "brown",
		PhotoRef:   "https://img.example/brown-dog.jpg",
		SpottedAt:  testNow.Add(-1 * 24 * time.Hour),
	}
}

type pipeline struct {
	orch     *Orchestrator
	repo     *testMatchRepo
	model    *testModel
	usage    *testUsage
	notifier *testNotifier
	gate     *testGate
	search   *testSearch
}

func newPipeline(modelText string, lost []animals.LostAnimal, sightings []animals.Sighting) *pipeline {
	db := &testAnimals{sightings: map[string]animals.Sighting{}, lost: map[string]animals.LostAnimal{}}
	for _, s := range sightings {
		db.sightings[s.ID] = s
	}
	for _, l := range lost {
		db.lost[l.ID] = l
	}

	p := &pipeline{
		repo:     newTestMatchRepo(),
		model:    &testModel{text: modelText},
		usage:    &testUsage{},
		notifier: &testNotifier{},
		gate:     &testGate{allow: true},
		search:   &testSearch{sightings: sightings, lost: lost},
	}
	p.orch = NewOrchestrator(Deps{
		Gate:      p.gate,
		Sightings: db,
		Lost:      db,
		Search:    p.search,
		Analyzer:  NewAnalyzer(p.model, p.usage),
		Store:     NewStore(p.repo, WithStoreClock(func() time.Time { return testNow })),
		Notifier:  p.notifier,
	})
	return p
}

var freeCaller = Caller{UserID: "reporter-1", Tier: tiers.Free}
