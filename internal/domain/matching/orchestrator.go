package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"stray-match/internal/domain/animals"
	"stray-match/internal/domain/candidates"
	"stray-match/internal/domain/ratelimit"
	"stray-match/internal/platform/logger"
	"stray-match/internal/platform/metrics"
	"stray-match/internal/ports/tiers"
)

const (
	DefaultMaxCandidates = 50
	DefaultConcurrency   = 8
)

// RateGate es el chequeo previo a cualquier trabajo caro.
type RateGate interface {
	CheckAndConsume(ctx context.Context, userID string, tier tiers.Tier) ratelimit.Decision
}

// CandidateSource produce los candidatos en la dirección que pida el trigger.
type CandidateSource interface {
	Sightings(ctx context.Context, q candidates.Query) ([]animals.Sighting, candidates.Path, error)
	LostReports(ctx context.Context, q candidates.Query) ([]animals.LostAnimal, candidates.Path, error)
}

// PairAnalyzer puntúa un par que pasó el pre-filtro.
type PairAnalyzer interface {
	Analyze(ctx context.Context, userID string, lost animals.LostAnimal, sighting animals.Sighting) (Verdict, error)
}

// Notifier es best-effort: no devuelve error y no debe bloquear.
type Notifier interface {
	NotifyOwner(ctx context.Context, lost animals.LostAnimal, sighting animals.Sighting, confidence int)
}

type Orchestrator struct {
	gate      RateGate
	sightings animals.SightingRepository
	lost      animals.LostAnimalRepository
	search    CandidateSource
	analyzer  PairAnalyzer
	store     *Store
	notifier  Notifier

	maxCandidates int
	concurrency   int
	radiusKm      float64
	lookbackDays  int
	log           logger.Logger
}

// Deps agrupa los colaboradores del orquestador.
type Deps struct {
	Gate      RateGate
	Sightings animals.SightingRepository
	Lost      animals.LostAnimalRepository
	Search    CandidateSource
	Analyzer  PairAnalyzer
	Store     *Store
	Notifier  Notifier
}

type OrchestratorOption func(*Orchestrator)

func WithMaxCandidates(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxCandidates = n
		}
	}
}

func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithSearchWindow fija radio y lookback; 0 deja los defaults de candidates.
func WithSearchWindow(radiusKm float64, lookbackDays int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.radiusKm = radiusKm
		o.lookbackDays = lookbackDays
	}
}

func WithOrchestratorLogger(l logger.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func NewOrchestrator(d Deps, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		gate:          d.Gate,
		sightings:     d.Sightings,
		lost:          d.Lost,
		search:        d.Search,
		analyzer:      d.Analyzer,
		store:         d.Store,
		notifier:      d.Notifier,
		maxCandidates: DefaultMaxCandidates,
		concurrency:   DefaultConcurrency,
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With(map[string]any{"component": "orchestrator"})
	return o
}

// Run ejecuta el pipeline para un trigger.
//
// Solo se propagan errores de auth, request malformado, rate limit, origen
// inexistente y la búsqueda caída del todo. Las fallas por candidato (analizador,
// persistencia, notificación) se absorben y quedan en el Report.
func (o *Orchestrator) Run(ctx context.Context, caller Caller, t Trigger) (Report, error) {
	rep := Report{Trigger: t, Stage: StageRateLimited}

	if strings.TrimSpace(caller.UserID) == "" {
		return o.fail(rep, ErrUnauthorized)
	}
	if err := t.Validate(); err != nil {
		return o.fail(rep, err)
	}

	if !caller.Service && o.gate != nil {
		d := o.gate.CheckAndConsume(ctx, caller.UserID, caller.Tier)
		rep.RateLimit = &d
		if !d.Allowed {
			metrics.RecordPipelineRun(t.Kind(), string(StageRateLimited))
			o.log.Info("match run rate limited", map[string]any{
				"user_id":  caller.UserID,
				"tier":     string(d.Tier),
				"window":   d.Window,
				"degraded": d.Degraded,
			})
			return rep, ratelimit.ErrRateLimited
		}
	}

	rep.Stage = StageSearching
	pairs, err := o.collect(ctx, t)
	if err != nil {
		return o.fail(rep, err)
	}
	if len(pairs) > o.maxCandidates {
		pairs = pairs[:o.maxCandidates]
	}
	rep.Candidates = len(pairs)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.concurrency)
	for _, c := range pairs {
		c := c
		g.Go(func() error {
			out := o.process(ctx, caller, c)
			mu.Lock()
			rep.add(out)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	rep.Stage = StageDone
	metrics.RecordPipelineRun(t.Kind(), string(StageDone))
	o.log.Info("match run completed", map[string]any{
		"trigger":           t.Kind(),
		"sighting_id":       t.SightingID,
		"lost_animal_id":    t.LostAnimalID,
		"candidates":        rep.Candidates,
		"skipped":           rep.Skipped,
		"already_matched":   rep.AlreadyMatched,
		"analyzed":          rep.Analyzed,
		"analyzer_failures": rep.AnalyzerFailures,
		"accepted":          rep.Accepted,
		"notified":          rep.Notified,
	})
	return rep, nil
}

// collect carga el origen y arma los pares. El tipo del origen siempre acota la búsqueda.
func (o *Orchestrator) collect(ctx context.Context, t Trigger) ([]Candidate, error) {
	if t.SightingID != "" {
		s, err := o.sightings.GetSighting(ctx, t.SightingID)
		if err != nil {
			return nil, originErr("sighting", err)
		}
		found, _, err := o.search.LostReports(ctx, o.query(s.Location, s.AnimalType))
		if err != nil {
			return nil, fmt.Errorf("search lost reports: %w", err)
		}
		out := make([]Candidate, 0, len(found))
		for _, l := range found {
			if l.IsActive() {
				out = append(out, Candidate{Lost: l, Sighting: s})
			}
		}
		return out, nil
	}

	l, err := o.lost.GetLostAnimal(ctx, t.LostAnimalID)
	if err != nil {
		return nil, originErr("lost animal", err)
	}
	// Un reporte ya encontrado no tiene nada que matchear: run exitoso sin candidatos.
	if !l.IsActive() {
		return nil, nil
	}
	found, _, err := o.search.Sightings(ctx, o.query(l.Location, l.AnimalType))
	if err != nil {
		return nil, fmt.Errorf("search sightings: %w", err)
	}
	out := make([]Candidate, 0, len(found))
	for _, s := range found {
		out = append(out, Candidate{Lost: l, Sighting: s})
	}
	return out, nil
}

func (o *Orchestrator) query(origin animals.Coordinates, typ animals.AnimalType) candidates.Query {
	return candidates.Query{
		Origin:       origin,
		AnimalType:   typ,
		RadiusKm:     o.radiusKm,
		LookbackDays: o.lookbackDays,
	}
}

func originErr(kind string, err error) error {
	if errors.Is(err, animals.ErrNotFound) {
		return fmt.Errorf("%s: %w", kind, ErrOriginNotFound)
	}
	return fmt.Errorf("load %s: %w", kind, err)
}

type outcome struct {
	stage    Stage
	skipped  bool
	already  bool
	analyzed bool
	failed   bool
	accepted bool
	notified bool
}

func (r *Report) add(o outcome) {
	switch {
	case o.skipped:
		r.Skipped++
	case o.already:
		r.AlreadyMatched++
	}
	if o.analyzed {
		r.Analyzed++
	}
	if o.failed {
		r.AnalyzerFailures++
	}
	if o.accepted {
		r.Accepted++
	}
	if o.notified {
		r.Notified++
	}
}

// process corre filtering → analyzing → persisting → notifying para un par.
func (o *Orchestrator) process(ctx context.Context, caller Caller, c Candidate) outcome {
	if ctx.Err() != nil {
		return outcome{stage: StageError}
	}

	if d := ShouldSkip(c.Lost, c.Sighting); d.Skip {
		metrics.RecordPreFilterSkip(string(d.Reason))
		return outcome{stage: StageFiltering, skipped: true}
	}

	matched, err := o.store.AlreadyMatched(ctx, c.Lost.ID, c.Sighting.ID)
	if err != nil {
		// Seguimos: InsertIfAbsent mantiene la unicidad igual.
		o.log.Warn("already-matched lookup failed", map[string]any{
			"lost_animal_id": c.Lost.ID,
			"sighting_id":    c.Sighting.ID,
			"error":          err,
		})
	}
	if matched {
		return outcome{stage: StageFiltering, already: true}
	}

	v, err := o.analyzer.Analyze(ctx, caller.UserID, c.Lost, c.Sighting)
	if err != nil {
		return outcome{stage: StageAnalyzing, analyzed: true, failed: true}
	}

	acc, err := o.store.AcceptIfNew(ctx, c.Lost.ID, c.Sighting.ID, v.Confidence, v.Reason)
	if err != nil {
		o.log.Error("persist match failed", map[string]any{
			"lost_animal_id": c.Lost.ID,
			"sighting_id":    c.Sighting.ID,
			"error":          err,
		})
		return outcome{stage: StagePersisting, analyzed: true}
	}
	if !acc.Inserted {
		return outcome{stage: StagePersisting, analyzed: true}
	}

	if o.notifier != nil {
		o.notifier.NotifyOwner(ctx, c.Lost, c.Sighting, v.Confidence)
	}
	return outcome{stage: StageNotifying, analyzed: true, accepted: true, notified: o.notifier != nil}
}

func (o *Orchestrator) fail(rep Report, err error) (Report, error) {
	rep.Stage = StageError
	metrics.RecordPipelineRun(rep.Trigger.Kind(), string(StageError))
	o.log.Warn("match run failed", map[string]any{
		"sighting_id":    rep.Trigger.SightingID,
		"lost_animal_id": rep.Trigger.LostAnimalID,
		"error":          err,
	})
	return rep, err
}
