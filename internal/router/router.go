package router

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	mem "stray-match/internal/adapters/storage/memory"
	pg "stray-match/internal/adapters/storage/postgres"
	"stray-match/internal/adapters/tiers/tiercache"
	"stray-match/internal/config"
	_ "stray-match/internal/docs"
	"stray-match/internal/domain/alerts"
	"stray-match/internal/domain/analysis"
	"stray-match/internal/domain/animals"
	"stray-match/internal/domain/candidates"
	"stray-match/internal/domain/matching"
	"stray-match/internal/domain/notifications"
	"stray-match/internal/domain/ratelimit"
	"stray-match/internal/middleware"
	"stray-match/internal/platform/background"
	"stray-match/internal/platform/logger"
	"stray-match/internal/platform/metrics"
	"stray-match/internal/ports/auth"
	"stray-match/internal/ports/push"
	"stray-match/internal/ports/tiers"
	"stray-match/internal/ports/vision"
)

// AnimalStore junta los dos lados read-only (sightings y reportes de pérdida).
type AnimalStore interface {
	animals.SightingRepository
	animals.LostAnimalRepository
}

// ProfileStore resuelve tier y push token por usuario.
type ProfileStore interface {
	tiers.Resolver
	push.TokenResolver
}

type Options struct {
	Config       *config.Config    // nil => defaults
	Log          logger.Logger     // nil => Nop
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Overrides opcionales (tests, backends alternativos).
	Animals  AnimalStore
	Profiles ProfileStore
	Matches  matching.Repository
	UsageLog ratelimit.UsageLog

	Vision   vision.Model        // nil => vision.Unavailable
	Push     push.Sender         // nil => push.Disabled
	Executor background.Executor // nil => inline
}

// Router es el handler HTTP más las tareas de mantenimiento de los caches en memoria.
type Router struct {
	http.Handler

	alerts *alerts.Service
	tiers  *tiercache.Resolver
	usage  *mem.UsageLog
}

func NewRouter(opts Options) *Router {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.New()
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log))
	r.Use(middleware.Recover(log))

	r.Use(middleware.AuthContext(opts.AuthVerifier, log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	out := &Router{Handler: r}

	// Repos: override > Postgres > memoria.
	animalStore, profiles, matches := opts.Animals, opts.Profiles, opts.Matches
	if opts.DB != nil {
		if animalStore == nil {
			animalStore = struct {
				*pg.SightingsRepo
				*pg.LostAnimalsRepo
			}{pg.NewSightingsRepo(opts.DB), pg.NewLostAnimalsRepo(opts.DB)}
		}
		if profiles == nil {
			profiles = pg.NewProfilesRepo(opts.DB)
		}
		if matches == nil {
			matches = pg.NewMatchesRepo(opts.DB)
		}
	}
	if animalStore == nil {
		animalStore = mem.NewAnimalsRepo()
	}
	if profiles == nil {
		profiles = mem.NewProfilesRepo()
	}
	if matches == nil {
		matches = mem.NewMatchesRepo()
	}

	usage := opts.UsageLog
	if usage == nil {
		if cfg.RateLimit.Backend == config.UsagePostgres && opts.DB != nil {
			usage = pg.NewUsageRepo(opts.DB)
		} else {
			memUsage := mem.NewUsageLog()
			out.usage = memUsage
			usage = memUsage
		}
	}

	model := opts.Vision
	if model == nil {
		model = vision.Unavailable{}
	}
	exec := opts.Executor
	if exec == nil {
		exec = background.Inline{Log: log}
	}

	// Services por módulo
	tierOf := tiercache.New(profiles, cfg.Tiers.CacheTTL, tiercache.WithForcedTier(cfg.Tiers.Force))
	out.tiers = tierOf

	limiter := ratelimit.NewService(usage,
		ratelimit.WithLimits(cfg.RateLimits()),
		ratelimit.WithLogger(log),
	)

	search := candidates.NewSearch(animalStore, animalStore,
		candidates.WithScanLimit(cfg.Search.ScanLimit),
		candidates.WithLogger(log),
	)

	dispatcher := notifications.NewDispatcher(opts.Push, profiles, exec, log)

	analyzer := matching.NewAnalyzer(model, limiter,
		matching.WithAnalyzeTimeout(cfg.Matching.AnalyzeTimeout),
		matching.WithMaxTokens(cfg.Matching.MaxTokens),
		matching.WithPricing(cfg.Vision.Pricing),
		matching.WithAnalyzerLogger(log),
	)
	store := matching.NewStore(matches, matching.WithThreshold(cfg.Matching.Threshold))
	orch := matching.NewOrchestrator(matching.Deps{
		Gate:      limiter,
		Sightings: animalStore,
		Lost:      animalStore,
		Search:    search,
		Analyzer:  analyzer,
		Store:     store,
		Notifier:  dispatcher,
	},
		matching.WithMaxCandidates(cfg.Matching.MaxCandidates),
		matching.WithConcurrency(cfg.Matching.Concurrency),
		matching.WithSearchWindow(cfg.Search.RadiusKm, cfg.Search.LookbackDays),
		matching.WithOrchestratorLogger(log),
	)

	analysisSvc := analysis.NewService(limiter, model,
		analysis.WithPricing(cfg.Vision.Pricing),
		analysis.WithLogger(log),
	)

	alertsSvc := alerts.NewService(search, dispatcher,
		alerts.WithLogger(log),
		alerts.WithAreasFactory(func() *alerts.Areas {
			return alerts.NewAreas(
				alerts.WithAreaRadius(cfg.Alerts.AreaRadiusKm),
				alerts.WithResetDistance(cfg.Alerts.ResetKm),
				alerts.WithAreaTTL(cfg.Alerts.AreaTTL),
				alerts.WithMaxAreas(cfg.Alerts.MaxAreas),
			)
		}),
	)
	out.alerts = alertsSvc

	// Rutas por módulo
	matching.RegisterRoutes(r, orch, store, animalStore, tierOf)
	analysis.RegisterRoutes(r, analysisSvc, tierOf)
	alerts.RegisterRoutes(r, alertsSvc)

	return out
}

// Maintain poda los caches en memoria y devuelve cuántas entradas salieron de cada uno.
// El usage log en memoria conserva solo la ventana más larga (24h).
func (rt *Router) Maintain(now time.Time) map[string]int {
	out := map[string]int{
		"alert_users": rt.alerts.Prune(),
		"tiers":       rt.tiers.Prune(),
	}
	if rt.usage != nil {
		out["usage_events"] = rt.usage.Compact(now.Add(-24 * time.Hour))
	}
	return out
}
