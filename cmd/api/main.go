package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"stray-match/internal/adapters/auth/gotrue"
	"stray-match/internal/adapters/push/expo"
	pg "stray-match/internal/adapters/storage/postgres"
	"stray-match/internal/adapters/storage/redisstore"
	"stray-match/internal/adapters/vision/openai"
	"stray-match/internal/config"
	"stray-match/internal/domain/ratelimit"
	"stray-match/internal/platform/background"
	"stray-match/internal/platform/logger"
	"stray-match/internal/platform/migrations"
	"stray-match/internal/ports/auth"
	"stray-match/internal/ports/push"
	"stray-match/internal/ports/vision"
	"stray-match/internal/router"
)

// @title Stray Match API
// @version 1.0
// @description Matching de animales perdidos contra avistamientos y notificación a dueños.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// .env solo para corridas locales; en deploy manda el entorno.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{}).Error("invalid config", map[string]any{"error": err})
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.Log.App,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("api server failed", map[string]any{"error": err})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	var db *sql.DB
	if cfg.DB.DSN != "" {
		opened, err := pg.Open(cfg.DB.DSN, pg.PoolOptions{
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer opened.Close()
		db = opened

		if cfg.DB.MigrateOnStart {
			runner, err := migrations.New(db, log)
			if err != nil {
				return err
			}
			if err := runner.Up(ctx); err != nil {
				return err
			}
		}
	} else {
		log.Warn("db.dsn not set: using in-memory repositories", nil)
	}

	var usage ratelimit.UsageLog
	if cfg.RateLimit.Backend == config.UsageRedis {
		client, err := redisstore.Dial(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		usage = redisstore.NewUsageLog(client)
	}

	var verifier auth.AuthVerifier
	if cfg.Auth.Enabled() {
		var client *gotrue.Client
		if cfg.Auth.BaseURL != "" {
			c, err := gotrue.NewClient(gotrue.Config{BaseURL: cfg.Auth.BaseURL, APIKey: cfg.Auth.AnonKey})
			if err != nil {
				return err
			}
			client = c
		}
		verifier = gotrue.NewVerifier(client, gotrue.VerifierConfig{
			ServiceKey: cfg.Auth.ServiceKey,
			JWTSecret:  cfg.Auth.JWTSecret,
		})
	} else {
		log.Warn("auth not configured: dev mode, X-Debug-User-ID accepted", nil)
	}

	var model vision.Model = vision.Unavailable{}
	if cfg.Vision.APIKey != "" {
		c, err := openai.NewClient(openai.Config{
			BaseURL:     cfg.Vision.BaseURL,
			APIKey:      cfg.Vision.APIKey,
			Model:       cfg.Vision.Model,
			ImageDetail: cfg.Vision.ImageDetail,
			Timeout:     cfg.Vision.Timeout,
		})
		if err != nil {
			return err
		}
		model = c
	} else {
		log.Warn("vision api key not set: every analysis will fail", nil)
	}

	var sender push.Sender = push.Disabled{}
	if cfg.Push.Enabled {
		s, err := expo.NewSender(expo.Config{
			BaseURL:     cfg.Push.BaseURL,
			AccessToken: cfg.Push.AccessToken,
			RPS:         cfg.Push.RPS,
			Burst:       cfg.Push.Burst,
		})
		if err != nil {
			return err
		}
		sender = s
	}

	pool := background.NewPool(log,
		background.WithWorkers(cfg.Background.Workers),
		background.WithQueueSize(cfg.Background.QueueSize),
		background.WithTaskTimeout(cfg.Background.TaskTimeout),
	)
	pool.Start()

	rt := router.NewRouter(router.Options{
		Config:       cfg,
		Log:          log,
		AuthVerifier: verifier,
		DB:           db,
		UsageLog:     usage,
		Vision:       model,
		Push:         sender,
		Executor:     pool,
	})

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.Alerts.MaintenanceSchedule, func() {
		log.Debug("maintenance", map[string]any{"pruned": rt.Maintain(time.Now())})
	}); err != nil {
		return err
	}
	sched.Start()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           rt,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		// El pipeline corre síncrono: hasta 50 análisis con timeout propio.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", map[string]any{"addr": cfg.Server.Addr})
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", map[string]any{"error": err})
	}
	<-sched.Stop().Done()
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Error("background pool shutdown failed", map[string]any{"error": err})
	}
	log.Info("api server stopped", nil)
	return nil
}
