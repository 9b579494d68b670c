// Package config define la configuración del proceso.
// Precedencia (menor -> mayor): defaults, YAML en STRAYS_CONFIG, env STRAYS_*.
package config

import (
	"time"

	"stray-match/internal/domain/ratelimit"
	"stray-match/internal/ports/vision"
)

// Backends del usage log.
const (
	UsageMemory   = "memory"
	UsagePostgres = "postgres"
	UsageRedis    = "redis"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	DB         DBConfig         `koanf:"db"`
	Redis      RedisConfig      `koanf:"redis"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Search     SearchConfig     `koanf:"search"`
	Matching   MatchingConfig   `koanf:"matching"`
	Vision     VisionConfig     `koanf:"vision"`
	Push       PushConfig       `koanf:"push"`
	Auth       AuthConfig       `koanf:"auth"`
	Tiers      TiersConfig      `koanf:"tiers"`
	Alerts     AlertsConfig     `koanf:"alerts"`
	Background BackgroundConfig `koanf:"background"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	App    string `koanf:"app"`
}

// DBConfig: DSN vacío => repos en memoria (modo dev).
type DBConfig struct {
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type RateLimitConfig struct {
	// Backend del usage log: memory | postgres | redis.
	Backend string                     `koanf:"backend"`
	Limits  map[string]ratelimit.Quota `koanf:"limits"`
}

type SearchConfig struct {
	RadiusKm     float64 `koanf:"radius_km"`
	LookbackDays int     `koanf:"lookback_days"`
	ScanLimit    int     `koanf:"scan_limit"`
}

type MatchingConfig struct {
	Threshold      int           `koanf:"threshold"`
	MaxCandidates  int           `koanf:"max_candidates"`
	Concurrency    int           `koanf:"concurrency"`
	AnalyzeTimeout time.Duration `koanf:"analyze_timeout"`
	MaxTokens      int           `koanf:"max_tokens"`
}

// VisionConfig: sin APIKey el análisis queda deshabilitado (503/500 según endpoint).
type VisionConfig struct {
	BaseURL     string         `koanf:"base_url"`
	APIKey      string         `koanf:"api_key"`
	Model       string         `koanf:"model"`
	ImageDetail string         `koanf:"image_detail"`
	Timeout     time.Duration  `koanf:"timeout"`
	Pricing     vision.Pricing `koanf:"pricing"`
}

type PushConfig struct {
	Enabled     bool    `koanf:"enabled"`
	BaseURL     string  `koanf:"base_url"`
	AccessToken string  `koanf:"access_token"`
	RPS         float64 `koanf:"rps"`
	Burst       int     `koanf:"burst"`
}

// AuthConfig: BaseURL y JWTSecret vacíos => modo dev (header X-Debug-User-ID).
type AuthConfig struct {
	BaseURL    string `koanf:"base_url"`
	AnonKey    string `koanf:"anon_key"`
	ServiceKey string `koanf:"service_key"`
	JWTSecret  string `koanf:"jwt_secret"`
}

func (a AuthConfig) Enabled() bool {
	return a.BaseURL != "" || a.JWTSecret != "" || a.ServiceKey != ""
}

type TiersConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl"`
	Force    string        `koanf:"force"`
}

type AlertsConfig struct {
	AreaRadiusKm float64       `koanf:"area_radius_km"`
	ResetKm      float64       `koanf:"reset_km"`
	AreaTTL      time.Duration `koanf:"area_ttl"`
	MaxAreas     int           `koanf:"max_areas"`

	// MaintenanceSchedule es una expresión cron (prune de caches y compactación del log).
	MaintenanceSchedule string `koanf:"maintenance_schedule"`
}

type BackgroundConfig struct {
	Workers     int           `koanf:"workers"`
	QueueSize   int           `koanf:"queue_size"`
	TaskTimeout time.Duration `koanf:"task_timeout"`
}

// New devuelve la configuración por defecto.
func New() *Config {
	limits := make(map[string]ratelimit.Quota)
	for t, q := range ratelimit.DefaultLimits() {
		limits[string(t)] = q
	}

	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			App:    "stray-match",
		},
		DB: DBConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Backend: UsageMemory,
			Limits:  limits,
		},
		Search: SearchConfig{
			RadiusKm:     50,
			LookbackDays: 30,
			ScanLimit:    50,
		},
		Matching: MatchingConfig{
			Threshold:      80,
			MaxCandidates:  50,
			Concurrency:    8,
			AnalyzeTimeout: 45 * time.Second,
			MaxTokens:      300,
		},
		Vision: VisionConfig{
			Model:       "gpt-4o-mini",
			ImageDetail: "low",
			Timeout:     60 * time.Second,
			Pricing:     vision.DefaultPricing(),
		},
		Push: PushConfig{
			Enabled: true,
			RPS:     10,
			Burst:   20,
		},
		Tiers: TiersConfig{
			CacheTTL: time.Minute,
		},
		Alerts: AlertsConfig{
			AreaRadiusKm:        2,
			ResetKm:             20,
			AreaTTL:             24 * time.Hour,
			MaxAreas:            50,
			MaintenanceSchedule: "@every 10m",
		},
		Background: BackgroundConfig{
			Workers:     4,
			QueueSize:   256,
			TaskTimeout: 30 * time.Second,
		},
	}
}

// RateLimits convierte el mapa de config al tipo del dominio.
func (c *Config) RateLimits() ratelimit.Limits {
	out := make(ratelimit.Limits, len(c.RateLimit.Limits))
	for name, q := range c.RateLimit.Limits {
		out[tiersFrom(name)] = q
	}
	return out
}
