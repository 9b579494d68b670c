package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"stray-match/internal/domain/ratelimit"
	"stray-match/internal/ports/tiers"
)

const (
	envPrefix = "STRAYS_"
	envFile   = "STRAYS_CONFIG"
)

var ErrInvalid = errors.New("invalid config")

// Load arma la Config: defaults, YAML opcional (STRAYS_CONFIG) y env.
// En env "__" separa niveles: STRAYS_DB__DSN -> db.dsn, STRAYS_RATELIMIT__LIMITS__FREE__PER_MINUTE.
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := strings.TrimSpace(os.Getenv(envFile)); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		if s == "CONFIG" {
			return ""
		}
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	cfg.RateLimit.Limits = nil
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}
	cfg.RateLimit.Limits = mergeLimits(base.RateLimit.Limits, cfg.RateLimit.Limits)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeLimits completa por campo: un override parcial de un tier conserva el resto.
func mergeLimits(defaults, override map[string]ratelimit.Quota) map[string]ratelimit.Quota {
	out := make(map[string]ratelimit.Quota, len(defaults))
	for name, q := range defaults {
		out[name] = q
	}
	for name, q := range override {
		name = strings.ToLower(strings.TrimSpace(name))
		cur := out[name]
		if q.PerMinute > 0 {
			cur.PerMinute = q.PerMinute
		}
		if q.PerHour > 0 {
			cur.PerHour = q.PerHour
		}
		if q.PerDay > 0 {
			cur.PerDay = q.PerDay
		}
		out[name] = cur
	}
	return out
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server.addr must not be empty", ErrInvalid)
	}

	switch c.RateLimit.Backend {
	case UsageMemory:
	case UsagePostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("%w: ratelimit.backend=postgres requires db.dsn", ErrInvalid)
		}
	case UsageRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: ratelimit.backend=redis requires redis.addr", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown ratelimit.backend %q", ErrInvalid, c.RateLimit.Backend)
	}

	if err := c.RateLimits().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.Matching.Threshold < 0 || c.Matching.Threshold > 100 {
		return fmt.Errorf("%w: matching.threshold must be in [0,100]", ErrInvalid)
	}
	if c.Matching.Concurrency <= 0 || c.Matching.MaxCandidates <= 0 {
		return fmt.Errorf("%w: matching.concurrency and matching.max_candidates must be positive", ErrInvalid)
	}
	if c.Search.RadiusKm <= 0 || c.Search.LookbackDays <= 0 {
		return fmt.Errorf("%w: search.radius_km and search.lookback_days must be positive", ErrInvalid)
	}
	return nil
}

func tiersFrom(name string) tiers.Tier {
	return tiers.Tier(strings.ToLower(strings.TrimSpace(name)))
}
