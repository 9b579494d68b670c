package ratelimit

import (
	"fmt"
	"time"

	"stray-match/internal/ports/tiers"
)

// Quota son las tres cuotas de un tier.
type Quota struct {
	PerMinute int `koanf:"per_minute"`
	PerHour   int `koanf:"per_hour"`
	PerDay    int `koanf:"per_day"`
}

// Windows devuelve las ventanas en orden ascendente de duración.
func (q Quota) Windows() []Window {
	return []Window{
		{Name: "minute", Duration: time.Minute, Limit: q.PerMinute},
		{Name: "hour", Duration: time.Hour, Limit: q.PerHour},
		{Name: "day", Duration: 24 * time.Hour, Limit: q.PerDay},
	}
}

func (q Quota) Validate() error {
	if q.PerMinute <= 0 || q.PerHour <= 0 || q.PerDay <= 0 {
		return fmt.Errorf("%w: quotas must be positive", ErrInvalidInput)
	}
	return nil
}

// Limits mapea tier -> cuotas.
type Limits map[tiers.Tier]Quota

func DefaultLimits() Limits {
	return Limits{
		tiers.Free:      {PerMinute: 2, PerHour: 10, PerDay: 20},
		tiers.Supporter: {PerMinute: 10, PerHour: 60, PerDay: 200},
		tiers.Admin:     {PerMinute: 100, PerHour: 1000, PerDay: 10000},
	}
}

// For devuelve las cuotas del tier; un tier desconocido usa las de free.
func (l Limits) For(t tiers.Tier) Quota {
	if q, ok := l[t]; ok {
		return q
	}
	return l[tiers.Free]
}

func (l Limits) Validate() error {
	for _, t := range []tiers.Tier{tiers.Free, tiers.Supporter, tiers.Admin} {
		q, ok := l[t]
		if !ok {
			return fmt.Errorf("%w: missing quotas for tier %s", ErrInvalidInput, t)
		}
		if err := q.Validate(); err != nil {
			return fmt.Errorf("tier %s: %w", t, err)
		}
	}
	return nil
}
