// Package tiercache cachea el tier de cada usuario delante del resolver de perfiles.
package tiercache

import (
	"context"
	"errors"
	"strings"
	"time"

	"stray-match/internal/platform/cache"
	"stray-match/internal/ports/tiers"
)

var ErrNotConfigured = errors.New("tier resolver not configured")

const (
	DefaultTTL     = time.Minute
	defaultMaxSize = 10_000
)

// Resolver implementa tiers.Resolver. Un cambio de tier tarda a lo sumo ttl en verse.
type Resolver struct {
	upstream tiers.Resolver
	cache    *cache.TTL[string, tiers.Tier]

	// force pisa el tier de todos (modo dev); "" desactiva.
	force tiers.Tier
}

type Option func(*Resolver)

// WithForcedTier asigna el mismo tier a todos sin consultar upstream.
func WithForcedTier(t string) Option {
	return func(r *Resolver) {
		if t = strings.TrimSpace(t); t != "" {
			r.force = tiers.Parse(t)
		}
	}
}

func New(upstream tiers.Resolver, ttl time.Duration, opts ...Option) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r := &Resolver{
		upstream: upstream,
		cache:    cache.NewTTL[string, tiers.Tier](ttl, cache.WithMaxSize[string, tiers.Tier](defaultMaxSize)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) TierOf(ctx context.Context, userID string) (tiers.Tier, error) {
	if r.force != "" {
		return r.force, nil
	}
	if r.upstream == nil {
		return tiers.Free, ErrNotConfigured
	}

	userID = strings.TrimSpace(userID)
	if t, ok := r.cache.Get(userID); ok {
		return t, nil
	}

	// Los errores no se cachean: el próximo request vuelve a intentar.
	t, err := r.upstream.TierOf(ctx, userID)
	if err != nil {
		return tiers.Free, err
	}
	r.cache.Set(userID, t)
	return t, nil
}

// Invalidate descarta el tier cacheado (p.ej. tras un upgrade).
func (r *Resolver) Invalidate(userID string) {
	r.cache.Delete(strings.TrimSpace(userID))
}

func (r *Resolver) Prune() int { return r.cache.Prune() }
