// Package alerts avisa de animales vistos cerca del usuario, sin repetir el aviso
// para la misma zona dentro de 24h.
package alerts

import (
	"sync"
	"time"

	"stray-match/internal/platform/geo"
)

const (
	DefaultAreaRadiusKm = 2.0
	DefaultResetKm      = 20.0
	DefaultAreaTTL      = 24 * time.Hour
	DefaultMaxAreas     = 50
)

// Area es una zona ya notificada.
type Area struct {
	Center     geo.Point
	NotifiedAt time.Time
}

// Areas es el set de zonas notificadas de un usuario. Acotado, se poda solo
// (TTL) y se vacía entero cuando el usuario se aleja más de resetKm de todas.
type Areas struct {
	mu       sync.Mutex
	items    []Area
	radiusKm float64
	resetKm  float64
	ttl      time.Duration
	max      int
	now      func() time.Time
}

type AreasOption func(*Areas)

func WithAreaRadius(km float64) AreasOption {
	return func(a *Areas) {
		if km > 0 {
			a.radiusKm = km
		}
	}
}

func WithResetDistance(km float64) AreasOption {
	return func(a *Areas) {
		if km > 0 {
			a.resetKm = km
		}
	}
}

func WithAreaTTL(d time.Duration) AreasOption {
	return func(a *Areas) {
		if d > 0 {
			a.ttl = d
		}
	}
}

func WithMaxAreas(n int) AreasOption {
	return func(a *Areas) {
		if n > 0 {
			a.max = n
		}
	}
}

func WithAreasClock(now func() time.Time) AreasOption {
	return func(a *Areas) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAreas(opts ...AreasOption) *Areas {
	a := &Areas{
		radiusKm: DefaultAreaRadiusKm,
		resetKm:  DefaultResetKm,
		ttl:      DefaultAreaTTL,
		max:      DefaultMaxAreas,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Seen indica si p cae dentro de una zona vigente.
func (a *Areas) Seen(p geo.Point) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneLocked(a.now())
	return a.seenLocked(p)
}

// Mark registra p como zona notificada.
func (a *Areas) Mark(p geo.Point) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markLocked(p, a.now())
}

// ShouldNotify combina reset por distancia, Seen y Mark de forma atómica.
// Devuelve true si corresponde avisar (y deja la zona marcada).
func (a *Areas) ShouldNotify(p geo.Point) bool {
	if !p.Valid() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.pruneLocked(now)

	if len(a.items) > 0 && a.farFromAllLocked(p) {
		a.items = a.items[:0]
	}
	if a.seenLocked(p) {
		return false
	}
	a.markLocked(p, now)
	return true
}

// Prune descarta zonas vencidas y devuelve cuántas quitó.
func (a *Areas) Prune() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pruneLocked(a.now())
}

func (a *Areas) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

func (a *Areas) seenLocked(p geo.Point) bool {
	for _, it := range a.items {
		if geo.Within(it.Center, p, a.radiusKm) {
			return true
		}
	}
	return false
}

func (a *Areas) farFromAllLocked(p geo.Point) bool {
	for _, it := range a.items {
		if geo.DistanceKm(it.Center, p) <= a.resetKm {
			return false
		}
	}
	return true
}

func (a *Areas) markLocked(p geo.Point, now time.Time) {
	// items está ordenado por NotifiedAt: el primero es el más viejo.
	if len(a.items) >= a.max {
		a.items = append(a.items[:0], a.items[1:]...)
	}
	a.items = append(a.items, Area{Center: p, NotifiedAt: now})
}

func (a *Areas) pruneLocked(now time.Time) int {
	kept := a.items[:0]
	removed := 0
	for _, it := range a.items {
		if now.Sub(it.NotifiedAt) >= a.ttl {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	a.items = kept
	return removed
}
