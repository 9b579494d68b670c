package ratelimit

import (
	"errors"
	"time"

	"stray-match/internal/ports/tiers"
)

var (
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrInvalidInput = errors.New("invalid input")
)

// UsageEvent es append-only: se escribe uno por intento de operación protegida.
type UsageEvent struct {
	ID        string
	UserID    string
	Operation string // "match_analysis", "photo_analysis"...
	Timestamp time.Time

	Success    bool
	TokensUsed int
	Cost       float64
}

// WindowCount es lo que devuelve el log para una ventana deslizante.
// Oldest es el evento más viejo dentro de la ventana (zero si Count == 0).
type WindowCount struct {
	Count  int
	Oldest time.Time
}

// Window es derivada, nunca se persiste.
type Window struct {
	Name     string
	Duration time.Duration
	Limit    int
	Count    int
}

// Decision es el resultado de CheckAndConsume.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Tier      tiers.Tier

	// Window es la ventana que rechazó ("" si pasó).
	Window string

	// Degraded indica que el conteo falló y se aplicó el FailureMode.
	Degraded bool
}
