// Package retry define políticas de reintento explícitas sobre sethvargo/go-retry.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// FailureMode indica qué hace el caller cuando se agotan los intentos.
type FailureMode int

const (
	// FailClosed: ante la duda se niega la operación.
	FailClosed FailureMode = iota
	// FailOpen: ante la duda se permite la operación.
	FailOpen
)

func (m FailureMode) String() string {
	if m == FailOpen {
		return "fail_open"
	}
	return "fail_closed"
}

// Policy describe cuántas veces reintentar y cuánto esperar antes de cada intento.
// Backoff[i] es la espera previa al intento i (el primero suele ser 0).
// Si hay menos entradas que intentos, se repite la última.
type Policy struct {
	MaxAttempts int
	Backoff     []time.Duration
	FailureMode FailureMode
}

// UsageCountPolicy: 3 intentos (0ms/200ms/500ms), fail closed.
func UsageCountPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{0, 200 * time.Millisecond, 500 * time.Millisecond},
		FailureMode: FailClosed,
	}
}

// ErrPermanent marca un error que no debe reintentarse.
var ErrPermanent = errors.New("permanent failure")

// Permanent envuelve err para cortar los reintentos.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
func (e *permanentError) Is(target error) bool {
	return target == ErrPermanent
}

// Do ejecuta fn según la política. Devuelve nil en el primer intento exitoso,
// el último error si se agotan los intentos, o ctx.Err() si se cancela.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	if d := p.delay(0); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	next := 1
	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		if next >= attempts {
			return 0, true
		}
		d := p.delay(next)
		next++
		return d, false
	})

	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) {
			return err
		}
		return goretry.RetryableError(err)
	})
}

// Allows traduce el resultado de Do según el FailureMode.
func (p Policy) Allows(err error) bool {
	if err == nil {
		return true
	}
	return p.FailureMode == FailOpen
}

func (p Policy) delay(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	if attempt < len(p.Backoff) {
		return p.Backoff[attempt]
	}
	return p.Backoff[len(p.Backoff)-1]
}
