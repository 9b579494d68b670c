package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stray-match/internal/platform/logger"
	"stray-match/internal/platform/metrics"
	"stray-match/internal/platform/retry"
	"stray-match/internal/ports/tiers"
)

// failClosedReset es el resetAt que se reporta cuando no se pudo contar.
const failClosedReset = 60 * time.Second

type Service struct {
	usage  UsageLog
	limits Limits
	policy retry.Policy
	log    logger.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLimits(l Limits) Option {
	return func(s *Service) {
		if len(l) > 0 {
			s.limits = l
		}
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(usage UsageLog, opts ...Option) *Service {
	s := &Service{
		usage:  usage,
		limits: DefaultLimits(),
		policy: retry.UsageCountPolicy(),
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(map[string]any{"component": "ratelimit"})
	return s
}

// CheckAndConsume evalúa las ventanas minuto/hora/día (en ese orden) para el usuario.
// No escribe: el UsageEvent lo registra el caller con RecordUsage al terminar.
//
// Si alguna ventana está llena devuelve Allowed=false con el resetAt de la primera
// que falla. Si todas pasan, Remaining sale de la ventana diaria y ResetAt es el
// reset más próximo. Si el conteo falla tras los reintentos, aplica el FailureMode
// de la política (fail closed por defecto: deniega con resetAt = now+60s).
func (s *Service) CheckAndConsume(ctx context.Context, userID string, tier tiers.Tier) Decision {
	now := s.now()
	quota := s.limits.For(tier)

	var (
		remaining = quota.PerDay
		resetAt   time.Time
	)

	for _, w := range quota.Windows() {
		since := now.Add(-w.Duration)

		var wc WindowCount
		err := s.policy.Do(ctx, func(ctx context.Context) error {
			var err error
			wc, err = s.usage.CountSince(ctx, userID, since)
			return err
		})
		if err != nil {
			metrics.RecordRateLimitCheckFailure()
			s.log.Error("usage count failed", map[string]any{
				"user_id": userID,
				"window":  w.Name,
				"mode":    s.policy.FailureMode.String(),
				"error":   err,
			})
			if !s.policy.Allows(err) {
				metrics.RecordRateLimitDecision(string(tier), false)
				return Decision{
					Allowed:   false,
					Remaining: 0,
					ResetAt:   now.Add(failClosedReset),
					Tier:      tier,
					Window:    w.Name,
					Degraded:  true,
				}
			}
			continue
		}

		reset := now.Add(w.Duration)
		if wc.Count > 0 && !wc.Oldest.IsZero() {
			reset = wc.Oldest.Add(w.Duration)
		}

		if wc.Count >= w.Limit {
			metrics.RecordRateLimitDecision(string(tier), false)
			return Decision{
				Allowed:   false,
				Remaining: 0,
				ResetAt:   reset,
				Tier:      tier,
				Window:    w.Name,
			}
		}

		if resetAt.IsZero() || reset.Before(resetAt) {
			resetAt = reset
		}
		if w.Name == "day" {
			remaining = w.Limit - wc.Count
		}
	}

	if resetAt.IsZero() {
		resetAt = now.Add(failClosedReset)
	}

	metrics.RecordRateLimitDecision(string(tier), true)
	return Decision{
		Allowed:   true,
		Remaining: remaining,
		ResetAt:   resetAt,
		Tier:      tier,
	}
}

// RecordUsage agrega un UsageEvent al log. Completa ID y Timestamp si vienen vacíos.
func (s *Service) RecordUsage(ctx context.Context, e UsageEvent) error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrInvalidInput
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	if err := s.usage.Append(ctx, e); err != nil {
		return fmt.Errorf("append usage event: %w", err)
	}
	return nil
}

// Limits expone las cuotas configuradas (para respuestas/headers).
func (s *Service) Limits() Limits { return s.limits }
