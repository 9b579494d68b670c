package ratelimit

import (
	"context"
	"time"
)

// UsageLog es el log append-only de UsageEvents.
type UsageLog interface {
	Append(ctx context.Context, e UsageEvent) error
	CountSince(ctx context.Context, userID string, since time.Time) (WindowCount, error)
}
