package memory

import (
	"context"
	"sync"
	"time"

	"stray-match/internal/domain/ratelimit"
)

// UsageLog es el log append-only en memoria. Solo sirve con una réplica.
type UsageLog struct {
	mu     sync.RWMutex
	byUser map[string][]ratelimit.UsageEvent
}

func NewUsageLog() *UsageLog {
	return &UsageLog{byUser: make(map[string][]ratelimit.UsageEvent)}
}

func (l *UsageLog) Append(ctx context.Context, e ratelimit.UsageEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.byUser[e.UserID] = append(l.byUser[e.UserID], e)
	return nil
}

func (l *UsageLog) CountSince(ctx context.Context, userID string, since time.Time) (ratelimit.WindowCount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var wc ratelimit.WindowCount
	for _, e := range l.byUser[userID] {
		if e.Timestamp.Before(since) {
			continue
		}
		wc.Count++
		if wc.Oldest.IsZero() || e.Timestamp.Before(wc.Oldest) {
			wc.Oldest = e.Timestamp
		}
	}
	return wc, nil
}

// Compact descarta eventos anteriores a cutoff (la ventana más larga).
func (l *UsageLog) Compact(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for user, events := range l.byUser {
		kept := events[:0]
		for _, e := range events {
			if e.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(l.byUser, user)
			continue
		}
		l.byUser[user] = kept
	}
	return removed
}
