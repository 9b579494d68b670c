package postgres

import (
	"context"
	"database/sql"
	"time"

	"stray-match/internal/domain/ratelimit"
)

// UsageRepo es el usage_log append-only.
type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

func (r *UsageRepo) Append(ctx context.Context, e ratelimit.UsageEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO usage_log (
			id, user_id, operation, created_at,
			success, tokens_used, cost
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		e.ID,
		e.UserID,
		e.Operation,
		e.Timestamp,
		e.Success,
		e.TokensUsed,
		e.Cost,
	)
	return err
}

func (r *UsageRepo) CountSince(ctx context.Context, userID string, since time.Time) (ratelimit.WindowCount, error) {
	var (
		count  int
		oldest sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(created_at)
		FROM usage_log
		WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(&count, &oldest)
	if err != nil {
		return ratelimit.WindowCount{}, err
	}

	wc := ratelimit.WindowCount{Count: count}
	if oldest.Valid {
		wc.Oldest = oldest.Time
	}
	return wc, nil
}
