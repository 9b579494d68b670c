package postgres

import (
	"context"
	"database/sql"
	"strings"

	"stray-match/internal/domain/matching"
)

type MatchesRepo struct {
	db *sql.DB
}

func NewMatchesRepo(db *sql.DB) *MatchesRepo {
	return &MatchesRepo{db: db}
}

// InsertIfAbsent depende del UNIQUE (lost_animal_id, sighting_id).
func (r *MatchesRepo) InsertIfAbsent(ctx context.Context, m matching.Result) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO matches (
			id, lost_animal_id, sighting_id,
			confidence, reason, created_at
		) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (lost_animal_id, sighting_id) DO NOTHING
	`,
		m.ID,
		m.LostAnimalID,
		m.SightingID,
		m.Confidence,
		m.Reason,
		m.CreatedAt,
	)
	if err != nil {
		// Con un constraint distinto al del ON CONFLICT igual puede saltar 23505.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *MatchesRepo) Exists(ctx context.Context, lostAnimalID, sightingID string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE lost_animal_id = $1 AND sighting_id = $2
		)
	`, lostAnimalID, sightingID).Scan(&ok)
	return ok, err
}

func (r *MatchesRepo) ListByLostAnimal(ctx context.Context, lostAnimalID string) ([]matching.Result, error) {
	lostAnimalID = strings.TrimSpace(lostAnimalID)
	if lostAnimalID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, lost_animal_id, sighting_id,
			confidence, reason, created_at
		FROM matches
		WHERE lost_animal_id = $1
		ORDER BY confidence DESC, created_at DESC
	`, lostAnimalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]matching.Result, 0)
	for rows.Next() {
		var m matching.Result
		if err := rows.Scan(
			&m.ID,
			&m.LostAnimalID,
			&m.SightingID,
			&m.Confidence,
			&m.Reason,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
