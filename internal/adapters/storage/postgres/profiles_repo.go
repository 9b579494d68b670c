package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"stray-match/internal/ports/tiers"
)

// ProfilesRepo lee tier y push token de profiles. Implementa tiers.Resolver
// y push.TokenResolver.
type ProfilesRepo struct {
	db *sql.DB
}

func NewProfilesRepo(db *sql.DB) *ProfilesRepo {
	return &ProfilesRepo{db: db}
}

// TierOf: sin perfil => Free.
func (r *ProfilesRepo) TierOf(ctx context.Context, userID string) (tiers.Tier, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return tiers.Free, nil
	}

	var tier sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT tier FROM profiles WHERE id = $1
	`, userID).Scan(&tier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tiers.Free, nil
		}
		return tiers.Free, err
	}
	return tiers.Parse(tier.String), nil
}

// PushToken: "" sin error cuando no hay destino registrado.
func (r *ProfilesRepo) PushToken(ctx context.Context, userID string) (string, error) {
	var token sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT push_token FROM profiles WHERE id = $1
	`, userID).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token.String), nil
}
