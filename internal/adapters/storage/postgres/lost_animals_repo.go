package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"stray-match/internal/domain/animals"
)

type LostAnimalsRepo struct {
	db *sql.DB
}

func NewLostAnimalsRepo(db *sql.DB) *LostAnimalsRepo {
	return &LostAnimalsRepo{db: db}
}

func lostColumns(decodeLocation bool) string {
	return `
	id, owner_id, name, animal_type,
	` + locationColumns(decodeLocation) + `,
	COALESCE(color, ''), COALESCE(breed, ''), COALESCE(description, ''),
	distinctive_features, photo_url, status, created_at`
}

// GetLostAnimal, igual que GetSighting, no falla si la base no tiene PostGIS.
func (r *LostAnimalsRepo) GetLostAnimal(ctx context.Context, id string) (animals.LostAnimal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return animals.LostAnimal{}, animals.ErrNotFound
	}

	l, err := r.getLostAnimal(ctx, id, true)
	if errors.Is(err, animals.ErrCoordinatesUndecodable) {
		return r.getLostAnimal(ctx, id, false)
	}
	return l, err
}

func (r *LostAnimalsRepo) getLostAnimal(ctx context.Context, id string, decodeLocation bool) (animals.LostAnimal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+lostColumns(decodeLocation)+`
		FROM lost_animals
		WHERE id = $1
	`, id)

	l, err := scanLostAnimal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return animals.LostAnimal{}, animals.ErrNotFound
		}
		return animals.LostAnimal{}, spatialErr(err)
	}
	return l, nil
}

func (r *LostAnimalsRepo) FindLostAnimalsNear(ctx context.Context, q animals.NearQuery) ([]animals.LostAnimal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT`+lostColumns(true)+`
		FROM lost_animals
		WHERE animal_type = $1
		  AND status = 'active'
		  AND created_at >= $2
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5)
		ORDER BY created_at DESC
		LIMIT $6
	`, string(q.Type), q.Since, q.Origin.Longitude, q.Origin.Latitude, q.RadiusKm*1000, nearLimit)
	if err != nil {
		return nil, spatialErr(err)
	}
	defer rows.Close()

	return collectLostAnimals(rows)
}

func (r *LostAnimalsRepo) ScanActiveLostAnimals(ctx context.Context, q animals.ScanQuery) ([]animals.LostAnimal, error) {
	out, err := r.scanActive(ctx, q, true)
	if errors.Is(err, animals.ErrCoordinatesUndecodable) {
		return r.scanActive(ctx, q, false)
	}
	return out, err
}

func (r *LostAnimalsRepo) scanActive(ctx context.Context, q animals.ScanQuery, decodeLocation bool) ([]animals.LostAnimal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT`+lostColumns(decodeLocation)+`
		FROM lost_animals
		WHERE animal_type = $1
		  AND status = 'active'
		  AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`, string(q.Type), q.Since, q.Limit)
	if err != nil {
		return nil, spatialErr(err)
	}
	defer rows.Close()

	return collectLostAnimals(rows)
}

func scanLostAnimal(row rowScanner) (animals.LostAnimal, error) {
	var (
		l        animals.LostAnimal
		typ      string
		status   string
		lat, lng sql.NullFloat64
		features []byte
	)
	if err := row.Scan(
		&l.ID,
		&l.OwnerID,
		&l.Name,
		&typ,
		&lat,
		&lng,
		&l.Color,
		&l.Breed,
		&l.Description,
		&features,
		&l.PhotoRef,
		&status,
		&l.CreatedAt,
	); err != nil {
		return animals.LostAnimal{}, err
	}

	l.AnimalType = animals.AnimalType(typ)
	l.Status = animals.LostStatus(status)
	l.Location = toCoordinates(lat, lng)

	// distinctive_features es jsonb (array de strings).
	if len(features) > 0 {
		if err := json.Unmarshal(features, &l.DistinctiveFeatures); err != nil {
			return animals.LostAnimal{}, fmt.Errorf("decode distinctive_features: %w", err)
		}
	}
	return l, nil
}

func collectLostAnimals(rows *sql.Rows) ([]animals.LostAnimal, error) {
	out := make([]animals.LostAnimal, 0)
	for rows.Next() {
		l, err := scanLostAnimal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
