package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"stray-match/internal/domain/animals"
)

// nearLimit acota el camino espacial; el orquestador igual corta en 50.
const nearLimit = 200

type SightingsRepo struct {
	db *sql.DB
}

func NewSightingsRepo(db *sql.DB) *SightingsRepo {
	return &SightingsRepo{db: db}
}

func sightingColumns(decodeLocation bool) string {
	return `
	id, reporter_id, animal_type,
	` + locationColumns(decodeLocation) + `,
	COALESCE(color, ''), COALESCE(breed, ''), COALESCE(description, ''),
	photo_url, spotted_at, status`
}

// GetSighting carga el avistamiento aunque la base no tenga PostGIS; en ese caso
// la ubicación vuelve sin resolver y el search cae al scan.
func (r *SightingsRepo) GetSighting(ctx context.Context, id string) (animals.Sighting, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return animals.Sighting{}, animals.ErrNotFound
	}

	s, err := r.getSighting(ctx, id, true)
	if errors.Is(err, animals.ErrCoordinatesUndecodable) {
		return r.getSighting(ctx, id, false)
	}
	return s, err
}

func (r *SightingsRepo) getSighting(ctx context.Context, id string, decodeLocation bool) (animals.Sighting, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+sightingColumns(decodeLocation)+`
		FROM sightings
		WHERE id = $1
	`, id)

	s, err := scanSighting(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return animals.Sighting{}, animals.ErrNotFound
		}
		return animals.Sighting{}, spatialErr(err)
	}
	return s, nil
}

func (r *SightingsRepo) FindSightingsNear(ctx context.Context, q animals.NearQuery) ([]animals.Sighting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT`+sightingColumns(true)+`
		FROM sightings
		WHERE animal_type = $1
		  AND spotted_at >= $2
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5)
		ORDER BY spotted_at DESC
		LIMIT $6
	`, string(q.Type), q.Since, q.Origin.Longitude, q.Origin.Latitude, q.RadiusKm*1000, nearLimit)
	if err != nil {
		return nil, spatialErr(err)
	}
	defer rows.Close()

	return collectSightings(rows)
}

// ScanRecentSightings es el fallback: no filtra por radio y no depende de PostGIS.
func (r *SightingsRepo) ScanRecentSightings(ctx context.Context, q animals.ScanQuery) ([]animals.Sighting, error) {
	out, err := r.scanRecent(ctx, q, true)
	if errors.Is(err, animals.ErrCoordinatesUndecodable) {
		return r.scanRecent(ctx, q, false)
	}
	return out, err
}

func (r *SightingsRepo) scanRecent(ctx context.Context, q animals.ScanQuery, decodeLocation bool) ([]animals.Sighting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT`+sightingColumns(decodeLocation)+`
		FROM sightings
		WHERE animal_type = $1
		  AND spotted_at >= $2
		ORDER BY spotted_at DESC
		LIMIT $3
	`, string(q.Type), q.Since, q.Limit)
	if err != nil {
		return nil, spatialErr(err)
	}
	defer rows.Close()

	return collectSightings(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSighting(row rowScanner) (animals.Sighting, error) {
	var (
		s        animals.Sighting
		typ      string
		lat, lng sql.NullFloat64
	)
	if err := row.Scan(
		&s.ID,
		&s.ReporterID,
		&typ,
		&lat,
		&lng,
		&s.Color,
		&s.Breed,
		&s.Description,
		&s.PhotoRef,
		&s.SpottedAt,
		&s.Status,
	); err != nil {
		return animals.Sighting{}, err
	}
	s.AnimalType = animals.AnimalType(typ)
	s.Location = toCoordinates(lat, lng)
	return s, nil
}

func collectSightings(rows *sql.Rows) ([]animals.Sighting, error) {
	out := make([]animals.Sighting, 0)
	for rows.Next() {
		s, err := scanSighting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// geography NULL => coordenadas sin resolver (el search cae al scan).
func toCoordinates(lat, lng sql.NullFloat64) animals.Coordinates {
	if !lat.Valid || !lng.Valid {
		return animals.Unresolved()
	}
	return animals.Coordinates{Latitude: lat.Float64, Longitude: lng.Float64}
}
