package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"stray-match/internal/domain/animals"
)

// PoolOptions son los límites del pool de database/sql.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     3 * time.Second,
	}
}

// Open abre una conexión pool a Postgres usando pgx (database/sql).
func Open(dsn string, opts PoolOptions) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	def := DefaultPoolOptions()
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = def.MaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = def.MaxIdleConns
	}
	if opts.ConnMaxIdleTime <= 0 {
		opts.ConnMaxIdleTime = def.ConnMaxIdleTime
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = def.ConnMaxLifetime
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = def.PingTimeout
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), opts.PingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

const (
	codeUniqueViolation = "23505"
	codeUndefinedFunc   = "42883"
	codeUndefinedObject = "42704"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// spatialErr marca como "coordenadas no decodificables" los errores de una base
// sin PostGIS (geography / ST_* inexistentes).
func spatialErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == codeUndefinedFunc || pgErr.Code == codeUndefinedObject) {
		return fmt.Errorf("%w: %s", animals.ErrCoordinatesUndecodable, pgErr.Message)
	}
	return err
}

// locationColumns devuelve lat, lng. Sin PostGIS se seleccionan NULLs: la fila
// se carga igual y la ubicación queda sin resolver.
func locationColumns(decode bool) string {
	if decode {
		return "ST_Y(location::geometry), ST_X(location::geometry)"
	}
	return "NULL::float8, NULL::float8"
}
