// Package migrations aplica el esquema embebido con goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"

	"stray-match/internal/platform/logger"
)

//go:embed sql/*.sql
var embedded embed.FS

const defaultTimeout = time.Minute

// FS devuelve los archivos de migración (raíz = directorio sql).
func FS() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Runner envuelve un goose.Provider sobre la DB abierta.
type Runner struct {
	provider *goose.Provider
	log      logger.Logger
}

func New(db *sql.DB, log logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("nil db provided")
	}
	if log == nil {
		log = logger.Nop()
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, FS())
	if err != nil {
		return nil, fmt.Errorf("configure goose: %w", err)
	}
	return &Runner{provider: p, log: log}, nil
}

// Up aplica las migraciones pendientes.
func (r *Runner) Up(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	results, err := r.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, res := range results {
		r.log.Info("migration applied", map[string]any{
			"version":  res.Source.Version,
			"duration": res.Duration.String(),
		})
	}
	return nil
}

// Status loguea aplicadas y pendientes.
func (r *Runner) Status(ctx context.Context) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	for _, s := range statuses {
		r.log.Info("migration", map[string]any{
			"version": s.Source.Version,
			"state":   string(s.State),
		})
	}
	return nil
}

// Down revierte la última migración, o hasta target si target > 0.
func (r *Runner) Down(ctx context.Context, target int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if target > 0 {
		if _, err := r.provider.DownTo(ctx, target); err != nil {
			return fmt.Errorf("rollback to version %d: %w", target, err)
		}
		return nil
	}
	if _, err := r.provider.Down(ctx); err != nil {
		return fmt.Errorf("rollback latest migration: %w", err)
	}
	return nil
}
