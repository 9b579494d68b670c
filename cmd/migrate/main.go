package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"stray-match/internal/adapters/storage/postgres"
	"stray-match/internal/config"
	"stray-match/internal/platform/logger"
	"stray-match/internal/platform/migrations"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	_ = godotenv.Load()

	log := logger.New(logger.Options{Level: logger.Info, App: "migrate"})

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid config", map[string]any{"error": err})
		os.Exit(1)
	}
	if cfg.DB.DSN == "" {
		log.Error("db.dsn is required (STRAYS_DB__DSN)", nil)
		os.Exit(1)
	}

	db, err := postgres.Open(cfg.DB.DSN, postgres.DefaultPoolOptions())
	if err != nil {
		log.Error("failed to connect to database", map[string]any{"error": err})
		os.Exit(1)
	}
	defer db.Close()

	runner, err := migrations.New(db, log)
	if err != nil {
		log.Error("failed to configure migration runner", map[string]any{"error": err})
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *command {
	case "up":
		err = runner.Up(ctx)
	case "status":
		err = runner.Status(ctx)
	case "down":
		err = runner.Down(ctx, *target)
	default:
		log.Error("unsupported command", map[string]any{"command": *command})
		os.Exit(1)
	}
	if err != nil {
		log.Error("migration command failed", map[string]any{"command": *command, "error": err})
		os.Exit(1)
	}

	log.Info("migration command completed", map[string]any{"command": *command})
}
