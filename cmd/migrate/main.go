package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hackgods/clinicflow-scheduling/internal/config"
	"github.com/hackgods/clinicflow-scheduling/internal/db"
	"github.com/hackgods/clinicflow-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logging.Init("clinicflow-migrate", cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("schema up to date")
}
