package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
	"github.com/hackgods/clinicflow-scheduling/internal/config"
	"github.com/hackgods/clinicflow-scheduling/internal/db"
	"github.com/hackgods/clinicflow-scheduling/internal/logging"
	redisclient "github.com/hackgods/clinicflow-scheduling/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logging.Init("clinicflow-completion-worker", cfg.Env, cfg.LogLevel)
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Int("batch", cfg.WorkerBatch).
		Msg("completion worker starting")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Completion never allocates, so the day lock is not needed here.
	svc := appointment.NewService(appointment.NewPgRepository(pgPool), redisclient.NoopLocker{}, nil, cfg, log)

	runOnce(rootCtx, svc, cfg.WorkerBatch, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping completion worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.WorkerBatch, log)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, batch int, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CompleteElapsed(runCtx, start.UTC(), batch)
	if err != nil {
		log.Error().Err(err).Int("completed", n).Msg("completion run error")
		return
	}
	log.Info().Int("completed", n).Dur("took", time.Since(start)).Msg("completion run complete")
}
