package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinicflow-scheduling/internal/api"
	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
	"github.com/hackgods/clinicflow-scheduling/internal/config"
	"github.com/hackgods/clinicflow-scheduling/internal/db"
	"github.com/hackgods/clinicflow-scheduling/internal/identity"
	"github.com/hackgods/clinicflow-scheduling/internal/logging"
	"github.com/hackgods/clinicflow-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinicflow-scheduling/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.Init("api-server", "dev", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.Init("api-server", cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

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

	var (
		rdb    *redis.Client
		locker redisclient.Locker = redisclient.NoopLocker{}
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, allocation lock disabled")
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Error().Err(err).Msg("error closing redis")
				}
			}()
			locker = redisclient.NewRedisDayLocker(rdb, cfg.LockTTL, cfg.LockWait)
			log.Info().Msg("connected to Redis")
		}
	}

	sink, err := newSink(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("notification sink error")
	}
	dispatcher := notify.NewDispatcher(sink, cfg.NotifyWorkers, cfg.NotifyQueueSize, cfg.NotifyTimeout, log.With().Str("component", "notify").Logger())

	repo := appointment.NewPgRepository(pgPool)
	svc := appointment.NewService(repo, locker, dispatcher, cfg, log.With().Str("component", "booking").Logger())

	var redisPing api.Pinger
	if rdb != nil {
		redisPing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	health := api.NewHealthHandler(pgPool.Ping, redisPing, cfg.Env, version)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service:     svc,
			Resolver:    newResolver(cfg),
			Health:      health,
			Log:         log,
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("notification dispatcher shutdown error")
	}
}

func newResolver(cfg config.Config) identity.Resolver {
	if cfg.JWTSecret != "" {
		return identity.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer)
	}
	return identity.NewHTTPResolver(cfg.IdentityBaseURL, 3*time.Second)
}

func newSink(cfg config.Config, log zerolog.Logger) (notify.Sink, error) {
	switch cfg.NotifyTransport {
	case config.NotifyKafka:
		return notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaNotifyTopic)
	case config.NotifyHTTP:
		if cfg.NotificationsBaseURL != "" {
			return notify.NewHTTPSink(cfg.NotificationsBaseURL, cfg.NotifyTimeout), nil
		}
		log.Warn().Msg("NOTIFICATIONS_BASE_URL not set; booking confirmations will be skipped")
	}
	return notify.LogSink{Log: log}, nil
}
