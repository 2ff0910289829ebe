package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load error", zap.Error(err))
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		zap.NewExample().Fatal("logger init error", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("api-server stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	log.Info("api-server starting up", zap.String("env", cfg.Env), zap.String("http_port", cfg.HTTPPort))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := migrateUp(cfg.PostgresDSN); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.WithMaxConns(cfg.PostgresMaxConns))
	cancelPg()
	if err != nil {
		return err
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	// Redis only narrows contention and caches schedules; run without it if
	// it is unreachable at startup.
	var (
		rdb    *redis.Client
		locker redisclient.Locker
	)
	rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.ClientOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Warn("redis unavailable, booking without distributed lock or schedule cache", zap.Error(err))
		rdb = nil
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("error closing redis", zap.Error(err))
			}
		}()
		locker = redisclient.NewRedisDayLocker(rdb, cfg.LockTTL, cfg.LockWait)
		log.Info("connected to Redis")
	}

	var store schedule.Store = schedule.NewPgStore(pgPool)
	if rdb != nil && cfg.ScheduleCacheTTL > 0 {
		store = schedule.NewCachedStore(store, rdb, cfg.ScheduleCacheTTL, log.Named("schedule-cache"))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	repo := appointment.NewPgRepository(pgPool)
	svc := appointment.NewService(repo, store, locker, bookingMetrics, log.Named("appointment"))

	router := api.NewRouter(api.RouterConfig{
		Service:  svc,
		Postgres: pgPool,
		Redis:    rdb,
		Gatherer: reg,
		Logger:   log.Named("http"),
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-rootCtx.Done():
	}

	log.Info("shutting down api-server", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("api-server stopped")
	return nil
}

func migrateUp(dsn string) error {
	m, err := db.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}
