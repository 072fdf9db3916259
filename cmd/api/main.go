package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/memberhub/internal/auth"
	"github.com/geocoder89/memberhub/internal/config"
	"github.com/geocoder89/memberhub/internal/db"
	httpx "github.com/geocoder89/memberhub/internal/http"
	"github.com/geocoder89/memberhub/internal/notifications"
	"github.com/geocoder89/memberhub/internal/observability"
	"github.com/geocoder89/memberhub/internal/repo/memory"
	"github.com/geocoder89/memberhub/internal/repo/postgres"
	"github.com/geocoder89/memberhub/internal/security"
	"github.com/geocoder89/memberhub/internal/session"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		Enabled:     cfg.OTelEnabled,
		ServiceName: "memberhub-api",
		Env:         cfg.Env,
		Endpoint:    cfg.OTelEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		tctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(tctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	hasher := security.NewHasher(cfg.BcryptCost)

	// user directory

	var (
		dir  auth.Directory
		pool *pgxpool.Pool
		ping func(ctx context.Context) error
	)

	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory user directory; data is lost on restart")
		dir = memory.NewUsersRepo()
	case "postgres":
		if cfg.AutoMigrate {
			if err := db.Migrate(cfg.DBURL); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied")
		}

		pool, err = db.NewPool(cfg.DBURL, 10)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()

		dir = postgres.NewUsersRepo(pool, prom)
		ping = pool.Ping
	default:
		return fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	// session store

	var sessions session.Store
	switch cfg.SessionStore {
	case "memory":
		sessions = session.NewMemoryStore(cfg.SessionTTL())
	case "redis":
		rs := session.NewRedisStore(session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rs.Close() }()

		pctx, cancel := config.WithTimeout(3 * time.Second)
		err := rs.Ping(pctx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		sessions = rs
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore)
	}

	// notifications

	sender, err := buildSender(cfg, log, pool, prom)
	if err != nil {
		return err
	}

	svc := auth.NewService(auth.ServiceDeps{
		Directory: dir,
		Hasher:    hasher,
		Tokens:    auth.NewTokenManager(cfg.SessionSecret, cfg.SessionTTL()),
		Sessions:  sessions,
		Log:       log,
		Prom:      prom,
	})

	resets := auth.NewResetManager(auth.ResetDeps{
		Directory: dir,
		Hasher:    hasher,
		Sender:    sender,
		Log:       log,
		Prom:      prom,
		TTL:       cfg.ResetTokenTTL(),
	})

	sctx, cancel := config.WithTimeout(5 * time.Second)
	created, err := db.EnsureSeedMember(sctx, dir, hasher, cfg.SeedEmail, cfg.SeedPassword, cfg.SeedName)
	cancel()
	if err != nil {
		return fmt.Errorf("seed member: %w", err)
	}
	if created {
		log.Info("seed member created")
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Cfg:      cfg,
		Log:      log,
		Auth:     svc,
		Reset:    resets,
		Prom:     prom,
		Gatherer: reg,
		Ping:     ping,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store, "sessions", cfg.SessionStore)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")
	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}

	return nil
}

// buildSender picks the email provider and, with NOTIFY_DELIVERY=queue,
// routes mail through the jobs table for the worker to deliver.
func buildSender(cfg config.Config, log *slog.Logger, pool *pgxpool.Pool, prom *observability.Prom) (notifications.Sender, error) {
	if cfg.NotifyDelivery == "queue" {
		if pool == nil {
			log.Warn("NOTIFY_DELIVERY=queue needs STORE=postgres; sending inline")
		} else {
			return notifications.NewQueueSender(postgres.NewJobsRepo(pool, prom), cfg.WorkerMaxAttempts), nil
		}
	}

	sender, err := notifications.NewProvider(cfg.Notifier, notifications.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.MailFromAddress,
		FromName:  cfg.MailFromName,
	}, log, cfg.Env == "dev")
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	return sender, nil
}
