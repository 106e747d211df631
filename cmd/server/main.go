package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/opencorp/clientsync/internal/auth"
	"github.com/opencorp/clientsync/internal/config"
	"github.com/opencorp/clientsync/internal/db"
	"github.com/opencorp/clientsync/internal/feed"
	"github.com/opencorp/clientsync/internal/lock"
	"github.com/opencorp/clientsync/internal/middleware"
	"github.com/opencorp/clientsync/internal/repository"
	"github.com/opencorp/clientsync/internal/scheduler"
	"github.com/opencorp/clientsync/internal/syncer"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Env == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	clientRepo := repository.NewClientRepository(conn)
	stateRepo := repository.NewSyncStateRepository(conn)
	runRepo := repository.NewSyncRunRepository(conn)
	auditRepo := repository.NewAuditLogRepository(conn)

	service := syncer.NewService(
		cfg.Feeds,
		feed.NewHTTPSource(),
		clientRepo,
		stateRepo,
		runRepo,
		lock.NewAdvisoryLocker(conn.Pool),
		logger,
		cfg.Env,
	)

	handler := syncer.NewHTTPHandler(service, auditRepo, syncer.HandlerConfig{
		Secret:         cfg.Sync.Secret,
		Sessions:       auth.HeaderSessionValidator{Header: cfg.Sync.SessionHeader},
		PreviewLimiter: middleware.NewWindowLimiter(cfg.Sync.RateLimitWindow),
		TriggerLimiter: middleware.NewWindowLimiter(cfg.Sync.RateLimitWindow),
	}, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      middleware.Logging(logger)(corsHandler.Handler(handler)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	var sched *scheduler.Scheduler
	if cfg.Sync.Schedule != "" {
		sched = scheduler.New(service, logger)
		for key := range cfg.Feeds {
			if err := sched.Add(key, cfg.Sync.Schedule); err != nil {
				logger.Fatal().Err(err).Str("feed", key).Msg("failed to schedule sync")
			}
		}
		sched.Start()
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("starting sync server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
