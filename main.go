package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/acquisitions-api/internal/api"
	"github.com/isdelr/acquisitions-api/internal/api/handlers"
	"github.com/isdelr/acquisitions-api/internal/auth"
	"github.com/isdelr/acquisitions-api/internal/config"
	"github.com/isdelr/acquisitions-api/internal/database"
	"github.com/isdelr/acquisitions-api/internal/logger"
	"github.com/isdelr/acquisitions-api/internal/monitoring"
	"github.com/isdelr/acquisitions-api/internal/services"
	"github.com/isdelr/acquisitions-api/internal/throttle"
	"github.com/isdelr/acquisitions-api/internal/verdict"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	started := time.Now()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", true)
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	// Set up database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	scheduler := monitoring.NewScheduler()

	// Rate limit counters live in Redis when configured so replicas share them.
	var counter verdict.Counter
	if cfg.RedisURL != "" {
		rdb, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		counter = verdict.NewRedisCounter(rdb)
		log.Info().Msg("Using Redis rate limit counters")
	} else {
		counter = verdict.NewMemoryCounter()
		log.Info().Msg("Using in-memory rate limit counters")
	}

	var metrics *monitoring.Metrics
	if cfg.MetricsEnabled {
		metrics = monitoring.NewMetrics()
	}

	if mem, ok := counter.(*verdict.MemoryCounter); ok {
		err := scheduler.AddJob("@every 1m", "rate-limit-sweep", 10*time.Second, func(ctx context.Context) error {
			removed := mem.Sweep(time.Now())
			if metrics != nil {
				metrics.SetRateLimitBuckets(mem.Len())
			}
			log.Debug().Int("removed", removed).Msg("Swept idle rate limit buckets")
			return nil
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule rate limit sweep")
		}
	}

	sampler, err := monitoring.NewProcessSampler()
	if err != nil {
		log.Warn().Err(err).Msg("Process stats unavailable")
	} else {
		err = scheduler.AddJob("@every 15s", "process-stats", 5*time.Second, func(ctx context.Context) error {
			stats, err := sampler.Sample(ctx)
			if err != nil {
				return err
			}
			if metrics != nil {
				metrics.SetProcessStats(stats)
			}
			return nil
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule process sampling")
		}
	}

	engine := verdict.NewEngine(counter,
		verdict.WithBotDetector(verdict.NewBotDetector(cfg.BotBlockedAgents, cfg.BotAllowedAgents, cfg.BlockEmptyAgent)),
		verdict.WithShield(verdict.NewShield()),
		verdict.WithMode(verdict.Mode(cfg.VerdictMode)),
	)

	gateOpts := throttle.Options{Timeout: cfg.VerdictTimeout}
	if metrics != nil {
		gateOpts.Recorder = metrics
	}
	policies := throttle.NewPolicies(cfg.RateLimitWindow, cfg.RateLimitGuest, cfg.RateLimitUser, cfg.RateLimitAdmin)
	gate, err := throttle.NewGate(engine, policies, gateOpts)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid throttle policies")
	}

	// Set up services
	userService := services.NewUserService(db.DB)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)

	var stats handlers.ProcessStatsSource
	if sampler != nil {
		stats = sampler
	}

	// Set up router
	router := api.NewRouter(api.Options{
		CORSOrigins:       cfg.CORSOrigins,
		TrustProxy:        cfg.TrustProxy,
		SecureCookie:      cfg.IsProduction(),
		AllowRoleOnSignup: cfg.AllowRoleOnSignup,
	}, api.Deps{
		Users:   userService,
		Tokens:  tokens,
		Gate:    gate,
		Health:  handlers.NewHealthHandler(started, db, stats),
		Metrics: metrics,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	scheduler.Start()

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	scheduler.Stop(ctx)

	log.Info().Msg("Server exiting")
}

func newRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}
