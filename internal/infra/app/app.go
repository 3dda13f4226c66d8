package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/credential-authority/internal/core/port"
	"github.com/arklim/credential-authority/internal/infra/config"
	"github.com/arklim/credential-authority/internal/infra/database"
	kafkainfra "github.com/arklim/credential-authority/internal/infra/kafka"
	"github.com/arklim/credential-authority/internal/infra/logger"
	redisinfra "github.com/arklim/credential-authority/internal/infra/redis"
	"github.com/arklim/credential-authority/internal/infra/security"
	"github.com/arklim/credential-authority/internal/infra/telemetry"
	postgresrepo "github.com/arklim/credential-authority/internal/repository/postgres"
	redisrepo "github.com/arklim/credential-authority/internal/repository/redis"
	"github.com/arklim/credential-authority/internal/transport/http/middleware"
	"github.com/arklim/credential-authority/internal/transport/http/routes"
	"github.com/arklim/credential-authority/internal/usecase"
)

// Application bundles the HTTP engine with the resources it owns.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tracer *telemetry.TracerProvider
}

// New wires the full dependency graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	} else {
		log.Info("OTLP endpoint not configured, tracing disabled")
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	hasher, err := security.NewHasher(security.Argon2Config{
		Memory:        cfg.Argon2.Memory,
		Iterations:    cfg.Argon2.Iterations,
		Parallelism:   cfg.Argon2.Parallelism,
		SaltLength:    cfg.Argon2.SaltLength,
		KeyLength:     cfg.Argon2.KeyLength,
		MaxConcurrent: cfg.Argon2.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("init hasher: %w", err)
	}

	policy := security.NewPolicyEngine(security.PolicyConfig{
		AdminMinLength:       cfg.Policy.AdminMinLength,
		CustomerMinLength:    cfg.Policy.CustomerMinLength,
		ConstrainedMinLength: cfg.Policy.ConstrainedMinLength,
	})

	tokens, err := security.NewTokenService([]byte(cfg.Token.Secret), cfg.Token.Issuer, cfg.Token.TTL)
	if err != nil {
		return nil, fmt.Errorf("init token service: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	accounts := postgresrepo.NewAccountRepository(pool)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewAttemptStore(redisClient.Client(), redisrepo.WindowConfig{
		KeyPrefix: "authority:rate-limit",
		TTL:       rateLimitWindow * 2,
	})

	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	authority, err := usecase.NewAuthority(cfg, accounts, hasher, policy, tokens, tokens, eventPublisher, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("init authority: %w", err)
	}
	authority = authority.WithMetrics(metrics)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Authority:   authority,
		Database:    pool,
		Cache:       redisClient,
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down cleanly.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			_ = a.tracer.Shutdown(context.Background())
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting credential authority API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
