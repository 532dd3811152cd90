// Package app assembles the service: configuration, infrastructure clients,
// repositories, services, and the HTTP server lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/core/port"
	"github.com/mkravts/commerce-platform-auth/internal/infra/config"
	"github.com/mkravts/commerce-platform-auth/internal/infra/database"
	kafkainfra "github.com/mkravts/commerce-platform-auth/internal/infra/kafka"
	"github.com/mkravts/commerce-platform-auth/internal/infra/logger"
	"github.com/mkravts/commerce-platform-auth/internal/infra/mailer"
	redisinfra "github.com/mkravts/commerce-platform-auth/internal/infra/redis"
	"github.com/mkravts/commerce-platform-auth/internal/infra/security"
	postgresrepo "github.com/mkravts/commerce-platform-auth/internal/repository/postgres"
	redisrepo "github.com/mkravts/commerce-platform-auth/internal/repository/redis"
	"github.com/mkravts/commerce-platform-auth/internal/transport/http/middleware"
	"github.com/mkravts/commerce-platform-auth/internal/transport/http/routes"
	"github.com/mkravts/commerce-platform-auth/internal/usecase"
)

// Application holds the assembled service.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
}

// New wires the full dependency graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	if err := security.ConfigureArgon2(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	}); err != nil {
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	signer, err := security.NewTokenSigner(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("init token signer: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	challengeStore := redisrepo.NewMfaChallengeStore(redisClient.Client(), cfg.Redis.ChallengePrefix)

	var auditPublisher port.AuditPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			auditPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			auditPublisher = kafkainfra.NewAuditPublisher(producer, cfg.App, log)
			log.Info("kafka audit publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		auditPublisher = kafkainfra.NewStubPublisher(log)
	}

	notifier := mailer.NewLogMailer(log)

	securityConfigService := usecase.NewSecurityConfigService(repos.SecurityConfig, auditPublisher, log)
	sessionService := usecase.NewSessionService(repos.Sessions, signer, securityConfigService, cfg.Sessions, auditPublisher, log)
	credentialService := usecase.NewCredentialService(repos.Users, repos.Credentials, sessionService, security.DefaultPasswordValidator(), notifier, auditPublisher, log)
	lockoutService := usecase.NewLockoutService(repos.Users, repos.FailedAttempts, securityConfigService, auditPublisher, log)
	mfaService := usecase.NewMfaService(challengeStore, notifier, securityConfigService, auditPublisher, log)
	authService := usecase.NewAuthService(repos.Users, credentialService, lockoutService, sessionService, mfaService, auditPublisher, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Namespace: "auth"})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:  cfg,
		Logger:  log,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
		Services: routes.ServiceSet{
			Auth:           authService,
			Sessions:       sessionService,
			Credentials:    credentialService,
			Lockout:        lockoutService,
			SecurityConfig: securityConfigService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails.
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
		if a.producer != nil {
			_ = a.producer.Close()
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

	a.logger.Info("starting auth API",
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
