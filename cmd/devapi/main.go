package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/saadkhi/Side/internal/config"
	"github.com/saadkhi/Side/internal/database"
	"github.com/saadkhi/Side/internal/handler"
	"github.com/saadkhi/Side/internal/jobs"
	"github.com/saadkhi/Side/internal/middleware"
	"github.com/saadkhi/Side/internal/redis"
	"github.com/saadkhi/Side/internal/repository"
	"github.com/saadkhi/Side/internal/service"
	"github.com/saadkhi/Side/internal/token"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("APP_ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	checks := map[string]handler.Pinger{}

	repos := repository.NewMemory()
	if cfg.DatabaseURL != "" {
		if err := database.Migrate(cfg.DatabaseURL, database.MigrateUp); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}

		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		if err := db.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		cancel()
		log.Info().Msg("database connected")

		repos = repository.NewPostgres(db.DB)
		checks["database"] = db
	} else {
		log.Warn().Msg("DATABASE_URL not set: using in-memory storage")
	}

	var limiter middleware.Limiter = middleware.NewRateLimiter()
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		repos.RevokedTokens = repository.NewRedisRevokedTokenRepository(redisClient.Client)
		limiter = middleware.NewRedisRateLimiter(redisClient.Client)
		checks["redis"] = redisClient
	}

	var responder service.Responder = service.FallbackResponder{}
	if cfg.ModelURL != "" {
		modelClient, err := service.NewModelClient(cfg.ModelURL, cfg.ModelToken, cfg.ModelTimeout())
		if err != nil {
			log.Fatal().Err(err).Msg("invalid MODEL_URL")
		}
		responder = modelClient
	}

	issuer := token.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	accountService := service.NewAccountService(repos.Users, repos.RevokedTokens, issuer, cfg.RotateRefreshTokens)
	chatService := service.NewChatService(repos.Conversations, repos.Messages, responder)

	r := handler.NewRouter(handler.Deps{
		Accounts:      accountService,
		Chat:          chatService,
		Limiter:       limiter,
		ChatRateLimit: cfg.ChatRateLimitPerMin,
		Checks:        checks,
		IsProduction:  isProduction,
	})

	cleanupJob := jobs.NewCleanupJob(repos.RevokedTokens, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
