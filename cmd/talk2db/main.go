// talk2db is a terminal client for the talk2db API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/saadkhi/Side/internal/config"
	"github.com/saadkhi/Side/internal/gateway"
	"github.com/saadkhi/Side/internal/redis"
	"github.com/saadkhi/Side/internal/session"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	setLogLevel(cfg.LogLevel)

	backend, closeBackend, err := sessionBackend(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "session:", err)
		os.Exit(1)
	}

	store := session.NewStore(backend)
	gw := gateway.New(cfg.APIBaseURL, store,
		gateway.WithTimeout(cfg.RequestTimeout()),
		gateway.WithSessionExpiredHook(func() {
			log.Info().Msg("session expired, stored credentials cleared")
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(store, gw, cfg.FailurePolicy, os.Stdin, os.Stdout, os.Stderr)
	code := a.run(ctx, os.Args[1:])
	closeBackend()
	os.Exit(code)
}

func sessionBackend(cfg *config.Config) (session.Backend, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionBackendMemory:
		return session.NewMemoryBackend(), func() {}, nil
	case config.SessionBackendRedis:
		client, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		key := redis.SessionKey(config.SessionRedisKey, cfg.APIBaseURL)
		return session.NewRedisBackend(client.Client, key), func() { client.Close() }, nil
	default:
		path, err := cfg.SessionPath()
		if err != nil {
			return nil, nil, err
		}
		return session.NewFileBackend(path), func() {}, nil
	}
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
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}
