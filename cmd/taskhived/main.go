package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/calmops/taskhive/cache"
	"github.com/calmops/taskhive/config"
	"github.com/calmops/taskhive/httpapi"
	"github.com/calmops/taskhive/password"
	"github.com/calmops/taskhive/session"
	"github.com/calmops/taskhive/storage"
	"github.com/calmops/taskhive/token"
	"github.com/calmops/taskhive/tracker"
	"github.com/calmops/taskhive/transport"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("taskhived exited")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := storage.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}
	log.Info().Msg("schema migrations applied")

	pool, err := storage.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Cache failures must degrade fast, so the Redis timeouts stay in the
	// low hundreds of milliseconds.
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DialTimeout:  250 * time.Millisecond,
		ReadTimeout:  250 * time.Millisecond,
		WriteTimeout: 250 * time.Millisecond,
	})
	defer rdb.Close()

	registry := session.NewRegistry(rdb, cfg.RedisKeyPrefix, cfg.SessionTTL())
	if _, err := registry.Ping(ctx); err != nil {
		return err
	}

	codec, err := token.NewCodec(token.Config{
		SigningMethod: token.SigningMethod(cfg.TokenSigningMethod),
		PrivateKey:    []byte(cfg.TokenSecret),
		PublicKey:     []byte(cfg.TokenPublicKey),
		Issuer:        cfg.TokenIssuer,
	})
	if err != nil {
		return err
	}

	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		return err
	}

	svc := tracker.New(
		storage.NewUserStore(pool),
		storage.NewProjectStore(pool),
		storage.NewTaskStore(pool),
		registry,
		codec,
		hasher,
		cache.New(rdb, log.With().Str("component", "cache").Logger(), 0),
		tracker.Config{
			AccessTTL: cfg.AccessTokenTTL(),
			ResetTTL:  cfg.ResetTokenTTL(),
			CacheTTL:  cfg.CacheEntryTTL(),
		},
		log.With().Str("component", "tracker").Logger(),
	)

	server := httpapi.NewServer(svc, transport.New(cfg.SessionTTL()), log.With().Str("component", "http").Logger())
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
