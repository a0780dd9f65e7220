package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Jobcall26/jobdial-server/internal/auth"
	"github.com/Jobcall26/jobdial-server/internal/config"
	"github.com/Jobcall26/jobdial-server/internal/presence"
	"github.com/Jobcall26/jobdial-server/internal/relay"
	"github.com/Jobcall26/jobdial-server/internal/store"
	"github.com/Jobcall26/jobdial-server/internal/store/sqlite"
	"github.com/Jobcall26/jobdial-server/internal/telephony"
	transporthttp "github.com/Jobcall26/jobdial-server/internal/transport/http"
)

// App wires together the relay core and its transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	cache           *redis.Client
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	var cache *redis.Client
	if cfg.RedisAddr != "" {
		cache = presence.NewCache(cfg.RedisAddr)
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("presence cache enabled")
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	// The registry is the only shared mutable state of the relay; it is
	// constructed here and handed to everything that needs it.
	registry := relay.NewRegistry()
	dispatcher := relay.NewDispatcher(registry, logger)
	presenceSvc := presence.New(st, cache, logger)
	telephonySvc := telephony.NewService(telephony.NewMock(), st, dispatcher, logger)

	server := transporthttp.NewServer(cfg, transporthttp.Deps{
		Auth:      authService,
		Store:     st,
		Presence:  presenceSvc,
		Registry:  registry,
		Dispatch:  dispatcher,
		Telephony: telephonySvc,
	}, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		cache:           cache,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the database and cache connections.
func (a *App) cleanup() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close presence cache")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
