package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	cardapi "github.com/profilecard-dev/profilecard/api/echo"
	"github.com/profilecard-dev/profilecard/card"
	"github.com/profilecard-dev/profilecard/config"
	"github.com/profilecard-dev/profilecard/discord"
	"github.com/profilecard-dev/profilecard/domain"
	"github.com/profilecard-dev/profilecard/mongodb"
	"github.com/profilecard-dev/profilecard/redis"
	"github.com/profilecard-dev/profilecard/tokens"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg)
	zlog.Info().
		Str("http_port", cfg.HTTPPort).
		Str("store_backend", cfg.StoreBackend).
		Msg("Starting profilecard server")

	ctx := context.Background()

	repo, err := buildStore(ctx, cfg)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize credential store")
	}

	provider, err := discord.NewProvider(discord.Config{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordClientSecret,
		RedirectURI:  cfg.DiscordRedirectURI,
	})
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize Discord provider")
	}

	manager := tokens.NewManager(repo, provider)

	fetcher := card.NewCachingFetcher(
		card.NewHTTPFetcher(15*time.Second),
		time.Duration(cfg.IconCacheTTLMin)*time.Minute,
	)
	renderer, err := card.NewRenderer(fetcher)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize card renderer")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	cardapi.NewCardAPI(provider, manager, renderer, repo).RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	zlog.Info().Msgf("Listening on http://localhost:%s", cfg.HTTPPort)
	zlog.Info().Msgf("Authorize at http://localhost:%s/auth", cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}

func initLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func buildStore(ctx context.Context, cfg *config.ServerConfig) (domain.CredentialRepository, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return redis.NewCredentialStore(client, cfg.RedisPrefix), nil
	default:
		client, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		repo, err := mongodb.NewCredentialRepository(ctx, client.Database(cfg.MongoDBName))
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}
