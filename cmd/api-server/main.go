package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/inkdex/inkdex/cmd/api-server/routes"
	"github.com/inkdex/inkdex/internal/archive"
	"github.com/inkdex/inkdex/internal/auth"
	"github.com/inkdex/inkdex/internal/common"
	"github.com/inkdex/inkdex/internal/images"
	"github.com/inkdex/inkdex/internal/library"
	"github.com/inkdex/inkdex/internal/storage"
	"github.com/inkdex/inkdex/internal/tasks"
	"github.com/inkdex/inkdex/internal/upload"
	"github.com/inkdex/inkdex/pkg/config"
)

func main() {
	cfg := config.LoadFromEnv()
	setupLogging(cfg.Logging)

	log.Info().Msg("starting inkdex API server")

	db, err := common.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// The server stays up without redis; token caching and registration
	// rate limiting just turn off
	cache, err := common.NewCache(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, continuing without cache")
		cache = nil
	} else {
		defer cache.Close()
	}

	blobs, err := storage.NewLocalStorage(cfg.Media.MediaPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize media storage")
	}
	media := storage.NewMediaStore(blobs, cfg.Media.TempPath)

	runner := tasks.NewRunner(cfg.Media.TaskWorkers, 64)

	normalizer := images.NewNormalizer(media)
	services := &routes.Services{
		Auth:    auth.NewService(db, cache, media, normalizer, &cfg.Auth),
		Library: library.NewService(db, media, normalizer, runner, cfg.Media.MaxPageLimit),
		Upload:  upload.NewService(db, media, normalizer, archive.NewExtractor(), runner),
	}

	router := routes.SetupRouter(cfg, services)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	// Drain scheduled file work before exiting
	runner.Close()
	log.Info().Msg("shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
