// Package main is the entry point for the productivity tracker Telegram bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/yelinaung/mdfocus-bot/internal/bot"
	"gitlab.com/yelinaung/mdfocus-bot/internal/config"
	"gitlab.com/yelinaung/mdfocus-bot/internal/database"
	"gitlab.com/yelinaung/mdfocus-bot/internal/gemini"
	"gitlab.com/yelinaung/mdfocus-bot/internal/logger"
	"gitlab.com/yelinaung/mdfocus-bot/internal/repository"
	"gitlab.com/yelinaung/mdfocus-bot/internal/session"
	"gitlab.com/yelinaung/mdfocus-bot/internal/storage"
	"gitlab.com/yelinaung/mdfocus-bot/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("mdfocus-bot %s (commit: %s, built: %s)\n", version, commit, date)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.SetLevel(cfg.LogLevel)
	logger.SetFormat(cfg.LogFormat)
	logger.InitHashSalt()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter:     cfg.OTelExporter,
		OTLPProtocol: cfg.OTLPProtocol,
		ServiceName:  "mdfocus-bot",
		Version:      version,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to set up telemetry")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}()

	deps := bot.Deps{}
	var backend storage.Backend

	if cfg.UsesSQLite() {
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to open SQLite database")
		}
		backend = repository.NewSQLiteKV(db)
		logger.Log.Info().Msg("Using SQLite storage, cross-session sync disabled")
	} else {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pool.Close()

		if err := database.RunMigrations(ctx, pool); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		backend = repository.NewPostgresKV(pool, pool)
		deps.Users = repository.NewUserRepository(pool)
	}

	logger.Log.Info().Msg("Database initialized successfully")

	sessions := session.NewManager(storage.New(backend), cfg.Location())
	deps.Sessions = sessions
	go sessions.Run(ctx)

	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Log.Error().Err(err).Msg("Failed to create Gemini client, voice and photo input disabled")
		} else {
			deps.Media = client
		}
	}

	telegramBot, err := bot.New(cfg, deps)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create bot")
	}

	telegramBot.Start(ctx)
	logger.Log.Info().Msg("Shutting down...")
}
