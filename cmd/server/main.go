package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"triage-sim/internal/catalog"
	"triage-sim/internal/config"
	"triage-sim/internal/core"
	"triage-sim/internal/db"
	httpserver "triage-sim/internal/http"
	"triage-sim/internal/llm"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	cat, err := catalog.Load(cfg.CasesFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("load case catalog")
	}

	llmClient := llm.NewOpenAIClient(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.ChatModel,
		cfg.OpenAI.TranscribeModel,
		cfg.OpenAI.SpeechModel,
		cfg.OpenAI.Voice,
	)

	store := core.NewStore(cfg.Session.TTL, logger)
	store.StartSweeper(cfg.Session.SweepInterval)
	defer store.Stop()

	// The turn archive is optional; without a DSN sessions live in memory only.
	var (
		repo     *db.Repository
		archive  core.Archiver
		notifier core.TurnNotifier
		stream   httpserver.TurnStream
	)
	if cfg.Archive.DatabaseURL != "" {
		dbConn, err := sql.Open("postgres", cfg.Archive.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("open archive database")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := dbConn.PingContext(ctx); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("ping archive database")
		}
		cancel()
		if err := db.Migrate(context.Background(), dbConn); err != nil {
			logger.Fatal().Err(err).Msg("migrate archive database")
		}
		repo = db.NewRepository(dbConn)
		archive = repo
		n := db.NewNotifier(dbConn, cfg.Archive.DatabaseURL, cfg.Archive.NotifyChannel)
		notifier = n
		stream = n
		logger.Info().Msg("turn archive enabled")
	}

	engine := core.NewEngine(cat, llmClient, store, archive, notifier, logger, cfg.Session.TurnTimeout)
	srv := httpserver.NewServer(engine, cat, llmClient, repo, stream, logger)

	addr := ":" + cfg.Server.Port
	logger.Info().Str("addr", addr).Int("cases", len(cat.List())).Msg("listening")
	if err := http.ListenAndServe(addr, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
