package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vaakya-labs/anuvadam/internal/config"
	"github.com/vaakya-labs/anuvadam/internal/engine"
	"github.com/vaakya-labs/anuvadam/internal/glossary"
	"github.com/vaakya-labs/anuvadam/internal/httpapi"
	"github.com/vaakya-labs/anuvadam/internal/jobs"
	"github.com/vaakya-labs/anuvadam/internal/persistence"
	"github.com/vaakya-labs/anuvadam/pkg/log"
)

func main() {
	// A missing .env file is fine; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	log.InitLogger(log.ParseLevel(cfg.Server.LogLevel))
	if cfg.Server.LogFile != "" {
		if err := log.InitFileLogger(cfg.Server.LogFile, log.ParseLevel(cfg.Server.LogLevel)); err != nil {
			log.Fatal("Failed to open log file: %v", err)
		}
	}

	table, err := glossary.Load(cfg.Glossary.Path)
	if err != nil {
		log.Fatal("Failed to load glossary: %v", err)
	}
	log.Info("Glossary loaded from %s, %d entries", cfg.Glossary.Path, table.Len())

	registry := buildRegistry(cfg)
	if registry.Count() == 0 {
		log.Warn("No engines configured, jobs will complete with no output")
	}

	store, err := persistence.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		log.Fatal("Failed to open database: %v", err)
	}
	defer store.Close()

	jobStore := jobs.NewStore()
	orchestrator := jobs.NewOrchestrator(registry, jobStore, table, store)

	cleaner, err := jobs.NewCleaner(jobStore, cfg.Jobs.CleanupCron, cfg.Jobs.TTL)
	if err != nil {
		log.Fatal("Failed to schedule job cleanup: %v", err)
	}
	cleaner.Start()
	defer cleaner.Stop()

	server := httpapi.NewServer(
		orchestrator,
		registry,
		httpapi.WithFeedbackStore(store),
		httpapi.WithLanguagePair(cfg.SourceLanguage, cfg.TargetLanguage),
	)

	go func() {
		log.Info("Listening on %s", cfg.Addr())
		if err := server.ListenAndServe(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Shutdown error: %v", err)
	}
}

// buildRegistry registers every engine whose credentials are present.
// Unconfigured engines are left out instead of failing startup.
func buildRegistry(cfg *config.Config) *engine.Registry {
	registry := engine.NewRegistry()

	if cfg.Engines.GoogleCredentialsFile != "" || cfg.Engines.GoogleAPIKey != "" {
		direct, err := engine.NewDirectEngine(context.Background(), engine.DirectConfig{
			Name:            "google-standard",
			CredentialsFile: cfg.Engines.GoogleCredentialsFile,
			APIKey:          cfg.Engines.GoogleAPIKey,
			Source:          cfg.SourceLanguage,
			Target:          cfg.TargetLanguage,
			BatchSize:       cfg.Engines.BatchSize,
		})
		if err != nil {
			log.Error("google-standard engine unavailable: %v", err)
		} else if regErr := registry.Register(direct); regErr != nil {
			log.Error("Failed to register google-standard: %v", regErr)
		}
	}

	if cfg.Engines.GeminiAPIKey != "" {
		chunked := engine.NewChunkedRemoteEngine(engine.ChunkedConfig{
			Name:      "gemini-flash",
			APIKey:    cfg.Engines.GeminiAPIKey,
			APIURL:    cfg.Engines.GeminiAPIURL,
			Source:    cfg.SourceLanguage,
			Target:    cfg.TargetLanguage,
			BatchSize: cfg.Engines.BatchSize,
		})
		if err := registry.Register(chunked); err != nil {
			log.Error("Failed to register gemini-flash: %v", err)
		}
	}

	if cfg.Engines.IndicTransBaseURL != "" {
		local := engine.NewLocalModelEngine(engine.LocalConfig{
			Name:    "indictrans2",
			BaseURL: cfg.Engines.IndicTransBaseURL,
			Source:  cfg.SourceLanguage,
			Target:  cfg.TargetLanguage,
		})
		if err := registry.Register(local); err != nil {
			log.Error("Failed to register indictrans2: %v", err)
		}
	}

	log.Info("Engines registered: %v", registry.Names())
	return registry
}
