// Command regcap is the RegCap CLI entry point. It wires the driven
// adapters (settings file, SQLite snapshot store, OpenAI embedding
// client, flat vector index) into the core services and hands them to
// the command-line adapter.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/regcap-labs/regcap/internal/adapters/driven/config/file"
	"github.com/regcap-labs/regcap/internal/adapters/driven/embedding/openai"
	"github.com/regcap-labs/regcap/internal/adapters/driven/storage/sqlite"
	"github.com/regcap-labs/regcap/internal/adapters/driven/vector/flat"
	"github.com/regcap-labs/regcap/internal/adapters/driving/cli"
	"github.com/regcap-labs/regcap/internal/chunker"
	"github.com/regcap-labs/regcap/internal/core/ports/driven"
	"github.com/regcap-labs/regcap/internal/core/services"
	"github.com/regcap-labs/regcap/internal/retry"
)

// Set at build time via ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; values there fill in the environment.
	_ = godotenv.Load()

	settingsStore, err := file.NewSettingsStore("")
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}
	settings, err := settingsStore.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		settings.Embedding.APIKey = key
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer store.Close()

	var embedder driven.EmbeddingService
	if settings.Embedding.IsConfigured() {
		embedder, err = openai.NewEmbeddingService(openai.Config{
			APIKey:    settings.Embedding.APIKey,
			BaseURL:   settings.Embedding.BaseURL,
			Model:     settings.Embedding.Model,
			Timeout:   settings.Embedding.Timeout,
			BatchSize: settings.Embedding.BatchSize,
			Policy: retry.Policy{
				MaxAttempts:     settings.Retry.MaxAttempts,
				InitialInterval: settings.Retry.InitialInterval,
				MaxInterval:     settings.Retry.MaxInterval,
				MaxElapsed:      settings.Retry.MaxElapsed,
			},
			// One limiter for the whole process: sessions share the
			// provider budget fairly.
			Limiter: rate.NewLimiter(rate.Limit(settings.RatePerSecond), 1),
		})
		if err != nil {
			return fmt.Errorf("configuring embedding provider: %w", err)
		}
		defer embedder.Close()
	}

	ch := chunker.New(
		chunker.WithSize(settings.Chunking.Size),
		chunker.WithOverlap(settings.Chunking.Overlap),
	)

	sessions := services.NewSessionService(ch, embedder, flat.Factory{}, store)
	retrieval := services.NewRetrievalService(sessions, embedder, settings.Retrieval)

	cli.SetServices(sessions, retrieval, settingsStore)
	cli.SetVersion(version)
	return cli.Execute()
}
