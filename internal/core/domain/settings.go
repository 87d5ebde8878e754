package domain

import (
	"fmt"
	"time"
)

// EmbeddingSettings configures the external embedding provider.
type EmbeddingSettings struct {
	// APIKey authenticates against the provider.
	APIKey string `toml:"api_key"`

	// BaseURL overrides the provider endpoint (for compatible APIs).
	BaseURL string `toml:"base_url"`

	// Model is the embedding model identifier.
	Model string `toml:"model"`

	// BatchSize is the maximum number of texts per provider call.
	BatchSize int `toml:"batch_size"`

	// Timeout bounds a single provider request.
	Timeout time.Duration `toml:"timeout"`
}

// IsConfigured returns true if the provider can be constructed.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.APIKey != ""
}

// RetrySettings configures the embedding client's retry budget.
type RetrySettings struct {
	// MaxAttempts is the total number of tries per provider call.
	MaxAttempts int `toml:"max_attempts"`

	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration `toml:"initial_interval"`

	// MaxInterval caps a single backoff delay.
	MaxInterval time.Duration `toml:"max_interval"`

	// MaxElapsed caps the total time spent retrying one call.
	MaxElapsed time.Duration `toml:"max_elapsed"`
}

// ChunkingSettings configures the text chunker.
type ChunkingSettings struct {
	// Size is the target chunk size in characters.
	Size int `toml:"size"`

	// Overlap is the number of characters shared between
	// consecutive chunks.
	Overlap int `toml:"overlap"`
}

// RetrievalSettings configures query-time retrieval.
type RetrievalSettings struct {
	// TopK is the default number of chunks retrieved per query.
	TopK int `toml:"top_k"`

	// MaxContextChars caps the assembled context size.
	MaxContextChars int `toml:"max_context_chars"`
}

// Settings is the full application configuration.
type Settings struct {
	// DataDir is where snapshots are stored. Empty means ~/.regcap/data.
	DataDir string `toml:"data_dir"`

	// RatePerSecond is the process-wide embedding request rate,
	// shared fairly across all sessions.
	RatePerSecond float64 `toml:"rate_per_second"`

	Embedding EmbeddingSettings `toml:"embedding"`
	Retry     RetrySettings     `toml:"retry"`
	Chunking  ChunkingSettings  `toml:"chunking"`
	Retrieval RetrievalSettings `toml:"retrieval"`
}

// DefaultSettings returns the default configuration.
func DefaultSettings() Settings {
	return Settings{
		RatePerSecond: 5,
		Embedding: EmbeddingSettings{
			Model:     "text-embedding-3-small",
			BatchSize: 64,
			Timeout:   60 * time.Second,
		},
		Retry: RetrySettings{
			MaxAttempts:     4,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     10 * time.Second,
			MaxElapsed:      2 * time.Minute,
		},
		Chunking: ChunkingSettings{
			Size:    1000,
			Overlap: 100,
		},
		Retrieval: RetrievalSettings{
			TopK:            5,
			MaxContextChars: 8000,
		},
	}
}

// Validate checks the settings for internal consistency.
func (s Settings) Validate() error {
	if s.Chunking.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidInput)
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.Size {
		return fmt.Errorf("%w: chunk overlap must be in [0, size)", ErrInvalidInput)
	}
	if s.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidInput)
	}
	if s.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("%w: retry max_attempts must be positive", ErrInvalidInput)
	}
	if s.RatePerSecond <= 0 {
		return fmt.Errorf("%w: rate_per_second must be positive", ErrInvalidInput)
	}
	return nil
}
