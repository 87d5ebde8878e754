// Package openai provides an embedding service adapter using the
// OpenAI embeddings API.
//
// Provider failures are classified as transient (rate limiting,
// timeouts, 5xx) or fatal (auth, quota, malformed request/response).
// Transient failures are retried through the injected retry policy;
// a process-wide rate limiter is shared across all sessions so one
// session's backoff cannot starve the others.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/core/ports/driven"
	"github.com/regcap-labs/regcap/internal/logger"
	"github.com/regcap-labs/regcap/internal/retry"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "text-embedding-3-small"
	DefaultTimeout   = 60 * time.Second
	DefaultBatchSize = 64
)

// Model dimensions for OpenAI embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds configuration for the OpenAI embedding service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// BatchSize is the maximum number of inputs per provider call
	// (default: 64).
	BatchSize int

	// Policy is the retry policy for transient failures. The
	// Retryable predicate is set by this adapter.
	Policy retry.Policy

	// Limiter is the process-wide request limiter shared across
	// sessions. Nil disables limiting.
	Limiter *rate.Limiter
}

// EmbeddingService generates embeddings using the OpenAI API.
type EmbeddingService struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	batchSize  int
	policy     retry.Policy
	limiter    *rate.Limiter
}

// embeddingRequest is the OpenAI API request format.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the OpenAI API response format.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

// apiError is the provider's structured error payload.
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewEmbeddingService creates a new OpenAI embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	dimensions, ok := modelDimensions[cfg.Model]
	if !ok {
		dimensions = 1536
	}

	s := &EmbeddingService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: dimensions,
		batchSize:  cfg.BatchSize,
		policy:     cfg.Policy,
		limiter:    cfg.Limiter,
	}
	s.policy.Retryable = func(err error) bool {
		return errorsIsTransient(err)
	}
	return s, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: cannot embed empty text", domain.ErrInvalidInput)
	}
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts, preserving input
// order. Provider calls carry at most BatchSize inputs each. On any
// unrecovered failure the whole call fails; no partial results are
// returned.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	defer logger.Elapsed(time.Now(), "Embedded %d inputs", len(texts))

	results := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var vectors [][]float32
		err := s.policy.Do(ctx, func(ctx context.Context) error {
			var callErr error
			vectors, callErr = s.callProvider(ctx, batch)
			return callErr
		})
		if err != nil {
			if errorsIsTransient(err) {
				// Retry budget spent; escalate to fatal but keep the
				// transient cause in the chain.
				err = fmt.Errorf("%w: retry budget exhausted: %w", domain.ErrProviderFatal, err)
			}
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		copy(results[start:], vectors)
	}

	return results, nil
}

// callProvider performs a single embeddings request for one batch.
func (s *EmbeddingService) callProvider(ctx context.Context, batch []string) ([][]float32, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	jsonBody, err := json.Marshal(embeddingRequest{
		Model: s.model,
		Input: batch,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrProviderFatal, err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/embeddings",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrProviderFatal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		// Network failures and timeouts are worth retrying.
		return nil, fmt.Errorf("%w: send request: %v", domain.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrProviderTransient, err)
	}

	var decoded embeddingResponse
	if jsonErr := json.Unmarshal(body, &decoded); jsonErr != nil && resp.StatusCode == http.StatusOK {
		return nil, fmt.Errorf("%w: malformed response: %v", domain.ErrProviderFatal, jsonErr)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, decoded.Error, body)
	}

	return s.decodeVectors(decoded, len(batch))
}

// decodeVectors validates the response shape strictly: the provider
// must return exactly one vector per input, each with the model's
// dimension. Any mismatch fails fast as a fatal error rather than
// propagating partial data.
func (s *EmbeddingService) decodeVectors(decoded embeddingResponse, want int) ([][]float32, error) {
	if len(decoded.Data) != want {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			domain.ErrProviderFatal, want, len(decoded.Data))
	}

	vectors := make([][]float32, want)
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= want {
			return nil, fmt.Errorf("%w: embedding index %d out of range",
				domain.ErrProviderFatal, d.Index)
		}
		if len(d.Embedding) != s.dimensions {
			return nil, fmt.Errorf("%w: provider returned %d dimensions, model %s has %d",
				domain.ErrDimensionMismatch, len(d.Embedding), s.model, s.dimensions)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d",
				domain.ErrProviderFatal, i)
		}
	}
	return vectors, nil
}

// classifyStatus maps an HTTP error status to the transient/fatal
// taxonomy. Quota exhaustion reports 429 but retrying cannot help, so
// it is fatal.
func classifyStatus(status int, apiErr *apiError, body []byte) error {
	msg := string(body)
	if apiErr != nil {
		msg = apiErr.Message
	}

	switch {
	case status == http.StatusTooManyRequests:
		if apiErr != nil && apiErr.Type == "insufficient_quota" {
			return fmt.Errorf("%w: quota exhausted: %s", domain.ErrProviderFatal, msg)
		}
		logger.Warn("Embedding provider rate limited")
		return fmt.Errorf("%w: rate limited: %s", domain.ErrProviderTransient, msg)
	case status == http.StatusRequestTimeout:
		return fmt.Errorf("%w: request timeout: %s", domain.ErrProviderTransient, msg)
	case status >= 500:
		return fmt.Errorf("%w: provider error (status %d): %s", domain.ErrProviderTransient, status, msg)
	default:
		return fmt.Errorf("%w: provider rejected request (status %d): %s", domain.ErrProviderFatal, status, msg)
	}
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /models
// endpoint. This is a lightweight check that validates the API key
// without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai: API returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// errorsIsTransient reports whether err is marked retryable.
func errorsIsTransient(err error) bool {
	return errors.Is(err, domain.ErrProviderTransient)
}
