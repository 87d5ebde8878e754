package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Embedding Provider Errors.

	// ErrProviderTransient indicates a retryable provider failure
	// (rate limiting, timeout, 5xx). The embedding client retries
	// these internally up to the configured budget.
	ErrProviderTransient = errors.New("transient provider error")

	// ErrProviderFatal indicates a non-retryable provider failure
	// (auth, quota exhaustion, malformed request or response shape).
	// The whole add-document or query operation aborts.
	ErrProviderFatal = errors.New("fatal provider error")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Uploads and queries are disabled without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Index Errors.

	// ErrDimensionMismatch indicates a vector's dimension does not
	// match the index. This is a configuration error and always fatal
	// to the operation.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// Persistence Errors.

	// ErrPersistence indicates a snapshot save or load failed.
	// The session remains usable in memory but is flagged unsynced.
	ErrPersistence = errors.New("persistence error")

	// Upload Job Errors.

	// ErrJobNotFound indicates the requested upload job does not exist.
	ErrJobNotFound = errors.New("upload job not found")
)
