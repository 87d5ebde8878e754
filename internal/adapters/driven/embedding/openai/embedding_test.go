package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/retry"
)

const testDims = 1536

func fastRetry(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

// fakeProvider serves the embeddings endpoint, optionally failing the
// first failures requests with failStatus.
type fakeProvider struct {
	t          *testing.T
	failures   int32
	failStatus int
	failBody   string
	calls      atomic.Int32
}

func (f *fakeProvider) handler(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)

	if r.URL.Path != "/embeddings" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if atomic.AddInt32(&f.failures, -1) >= 0 {
		w.WriteHeader(f.failStatus)
		fmt.Fprint(w, f.failBody)
		return
	}

	var req embeddingRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	resp := map[string]any{"data": []map[string]any{}}
	data := make([]map[string]any, len(req.Input))
	for i := range req.Input {
		vec := make([]float32, testDims)
		// Encode both input ordinal and length so ordering bugs show up.
		vec[0] = float32(i)
		vec[1] = float32(len(req.Input[i]))
		// Respond out of order; the client must reorder by index.
		data[len(req.Input)-1-i] = map[string]any{
			"embedding": vec,
			"index":     i,
		}
	}
	resp["data"] = data
	require.NoError(f.t, json.NewEncoder(w).Encode(resp))
}

func newTestService(t *testing.T, f *fakeProvider, opts ...func(*Config)) (*EmbeddingService, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)

	cfg := Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Policy:  fastRetry(4),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	svc, err := NewEmbeddingService(cfg)
	require.NoError(t, err)
	return svc, srv
}

func TestNewEmbeddingService_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.Error(t, err)
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc, err := NewEmbeddingService(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, 1536, svc.Dimensions())
	assert.Equal(t, DefaultBatchSize, svc.batchSize)
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{t: t})

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})

	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, vec := range vectors {
		require.Len(t, vec, testDims)
		assert.Equal(t, float32(i), vec[0])
		assert.Equal(t, float32(i+1), vec[1])
	}
}

func TestEmbedBatch_SplitsLargeInput(t *testing.T) {
	f := &fakeProvider{t: t}
	svc, _ := newTestService(t, f, func(c *Config) { c.BatchSize = 2 })

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})

	require.NoError(t, err)
	assert.Len(t, vectors, 5)
	assert.Equal(t, int32(3), f.calls.Load())
	for _, vec := range vectors {
		assert.Len(t, vec, testDims)
	}
}

func TestEmbedBatch_RetriesRateLimitThenSucceeds(t *testing.T) {
	f := &fakeProvider{
		t:          t,
		failures:   2,
		failStatus: http.StatusTooManyRequests,
		failBody:   `{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`,
	}
	svc, _ := newTestService(t, f)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"hello"})

	require.NoError(t, err)
	require.Len(t, vectors, 1)
	// Two failures plus one success, within the 4-attempt budget.
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestEmbedBatch_RetriesServerErrorThenSucceeds(t *testing.T) {
	f := &fakeProvider{
		t:          t,
		failures:   1,
		failStatus: http.StatusBadGateway,
		failBody:   "upstream error",
	}
	svc, _ := newTestService(t, f)

	_, err := svc.EmbedBatch(context.Background(), []string{"hello"})

	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestEmbedBatch_ExhaustedRetriesEscalateAsFatal(t *testing.T) {
	f := &fakeProvider{
		t:          t,
		failures:   100,
		failStatus: http.StatusServiceUnavailable,
		failBody:   "down",
	}
	svc, _ := newTestService(t, f, func(c *Config) { c.Policy = fastRetry(3) })

	_, err := svc.EmbedBatch(context.Background(), []string{"hello"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderFatal)
	// The transient cause stays in the chain for caller messaging.
	assert.ErrorIs(t, err, domain.ErrProviderTransient)
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestEmbedBatch_AuthFailureNotRetried(t *testing.T) {
	f := &fakeProvider{
		t:          t,
		failures:   100,
		failStatus: http.StatusUnauthorized,
		failBody:   `{"error":{"message":"bad key","type":"invalid_request_error"}}`,
	}
	svc, _ := newTestService(t, f)

	_, err := svc.EmbedBatch(context.Background(), []string{"hello"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderFatal)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestEmbedBatch_QuotaExhaustionNotRetried(t *testing.T) {
	f := &fakeProvider{
		t:          t,
		failures:   100,
		failStatus: http.StatusTooManyRequests,
		failBody:   `{"error":{"message":"quota","type":"insufficient_quota"}}`,
	}
	svc, _ := newTestService(t, f)

	_, err := svc.EmbedBatch(context.Background(), []string{"hello"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderFatal)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestEmbedBatch_ShapeMismatchIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// One vector for two inputs.
		fmt.Fprint(w, `{"data":[{"embedding":[0.1],"index":0}]}`)
	}))
	t.Cleanup(srv.Close)

	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: srv.URL, Policy: fastRetry(2)})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"a", "b"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderFatal)
}

func TestEmbedBatch_WrongDimensionIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2,0.3],"index":0}]}`)
	}))
	t.Cleanup(srv.Close)

	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: srv.URL, Policy: fastRetry(2)})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestEmbed_EmptyText(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{t: t})

	_, err := svc.Embed(context.Background(), "")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmbed_Single(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{t: t})

	vec, err := svc.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Len(t, vec, testDims)
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{t: t})

	vectors, err := svc.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	assert.NoError(t, svc.Ping(context.Background()))
}
