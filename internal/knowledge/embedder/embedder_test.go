// internal/knowledge/embedder/embedder_test.go
package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ethics-advisor/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig(baseURL string) *Config {
	return &Config{
		BaseURL:    baseURL,
		APIKey:     "test-api-key",
		Model:      "text-embedding-3-small",
		Dimensions: 4,
		Timeout:    2 * time.Second,
	}
}

// embeddingServer returns one fixed vector per input, tracking call count.
func embeddingServer(t *testing.T, calls *int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		require.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]map[string]interface{}, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]interface{}{
				"index":     i,
				"embedding": []float32{float32(i), 0.1, 0.2, 0.3},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
	t.Cleanup(server.Close)
	return server
}

func newCachedEmbedder(t *testing.T, cfg *Config) (*HTTPEmbedder, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg.CacheTTL = 1 * time.Hour
	return NewHTTPEmbedder(cfg, redisClient, logger.NewTestLogger(t)), mr
}

// ==========================
// Embed Tests
// ==========================

func TestHTTPEmbedder_Embed_Success(t *testing.T) {
	var calls int64
	server := embeddingServer(t, &calls)
	e := NewHTTPEmbedder(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	vector, err := e.Embed(context.Background(), "Can I accept a gift worth $25 from a contractor?")

	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.1, 0.2, 0.3}, vector)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestHTTPEmbedder_Embed_CacheAside(t *testing.T) {
	var calls int64
	server := embeddingServer(t, &calls)
	e, mr := newCachedEmbedder(t, createTestConfig(server.URL))

	question := "Can I accept a gift worth $25 from a contractor?"

	first, err := e.Embed(context.Background(), question)
	require.NoError(t, err)
	require.Equal(t, int64(1), atomic.LoadInt64(&calls))

	// The cached value must round-trip through Redis on the second call.
	second, err := e.Embed(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	require.True(t, mr.Exists(e.cacheKey(question)))

	// A different question misses and goes back to the API.
	_, err = e.Embed(context.Background(), "May I attend a vendor-sponsored conference?")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestHTTPEmbedder_Embed_CacheEntryExpires(t *testing.T) {
	var calls int64
	server := embeddingServer(t, &calls)
	e, mr := newCachedEmbedder(t, createTestConfig(server.URL))

	question := "gift rules"
	_, err := e.Embed(context.Background(), question)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = e.Embed(context.Background(), question)
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestHTTPEmbedder_Embed_ZeroTTLDisablesCache(t *testing.T) {
	var calls int64
	server := embeddingServer(t, &calls)
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := createTestConfig(server.URL)
	e := NewHTTPEmbedder(cfg, redisClient, logger.NewTestLogger(t))

	_, err := e.Embed(context.Background(), "gift rules")
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "gift rules")
	require.NoError(t, err)

	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
	assert.Empty(t, mr.Keys())
}

func TestHTTPEmbedder_Embed_CorruptCacheEntryFallsThrough(t *testing.T) {
	var calls int64
	server := embeddingServer(t, &calls)
	e, mr := newCachedEmbedder(t, createTestConfig(server.URL))

	question := "gift rules"
	require.NoError(t, mr.Set(e.cacheKey(question), "{not json"))

	vector, err := e.Embed(context.Background(), question)
	require.NoError(t, err)
	assert.Len(t, vector, 4)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestHTTPEmbedder_Embed_ServerErrorFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	e := NewHTTPEmbedder(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	_, err := e.Embed(context.Background(), "gift rules")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestHTTPEmbedder_Embed_TimeoutSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	cfg := createTestConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	e := NewHTTPEmbedder(cfg, nil, logger.NewTestLogger(t))

	_, err := e.Embed(context.Background(), "gift rules")
	assert.ErrorIs(t, err, ErrEmbeddingTimeout)
}

// ==========================
// EmbedBatch Tests
// ==========================

func TestHTTPEmbedder_EmbedBatch_OrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Entries intentionally out of order; index decides placement.
		_, _ = w.Write([]byte(`{"data":[
			{"index": 1, "embedding": [1, 1, 1, 1]},
			{"index": 0, "embedding": [0, 0, 0, 0]}
		]}`))
	}))
	defer server.Close()
	e := NewHTTPEmbedder(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	vectors, err := e.EmbedBatch(context.Background(), []string{"first", "second"})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 0, 0, 0}, vectors[0])
	assert.Equal(t, []float32{1, 1, 1, 1}, vectors[1])
}

func TestHTTPEmbedder_EmbedBatch_EmptyInput(t *testing.T) {
	var calls int64
	server := embeddingServer(t, &calls)
	e := NewHTTPEmbedder(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	vectors, err := e.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Zero(t, atomic.LoadInt64(&calls))
}

func TestHTTPEmbedder_EmbedBatch_CountMismatchFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index": 0, "embedding": [0.1, 0.2, 0.3, 0.4]}]}`))
	}))
	defer server.Close()
	e := NewHTTPEmbedder(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	_, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestHTTPEmbedder_EmbedBatch_IndexOutOfRangeFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"index": 0, "embedding": [0, 0, 0, 0]},
			{"index": 7, "embedding": [1, 1, 1, 1]}
		]}`))
	}))
	defer server.Close()
	e := NewHTTPEmbedder(createTestConfig(server.URL), nil, logger.NewTestLogger(t))

	_, err := e.EmbedBatch(context.Background(), []string{"first", "second"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}
