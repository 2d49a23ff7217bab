// internal/knowledge/embedder/embedder.go
package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"

	commonhttp "ethics-advisor/internal/common/http"
	"ethics-advisor/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

var (
	ErrEmbeddingFailed  = errors.New("EMBEDDING_FAILED")
	ErrEmbeddingTimeout = errors.New("EMBEDDING_TIMEOUT")
)

// Embedder turns text into dense vectors for the knowledge index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// HTTPEmbedder calls an OpenAI-style embeddings endpoint, with an optional
// Redis cache in front so repeated questions skip the API round trip.
type HTTPEmbedder struct {
	config      *Config
	client      *commonhttp.Client
	redisClient *redis.Client
	logger      logger.Logger
}

// NewHTTPEmbedder creates the embedder. redisClient may be nil to disable caching.
func NewHTTPEmbedder(config *Config, redisClient *redis.Client, log logger.Logger) *HTTPEmbedder {
	return &HTTPEmbedder{
		config:      config,
		client:      commonhttp.NewClient(0),
		redisClient: redisClient,
		logger: log.With(map[string]interface{}{
			"component": "embedder",
		}),
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cacheGet(ctx, text); ok {
		return cached, nil
	}

	vectors, err := e.callAPI(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", ErrEmbeddingFailed, len(vectors))
	}

	e.cacheSet(ctx, text, vectors[0])
	return vectors[0], nil
}

func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return e.callAPI(ctx, texts)
}

func (e *HTTPEmbedder) callAPI(ctx context.Context, input []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	headers := map[string]string{}
	if e.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + e.config.APIKey
	}

	resp, err := e.client.PostJSON(ctx, e.config.BaseURL+"/v1/embeddings", headers, embeddingRequest{
		Model: e.config.Model,
		Input: input,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrEmbeddingTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrEmbeddingFailed, resp.StatusCode)
	}

	var apiResponse embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrEmbeddingFailed, err)
	}
	if len(apiResponse.Data) != len(input) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, len(input), len(apiResponse.Data))
	}

	// The API may reorder entries; index is authoritative.
	vectors := make([][]float32, len(input))
	for _, d := range apiResponse.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (e *HTTPEmbedder) cacheKey(text string) string {
	h := fnv.New64a()
	h.Write([]byte(text))
	return fmt.Sprintf("ethics:emb:%x", h.Sum64())
}

func (e *HTTPEmbedder) cacheGet(ctx context.Context, text string) ([]float32, bool) {
	if e.redisClient == nil || e.config.CacheTTL <= 0 {
		return nil, false
	}
	val, err := e.redisClient.Get(ctx, e.cacheKey(text)).Result()
	if err != nil {
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal([]byte(val), &vector); err != nil {
		return nil, false
	}
	return vector, true
}

func (e *HTTPEmbedder) cacheSet(ctx context.Context, text string, vector []float32) {
	if e.redisClient == nil || e.config.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := e.redisClient.Set(ctx, e.cacheKey(text), data, e.config.CacheTTL).Err(); err != nil {
		e.logger.Warn("embedding cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
