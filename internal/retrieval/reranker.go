// internal/retrieval/reranker.go
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	commonhttp "ethics-advisor/internal/common/http"
	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/models"
)

var (
	ErrRerankFailed      = errors.New("RERANK_FAILED")
	ErrRerankUnavailable = errors.New("RERANK_UNAVAILABLE")
)

// Reranker reorders candidate passages by cross-encoder relevance to the
// query and returns at most topK of them, best first.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []models.Passage, topK int) ([]models.Passage, error)
	Available() bool
}

// HTTPReranker calls a Cohere-style rerank endpoint.
type HTTPReranker struct {
	config *RerankerConfig
	client *commonhttp.Client
	log    logger.Logger
}

func NewHTTPReranker(cfg *RerankerConfig, log logger.Logger) *HTTPReranker {
	return &HTTPReranker{
		config: cfg,
		client: commonhttp.NewClient(cfg.Timeout),
		log:    log.With(map[string]interface{}{"component": "reranker"}),
	}
}

// Available reports whether the reranker is configured with credentials.
// An unconfigured reranker makes the rerank strategy fall back to
// similarity ordering.
func (r *HTTPReranker) Available() bool {
	return r.config.APIKey != ""
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []models.Passage, topK int) ([]models.Passage, error) {
	if !r.Available() {
		return nil, ErrRerankUnavailable
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	if topK > len(candidates) {
		topK = len(candidates)
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}

	headers := map[string]string{
		"Authorization": "Bearer " + r.config.APIKey,
	}
	body := rerankRequest{
		Model:     r.config.Model,
		Query:     query,
		Documents: docs,
		TopN:      topK,
	}

	resp, err := r.client.PostJSON(ctx, r.config.BaseURL, headers, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRerankFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrRerankFailed, resp.StatusCode, string(payload))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrRerankFailed, err)
	}

	reordered := make([]models.Passage, 0, topK)
	for _, result := range parsed.Results {
		if result.Index < 0 || result.Index >= len(candidates) {
			return nil, fmt.Errorf("%w: result index %d out of range", ErrRerankFailed, result.Index)
		}
		p := candidates[result.Index]
		score := result.RelevanceScore
		p.Score = &score
		reordered = append(reordered, p)
		if len(reordered) == topK {
			break
		}
	}
	return reordered, nil
}
