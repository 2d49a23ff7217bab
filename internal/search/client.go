// internal/search/client.go
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"time"

	commonhttp "ethics-advisor/internal/common/http"
	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/common/metrics"
	"ethics-advisor/internal/models"

	"github.com/redis/go-redis/v9"
)

var ErrUnknownSearchCategory = errors.New("UNKNOWN_SEARCH_CATEGORY")

// Query templates per research category. The question is substituted
// into a category-specific frame so the three parallel branches pull
// different slices of the public record.
const (
	generalQueryTemplate    = "federal ethics violation %s OGE guidance"
	penaltyQueryTemplate    = "federal ethics penalties %s criminal civil administrative"
	precedentsQueryTemplate = "ethics %s reporting requirements precedent cases"
)

// Searcher runs one categorized web search. Implementations degrade to
// an empty result on transport failure; an error is returned only for
// caller mistakes such as an unknown category.
type Searcher interface {
	Search(ctx context.Context, question, category string) ([]models.WebHit, error)
}

// TavilyClient searches the web through the Tavily API, with an
// optional Redis read-through cache keyed by category and question.
type TavilyClient struct {
	config      *Config
	client      *commonhttp.Client
	redisClient *redis.Client
	log         logger.Logger
}

// NewTavilyClient builds the adapter. redisClient may be nil to run
// without caching.
func NewTavilyClient(cfg *Config, redisClient *redis.Client, log logger.Logger) *TavilyClient {
	return &TavilyClient{
		config:      cfg,
		client:      commonhttp.NewClient(cfg.Timeout),
		redisClient: redisClient,
		log:         log.With(map[string]interface{}{"component": "web-search"}),
	}
}

func (t *TavilyClient) Search(ctx context.Context, question, category string) ([]models.WebHit, error) {
	query, err := buildQuery(question, category)
	if err != nil {
		return nil, err
	}

	if hits, ok := t.cacheGet(ctx, question, category); ok {
		t.log.Debug("Web search cache hit", map[string]interface{}{
			"category": category,
			"count":    len(hits),
		})
		return hits, nil
	}

	start := time.Now()
	hits, err := t.search(ctx, query, category)
	if err != nil {
		t.log.Warn("Web search failed, returning empty results", map[string]interface{}{
			"category": category,
			"query":    query,
			"error":    err.Error(),
		})
		metrics.SearchBranchFailures.WithLabelValues(category).Inc()
		return []models.WebHit{}, nil
	}

	t.log.Info("Web search completed", map[string]interface{}{
		"category":    category,
		"query":       query,
		"resultCount": len(hits),
		"durationMs":  time.Since(start).Milliseconds(),
	})

	t.cacheSet(ctx, question, category, hits)
	return hits, nil
}

func (t *TavilyClient) search(ctx context.Context, query, category string) ([]models.WebHit, error) {
	body := tavilyRequest{
		APIKey:         t.config.APIKey,
		Query:          query,
		MaxResults:     t.config.MaxResults,
		SearchDepth:    t.config.SearchDepth,
		IncludeDomains: t.config.IncludeDomains,
	}

	resp, err := t.client.PostJSON(ctx, t.config.BaseURL, nil, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search API returned %d: %s", resp.StatusCode, string(payload))
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	seen := make(map[string]bool)
	hits := make([]models.WebHit, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		score := r.Score
		hits = append(hits, models.WebHit{
			Title:          r.Title,
			URL:            r.URL,
			Content:        r.Content,
			Score:          &score,
			SearchCategory: category,
		})
	}
	return hits, nil
}

func buildQuery(question, category string) (string, error) {
	switch category {
	case models.SearchCategoryGeneral:
		return fmt.Sprintf(generalQueryTemplate, question), nil
	case models.SearchCategoryPenalty:
		return fmt.Sprintf(penaltyQueryTemplate, question), nil
	case models.SearchCategoryPrecedents:
		return fmt.Sprintf(precedentsQueryTemplate, question), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSearchCategory, category)
	}
}

func cacheKey(question, category string) string {
	h := fnv.New64a()
	h.Write([]byte(question))
	return fmt.Sprintf("ethics:search:%s:%x", category, h.Sum64())
}

func (t *TavilyClient) cacheGet(ctx context.Context, question, category string) ([]models.WebHit, bool) {
	if t.redisClient == nil || t.config.CacheTTL <= 0 {
		return nil, false
	}
	raw, err := t.redisClient.Get(ctx, cacheKey(question, category)).Result()
	if err != nil {
		return nil, false
	}
	var hits []models.WebHit
	if err := json.Unmarshal([]byte(raw), &hits); err != nil {
		return nil, false
	}
	return hits, true
}

func (t *TavilyClient) cacheSet(ctx context.Context, question, category string, hits []models.WebHit) {
	if t.redisClient == nil || t.config.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(hits)
	if err != nil {
		return
	}
	if err := t.redisClient.Set(ctx, cacheKey(question, category), raw, t.config.CacheTTL).Err(); err != nil {
		t.log.Warn("Failed to cache search results", map[string]interface{}{
			"category": category,
			"error":    err.Error(),
		})
	}
}
