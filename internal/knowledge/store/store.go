// internal/knowledge/store/store.go
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/models"
)

var (
	ErrCollectionCreateFailed = errors.New("COLLECTION_CREATE_FAILED")
	ErrBulkIndexFailed        = errors.New("BULK_INDEX_FAILED")
	ErrSearchFailed           = errors.New("VECTOR_SEARCH_FAILED")
	ErrSearchTimeout          = errors.New("VECTOR_SEARCH_TIMEOUT")
)

// Store is the Elasticsearch-backed knowledge index holding embedded legal
// passages. It is logically stateless after construction and safe to share
// across concurrent consultations.
type Store struct {
	config *Config
	client *elasticsearch.Client
	logger logger.Logger
}

func New(config *Config, client *elasticsearch.Client, log logger.Logger) *Store {
	return &Store{
		config: config,
		client: client,
		logger: log.With(map[string]interface{}{
			"component": "knowledge-store",
		}),
	}
}

// EnsureCollection creates the collection if it does not exist. An existing
// collection is success, not failure, so startup can call this repeatedly.
func (s *Store) EnsureCollection(ctx context.Context, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	existsReq := esapi.IndicesExistsRequest{
		Index: []string{collection},
	}
	res, err := existsReq.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollectionCreateFailed, err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		s.logger.Debug("collection already exists", map[string]interface{}{
			"collection": collection,
		})
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: exists check returned %s", ErrCollectionCreateFailed, res.Status())
	}

	body, _ := json.Marshal(buildMappingBody(s.config.Dimensions))
	createReq := esapi.IndicesCreateRequest{
		Index: collection,
		Body:  bytes.NewReader(body),
	}
	createRes, err := createReq.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCollectionCreateFailed, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		// Racing creators are fine; anything else is not.
		if strings.Contains(createRes.String(), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrCollectionCreateFailed, createRes.Status())
	}

	s.logger.Info("collection created", map[string]interface{}{
		"collection": collection,
		"dimensions": s.config.Dimensions,
	})
	return nil
}

// Index bulk-writes passages with their embeddings into the collection.
func (s *Store) Index(ctx context.Context, collection string, passages []models.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var buf bytes.Buffer
	for i, p := range passages {
		meta := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": collection,
			},
		}
		if p.SourceID != "" {
			meta["index"].(map[string]interface{})["_id"] = fmt.Sprintf("%s-%d", p.SourceID, i)
		}
		metaLine, _ := json.Marshal(meta)
		docLine, _ := json.Marshal(map[string]interface{}{
			"text":      p.Text,
			"source_id": p.SourceID,
			"embedding": p.Vector,
		})
		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{
		Body:    bytes.NewReader(buf.Bytes()),
		Refresh: "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBulkIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrBulkIndexFailed, res.Status())
	}

	var bulkResponse struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResponse); err != nil {
		return fmt.Errorf("%w: decode error: %v", ErrBulkIndexFailed, err)
	}
	if bulkResponse.Errors {
		return fmt.Errorf("%w: one or more documents failed", ErrBulkIndexFailed)
	}

	s.logger.Info("passages indexed", map[string]interface{}{
		"collection": collection,
		"count":      len(passages),
	})
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				Text      string    `json:"text"`
				SourceID  string    `json:"source_id"`
				Embedding []float32 `json:"embedding"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns the k nearest passages by cosine similarity, best first.
// Transport failures surface as errors; the retrieval engine above decides
// how to degrade.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, k int) ([]models.Passage, error) {
	if k <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	body, _ := json.Marshal(buildVectorSearchQuery(vector, k))
	req := esapi.SearchRequest{
		Index: []string{collection},
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: collection %s", ErrSearchTimeout, collection)
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrSearchFailed, err)
	}

	passages := make([]models.Passage, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		// The script adds 1.0 to keep scores positive; undo it so callers
		// see plain cosine similarity.
		score := hit.Score - 1.0
		passages = append(passages, models.Passage{
			Text:     hit.Source.Text,
			SourceID: hit.Source.SourceID,
			Score:    &score,
			Vector:   hit.Source.Embedding,
		})
	}

	return passages, nil
}
