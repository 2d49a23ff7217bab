// internal/ingestion/pipeline.go
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/knowledge/embedder"
	"ethics-advisor/internal/models"
)

var (
	ErrEmptyDocument   = errors.New("EMPTY_DOCUMENT")
	ErrIngestionFailed = errors.New("INGESTION_FAILED")
)

// Document is one source text to ingest. PDF extraction happens upstream;
// the pipeline only sees plain text.
type Document struct {
	SourceID string
	Text     string
}

// Indexer is the slice of the knowledge store the pipeline writes through.
type Indexer interface {
	EnsureCollection(ctx context.Context, collection string) error
	Index(ctx context.Context, collection string, passages []models.Passage) error
}

// Result reports where a document landed and in how many pieces.
type Result struct {
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
}

// Pipeline chunks a document, embeds the chunks, and indexes them into the
// collection belonging to the chunking strategy.
type Pipeline struct {
	config   *Config
	embedder embedder.Embedder
	store    Indexer
	log      logger.Logger
}

func NewPipeline(cfg *Config, emb embedder.Embedder, store Indexer, log logger.Logger) *Pipeline {
	return &Pipeline{
		config:   cfg,
		embedder: emb,
		store:    store,
		log:      log.With(map[string]interface{}{"component": "ingestion"}),
	}
}

// IngestDocument runs one document through chunk → embed → index. An empty
// strategy falls back to the configured default.
func (p *Pipeline) IngestDocument(ctx context.Context, doc Document, strategy Strategy) (*Result, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("%w: document %q has no text", ErrEmptyDocument, doc.SourceID)
	}
	if strategy == "" {
		strategy = p.config.DefaultStrategy
	}

	chunker, err := ChunkerFor(strategy, p.config)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	chunks := chunker.Split(doc.Text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %q produced no chunks", ErrEmptyDocument, doc.SourceID)
	}

	vectors, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding: %v", ErrIngestionFailed, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: expected %d vectors, got %d", ErrIngestionFailed, len(chunks), len(vectors))
	}

	passages := make([]models.Passage, len(chunks))
	for i, chunk := range chunks {
		passages[i] = models.Passage{
			Text:     chunk,
			SourceID: doc.SourceID,
			Vector:   vectors[i],
		}
	}

	collection := p.config.CollectionFor(strategy)
	if err := p.store.EnsureCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("%w: ensure collection: %v", ErrIngestionFailed, err)
	}
	if err := p.store.Index(ctx, collection, passages); err != nil {
		return nil, fmt.Errorf("%w: index: %v", ErrIngestionFailed, err)
	}

	p.log.Info("Document ingested", map[string]interface{}{
		"sourceId":   doc.SourceID,
		"strategy":   string(strategy),
		"collection": collection,
		"chunks":     len(chunks),
		"durationMs": time.Since(start).Milliseconds(),
	})

	return &Result{Collection: collection, Chunks: len(chunks)}, nil
}
