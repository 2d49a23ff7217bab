// internal/knowledge/store/queries.go
package store

// buildMappingBody returns the index mapping for a passage collection.
func buildMappingBody(dims int) map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"text": map[string]interface{}{
					"type": "text",
				},
				"source_id": map[string]interface{}{
					"type": "keyword",
				},
				"embedding": map[string]interface{}{
					"type": "dense_vector",
					"dims": dims,
				},
			},
		},
	}
}

// buildVectorSearchQuery returns a script_score cosine similarity query. The
// stored embedding rides along in _source so diversity selection can reuse it.
func buildVectorSearchQuery(vector []float32, k int) map[string]interface{} {
	return map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"script_score": map[string]interface{}{
				"query": map[string]interface{}{
					"match_all": map[string]interface{}{},
				},
				"script": map[string]interface{}{
					"source": "cosineSimilarity(params.query_vector, 'embedding') + 1.0",
					"params": map[string]interface{}{
						"query_vector": vector,
					},
				},
			},
		},
		"_source": []string{"text", "source_id", "embedding"},
	}
}
