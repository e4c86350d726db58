package search

import (
	"fmt"

	"github.com/meilisearch/meilisearch-go"
)

// Querier is the read-side handle set, separate from Indexer's write path
// — mirroring the original's split between the indexing trait and the
// plain MeiliSearch struct used by read endpoints.
type Querier struct {
	client meilisearch.ServiceManager
}

// NewQuerier connects a read-only Meilisearch handle.
func NewQuerier(cfg Config) *Querier {
	return &Querier{client: meilisearch.New(cfg.Host, meilisearch.WithAPIKey(cfg.APIKey))}
}

// Hit is a minimal decoded search hit: callers re-fetch the full catalog
// row by ID, the index only ever serves as a pointer.
type Hit struct {
	ID string `json:"id"`
}

// SearchInstances runs a free-text query against the instances index,
// optionally narrowed to a single work_platform facet value.
func (q *Querier) SearchInstances(query, platform string, limit, offset int64) ([]Hit, error) {
	req := &meilisearch.SearchRequest{Limit: limit, Offset: offset}
	if platform != "" {
		req.Filter = fmt.Sprintf("work_platform = %q", platform)
	}
	res, err := q.client.Index(indexInstances).Search(query, req)
	if err != nil {
		return nil, fmt.Errorf("search: query %s: %w", indexInstances, err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, raw := range res.Hits {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		hits = append(hits, Hit{ID: id})
	}
	return hits, nil
}

// SearchStates runs a free-text query against the states index.
func (q *Querier) SearchStates(query string, limit int64) ([]Hit, error) {
	return q.search(indexStates, query, limit)
}

// SearchReplays runs a free-text query against the replays index.
func (q *Querier) SearchReplays(query string, limit int64) ([]Hit, error) {
	return q.search(indexReplays, query, limit)
}

// SearchSaves runs a free-text query against the saves index.
func (q *Querier) SearchSaves(query string, limit int64) ([]Hit, error) {
	return q.search(indexSaves, query, limit)
}

// SearchCreators runs a free-text query against the creators index.
func (q *Querier) SearchCreators(query string, limit int64) ([]Hit, error) {
	return q.search(indexCreators, query, limit)
}

func (q *Querier) search(index, query string, limit int64) ([]Hit, error) {
	res, err := q.client.Index(index).Search(query, &meilisearch.SearchRequest{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("search: query %s: %w", index, err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, raw := range res.Hits {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		hits = append(hits, Hit{ID: id})
	}
	return hits, nil
}
