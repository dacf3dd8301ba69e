package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"honeytrail/internal/metrics"
)

// ChromaConfig configures the Chroma REST backend.
type ChromaConfig struct {
	URL              string
	CollectionPrefix string
	Timeout          time.Duration
	Headers          map[string]string
}

// ChromaStore stores corpora as Chroma collections named <prefix><corpus>.
type ChromaStore struct {
	baseURL  string
	prefix   string
	headers  map[string]string
	client   *http.Client
	embedder Embedder

	mu          sync.Mutex
	collections map[string]string
}

// NewChromaStore creates a Chroma-backed store. Vectors are computed with embedder.
func NewChromaStore(cfg ChromaConfig, embedder Embedder) (*ChromaStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("chroma URL is empty")
	}
	if embedder == nil {
		return nil, fmt.Errorf("chroma store requires an embedder")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ChromaStore{
		baseURL:     strings.TrimRight(cfg.URL, "/") + "/api/v1",
		prefix:      cfg.CollectionPrefix,
		headers:     cfg.Headers,
		client:      &http.Client{Timeout: timeout},
		embedder:    embedder,
		collections: make(map[string]string),
	}, nil
}

type chromaQueryResponse struct {
	IDs       [][]string                 `json:"ids"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Distances [][]float64                `json:"distances"`
}

// Search embeds text and queries the corpus collection.
func (s *ChromaStore) Search(ctx context.Context, corpus, text string, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}
	id, err := s.collectionID(ctx, corpus)
	if err != nil {
		return nil, err
	}
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var out chromaQueryResponse
	start := time.Now()
	err = s.post(ctx, "/collections/"+id+"/query", map[string]interface{}{
		"query_embeddings": vectors,
		"n_results":        k,
		"include":          []string{"metadatas", "distances"},
	}, &out)
	metrics.ExternalCallSeconds.WithLabelValues("chroma").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", corpus, err)
	}

	matches := []Match{}
	if len(out.IDs) == 0 {
		return matches, nil
	}
	for i, docID := range out.IDs[0] {
		m := Match{ID: docID}
		if len(out.Metadatas) > 0 && i < len(out.Metadatas[0]) {
			m.Metadata = out.Metadatas[0][i]
		}
		if len(out.Distances) > 0 && i < len(out.Distances[0]) {
			m.Distance = out.Distances[0][i]
		}
		matches = append(matches, m)
	}
	SortByDistance(matches)
	return matches, nil
}

// Upsert embeds and writes documents into the corpus collection.
func (s *ChromaStore) Upsert(ctx context.Context, corpus string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	id, err := s.collectionID(ctx, corpus)
	if err != nil {
		return err
	}

	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	metas := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		texts[i] = d.Text
		metas[i] = FlattenMetadata(d.Metadata)
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}

	return s.post(ctx, "/collections/"+id+"/upsert", map[string]interface{}{
		"ids":        ids,
		"embeddings": vectors,
		"metadatas":  metas,
		"documents":  texts,
	}, nil)
}

type chromaGetResponse struct {
	IDs       []string                 `json:"ids"`
	Documents []string                 `json:"documents"`
	Metadatas []map[string]interface{} `json:"metadatas"`
}

// Get fetches one document by id.
func (s *ChromaStore) Get(ctx context.Context, corpus, docID string) (*Document, error) {
	id, err := s.collectionID(ctx, corpus)
	if err != nil {
		return nil, err
	}
	var out chromaGetResponse
	err = s.post(ctx, "/collections/"+id+"/get", map[string]interface{}{
		"ids":     []string{docID},
		"include": []string{"documents", "metadatas"},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", corpus, docID, err)
	}
	if len(out.IDs) == 0 {
		return nil, ErrNotFound
	}
	doc := &Document{ID: out.IDs[0]}
	if len(out.Documents) > 0 {
		doc.Text = out.Documents[0]
	}
	if len(out.Metadatas) > 0 {
		doc.Metadata = out.Metadatas[0]
	}
	return doc, nil
}

// Close releases resources.
func (s *ChromaStore) Close() error {
	return nil
}

func (s *ChromaStore) collectionID(ctx context.Context, corpus string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.collections[corpus]; ok {
		return id, nil
	}

	var out struct {
		ID string `json:"id"`
	}
	name := s.prefix + corpus
	if err := s.post(ctx, "/collections", map[string]interface{}{"name": name, "get_or_create": true}, &out); err != nil {
		return "", fmt.Errorf("get collection %s: %w", name, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("chroma returned empty id for collection %s", name)
	}
	s.collections[corpus] = out.ID
	return out.ID, nil
}

func (s *ChromaStore) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("chroma request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chroma request failed with status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode chroma response: %w", err)
	}
	return nil
}
