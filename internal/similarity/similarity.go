// Package similarity provides nearest-neighbour search over reference corpora
// (MITRE ATT&CK, Sigma, Suricata) backed by a vector store.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Match is one search result. Lower distance is closer.
type Match struct {
	ID       string                 `json:"id"`
	Metadata map[string]interface{} `json:"metadata"`
	Distance float64                `json:"distance"`
}

// Document is a corpus entry to be indexed.
type Document struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"document"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Searcher returns the k nearest corpus entries to text, nearest first.
type Searcher interface {
	Search(ctx context.Context, corpus, text string, k int) ([]Match, error)
}

// ErrNotFound is returned by Get when a document id is absent.
var ErrNotFound = errors.New("document not found")

// Store is a Searcher that can also index and fetch documents.
type Store interface {
	Searcher
	Upsert(ctx context.Context, corpus string, docs []Document) error
	Get(ctx context.Context, corpus, id string) (*Document, error)
	Close() error
}

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// FlattenMetadata keeps only primitive values; lists are comma-joined and
// nil values dropped, since vector stores reject nested metadata.
func FlattenMetadata(meta map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case nil:
			continue
		case string, bool, int, int64, float32, float64:
			out[k] = val
		case []string:
			out[k] = strings.Join(val, ",")
		case []interface{}:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			out[k] = strings.Join(parts, ",")
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// SortByDistance orders matches nearest first, keeping ties stable.
func SortByDistance(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
}
