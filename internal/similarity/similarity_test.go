package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 0.5}
	}
	return out, nil
}

type countingSearcher struct {
	calls   int
	matches []Match
	err     error
}

func (c *countingSearcher) Search(_ context.Context, _, _ string, _ int) ([]Match, error) {
	c.calls++
	return c.matches, c.err
}

func TestFlattenMetadata(t *testing.T) {
	out := FlattenMetadata(map[string]interface{}{
		"tid":     "T1059",
		"tactics": []string{"execution", "persistence"},
		"mixed":   []interface{}{"a", 1},
		"missing": nil,
		"sub":     true,
	})
	if out["tactics"] != "execution,persistence" {
		t.Fatalf("expected joined tactics, got %v", out["tactics"])
	}
	if out["mixed"] != "a,1" {
		t.Fatalf("expected joined mixed list, got %v", out["mixed"])
	}
	if _, ok := out["missing"]; ok {
		t.Fatalf("expected nil value to be dropped")
	}
	if out["sub"] != true {
		t.Fatalf("expected bool to be kept, got %v", out["sub"])
	}
}

func TestSortByDistance(t *testing.T) {
	matches := []Match{{ID: "c", Distance: 0.9}, {ID: "a", Distance: 0.1}, {ID: "b", Distance: 0.1}}
	SortByDistance(matches)
	if matches[0].ID != "a" || matches[1].ID != "b" || matches[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", matches)
	}
}

func TestVectorLiteral(t *testing.T) {
	if got := vectorLiteral([]float32{1, 0.25, -2}); got != "[1,0.25,-2]" {
		t.Fatalf("expected [1,0.25,-2], got %s", got)
	}
}

func TestChromaStore_SearchAndUpsert(t *testing.T) {
	var upserted map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/collections":
			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ht_mitre", req["name"])
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-1"})
		case "/api/v1/collections/col-1/query":
			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.EqualValues(t, 2, req["n_results"])
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ids":       [][]string{{"T1110", "T1059"}},
				"metadatas": [][]map[string]interface{}{{{"tid": "T1110"}, {"tid": "T1059"}}},
				"distances": [][]float64{{0.4, 0.2}},
			})
		case "/api/v1/collections/col-1/upsert":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&upserted))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("true"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	store, err := NewChromaStore(ChromaConfig{URL: server.URL, CollectionPrefix: "ht_"}, &fakeEmbedder{})
	require.NoError(t, err)

	matches, err := store.Search(context.Background(), "mitre", "ssh brute force", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "T1059", matches[0].ID)
	assert.Equal(t, 0.2, matches[0].Distance)
	assert.Equal(t, "T1110", matches[1].Metadata["tid"])

	err = store.Upsert(context.Background(), "mitre", []Document{
		{ID: "T1059", Text: "Command and Scripting Interpreter", Metadata: map[string]interface{}{"tactics": []string{"execution"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"T1059"}, upserted["ids"])
	metas := upserted["metadatas"].([]interface{})
	assert.Equal(t, "execution", metas[0].(map[string]interface{})["tactics"])
}

func TestChromaStore_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	store, err := NewChromaStore(ChromaConfig{URL: server.URL}, &fakeEmbedder{})
	require.NoError(t, err)

	_, err = store.Search(context.Background(), "sigma", "x", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestCachedSearcher_LRU(t *testing.T) {
	cache, err := NewLRUCache(8)
	require.NoError(t, err)
	next := &countingSearcher{matches: []Match{{ID: "T1110", Distance: 0.1}}}
	searcher := NewCachedSearcher(next, cache)

	for i := 0; i < 3; i++ {
		matches, err := searcher.Search(context.Background(), "mitre", "brute force", 5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
	}
	assert.Equal(t, 1, next.calls)

	_, err = searcher.Search(context.Background(), "mitre", "brute force", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedSearcher_ErrorsNotCached(t *testing.T) {
	cache, err := NewLRUCache(8)
	require.NoError(t, err)
	next := &countingSearcher{err: errors.New("unavailable")}
	searcher := NewCachedSearcher(next, cache)

	_, err = searcher.Search(context.Background(), "sigma", "q", 5)
	require.Error(t, err)
	_, err = searcher.Search(context.Background(), "sigma", "q", 5)
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestRedisCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := NewRedisCache(RedisCacheConfig{Addr: mr.Addr(), KeyPrefix: "test:sim"})
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	key := QueryKey("suricata", "ET SCAN", 5)
	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	cache.Set(ctx, key, []Match{{ID: "2001219", Metadata: map[string]interface{}{"msg": "ET SCAN"}, Distance: 0.3}})
	assert.True(t, mr.Exists("test:sim:"+key))

	matches, ok := cache.Get(ctx, key)
	require.True(t, ok)
	require.Len(t, matches, 1)
	assert.Equal(t, "2001219", matches[0].ID)
	assert.Equal(t, "ET SCAN", matches[0].Metadata["msg"])
}

func TestRedisCache_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(RedisCacheConfig{Addr: addr})
	require.Error(t, err)
}

func TestQueryKey_Distinct(t *testing.T) {
	if QueryKey("mitre", "a", 5) == QueryKey("sigma", "a", 5) {
		t.Fatalf("expected corpus to change key")
	}
	if QueryKey("mitre", "a", 5) == QueryKey("mitre", "a", 6) {
		t.Fatalf("expected k to change key")
	}
}

func TestChromaStore_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/collections":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "col-s"})
		case "/api/v1/collections/col-s/get":
			var req struct {
				IDs []string `json:"ids"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.IDs[0] != "rule-1" {
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"ids": []string{}})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ids":       []string{"rule-1"},
				"documents": []string{"Title: Wget"},
				"metadatas": []map[string]interface{}{{"sid": "rule-1", "level": "high"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	store, err := NewChromaStore(ChromaConfig{URL: server.URL}, &fakeEmbedder{})
	require.NoError(t, err)

	doc, err := store.Get(context.Background(), "sigma", "rule-1")
	require.NoError(t, err)
	assert.Equal(t, "Title: Wget", doc.Text)
	assert.Equal(t, "high", doc.Metadata["level"])

	_, err = store.Get(context.Background(), "sigma", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
