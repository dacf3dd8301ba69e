// Package opensearch pages raw honeypot hits out of the T-Pot Elastic/OpenSearch store.
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"honeytrail/internal/logger"
	"honeytrail/internal/metrics"
)

// Config configures the hit fetcher.
type Config struct {
	URL      string
	Username string
	Password string
	Insecure bool
	Index    string
	Types    []string
	PageSize int
	Since    string
	Timeout  time.Duration
}

// DefaultTypes are the sensor type tags the pipeline understands.
var DefaultTypes = []string{"Cowrie", "Dionaea", "Wordpot", "Suricata"}

// Fetcher walks the index in (@timestamp, _id) order using search_after.
type Fetcher struct {
	client   *opensearch.Client
	index    string
	types    []string
	pageSize int
	since    string
	timeout  time.Duration
}

// NewFetcher creates the client and checks the cluster answers.
func NewFetcher(ctx context.Context, cfg Config) (*Fetcher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("opensearch URL is empty")
	}
	if cfg.Index == "" {
		cfg.Index = "logstash-*"
	}
	if len(cfg.Types) == 0 {
		cfg.Types = DefaultTypes
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Insecure},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()
	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	return &Fetcher{
		client:   client,
		index:    cfg.Index,
		types:    cfg.Types,
		pageSize: cfg.PageSize,
		since:    cfg.Since,
		timeout:  cfg.Timeout,
	}, nil
}

type searchResult struct {
	Hits struct {
		Hits []json.RawMessage `json:"hits"`
	} `json:"hits"`
}

// Query builds the request body for one page.
func (f *Fetcher) Query(searchAfter []interface{}) map[string]interface{} {
	must := []interface{}{
		map[string]interface{}{"terms": map[string]interface{}{"type.keyword": f.types}},
	}
	if f.since != "" {
		must = append(must, map[string]interface{}{
			"range": map[string]interface{}{"@timestamp": map[string]interface{}{"gte": f.since}},
		})
	}
	query := map[string]interface{}{
		"size": f.pageSize,
		"sort": []interface{}{
			map[string]interface{}{"@timestamp": "asc"},
			map[string]interface{}{"_id": "asc"},
		},
		"query": map[string]interface{}{"bool": map[string]interface{}{"must": must}},
	}
	if len(searchAfter) > 0 {
		query["search_after"] = searchAfter
	}
	return query
}

// Fetch returns every matching hit, unmodified, in sort order. It stops at
// the first empty or short page.
func (f *Fetcher) Fetch(ctx context.Context) ([][]byte, error) {
	var all [][]byte
	var after []interface{}
	for page := 1; ; page++ {
		hits, err := f.page(ctx, after)
		if err != nil {
			return all, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if len(hits) == 0 {
			break
		}
		for _, h := range hits {
			all = append(all, []byte(h))
		}
		metrics.RawRecords.Add(float64(len(hits)))
		logger.Infof("Fetched batch %d (%d docs)", page, len(hits))

		after, err = sortValues(hits[len(hits)-1])
		if err != nil {
			return all, err
		}
		if len(hits) < f.pageSize || len(after) == 0 {
			break
		}
	}
	return all, nil
}

func (f *Fetcher) page(ctx context.Context, after []interface{}) ([]json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(f.Query(after)); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	started := time.Now()
	res, err := f.client.Search(
		f.client.Search.WithContext(ctx),
		f.client.Search.WithIndex(f.index),
		f.client.Search.WithBody(&buf),
	)
	metrics.ExternalCallSeconds.WithLabelValues("opensearch").Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var result searchResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Hits.Hits, nil
}

func sortValues(hit json.RawMessage) ([]interface{}, error) {
	var h struct {
		Sort []interface{} `json:"sort"`
	}
	dec := json.NewDecoder(bytes.NewReader(hit))
	dec.UseNumber()
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("decode sort values: %w", err)
	}
	return h.Sort, nil
}
