package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	h := cfg.Honeytrail
	assert.Equal(t, "/data/tpot_sessions/enriched", h.Paths.Enriched)
	assert.Equal(t, "logstash-*", h.Fetch.Index)
	assert.Equal(t, 500, h.Fetch.PageSize)
	assert.Equal(t, []string{"Cowrie", "Dionaea", "Wordpot", "Suricata"}, h.Fetch.Types)
	assert.Equal(t, 5*time.Minute, h.Sessionize.Windows.Wordpot)
	assert.Equal(t, 20*time.Minute, h.Sessionize.Windows.Dionaea)
	assert.Equal(t, 30*time.Second, h.Sessionize.Windows.Suricata)
	assert.Equal(t, "chroma", h.Similarity.Backend)
	assert.Equal(t, 24*time.Hour, h.Similarity.Cache.TTL)
	assert.Equal(t, []string{"mitre", "sigma", "suricata", "crosslink"}, h.Enrich.Passes)
	assert.Equal(t, 5, h.Enrich.TopK)
	assert.Equal(t, "none", h.Publish.Mode)
	assert.Equal(t, 4, h.Pipeline.Workers)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "honeytrail.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
honeytrail:
  paths:
    enriched_dir: /srv/enriched
  sessionize:
    windows:
      suricata: 45s
  publish:
    mode: kafka
    kafka:
      brokers: ["k1:9092", "k2:9092"]
  enrich:
    passes: [mitre, geo]
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	h := cfg.Honeytrail
	assert.Equal(t, "/srv/enriched", h.Paths.Enriched)
	assert.Equal(t, "/data/tpot_sessions/raw", h.Paths.Raw)
	assert.Equal(t, 45*time.Second, h.Sessionize.Windows.Suricata)
	assert.Equal(t, 5*time.Minute, h.Sessionize.Windows.Wordpot)
	assert.Equal(t, "kafka", h.Publish.Mode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, h.Publish.Kafka.Brokers)
	assert.Equal(t, []string{"mitre", "geo"}, h.Enrich.Passes)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("HONEYTRAIL_PIPELINE_WORKERS", "9")
	t.Setenv("TPOT_NORMALIZED_DIR", "/legacy/normalized")
	t.Setenv("TPOT_ENRICHED_DIR", "/legacy/enriched")
	t.Setenv("HONEYTRAIL_PATHS_ENRICHED_DIR", "/modern/enriched")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	h := cfg.Honeytrail
	assert.Equal(t, 9, h.Pipeline.Workers)
	assert.Equal(t, "/legacy/normalized", h.Paths.Normalized)
	assert.Equal(t, "/modern/enriched", h.Paths.Enriched)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"backend": "honeytrail:\n  similarity:\n    backend: faiss\n",
		"publish": "honeytrail:\n  publish:\n    mode: smtp\n",
		"pass":    "honeytrail:\n  enrich:\n    passes: [mitre, capec]\n",
		"cache":   "honeytrail:\n  similarity:\n    cache:\n      mode: memcached\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "honeytrail.yml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := LoadConfig(path)
			require.Error(t, err)
		})
	}
}
