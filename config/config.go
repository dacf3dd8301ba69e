package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"honeytrail/internal/layout"
	"honeytrail/internal/narrative"
	"honeytrail/internal/sensor"
)

// Config is the root configuration.
type Config struct {
	Honeytrail HoneytrailConfig `yaml:"honeytrail" mapstructure:"honeytrail"`
}

// HoneytrailConfig is the project configuration.
type HoneytrailConfig struct {
	Paths      layout.Layout    `yaml:"paths" mapstructure:"paths"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Sessionize SessionizeConfig `yaml:"sessionize" mapstructure:"sessionize"`
	Narrative  NarrativeConfig  `yaml:"narrative" mapstructure:"narrative"`
	Similarity SimilarityConfig `yaml:"similarity" mapstructure:"similarity"`
	Corpus     CorpusConfig     `yaml:"corpus" mapstructure:"corpus"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	GeoIP      GeoIPConfig      `yaml:"geoip" mapstructure:"geoip"`
	Publish    PublishConfig    `yaml:"publish" mapstructure:"publish"`
	API        APIConfig        `yaml:"api" mapstructure:"api"`
	Seed       SeedConfig       `yaml:"seed" mapstructure:"seed"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// FetchConfig controls the upstream OpenSearch pull.
type FetchConfig struct {
	URL      string        `yaml:"url" mapstructure:"url"`
	Username string        `yaml:"username" mapstructure:"username"`
	Password string        `yaml:"password" mapstructure:"password"`
	Insecure bool          `yaml:"insecure" mapstructure:"insecure"`
	Index    string        `yaml:"index" mapstructure:"index"`
	Types    []string      `yaml:"types" mapstructure:"types"`
	PageSize int           `yaml:"page_size" mapstructure:"page_size"`
	Since    string        `yaml:"since" mapstructure:"since"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// InputConfig controls queue input.
type InputConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig controls the Redis list queue.
type RedisConfig struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	Key          string        `yaml:"key" mapstructure:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
}

// PipelineConfig controls pipeline behavior.
type PipelineConfig struct {
	Workers       int           `yaml:"workers" mapstructure:"workers"`
	BatchSize     int           `yaml:"batch_size" mapstructure:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval"`
}

// SessionizeConfig controls time-window grouping.
type SessionizeConfig struct {
	Windows sensor.Windows `yaml:"windows" mapstructure:"windows"`
}

// NarrativeConfig controls the chat model used by analyze.
type NarrativeConfig struct {
	BaseURL     string            `yaml:"base_url" mapstructure:"base_url"`
	Model       string            `yaml:"model" mapstructure:"model"`
	APIKeyEnv   string            `yaml:"api_key_env" mapstructure:"api_key_env"`
	Temperature float64           `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	MaxEvents   int               `yaml:"max_events" mapstructure:"max_events"`
	Validate    bool              `yaml:"validate" mapstructure:"validate"`
	Headers     map[string]string `yaml:"headers" mapstructure:"headers"`
}

// SimilarityConfig selects the vector store and its cache.
type SimilarityConfig struct {
	Backend  string         `yaml:"backend" mapstructure:"backend"` // chroma|pgvector
	Embedder EmbedderConfig `yaml:"embedder" mapstructure:"embedder"`
	Chroma   ChromaConfig   `yaml:"chroma" mapstructure:"chroma"`
	PGVector PGVectorConfig `yaml:"pgvector" mapstructure:"pgvector"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
}

// EmbedderConfig controls the embeddings endpoint.
type EmbedderConfig struct {
	BaseURL   string        `yaml:"base_url" mapstructure:"base_url"`
	Model     string        `yaml:"model" mapstructure:"model"`
	APIKeyEnv string        `yaml:"api_key_env" mapstructure:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ChromaConfig controls the Chroma REST backend.
type ChromaConfig struct {
	URL              string            `yaml:"url" mapstructure:"url"`
	CollectionPrefix string            `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	Timeout          time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Headers          map[string]string `yaml:"headers" mapstructure:"headers"`
}

// PGVectorConfig controls the Postgres backend.
type PGVectorConfig struct {
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	Migrate  bool   `yaml:"migrate" mapstructure:"migrate"`
}

// CacheConfig controls similarity result caching.
type CacheConfig struct {
	Mode      string        `yaml:"mode" mapstructure:"mode"` // none|lru|redis
	Size      int           `yaml:"size" mapstructure:"size"`
	Addr      string        `yaml:"addr" mapstructure:"addr"`
	Password  string        `yaml:"password" mapstructure:"password"`
	DB        int           `yaml:"db" mapstructure:"db"`
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// CorpusConfig points at the reference corpora on disk.
type CorpusConfig struct {
	Mitre    string `yaml:"mitre" mapstructure:"mitre"`
	Sigma    string `yaml:"sigma" mapstructure:"sigma"`
	Suricata string `yaml:"suricata" mapstructure:"suricata"`
}

// EnrichConfig controls the enrichment passes.
type EnrichConfig struct {
	Passes  []string      `yaml:"passes" mapstructure:"passes"`
	TopK    int           `yaml:"top_k" mapstructure:"top_k"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// GeoIPConfig points at MaxMind databases for the geo pass.
type GeoIPConfig struct {
	CityDB string `yaml:"city_db" mapstructure:"city_db"`
	ASNDB  string `yaml:"asn_db" mapstructure:"asn_db"`
}

// PublishConfig controls where enriched records are sent.
type PublishConfig struct {
	Mode       string                 `yaml:"mode" mapstructure:"mode"` // none|file|http|clickhouse|nats|kafka
	File       FileOutputConfig       `yaml:"file" mapstructure:"file"`
	HTTP       HTTPOutputConfig       `yaml:"http" mapstructure:"http"`
	ClickHouse ClickHouseOutputConfig `yaml:"clickhouse" mapstructure:"clickhouse"`
	NATS       NATSOutputConfig       `yaml:"nats" mapstructure:"nats"`
	Kafka      KafkaOutputConfig      `yaml:"kafka" mapstructure:"kafka"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url" mapstructure:"url"`
	Timeout time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
}

// ClickHouseOutputConfig config for ClickHouse HTTP JSONEachRow writes.
type ClickHouseOutputConfig struct {
	URL      string            `yaml:"url" mapstructure:"url"`
	Database string            `yaml:"database" mapstructure:"database"`
	Table    string            `yaml:"table" mapstructure:"table"`
	Username string            `yaml:"username" mapstructure:"username"`
	Password string            `yaml:"password" mapstructure:"password"`
	Timeout  time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Headers  map[string]string `yaml:"headers" mapstructure:"headers"`
}

// NATSOutputConfig config for NATS publishing.
type NATSOutputConfig struct {
	URL           string        `yaml:"url" mapstructure:"url"`
	SubjectPrefix string        `yaml:"subject_prefix" mapstructure:"subject_prefix"`
	MaxReconnects int           `yaml:"max_reconnects" mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait" mapstructure:"reconnect_wait"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Username      string        `yaml:"username" mapstructure:"username"`
	Password      string        `yaml:"password" mapstructure:"password"`
	Token         string        `yaml:"token" mapstructure:"token"`
}

// KafkaOutputConfig config for Kafka publishing.
type KafkaOutputConfig struct {
	Brokers []string      `yaml:"brokers" mapstructure:"brokers"`
	Topic   string        `yaml:"topic" mapstructure:"topic"`
	Version string        `yaml:"version" mapstructure:"version"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// APIConfig controls the read API server.
type APIConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// SeedConfig controls synthetic hit generation.
type SeedConfig struct {
	Sessions int           `yaml:"sessions" mapstructure:"sessions"`
	Span     time.Duration `yaml:"span" mapstructure:"span"`
	Seed     int64         `yaml:"seed" mapstructure:"seed"`
	SensorIP string        `yaml:"sensor_ip" mapstructure:"sensor_ip"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file" mapstructure:"file"`
	Console    bool   `yaml:"console" mapstructure:"console"`
	JSON       bool   `yaml:"json" mapstructure:"json"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// legacyEnv maps the environment variables of the shell-driven deployment
// onto their keys. HONEYTRAIL_* variables take precedence.
var legacyEnv = map[string]string{
	"honeytrail.paths.raw_dir":         "ETL_DATA_DIR",
	"honeytrail.paths.normalized_dir":  "TPOT_NORMALIZED_DIR",
	"honeytrail.paths.sessionized_dir": "TPOT_SESSIONIZED_DIR",
	"honeytrail.paths.analysis_dir":    "TPOT_AI_LAYER1_DIR",
	"honeytrail.paths.enriched_dir":    "TPOT_ENRICHED_DIR",
	"honeytrail.fetch.url":             "TPOT_HOST",
	"honeytrail.fetch.username":        "TPOT_USER",
	"honeytrail.fetch.password":        "TPOT_PASS",
	"honeytrail.fetch.index":           "TPOT_INDEX",
	"honeytrail.fetch.page_size":       "TPOT_PAGE_SIZE",
}

// LoadConfig reads a YAML config file, applies defaults and environment
// overrides. A missing file is not an error; defaults and environment apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envName(key), legacy); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// SetDefaults registers every documented default.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("honeytrail.paths.raw_dir", "/data/tpot_sessions/raw")
	v.SetDefault("honeytrail.paths.normalized_dir", "/data/tpot_sessions/normalized")
	v.SetDefault("honeytrail.paths.sessionized_dir", "/data/tpot_sessions/sessionized")
	v.SetDefault("honeytrail.paths.analysis_dir", "/data/tpot_sessions/ai_layer1")
	v.SetDefault("honeytrail.paths.enriched_dir", "/data/tpot_sessions/enriched")

	v.SetDefault("honeytrail.fetch.url", "")
	v.SetDefault("honeytrail.fetch.username", "")
	v.SetDefault("honeytrail.fetch.password", "")
	v.SetDefault("honeytrail.fetch.insecure", true)
	v.SetDefault("honeytrail.fetch.index", "logstash-*")
	v.SetDefault("honeytrail.fetch.types", []string{"Cowrie", "Dionaea", "Wordpot", "Suricata"})
	v.SetDefault("honeytrail.fetch.page_size", 500)
	v.SetDefault("honeytrail.fetch.since", "")
	v.SetDefault("honeytrail.fetch.timeout", "30s")

	v.SetDefault("honeytrail.input.redis.addr", "127.0.0.1:6379")
	v.SetDefault("honeytrail.input.redis.password", "")
	v.SetDefault("honeytrail.input.redis.db", 0)
	v.SetDefault("honeytrail.input.redis.key", "tpot_hits")
	v.SetDefault("honeytrail.input.redis.block_timeout", "5s")

	v.SetDefault("honeytrail.pipeline.workers", 4)
	v.SetDefault("honeytrail.pipeline.batch_size", 500)
	v.SetDefault("honeytrail.pipeline.flush_interval", "5s")

	def := sensor.DefaultWindows()
	v.SetDefault("honeytrail.sessionize.windows.wordpot", def.Wordpot.String())
	v.SetDefault("honeytrail.sessionize.windows.dionaea", def.Dionaea.String())
	v.SetDefault("honeytrail.sessionize.windows.suricata", def.Suricata.String())

	v.SetDefault("honeytrail.narrative.base_url", "https://api.openai.com/v1")
	v.SetDefault("honeytrail.narrative.model", "gpt-4o-mini")
	v.SetDefault("honeytrail.narrative.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("honeytrail.narrative.temperature", 0.2)
	v.SetDefault("honeytrail.narrative.timeout", "60s")
	v.SetDefault("honeytrail.narrative.max_events", narrative.DefaultMaxEvents)
	v.SetDefault("honeytrail.narrative.validate", true)

	v.SetDefault("honeytrail.similarity.backend", "chroma")
	v.SetDefault("honeytrail.similarity.embedder.base_url", "https://api.openai.com/v1")
	v.SetDefault("honeytrail.similarity.embedder.model", "text-embedding-3-small")
	v.SetDefault("honeytrail.similarity.embedder.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("honeytrail.similarity.embedder.timeout", "30s")
	v.SetDefault("honeytrail.similarity.chroma.url", "http://127.0.0.1:8000/api/v1")
	v.SetDefault("honeytrail.similarity.chroma.collection_prefix", "")
	v.SetDefault("honeytrail.similarity.chroma.timeout", "30s")
	v.SetDefault("honeytrail.similarity.pgvector.dsn", "")
	v.SetDefault("honeytrail.similarity.pgvector.max_conns", 8)
	v.SetDefault("honeytrail.similarity.pgvector.migrate", true)
	v.SetDefault("honeytrail.similarity.cache.mode", "lru")
	v.SetDefault("honeytrail.similarity.cache.size", 1024)
	v.SetDefault("honeytrail.similarity.cache.addr", "127.0.0.1:6379")
	v.SetDefault("honeytrail.similarity.cache.password", "")
	v.SetDefault("honeytrail.similarity.cache.db", 0)
	v.SetDefault("honeytrail.similarity.cache.key_prefix", "honeytrail:similarity")
	v.SetDefault("honeytrail.similarity.cache.ttl", "24h")

	v.SetDefault("honeytrail.corpus.mitre", "data/mitre/enterprise-attack.json")
	v.SetDefault("honeytrail.corpus.sigma", "data/sigma/rules")
	v.SetDefault("honeytrail.corpus.suricata", "data/suricata/rules")

	v.SetDefault("honeytrail.enrich.passes", []string{"mitre", "sigma", "suricata", "crosslink"})
	v.SetDefault("honeytrail.enrich.top_k", 5)
	v.SetDefault("honeytrail.enrich.timeout", "60s")

	v.SetDefault("honeytrail.geoip.city_db", "")
	v.SetDefault("honeytrail.geoip.asn_db", "")

	v.SetDefault("honeytrail.publish.mode", "none")
	v.SetDefault("honeytrail.publish.file.path", "output/analysis.jsonl")
	v.SetDefault("honeytrail.publish.http.url", "")
	v.SetDefault("honeytrail.publish.http.timeout", "5s")
	v.SetDefault("honeytrail.publish.clickhouse.url", "http://127.0.0.1:8123")
	v.SetDefault("honeytrail.publish.clickhouse.database", "default")
	v.SetDefault("honeytrail.publish.clickhouse.table", "honeytrail_sessions")
	v.SetDefault("honeytrail.publish.clickhouse.username", "")
	v.SetDefault("honeytrail.publish.clickhouse.password", "")
	v.SetDefault("honeytrail.publish.clickhouse.timeout", "5s")
	v.SetDefault("honeytrail.publish.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("honeytrail.publish.nats.subject_prefix", "honeytrail.analysis")
	v.SetDefault("honeytrail.publish.nats.max_reconnects", 10)
	v.SetDefault("honeytrail.publish.nats.reconnect_wait", "2s")
	v.SetDefault("honeytrail.publish.nats.timeout", "5s")
	v.SetDefault("honeytrail.publish.nats.username", "")
	v.SetDefault("honeytrail.publish.nats.password", "")
	v.SetDefault("honeytrail.publish.nats.token", "")
	v.SetDefault("honeytrail.publish.kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("honeytrail.publish.kafka.topic", "honeytrail-analysis")
	v.SetDefault("honeytrail.publish.kafka.version", "")
	v.SetDefault("honeytrail.publish.kafka.timeout", "30s")

	v.SetDefault("honeytrail.api.addr", ":8080")
	v.SetDefault("honeytrail.api.allowed_origins", []string{"*"})
	v.SetDefault("honeytrail.api.read_timeout", "30s")
	v.SetDefault("honeytrail.api.write_timeout", "30s")

	v.SetDefault("honeytrail.seed.sessions", 20)
	v.SetDefault("honeytrail.seed.span", "24h")
	v.SetDefault("honeytrail.seed.seed", 1)
	v.SetDefault("honeytrail.seed.sensor_ip", "10.0.0.5")

	v.SetDefault("honeytrail.logging.enabled", true)
	v.SetDefault("honeytrail.logging.level", "info")
	v.SetDefault("honeytrail.logging.file", "")
	v.SetDefault("honeytrail.logging.console", true)
	v.SetDefault("honeytrail.logging.json", false)
	v.SetDefault("honeytrail.logging.max_size_mb", 100)
	v.SetDefault("honeytrail.logging.max_backups", 5)
	v.SetDefault("honeytrail.logging.max_age_days", 30)
}

// KnownPasses lists the enrichment pass names accepted in enrich.passes.
var KnownPasses = []string{"mitre", "sigma", "suricata", "crosslink", "geo"}

// Validate rejects values no component can act on.
func (c *Config) Validate() error {
	h := c.Honeytrail
	switch h.Similarity.Backend {
	case "chroma", "pgvector":
	default:
		return fmt.Errorf("unknown similarity backend %q", h.Similarity.Backend)
	}
	switch h.Similarity.Cache.Mode {
	case "", "none", "lru", "redis":
	default:
		return fmt.Errorf("unknown similarity cache mode %q", h.Similarity.Cache.Mode)
	}
	switch h.Publish.Mode {
	case "", "none", "file", "http", "clickhouse", "nats", "kafka":
	default:
		return fmt.Errorf("unknown publish mode %q", h.Publish.Mode)
	}
	for _, p := range h.Enrich.Passes {
		if !contains(KnownPasses, p) {
			return fmt.Errorf("unknown enrich pass %q", p)
		}
	}
	if h.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be positive")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
