package similarity

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"honeytrail/internal/metrics"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PGVectorConfig configures the Postgres/pgvector backend.
type PGVectorConfig struct {
	DSN      string
	MaxConns int32
	Migrate  bool
}

// PGVectorStore keeps every corpus in one table, partitioned by corpus name.
type PGVectorStore struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

// Migrate applies the embedded schema migrations.
func Migrate(dsn string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// NewPGVectorStore connects to Postgres and optionally migrates the schema.
func NewPGVectorStore(ctx context.Context, cfg PGVectorConfig, embedder Embedder) (*PGVectorStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector DSN is empty")
	}
	if embedder == nil {
		return nil, fmt.Errorf("pgvector store requires an embedder")
	}
	if cfg.Migrate {
		if err := Migrate(cfg.DSN); err != nil {
			return nil, err
		}
	}

	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PGVectorStore{pool: pool, embedder: embedder}, nil
}

const searchSQL = `
SELECT doc_id, metadata, embedding <=> $2::vector AS distance
FROM corpus_documents
WHERE corpus = $1
ORDER BY distance
LIMIT $3`

const upsertSQL = `
INSERT INTO corpus_documents (corpus, doc_id, content, metadata, embedding)
VALUES ($1, $2, $3, $4::jsonb, $5::vector)
ON CONFLICT (corpus, doc_id) DO UPDATE
SET content = EXCLUDED.content,
    metadata = EXCLUDED.metadata,
    embedding = EXCLUDED.embedding,
    updated_at = now()`

// Search returns the k nearest documents by cosine distance.
func (s *PGVectorStore) Search(ctx context.Context, corpus, text string, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	start := time.Now()
	rows, err := s.pool.Query(ctx, searchSQL, corpus, vectorLiteral(vectors[0]), k)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", corpus, err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Metadata, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	metrics.ExternalCallSeconds.WithLabelValues("pgvector").Observe(time.Since(start).Seconds())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

// Upsert embeds and stores documents in one batch.
func (s *PGVectorStore) Upsert(ctx context.Context, corpus string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}

	batch := &pgx.Batch{}
	for i, d := range docs {
		meta, err := json.Marshal(FlattenMetadata(d.Metadata))
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", d.ID, err)
		}
		batch.Queue(upsertSQL, corpus, d.ID, d.Text, string(meta), vectorLiteral(vectors[i]))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, d := range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", corpus, d.ID, err)
		}
	}
	return nil
}

// Get fetches one document by id.
func (s *PGVectorStore) Get(ctx context.Context, corpus, id string) (*Document, error) {
	doc := &Document{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT content, metadata FROM corpus_documents WHERE corpus = $1 AND doc_id = $2`,
		corpus, id,
	).Scan(&doc.Text, &doc.Metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", corpus, id, err)
	}
	return doc, nil
}

// Close closes the connection pool.
func (s *PGVectorStore) Close() error {
	s.pool.Close()
	return nil
}

func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
