package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"nutriplan/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore keeps each collection in its own pgvector table and tracks
// them in the kb_collections registry.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

var _ VectorStorer = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, connStr string, log *logger.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
		log:  logger.OrNop(log).With("store", "postgres"),
	}, nil
}

// Init creates the vector extension and the collection registry.
func (p *PostgresStore) Init(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS kb_collections (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		metric TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, "SELECT name FROM kb_collections ORDER BY name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (p *PostgresStore) CreateCollection(ctx context.Context, name string, dimension int, metric string) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	if metric != MetricCosine {
		return fmt.Errorf("unsupported metric %q", metric)
	}
	table := pgx.Identifier{name}.Sanitize()
	index := pgx.Identifier{"idx_" + name + "_embedding"}.Sanitize()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"INSERT INTO kb_collections (name, dimension, metric) VALUES ($1, $2, $3)",
		name, dimension, metric); err != nil {
		return fmt.Errorf("register collection %s: %w", name, err)
	}
	// dimension is an int, so formatting it into DDL is safe
	ddl := fmt.Sprintf(`
	CREATE TABLE %s (
		id TEXT PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		metadata JSONB
	);
	CREATE INDEX %s ON %s USING hnsw (embedding vector_cosine_ops);
	`, table, dimension, index, table)
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create collection table %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	p.log.Info("[STORE] collection created", "collection", name, "dimension", dimension)
	return nil
}

func (p *PostgresStore) DeleteCollection(ctx context.Context, name string) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM kb_collections WHERE name = $1", name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	_, err = p.pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{name}.Sanitize())
	return err
}

func (p *PostgresStore) Upsert(ctx context.Context, collection string, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(`
	INSERT INTO %s (id, embedding, metadata)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE SET
		embedding = EXCLUDED.embedding,
		metadata = EXCLUDED.metadata
	`, pgx.Identifier{collection}.Sanitize())

	batch := &pgx.Batch{}
	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return 0, fmt.Errorf("record %s: encode metadata: %w", r.ID, err)
		}
		batch.Queue(query, r.ID, pgvector.NewVector(r.Values), meta)
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	written := 0
	for range records {
		if _, err := br.Exec(); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func (p *PostgresStore) Query(ctx context.Context, collection string, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	if len(vector) == 0 {
		return nil, errors.New("empty query vector")
	}
	query := fmt.Sprintf(`
		SELECT id, metadata, 1-(embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgx.Identifier{collection}.Sanitize())

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m   Match
			raw []byte
		)
		if err := rows.Scan(&m.ID, &raw, &m.Score); err != nil {
			return nil, err
		}
		if includeMetadata && len(raw) > 0 {
			if err := json.Unmarshal(raw, &m.Metadata); err != nil {
				return nil, fmt.Errorf("match %s: decode metadata: %w", m.ID, err)
			}
		}
		p.log.Debug("[SEARCH] match", "id", m.ID, "score", m.Score)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (p *PostgresStore) Describe(ctx context.Context, collection string) (Stats, error) {
	var stats Stats
	err := p.pool.QueryRow(ctx, "SELECT dimension FROM kb_collections WHERE name = $1", collection).Scan(&stats.Dimension)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stats{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if err != nil {
		return Stats{}, err
	}
	err = p.pool.QueryRow(ctx, "SELECT count(*) FROM "+pgx.Identifier{collection}.Sanitize()).Scan(&stats.TotalVectorCount)
	return stats, err
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.log.Info("Postgres connection pool is closed")
	}
	return nil
}
