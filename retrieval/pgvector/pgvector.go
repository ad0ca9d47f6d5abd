// Package pgvector implements core.Retriever on PostgreSQL with the pgvector
// extension. It expects an already-populated passages table of the shape
//
//	CREATE TABLE passages (
//	    id        TEXT PRIMARY KEY,
//	    content   TEXT NOT NULL,
//	    metadata  JSONB NOT NULL DEFAULT '{}',
//	    embedding VECTOR(512) NOT NULL
//	);
//
// built by the external ingestion pipeline. Queries rank by cosine distance.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/oscesim/oscesim/core"
)

// Options configure the store.
type Options struct {
	// Table is the passages table name.
	Table string
}

// Store answers similarity queries from a pgvector-backed passages table.
type Store struct {
	pool *pgxpool.Pool
	opts Options
}

var _ core.Retriever = (*Store)(nil)

// NewStore wraps an existing connection pool. The pool must have pgvector
// types registered (see Connect).
func NewStore(pool *pgxpool.Pool, optFns ...func(o *Options)) *Store {
	opts := Options{Table: "passages"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{pool: pool, opts: opts}
}

// Connect opens a pool against dsn with pgvector type support registered on
// every connection.
func Connect(ctx context.Context, dsn string, optFns ...func(o *Options)) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return NewStore(pool, optFns...), nil
}

// Query implements core.Retriever using the cosine distance operator. Score
// is 1 - distance so higher remains better, matching the in-memory index.
func (s *Store) Query(ctx context.Context, vector []float32, k int, filter map[string]string) ([]core.Passage, error) {
	if k <= 0 {
		return []core.Passage{}, nil
	}

	query := fmt.Sprintf(
		`SELECT id, content, metadata, 1 - (embedding <=> $1) AS score
		 FROM %s WHERE metadata @> $2
		 ORDER BY embedding <=> $1, id LIMIT $3`, s.opts.Table)

	filterJSON, err := json.Marshal(nonNil(filter))
	if err != nil {
		return nil, fmt.Errorf("%w: encode filter: %v", core.ErrRetrievalUnavailable, err)
	}

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), filterJSON, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRetrievalUnavailable, err)
	}
	defer rows.Close()

	var passages []core.Passage
	for rows.Next() {
		var p core.Passage
		if err := rows.Scan(&p.ID, &p.Content, &p.Metadata, &p.Score); err != nil {
			return nil, fmt.Errorf("%w: scan passage: %v", core.ErrRetrievalUnavailable, err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRetrievalUnavailable, err)
	}
	return passages, nil
}

// Close releases the underlying pool.
func (s *Store) Close() { s.pool.Close() }

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
