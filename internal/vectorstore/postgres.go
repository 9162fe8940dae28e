// Package vectorstore persists and searches chunk embeddings in Postgres
// with the pgvector extension. Entries are partitioned by namespace so
// concurrent requests never see each other's chunks.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/claryon/docqa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Match is a nearest-neighbor search hit.
type Match struct {
	ID    string
	Score float64
	Text  string
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store is a namespaced vector index backed by a pgvector table.
type Store struct {
	db querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// EnsureSchema creates the pgvector extension, the chunk table, and its
// indexes if they do not exist. Idempotent; called once at process startup.
// The vector column is fixed at the given dimension for the life of the
// table — every entry ever written must match it.
func (s *Store) EnsureSchema(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			namespace  text NOT NULL,
			id         text NOT NULL,
			content    text NOT NULL,
			embedding  vector(%d) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, id)
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx
			ON document_chunks USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure vector schema: %w", err)
		}
	}

	return nil
}

// Upsert inserts or overwrites chunks under the given namespace. Chunk IDs
// are unique only within a namespace.
func (s *Store) Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) error {
	for _, c := range chunks {
		_, err := s.db.Exec(ctx,
			`INSERT INTO document_chunks (namespace, id, content, embedding)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (namespace, id)
			 DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
			namespace,
			c.ID,
			c.Text,
			pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
		}
	}

	return nil
}

// Query returns up to topK chunks nearest to the given vector by cosine
// similarity, restricted to the namespace. An empty namespace yields an
// empty result, not an error.
func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}

	vec := pgvector.NewVector(vector)

	rows, err := s.db.Query(ctx,
		`SELECT id, content, 1.0 - (embedding <=> $2) AS score
		 FROM document_chunks
		 WHERE namespace = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		namespace, vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, topK)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Text, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// DeleteNamespace removes every chunk under the namespace. Deleting an empty
// or already-deleted namespace is a no-op, not an error.
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM document_chunks WHERE namespace = $1`, namespace); err != nil {
		return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
	}
	return nil
}
