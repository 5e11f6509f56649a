package vector_store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/serisow/metrodoc/pipeline_type"
)

// VectorStore persists chunk embeddings and runs similarity queries. The
// embeddings live in the chunks table so deleting a chunk drops its vector.
type VectorStore interface {
	UpsertEmbedding(ctx context.Context, chunkID int64, embedding pgvector.Vector) (string, error)
	Search(ctx context.Context, query pgvector.Vector, limit int) ([]pipeline_type.SearchResult, error)
	SearchInDocument(ctx context.Context, docID int64, query pgvector.Vector, limit int) ([]pipeline_type.SearchResult, error)
}

type PgVectorStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPgVectorStore(pool *pgxpool.Pool, logger *slog.Logger) *PgVectorStore {
	return &PgVectorStore{pool: pool, logger: logger}
}

// UpsertEmbedding writes the vector onto the chunk row and returns the
// embedding id handed back to callers (the chunk uuid).
func (vs *PgVectorStore) UpsertEmbedding(ctx context.Context, chunkID int64, embedding pgvector.Vector) (string, error) {
	var embeddingID string
	err := vs.pool.QueryRow(ctx, `
		UPDATE chunks
		SET embedding = $1, embedding_id = uuid
		WHERE id = $2
		RETURNING uuid`, embedding, chunkID).Scan(&embeddingID)
	if err != nil {
		return "", fmt.Errorf("upsert embedding for chunk %d: %w", chunkID, err)
	}
	return embeddingID, nil
}

const searchColumns = `doc_id, id, chunk_no, text, 1 - (embedding <=> $1) AS similarity`

func (vs *PgVectorStore) Search(ctx context.Context, query pgvector.Vector, limit int) ([]pipeline_type.SearchResult, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := vs.pool.Query(ctx, `
		SELECT `+searchColumns+`
		FROM chunks
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func (vs *PgVectorStore) SearchInDocument(ctx context.Context, docID int64, query pgvector.Vector, limit int) ([]pipeline_type.SearchResult, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := vs.pool.Query(ctx, `
		SELECT `+searchColumns+`
		FROM chunks
		WHERE doc_id = $3 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`, query, limit, docID)
	if err != nil {
		return nil, fmt.Errorf("document similarity search: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

type pgRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanResults(rows pgRows) ([]pipeline_type.SearchResult, error) {
	var results []pipeline_type.SearchResult
	for rows.Next() {
		var r pipeline_type.SearchResult
		if err := rows.Scan(&r.DocID, &r.ChunkID, &r.ChunkNo, &r.Text, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
