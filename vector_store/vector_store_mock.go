package vector_store

import (
	"context"
	"fmt"
	"sync"

	"github.com/pgvector/pgvector-go"

	"github.com/serisow/metrodoc/pipeline_type"
)

type MockVectorStore struct {
	mu        sync.Mutex
	Upserted  map[int64]pgvector.Vector
	UpsertErr func(chunkID int64) error

	SearchFunc func(ctx context.Context, query pgvector.Vector, limit int) ([]pipeline_type.SearchResult, error)
}

func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{Upserted: make(map[int64]pgvector.Vector)}
}

func (m *MockVectorStore) UpsertEmbedding(ctx context.Context, chunkID int64, embedding pgvector.Vector) (string, error) {
	if m.UpsertErr != nil {
		if err := m.UpsertErr(chunkID); err != nil {
			return "", err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserted[chunkID] = embedding
	return fmt.Sprintf("emb-%d", chunkID), nil
}

func (m *MockVectorStore) Search(ctx context.Context, query pgvector.Vector, limit int) ([]pipeline_type.SearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, limit)
	}
	return nil, nil
}

func (m *MockVectorStore) SearchInDocument(ctx context.Context, docID int64, query pgvector.Vector, limit int) ([]pipeline_type.SearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, limit)
	}
	return nil, nil
}
