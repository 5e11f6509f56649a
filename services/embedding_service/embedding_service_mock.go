package embedding_service

import (
	"context"

	"github.com/pgvector/pgvector-go"
)

type MockEmbeddingService struct {
	EmbedBatchFunc func(ctx context.Context, texts []string) ([]pgvector.Vector, error)
	Dim            int
}

func (m *MockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, texts)
	}
	vectors := make([]pgvector.Vector, len(texts))
	for i := range texts {
		vectors[i] = pgvector.NewVector(make([]float32, m.Dimension()))
	}
	return vectors, nil
}

func (m *MockEmbeddingService) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	vectors, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	return vectors[0], nil
}

func (m *MockEmbeddingService) Dimension() int {
	if m.Dim == 0 {
		return 384
	}
	return m.Dim
}
