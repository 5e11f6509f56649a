package embed_step

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/embedding_service"
	"github.com/serisow/metrodoc/services/nlp_service"
	"github.com/serisow/metrodoc/vector_store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newContext(chunkTexts ...string) *pipeline_type.Context {
	pc := pipeline_type.NewContext()
	pc.DocumentID = 1
	for i, text := range chunkTexts {
		pc.Chunks = append(pc.Chunks, &pipeline_type.Chunk{
			ID:      int64(i + 1),
			ChunkNo: i,
			Text:    text,
			Status:  pipeline_type.ChunkPending,
		})
	}
	return pc
}

func TestEmbedStepProcessesAllChunks(t *testing.T) {
	step := &EmbedStepImpl{
		Embedder: &embedding_service.MockEmbeddingService{Dim: 3},
		NLP:      &nlp_service.MockNLPService{},
		Vectors:  vector_store.NewMockVectorStore(),
		Store:    document_store.NewMockStore(),
		Logger:   testLogger(),
	}
	pc := newContext("first chunk", "second chunk")

	require.NoError(t, step.Execute(context.Background(), pc))

	for _, chunk := range pc.Chunks {
		assert.Equal(t, pipeline_type.ChunkProcessed, chunk.Status)
		assert.NotEmpty(t, chunk.EmbeddingID)
	}
}

func TestEmbedStepToleratesSingleChunkFailure(t *testing.T) {
	embedder := &embedding_service.MockEmbeddingService{
		Dim: 3,
		EmbedBatchFunc: func(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
			if texts[0] == "bad chunk" {
				return nil, errors.New("model choked")
			}
			return []pgvector.Vector{pgvector.NewVector([]float32{1, 2, 3})}, nil
		},
	}

	step := &EmbedStepImpl{
		Embedder: embedder,
		NLP:      &nlp_service.MockNLPService{},
		Vectors:  vector_store.NewMockVectorStore(),
		Store:    document_store.NewMockStore(),
		Logger:   testLogger(),
	}
	pc := newContext("good chunk", "bad chunk", "another good chunk")

	require.NoError(t, step.Execute(context.Background(), pc))

	assert.Equal(t, pipeline_type.ChunkProcessed, pc.Chunks[0].Status)
	assert.Equal(t, pipeline_type.ChunkFailed, pc.Chunks[1].Status)
	assert.Equal(t, pipeline_type.ChunkProcessed, pc.Chunks[2].Status)
}

func TestEmbedStepFailsWhenAllChunksFail(t *testing.T) {
	embedder := &embedding_service.MockEmbeddingService{
		EmbedBatchFunc: func(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
			return nil, errors.New("model server down")
		},
	}

	step := &EmbedStepImpl{
		Embedder: embedder,
		NLP:      &nlp_service.MockNLPService{},
		Vectors:  vector_store.NewMockVectorStore(),
		Store:    document_store.NewMockStore(),
		Logger:   testLogger(),
	}
	pc := newContext("one", "two")

	err := step.Execute(context.Background(), pc)
	assert.ErrorContains(t, err, "all 2 chunks failed")
}

func TestEmbedStepFallsBackToKeywordEntities(t *testing.T) {
	nlp := &nlp_service.MockNLPService{
		ExtractEntitiesFunc: func(ctx context.Context, text string) ([]pipeline_type.Entity, error) {
			return nil, errors.New("entities endpoint down")
		},
	}

	step := &EmbedStepImpl{
		Embedder: &embedding_service.MockEmbeddingService{Dim: 3},
		NLP:      nlp,
		Vectors:  vector_store.NewMockVectorStore(),
		Store:    document_store.NewMockStore(),
		Logger:   testLogger(),
	}
	pc := newContext("the ministry approved the january budget")

	require.NoError(t, step.Execute(context.Background(), pc))

	labels := make(map[string]bool)
	for _, e := range pc.Chunks[0].Entities {
		labels[e.Label] = true
	}
	assert.True(t, labels["ORG"], "expected keyword fallback to tag 'ministry' as ORG")
	assert.True(t, labels["DATE"], "expected keyword fallback to tag 'january' as DATE")
}

func TestEmbedStepNoChunks(t *testing.T) {
	step := &EmbedStepImpl{
		Embedder: &embedding_service.MockEmbeddingService{},
		NLP:      &nlp_service.MockNLPService{},
		Vectors:  vector_store.NewMockVectorStore(),
		Store:    document_store.NewMockStore(),
		Logger:   testLogger(),
	}

	err := step.Execute(context.Background(), pipeline_type.NewContext())
	assert.ErrorContains(t, err, "no chunks to embed")
}
