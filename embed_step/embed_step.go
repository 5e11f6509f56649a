package embed_step

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/metrics"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/embedding_service"
	"github.com/serisow/metrodoc/services/nlp_service"
	"github.com/serisow/metrodoc/vector_store"
)

const StepType = "embed_chunks"

// EmbedStepImpl embeds every chunk and tags it with named entities. Chunks
// are processed concurrently; one chunk failing marks that chunk failed and
// the rest continue. The step errors only when no chunk survived.
type EmbedStepImpl struct {
	PipelineStep pipeline_type.PipelineStep
	Embedder     embedding_service.EmbeddingService
	NLP          nlp_service.NLPService
	Vectors      vector_store.VectorStore
	Store        document_store.Store
	Parallelism  int
	Logger       *slog.Logger
}

func (s *EmbedStepImpl) GetType() string {
	return StepType
}

func (s *EmbedStepImpl) SetPipelineStep(step pipeline_type.PipelineStep) {
	s.PipelineStep = step
}

func (s *EmbedStepImpl) Execute(ctx context.Context, pc *pipeline_type.Context) error {
	if len(pc.Chunks) == 0 {
		return fmt.Errorf("no chunks to embed for document %d", pc.DocumentID)
	}

	parallelism := s.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	var processed, failed int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, chunk := range pc.Chunks {
		chunk := chunk
		g.Go(func() error {
			if err := s.processChunk(gctx, chunk); err != nil {
				atomic.AddInt64(&failed, 1)
				metrics.ChunkFailures.WithLabelValues(StepType).Inc()
				s.Logger.Warn("Chunk processing failed",
					slog.Int64("doc_id", pc.DocumentID),
					slog.Int("chunk_no", chunk.ChunkNo),
					slog.String("error", err.Error()))

				chunk.Status = pipeline_type.ChunkFailed
				if updateErr := s.Store.UpdateChunk(gctx, chunk); updateErr != nil {
					s.Logger.Error("Failed to record chunk failure",
						slog.Int("chunk_no", chunk.ChunkNo),
						slog.String("error", updateErr.Error()))
				}
				// Chunk failures are tolerated, never abort the group.
				return nil
			}
			atomic.AddInt64(&processed, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("embedding chunks for document %d: %w", pc.DocumentID, err)
	}

	s.Logger.Info("Embedded document chunks",
		slog.Int64("doc_id", pc.DocumentID),
		slog.Int64("processed", atomic.LoadInt64(&processed)),
		slog.Int64("failed", atomic.LoadInt64(&failed)))

	if processed == 0 {
		return fmt.Errorf("all %d chunks failed to embed for document %d", len(pc.Chunks), pc.DocumentID)
	}

	if s.PipelineStep.StepOutputKey != "" {
		pc.SetStepOutput(s.PipelineStep.StepOutputKey, map[string]int64{
			"processed": atomic.LoadInt64(&processed),
			"failed":    atomic.LoadInt64(&failed),
		})
	}
	return nil
}

func (s *EmbedStepImpl) processChunk(ctx context.Context, chunk *pipeline_type.Chunk) error {
	vector, err := s.Embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("embedding chunk %d: %w", chunk.ChunkNo, err)
	}

	embeddingID, err := s.Vectors.UpsertEmbedding(ctx, chunk.ID, vector)
	if err != nil {
		return fmt.Errorf("storing embedding for chunk %d: %w", chunk.ChunkNo, err)
	}
	chunk.EmbeddingID = embeddingID

	entities, err := s.NLP.ExtractEntities(ctx, chunk.Text)
	if err != nil {
		// Entity extraction is best effort, fall back to keyword classes.
		entities = nlp_service.FallbackEntities(chunk.Text)
	}
	chunk.Entities = entities

	chunk.Status = pipeline_type.ChunkProcessed
	if err := s.Store.UpdateChunk(ctx, chunk); err != nil {
		return fmt.Errorf("updating chunk %d: %w", chunk.ChunkNo, err)
	}
	return nil
}
