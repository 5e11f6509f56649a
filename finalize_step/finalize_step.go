package finalize_step

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/metrics"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/summarize_step"
	"github.com/serisow/metrodoc/vector_store"
)

const StepType = "finalize"

// FinalizeStepImpl closes out a run: counters and summary land on the
// document row, the status flips to processed, and the vector index is
// nudged when enough new chunks arrived.
type FinalizeStepImpl struct {
	PipelineStep pipeline_type.PipelineStep
	Store        document_store.Store
	IndexManager *vector_store.IndexManager
	Logger       *slog.Logger
}

func (s *FinalizeStepImpl) GetType() string {
	return StepType
}

func (s *FinalizeStepImpl) SetPipelineStep(step pipeline_type.PipelineStep) {
	s.PipelineStep = step
}

func (s *FinalizeStepImpl) Execute(ctx context.Context, pc *pipeline_type.Context) error {
	summary := ""
	if v, ok := pc.Get(summarize_step.DocumentSummaryKey); ok {
		summary, _ = v.(string)
	}

	tasks, err := s.Store.GetTasks(ctx, pc.DocumentID)
	if err != nil {
		return fmt.Errorf("counting tasks for document %d: %w", pc.DocumentID, err)
	}

	processedChunks := 0
	for _, chunk := range pc.Chunks {
		if chunk.Status == pipeline_type.ChunkProcessed {
			processedChunks++
		}
	}

	if err := s.Store.FinalizeDocument(ctx, pc.DocumentID, summary, len(pc.Chunks), len(tasks)); err != nil {
		return fmt.Errorf("finalizing document %d: %w", pc.DocumentID, err)
	}

	if s.IndexManager != nil {
		if err := s.IndexManager.ReindexIfNeeded(ctx); err != nil {
			// Search quality degrades slightly without the rebuild; the
			// document itself is fine.
			s.Logger.Warn("Vector index maintenance failed",
				slog.String("error", err.Error()))
		}
	}

	metrics.DocumentsProcessed.WithLabelValues(string(pipeline_type.DocumentProcessed)).Inc()

	s.Logger.Info("Finalized document",
		slog.Int64("doc_id", pc.DocumentID),
		slog.Int("chunks", len(pc.Chunks)),
		slog.Int("processed_chunks", processedChunks),
		slog.Int("tasks", len(tasks)))

	if s.PipelineStep.StepOutputKey != "" {
		pc.SetStepOutput(s.PipelineStep.StepOutputKey, map[string]int{
			"chunks": len(pc.Chunks),
			"tasks":  len(tasks),
		})
	}
	return nil
}
