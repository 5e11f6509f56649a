package summarize_step

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/summary_service"
)

const StepType = "summarize"

// DocumentSummaryKey is where the step leaves the final summary for the
// finalize step.
const DocumentSummaryKey = "document_summary"

// SummarizeStepImpl builds the hierarchical summary: each surviving chunk is
// summarized, then the chunk summaries are combined into the document
// summary. Chunk summary failures degrade to the extractive path inside the
// summary service, so the step itself only fails on storage errors.
type SummarizeStepImpl struct {
	PipelineStep pipeline_type.PipelineStep
	Summaries    *summary_service.SummaryService
	Store        document_store.Store
	Logger       *slog.Logger
}

func (s *SummarizeStepImpl) GetType() string {
	return StepType
}

func (s *SummarizeStepImpl) SetPipelineStep(step pipeline_type.PipelineStep) {
	s.PipelineStep = step
}

func (s *SummarizeStepImpl) Execute(ctx context.Context, pc *pipeline_type.Context) error {
	var chunkSummaries []summary_service.ChunkSummary

	for _, chunk := range pc.Chunks {
		if chunk.Status == pipeline_type.ChunkFailed {
			continue
		}

		summaryText, method := s.Summaries.SummarizeChunk(ctx, chunk.Text)
		chunk.Summary = summaryText
		chunkSummaries = append(chunkSummaries, summary_service.ChunkSummary{
			Text:   summaryText,
			Method: method,
		})

		if err := s.Store.UpdateChunk(ctx, chunk); err != nil {
			return fmt.Errorf("saving summary for chunk %d: %w", chunk.ChunkNo, err)
		}

		chunkID := chunk.ID
		record := &pipeline_type.Summary{
			DocID:   pc.DocumentID,
			ChunkID: &chunkID,
			Level:   pipeline_type.SummaryChunk,
			Text:    summaryText,
			Method:  method,
		}
		if err := s.Store.SaveSummary(ctx, record); err != nil {
			return fmt.Errorf("recording chunk summary: %w", err)
		}
	}

	docSummary, method := s.Summaries.SummarizeDocument(ctx, chunkSummaries)

	record := &pipeline_type.Summary{
		DocID:  pc.DocumentID,
		Level:  pipeline_type.SummaryDocument,
		Text:   docSummary,
		Method: method,
	}
	if err := s.Store.SaveSummary(ctx, record); err != nil {
		return fmt.Errorf("recording document summary: %w", err)
	}

	pc.Set(DocumentSummaryKey, docSummary)

	s.Logger.Info("Summarized document",
		slog.Int64("doc_id", pc.DocumentID),
		slog.Int("chunk_summaries", len(chunkSummaries)),
		slog.String("method", method))

	if s.PipelineStep.StepOutputKey != "" {
		pc.SetStepOutput(s.PipelineStep.StepOutputKey, docSummary)
	}
	return nil
}
