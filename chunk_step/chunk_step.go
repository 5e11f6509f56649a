package chunk_step

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/chunker"
)

const StepType = "chunk_text"

// ChunkStepImpl splits the extracted text into token windows and persists
// them as pending chunks.
type ChunkStepImpl struct {
	PipelineStep pipeline_type.PipelineStep
	Chunker      *chunker.Chunker
	Store        document_store.Store
	Logger       *slog.Logger
}

func (s *ChunkStepImpl) GetType() string {
	return StepType
}

func (s *ChunkStepImpl) SetPipelineStep(step pipeline_type.PipelineStep) {
	s.PipelineStep = step
}

func (s *ChunkStepImpl) Execute(ctx context.Context, pc *pipeline_type.Context) error {
	if pc.Text == "" {
		return fmt.Errorf("no extracted text to chunk for document %d", pc.DocumentID)
	}

	chunks := s.Chunker.Chunk(pc.Text)
	if len(chunks) == 0 {
		return fmt.Errorf("chunking produced no chunks for document %d", pc.DocumentID)
	}

	// Attribute chunks to pages by walking the page texts in order.
	assignPageNumbers(chunks, pc.Pages)

	if err := s.Store.SaveChunks(ctx, pc.DocumentID, chunks); err != nil {
		return fmt.Errorf("saving chunks for document %d: %w", pc.DocumentID, err)
	}

	pc.Chunks = chunks

	s.Logger.Info("Chunked document text",
		slog.Int64("doc_id", pc.DocumentID),
		slog.Int("chunk_count", len(chunks)))

	if s.PipelineStep.StepOutputKey != "" {
		pc.SetStepOutput(s.PipelineStep.StepOutputKey, len(chunks))
	}
	return nil
}

// assignPageNumbers gives each chunk the page its leading text appears on.
// The mapping is approximate for chunks that straddle a page break.
func assignPageNumbers(chunks []*pipeline_type.Chunk, pages []pipeline_type.Page) {
	if len(pages) == 0 {
		return
	}

	// Cumulative character offsets of each page within the joined text.
	offsets := make([]int, len(pages))
	pos := 0
	for i, p := range pages {
		offsets[i] = pos
		pos += len(p.Text) + 2
	}

	chunkPos := 0
	for _, chunk := range chunks {
		mid := chunkPos + len(chunk.Text)/2
		pageNo := pages[0].PageNo
		for i := range pages {
			if offsets[i] <= mid {
				pageNo = pages[i].PageNo
			}
		}
		chunk.PageNo = pageNo
		chunkPos += len(chunk.Text)
	}
}
