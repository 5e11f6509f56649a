package extract_step

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/extractor"
	"github.com/serisow/metrodoc/storage"
)

const StepType = "extract_text"

// ExtractStepImpl pulls the raw file from the object store, extracts
// page-level text and persists the pages. Inline text submissions skip the
// object store entirely.
type ExtractStepImpl struct {
	PipelineStep pipeline_type.PipelineStep
	ObjectStore  storage.ObjectStore
	Extractor    *extractor.DocumentExtractor
	Store        document_store.Store
	Logger       *slog.Logger
}

func (s *ExtractStepImpl) GetType() string {
	return StepType
}

func (s *ExtractStepImpl) SetPipelineStep(step pipeline_type.PipelineStep) {
	s.PipelineStep = step
}

func (s *ExtractStepImpl) Execute(ctx context.Context, pc *pipeline_type.Context) error {
	doc := pc.Document
	if doc == nil {
		return fmt.Errorf("no document in pipeline context")
	}

	var pages []pipeline_type.Page

	if doc.FilePath == "" {
		if doc.Content == "" {
			return fmt.Errorf("document %d has neither a file nor inline content", doc.ID)
		}
		pages = []pipeline_type.Page{{
			PageNo: 1,
			Text:   extractor.Sanitize(doc.Content),
			Method: extractor.MethodPlainText,
		}}
	} else {
		data, err := s.ObjectStore.Download(ctx, doc.FilePath)
		if err != nil {
			return fmt.Errorf("downloading document %d: %w", doc.ID, err)
		}

		pages, err = s.Extractor.Extract(data, doc.FileType)
		if err != nil {
			return fmt.Errorf("extracting text from document %d: %w", doc.ID, err)
		}
	}

	if err := s.Store.SavePages(ctx, doc.ID, pages); err != nil {
		return fmt.Errorf("saving pages for document %d: %w", doc.ID, err)
	}

	pc.Pages = pages
	pc.Text = extractor.JoinPages(pages)

	s.Logger.Info("Extracted document text",
		slog.Int64("doc_id", doc.ID),
		slog.Int("page_count", len(pages)),
		slog.Int("text_length", len(pc.Text)))

	if s.PipelineStep.StepOutputKey != "" {
		pc.SetStepOutput(s.PipelineStep.StepOutputKey, len(pages))
	}
	return nil
}
