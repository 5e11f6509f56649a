package summary_service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/serisow/metrodoc/services/nlp_service"
	"github.com/serisow/metrodoc/textutil"
)

const (
	MethodModel      = "model"
	MethodExtractive = "extractive"

	maxChunkSummaryLen = 150
	maxFinalSummaryLen = 300
)

// SummaryService produces chunk and document summaries. The model server is
// the preferred path; an extractive heuristic keeps the pipeline alive when
// it is down.
type SummaryService struct {
	nlp    nlp_service.NLPService
	logger *slog.Logger
}

func NewSummaryService(nlp nlp_service.NLPService, logger *slog.Logger) *SummaryService {
	return &SummaryService{
		nlp:    nlp,
		logger: logger,
	}
}

// ChunkSummary pairs a chunk summary with the method that produced it.
type ChunkSummary struct {
	Text   string
	Method string
}

// SummarizeChunk returns a short summary of one chunk and the method that
// produced it.
func (s *SummaryService) SummarizeChunk(ctx context.Context, text string) (string, string) {
	return s.summarize(ctx, text, maxChunkSummaryLen)
}

// SummarizeDocument runs hierarchical summarization: chunk summaries are
// joined and summarized again into the document summary.
func (s *SummaryService) SummarizeDocument(ctx context.Context, chunkSummaries []ChunkSummary) (string, string) {
	if len(chunkSummaries) == 0 {
		return "", MethodExtractive
	}
	if len(chunkSummaries) == 1 {
		// A single chunk summary passes through with the method that made
		// it; the model never saw the combined text.
		return chunkSummaries[0].Text, chunkSummaries[0].Method
	}

	texts := make([]string, len(chunkSummaries))
	for i, cs := range chunkSummaries {
		texts[i] = cs.Text
	}
	combined := strings.Join(texts, " ")
	return s.summarize(ctx, combined, maxFinalSummaryLen)
}

func (s *SummaryService) summarize(ctx context.Context, text string, maxLen int) (string, string) {
	if s.nlp != nil {
		points, err := s.nlp.Summarize(ctx, text)
		if err == nil && len(points) > 0 {
			return joinPoints(points), MethodModel
		}
		if err != nil {
			s.logger.Warn("Model summarization failed, using extractive fallback",
				slog.String("error", err.Error()))
		}
	}
	return ExtractiveSummary(text, maxLen), MethodExtractive
}

// Bullet points from the model are joined into one readable summary.
func joinPoints(points []string) string {
	if len(points) == 1 {
		return strings.TrimSpace(points[0])
	}
	var sb strings.Builder
	for i, point := range points {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("• ")
		sb.WriteString(strings.TrimSpace(point))
	}
	return sb.String()
}

// ExtractiveSummary takes leading sentences until the length budget runs
// out. It never returns more than maxLen characters plus an ellipsis.
func ExtractiveSummary(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	sentences := strings.Split(text, ". ")
	var sb strings.Builder
	for _, sentence := range sentences {
		if sb.Len()+len(sentence)+2 > maxLen {
			break
		}
		sb.WriteString(sentence)
		sb.WriteString(". ")
	}

	summary := strings.TrimSpace(sb.String())
	if summary != "" {
		return summary
	}

	// First sentence alone blew the budget, hard truncate. Rune-based so
	// multibyte text stays valid UTF-8 for the summaries table.
	return textutil.Truncate(text, maxLen)
}
