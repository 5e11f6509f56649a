package summary_service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/serisow/metrodoc/services/nlp_service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSummarizeChunkUsesModel(t *testing.T) {
	mock := &nlp_service.MockNLPService{
		SummarizeFunc: func(ctx context.Context, text string) ([]string, error) {
			return []string{"trains delayed", "signal fault on line two"}, nil
		},
	}
	svc := NewSummaryService(mock, testLogger())

	summary, method := svc.SummarizeChunk(context.Background(), "long chunk text")
	assert.Equal(t, MethodModel, method)
	assert.Equal(t, "• trains delayed\n• signal fault on line two", summary)
}

func TestSummarizeChunkFallsBackWhenModelFails(t *testing.T) {
	mock := &nlp_service.MockNLPService{
		SummarizeFunc: func(ctx context.Context, text string) ([]string, error) {
			return nil, errors.New("model server down")
		},
	}
	svc := NewSummaryService(mock, testLogger())

	summary, method := svc.SummarizeChunk(context.Background(), "First sentence. Second sentence. Third one here.")
	assert.Equal(t, MethodExtractive, method)
	assert.Contains(t, summary, "First sentence.")
}

func TestSummarizeDocumentHierarchical(t *testing.T) {
	var gotText string
	mock := &nlp_service.MockNLPService{
		SummarizeFunc: func(ctx context.Context, text string) ([]string, error) {
			gotText = text
			return []string{"combined summary"}, nil
		},
	}
	svc := NewSummaryService(mock, testLogger())

	summary, method := svc.SummarizeDocument(context.Background(), []ChunkSummary{
		{Text: "part one", Method: MethodModel},
		{Text: "part two", Method: MethodModel},
	})
	assert.Equal(t, MethodModel, method)
	assert.Equal(t, "combined summary", summary)
	assert.Equal(t, "part one part two", gotText)
}

func TestSummarizeDocumentSingleChunkShortCircuits(t *testing.T) {
	mock := &nlp_service.MockNLPService{
		SummarizeFunc: func(ctx context.Context, text string) ([]string, error) {
			t.Fatal("model should not be called for a single chunk summary")
			return nil, nil
		},
	}
	svc := NewSummaryService(mock, testLogger())

	summary, method := svc.SummarizeDocument(context.Background(), []ChunkSummary{
		{Text: "only summary", Method: MethodModel},
	})
	assert.Equal(t, "only summary", summary)
	assert.Equal(t, MethodModel, method)
}

func TestSummarizeDocumentSingleChunkKeepsFallbackMethod(t *testing.T) {
	svc := NewSummaryService(&nlp_service.MockNLPService{}, testLogger())

	_, method := svc.SummarizeDocument(context.Background(), []ChunkSummary{
		{Text: "only summary", Method: MethodExtractive},
	})
	assert.Equal(t, MethodExtractive, method)
}

func TestSummarizeDocumentEmpty(t *testing.T) {
	svc := NewSummaryService(&nlp_service.MockNLPService{}, testLogger())

	summary, method := svc.SummarizeDocument(context.Background(), nil)
	assert.Empty(t, summary)
	assert.Equal(t, MethodExtractive, method)
}

func TestExtractiveSummaryTakesLeadingSentences(t *testing.T) {
	text := "Alpha sentence. Beta sentence. Gamma sentence. Delta sentence."

	summary := ExtractiveSummary(text, 35)
	assert.Equal(t, "Alpha sentence. Beta sentence.", summary)
}

func TestExtractiveSummaryTruncatesLongFirstSentence(t *testing.T) {
	text := strings.Repeat("x", 500)

	summary := ExtractiveSummary(text, 100)
	assert.Len(t, summary, 103)
	assert.True(t, strings.HasSuffix(summary, "..."))
}

func TestExtractiveSummaryTruncatesMultibyteOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("é", 200)

	summary := ExtractiveSummary(text, 151)
	assert.True(t, utf8.ValidString(summary))
	assert.Equal(t, strings.Repeat("é", 151)+"...", summary)
}

func TestExtractiveSummaryEmpty(t *testing.T) {
	assert.Empty(t, ExtractiveSummary("  ", 100))
}
