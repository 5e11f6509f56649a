package extract_step

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/extractor"
	"github.com/serisow/metrodoc/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStep(store document_store.Store, objects storage.ObjectStore) *ExtractStepImpl {
	logger := testLogger()
	return &ExtractStepImpl{
		ObjectStore: objects,
		Extractor:   extractor.NewDocumentExtractor(logger),
		Store:       store,
		Logger:      logger,
	}
}

func TestExtractStepInlineContent(t *testing.T) {
	store := document_store.NewMockStore()
	step := newStep(store, storage.NewMockObjectStore())

	pc := pipeline_type.NewContext()
	pc.DocumentID = 1
	pc.Document = &pipeline_type.Document{
		ID:      1,
		Content: "Platform announcements must be bilingual.",
	}

	require.NoError(t, step.Execute(context.Background(), pc))

	require.Len(t, pc.Pages, 1)
	assert.Equal(t, extractor.MethodPlainText, pc.Pages[0].Method)
	assert.Equal(t, "Platform announcements must be bilingual.", pc.Text)
	assert.Len(t, store.Pages[1], 1)
}

func TestExtractStepDownloadsAndExtractsHTML(t *testing.T) {
	store := document_store.NewMockStore()
	objects := storage.NewMockObjectStore()

	html := `<html><head><script>ignored()</script></head><body><p>Depot access closed for resurfacing.</p></body></html>`
	_, err := objects.Upload(context.Background(), "documents/abc.html", []byte(html), "text/html")
	require.NoError(t, err)

	step := newStep(store, objects)

	pc := pipeline_type.NewContext()
	pc.DocumentID = 2
	pc.Document = &pipeline_type.Document{
		ID:       2,
		FilePath: "documents/abc.html",
		FileType: "text/html",
	}

	require.NoError(t, step.Execute(context.Background(), pc))

	assert.Contains(t, pc.Text, "Depot access closed for resurfacing.")
	assert.NotContains(t, pc.Text, "ignored()")
}

func TestExtractStepMissingFileAndContent(t *testing.T) {
	step := newStep(document_store.NewMockStore(), storage.NewMockObjectStore())

	pc := pipeline_type.NewContext()
	pc.DocumentID = 3
	pc.Document = &pipeline_type.Document{ID: 3}

	err := step.Execute(context.Background(), pc)
	assert.ErrorContains(t, err, "neither a file nor inline content")
}

func TestExtractStepMissingDocument(t *testing.T) {
	step := newStep(document_store.NewMockStore(), storage.NewMockObjectStore())

	err := step.Execute(context.Background(), pipeline_type.NewContext())
	assert.ErrorContains(t, err, "no document")
}
