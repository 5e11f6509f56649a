package chunk_step

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/chunker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChunkStepPersistsChunks(t *testing.T) {
	store := document_store.NewMockStore()
	step := &ChunkStepImpl{
		PipelineStep: pipeline_type.PipelineStep{StepOutputKey: "chunk_count"},
		Chunker:      chunker.NewChunker(50, 10, testLogger()),
		Store:        store,
		Logger:       testLogger(),
	}

	pc := pipeline_type.NewContext()
	pc.DocumentID = 9
	pc.Text = strings.Repeat("metro operations report for the quarter. ", 50)

	require.NoError(t, step.Execute(context.Background(), pc))

	require.NotEmpty(t, pc.Chunks)
	assert.Equal(t, pc.Chunks, store.Chunks[9])
	for i, chunk := range pc.Chunks {
		assert.Equal(t, i, chunk.ChunkNo)
		assert.Equal(t, pipeline_type.ChunkPending, chunk.Status)
		assert.NotZero(t, chunk.ID)
	}

	count, ok := pc.GetStepOutput("chunk_count")
	require.True(t, ok)
	assert.Equal(t, len(pc.Chunks), count)
}

func TestChunkStepEmptyText(t *testing.T) {
	step := &ChunkStepImpl{
		Chunker: chunker.NewChunker(50, 10, testLogger()),
		Store:   document_store.NewMockStore(),
		Logger:  testLogger(),
	}

	pc := pipeline_type.NewContext()
	pc.DocumentID = 9

	err := step.Execute(context.Background(), pc)
	assert.ErrorContains(t, err, "no extracted text")
}

func TestAssignPageNumbers(t *testing.T) {
	pages := []pipeline_type.Page{
		{PageNo: 1, Text: strings.Repeat("a", 100)},
		{PageNo: 2, Text: strings.Repeat("b", 100)},
	}
	chunks := []*pipeline_type.Chunk{
		{ChunkNo: 0, Text: strings.Repeat("a", 90)},
		{ChunkNo: 1, Text: strings.Repeat("b", 90)},
	}

	assignPageNumbers(chunks, pages)
	assert.Equal(t, 1, chunks[0].PageNo)
	assert.Equal(t, 2, chunks[1].PageNo)
}
