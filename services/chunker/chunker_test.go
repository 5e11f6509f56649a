package chunker

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/metrodoc/pipeline_type"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChunkEmptyText(t *testing.T) {
	c := NewChunker(500, 50, testLogger())

	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t "))
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := NewChunker(500, 50, testLogger())

	chunks := c.Chunk("a short note about the budget meeting")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkNo)
	assert.Equal(t, pipeline_type.ChunkPending, chunks[0].Status)
	assert.Greater(t, chunks[0].TokenCount, 0)
}

func TestChunkLongTextOverlaps(t *testing.T) {
	c := NewChunker(50, 10, testLogger())

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 60)
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkNo)
		assert.LessOrEqual(t, chunk.TokenCount, 50)
	}
	// Adjacent chunks share their overlap region.
	assert.Contains(t, chunks[1].Text, chunks[0].Text[len(chunks[0].Text)-10:])
}

func TestChunkByCharactersFallback(t *testing.T) {
	c := &Chunker{chunkSize: 10, overlap: 2, logger: testLogger()}

	text := strings.Repeat("x", 100)
	chunks := c.Chunk(text)
	require.Greater(t, len(chunks), 1)

	// 10 tokens * 4 chars with 2*4 chars of overlap.
	assert.Len(t, chunks[0].Text, 40)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Text), 40)
	}
}

func TestChunkerRejectsBadOverlap(t *testing.T) {
	c := NewChunker(100, 100, testLogger())

	assert.Equal(t, 100, c.chunkSize)
	assert.Equal(t, 10, c.overlap)
}

func TestExcerptTruncates(t *testing.T) {
	long := strings.Repeat("a", 500)
	assert.Len(t, excerpt(long), excerptLen)
	assert.Equal(t, "short", excerpt("  short  "))
}
