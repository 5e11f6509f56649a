package chunker

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/serisow/metrodoc/pipeline_type"
)

const (
	encodingName = "cl100k_base"

	// Rough approximation for the character fallback: 1 token is about 4
	// characters of English text.
	charsPerToken = 4

	excerptLen = 200
)

// Chunker splits document text into overlapping token windows. When the
// tokenizer cannot be loaded it degrades to a character-count approximation.
type Chunker struct {
	chunkSize int
	overlap   int
	encoder   *tiktoken.Tiktoken
	logger    *slog.Logger
}

func NewChunker(chunkSize, overlap int, logger *slog.Logger) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 10
	}

	c := &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		logger:    logger,
	}

	encoder, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		logger.Warn("Could not load tokenizer, using character-based chunking",
			slog.String("encoding", encodingName),
			slog.String("error", err.Error()))
	} else {
		c.encoder = encoder
	}

	return c
}

// Chunk splits text into ordered chunks. Chunk numbering starts at 0 and
// every chunk starts out pending.
func (c *Chunker) Chunk(text string) []*pipeline_type.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var parts []chunkPart
	if c.encoder != nil {
		parts = c.chunkByTokens(text)
	} else {
		parts = c.chunkByCharacters(text)
	}

	chunks := make([]*pipeline_type.Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, &pipeline_type.Chunk{
			ChunkNo:     i,
			PageNo:      1,
			Text:        p.text,
			TextExcerpt: excerpt(p.text),
			TokenCount:  p.tokenCount,
			Status:      pipeline_type.ChunkPending,
		})
	}
	return chunks
}

type chunkPart struct {
	text       string
	tokenCount int
}

func (c *Chunker) chunkByTokens(text string) []chunkPart {
	tokens := c.encoder.Encode(text, nil, nil)

	var parts []chunkPart
	step := c.chunkSize - c.overlap
	for i := 0; i < len(tokens); i += step {
		end := i + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[i:end]
		parts = append(parts, chunkPart{
			text:       c.encoder.Decode(window),
			tokenCount: len(window),
		})
		if i+c.chunkSize >= len(tokens) {
			break
		}
	}
	return parts
}

func (c *Chunker) chunkByCharacters(text string) []chunkPart {
	charSize := c.chunkSize * charsPerToken
	charOverlap := c.overlap * charsPerToken

	runes := []rune(text)
	var parts []chunkPart
	step := charSize - charOverlap
	for i := 0; i < len(runes); i += step {
		end := i + charSize
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[i:end])
		parts = append(parts, chunkPart{
			text:       window,
			tokenCount: len(window) / charsPerToken,
		})
		if i+charSize >= len(runes) {
			break
		}
	}
	return parts
}

// CountTokens reports the token count of text, approximated when the
// tokenizer is unavailable.
func (c *Chunker) CountTokens(text string) int {
	if c.encoder != nil {
		return len(c.encoder.Encode(text, nil, nil))
	}
	return len([]rune(text)) / charsPerToken
}

func excerpt(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= excerptLen {
		return trimmed
	}
	return string(runes[:excerptLen])
}
