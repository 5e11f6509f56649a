package embedding_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pgvector/pgvector-go"
	"golang.org/x/time/rate"
)

// EmbeddingService produces vectors for chunk text.
type EmbeddingService interface {
	EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error)
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
	Dimension() int
}

// HTTPEmbeddingService calls the model server's /embed endpoint. Requests
// are rate limited so a large document cannot starve the model server.
type HTTPEmbeddingService struct {
	baseURL    string
	dimension  int
	httpClient *http.Client
	limiter    *rate.Limiter
	retryDelay time.Duration
	logger     *slog.Logger
}

func NewHTTPEmbeddingService(baseURL string, dimension int, requestsPerSecond float64, logger *slog.Logger) *HTTPEmbeddingService {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &HTTPEmbeddingService{
		baseURL:    baseURL,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		retryDelay: time.Second * 5,
		logger:     logger,
	}
}

func (s *HTTPEmbeddingService) Dimension() int {
	return s.dimension
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Model      string      `json:"model"`
}

func (s *HTTPEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit wait: %w", err)
	}

	jsonData, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %v", err)
	}

	maxRetries := 3

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		vectors, err := s.doEmbed(ctx, jsonData)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(vectors))
			}
			return vectors, nil
		}

		lastErr = err
		s.logger.Warn("Embedding request failed",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", maxRetries),
			slog.String("error", err.Error()))

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxRetries, lastErr)
}

func (s *HTTPEmbeddingService) doEmbed(ctx context.Context, jsonData []byte) ([]pgvector.Vector, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/embed", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model server returned status %d: %s", resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %v", err)
	}

	vectors := make([]pgvector.Vector, 0, len(embedResp.Embeddings))
	for i, raw := range embedResp.Embeddings {
		if len(raw) != s.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(raw), s.dimension)
		}
		vectors = append(vectors, pgvector.NewVector(raw))
	}

	return vectors, nil
}

func (s *HTTPEmbeddingService) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(vectors) == 0 {
		return pgvector.Vector{}, fmt.Errorf("no embedding data received")
	}
	return vectors[0], nil
}
