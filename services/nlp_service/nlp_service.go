package nlp_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/serisow/metrodoc/pipeline_type"
)

// ModelTask is the shape the model server returns for extracted tasks.
type ModelTask struct {
	Text     string `json:"text"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

// NLPService is the model server surface the pipeline depends on: summary
// points, document-level tasks, and named entities.
type NLPService interface {
	Summarize(ctx context.Context, text string) ([]string, error)
	ExtractTasks(ctx context.Context, text string) ([]ModelTask, error)
	ExtractEntities(ctx context.Context, text string) ([]pipeline_type.Entity, error)
	Healthy(ctx context.Context) bool
}

// HTTPNLPService calls the model server over HTTP. Inference can be slow so
// the client allows two minutes per request.
type HTTPNLPService struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPNLPService(baseURL string, logger *slog.Logger) *HTTPNLPService {
	return &HTTPNLPService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *HTTPNLPService) post(ctx context.Context, endpoint, text string, out interface{}) error {
	jsonData, err := json.Marshal(textRequest{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %v", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/"+endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model server unavailable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("model server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %v", endpoint, err)
	}
	return nil
}

func (s *HTTPNLPService) Summarize(ctx context.Context, text string) ([]string, error) {
	var resp struct {
		Summary []string `json:"summary"`
	}
	if err := s.post(ctx, "summarize", text, &resp); err != nil {
		return nil, err
	}

	s.logger.Debug("Generated summary points",
		slog.Int("point_count", len(resp.Summary)))
	return resp.Summary, nil
}

func (s *HTTPNLPService) ExtractTasks(ctx context.Context, text string) ([]ModelTask, error) {
	var resp struct {
		Tasks []ModelTask `json:"tasks"`
	}
	if err := s.post(ctx, "tasks", text, &resp); err != nil {
		return nil, err
	}

	s.logger.Debug("Extracted model tasks",
		slog.Int("task_count", len(resp.Tasks)))
	return resp.Tasks, nil
}

func (s *HTTPNLPService) ExtractEntities(ctx context.Context, text string) ([]pipeline_type.Entity, error) {
	var resp struct {
		Entities []pipeline_type.Entity `json:"entities"`
	}
	if err := s.post(ctx, "entities", text, &resp); err != nil {
		// The pipeline tolerates missing entities; callers decide whether
		// to use the keyword fallback.
		return nil, err
	}
	return resp.Entities, nil
}

func (s *HTTPNLPService) Healthy(ctx context.Context) bool {
	ctxHealth, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxHealth, "GET", s.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var health struct {
		ModelLoaded bool `json:"model_loaded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return health.ModelLoaded
}
