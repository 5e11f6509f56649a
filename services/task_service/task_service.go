package task_service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/llm_service"
)

const ExtractedByLLM = "llm"

const llmTaskPrompt = `You are a precise task extractor. Analyze the following text and identify actionable tasks.
Return a JSON array of tasks. Each task should have the following structure:
{
    "task_text": "The actionable task description",
    "assignee": "Person responsible (if mentioned, otherwise null)",
    "due_date": "ISO date string or null if no date mentioned",
    "priority": "low/medium/high or null if unclear",
    "confidence": "0-1 confidence score"
}

Rules:
1. Only extract clear, actionable tasks
2. If no tasks are found, return an empty array
3. Be conservative - only include items that are clearly tasks
4. Extract assignees from phrases like "John should", "Team X will", etc.
5. Extract dates from phrases like "by Friday", "due 2024-01-15", etc.
6. Determine priority based on urgency words and due dates

Text to analyze:
%s`

// TaskService runs both extractors over document text. Rule-based patterns
// always run; the LLM pass is attempted when configured and its failures
// only cost the extra tasks it would have found.
type TaskService struct {
	llm       llm_service.LLMService
	llmConfig map[string]interface{}
	logger    *slog.Logger
}

func NewTaskService(llm llm_service.LLMService, llmConfig map[string]interface{}, logger *slog.Logger) *TaskService {
	return &TaskService{
		llm:       llm,
		llmConfig: llmConfig,
		logger:    logger,
	}
}

func (s *TaskService) llmConfigured() bool {
	if s.llm == nil {
		return false
	}
	key, _ := s.llmConfig["api_key"].(string)
	return key != ""
}

// ExtractTasks combines rule-based and LLM extraction, deduplicated on
// normalized text with rule-based results winning ties.
func (s *TaskService) ExtractTasks(ctx context.Context, text string, sourceChunkID *int64) []pipeline_type.Task {
	tasks := ExtractRuleBased(text, sourceChunkID)

	if s.llmConfigured() {
		llmTasks, err := s.extractWithLLM(ctx, text, sourceChunkID)
		if err != nil {
			s.logger.Warn("LLM task extraction failed",
				slog.String("error", err.Error()))
		} else {
			tasks = append(tasks, llmTasks...)
		}
	}

	deduplicated := Deduplicate(tasks)
	s.logger.Info("Extracted tasks from text",
		slog.Int("task_count", len(deduplicated)))
	return deduplicated
}

type llmTask struct {
	TaskText   string          `json:"task_text"`
	Assignee   string          `json:"assignee"`
	DueDate    string          `json:"due_date"`
	Priority   string          `json:"priority"`
	Confidence json.RawMessage `json:"confidence"`
}

func (s *TaskService) extractWithLLM(ctx context.Context, text string, sourceChunkID *int64) ([]pipeline_type.Task, error) {
	response, err := s.llm.CallLLM(ctx, s.llmConfig, fmt.Sprintf(llmTaskPrompt, text))
	if err != nil {
		return nil, err
	}

	raw := stripCodeFence(response)

	var parsed []llmTask
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM JSON response: %w", err)
	}

	var tasks []pipeline_type.Task
	for _, lt := range parsed {
		taskText := strings.TrimSpace(lt.TaskText)
		if taskText == "" {
			continue
		}
		tasks = append(tasks, pipeline_type.Task{
			SourceChunkID: sourceChunkID,
			Text:          taskText,
			Assignee:      lt.Assignee,
			DueDate:       parseLLMDueDate(lt.DueDate),
			Priority:      parseLLMPriority(lt.Priority),
			Status:        pipeline_type.TaskOpen,
			ExtractedBy:   ExtractedByLLM,
			Confidence:    parseConfidence(lt.Confidence),
		})
	}
	return tasks, nil
}

// stripCodeFence removes a markdown fence the model sometimes wraps JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func parseLLMPriority(priority string) pipeline_type.TaskPriority {
	switch strings.ToLower(priority) {
	case "high", "urgent", "critical":
		return pipeline_type.PriorityHigh
	case "low", "low priority":
		return pipeline_type.PriorityLow
	}
	return pipeline_type.PriorityMedium
}

func parseLLMDueDate(dateStr string) *time.Time {
	if dateStr == "" || strings.EqualFold(dateStr, "null") {
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, dateStr); err == nil {
			return &parsed
		}
	}
	return nil
}

// parseConfidence accepts both a JSON number and a quoted number, which the
// model uses interchangeably.
func parseConfidence(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0.5
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if _, err := fmt.Sscanf(str, "%f", &f); err == nil {
			return f
		}
	}
	return 0.5
}
