package task_service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/llm_service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func taskTexts(tasks []pipeline_type.Task) []string {
	texts := make([]string, 0, len(tasks))
	for _, t := range tasks {
		texts = append(texts, t.Text)
	}
	return texts
}

func TestExtractRuleBasedActionMarkers(t *testing.T) {
	text := "Meeting notes.\nAction: review the maintenance schedule\nTODO: update the safety manual\n"

	tasks := ExtractRuleBased(text, nil)
	texts := taskTexts(tasks)

	assert.Contains(t, texts, "review the maintenance schedule")
	assert.Contains(t, texts, "update the safety manual")
	for _, task := range tasks {
		assert.Equal(t, ExtractedByRules, task.ExtractedBy)
		assert.Equal(t, pipeline_type.TaskOpen, task.Status)
	}
}

func TestExtractRuleBasedRequests(t *testing.T) {
	text := "Please submit the quarterly report before the meeting."

	tasks := ExtractRuleBased(text, nil)
	require.NotEmpty(t, tasks)
	assert.Contains(t, tasks[0].Text, "Please submit the quarterly report")
}

func TestExtractRuleBasedIgnoresShortRequests(t *testing.T) {
	tasks := ExtractRuleBased("Please stop.", nil)
	assert.Empty(t, tasks)
}

func TestExtractRuleBasedBulletActionVerbs(t *testing.T) {
	text := "- review the signalling upgrades\n- the weather was nice\n1. prepare the budget draft\n"

	tasks := ExtractRuleBased(text, nil)
	texts := taskTexts(tasks)

	assert.Contains(t, texts, "review the signalling upgrades")
	assert.Contains(t, texts, "prepare the budget draft")
	assert.NotContains(t, texts, "the weather was nice")
}

func TestExtractRuleBasedPriority(t *testing.T) {
	tasks := ExtractRuleBased("Action: urgent fix for the ticket gates", nil)
	require.NotEmpty(t, tasks)
	assert.Equal(t, pipeline_type.PriorityHigh, tasks[0].Priority)

	tasks = ExtractRuleBased("Action: optional cleanup of old records", nil)
	require.NotEmpty(t, tasks)
	assert.Equal(t, pipeline_type.PriorityLow, tasks[0].Priority)

	tasks = ExtractRuleBased("Action: refill the stationery cupboard", nil)
	require.NotEmpty(t, tasks)
	assert.Equal(t, pipeline_type.PriorityMedium, tasks[0].Priority)
}

func TestExtractRuleBasedDueDates(t *testing.T) {
	tasks := ExtractRuleBased("Deadline: finish audit 2026-03-15", nil)
	require.NotEmpty(t, tasks)
	assert.Equal(t, pipeline_type.PriorityHigh, tasks[0].Priority)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *tasks[0].DueDate)
}

func TestExtractAssignee(t *testing.T) {
	assert.Equal(t, "John Smith", extractAssignee("John Smith should prepare the briefing"))
	assert.Equal(t, "Priya", extractAssignee("assign to Priya for follow-up"))
	assert.Equal(t, "", extractAssignee("no one in particular"))
}

func TestExtractDueDateFormats(t *testing.T) {
	d := extractDueDate("due 2025-12-01")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), *d)

	d = extractDueDate("complete by 3/15/2026 at the latest")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *d)

	d = extractDueDate("submit by January 15")
	require.NotNil(t, d)
	assert.Equal(t, time.Month(1), d.Month())
	assert.Equal(t, 15, d.Day())
	assert.Equal(t, time.Now().Year(), d.Year())

	assert.Nil(t, extractDueDate("no date here"))
}

func TestDeduplicate(t *testing.T) {
	tasks := []pipeline_type.Task{
		{Text: "Review the budget!", ExtractedBy: ExtractedByRules},
		{Text: "review the budget", ExtractedBy: ExtractedByLLM},
		{Text: "Send the minutes", ExtractedBy: ExtractedByLLM},
		{Text: "ok"},
	}

	unique := Deduplicate(tasks)
	require.Len(t, unique, 2)
	assert.Equal(t, "Review the budget!", unique[0].Text)
	assert.Equal(t, ExtractedByRules, unique[0].ExtractedBy)
	assert.Equal(t, "Send the minutes", unique[1].Text)
}

func TestExtractTasksMergesLLMResults(t *testing.T) {
	mock := &llm_service.MockLLMService{
		CallLLMFunc: func(ctx context.Context, config map[string]interface{}, prompt string) (string, error) {
			return `[{"task_text": "Inspect platform three", "assignee": "Ravi", "due_date": "2026-01-10", "priority": "high", "confidence": 0.9}]`, nil
		},
	}
	svc := NewTaskService(mock, map[string]interface{}{
		"api_url": "http://llm", "api_key": "key", "model_name": "gpt-4o-mini",
	}, testLogger())

	tasks := svc.ExtractTasks(context.Background(), "Action: publish the roster", nil)

	texts := taskTexts(tasks)
	assert.Contains(t, texts, "publish the roster")
	assert.Contains(t, texts, "Inspect platform three")

	for _, task := range tasks {
		if task.Text == "Inspect platform three" {
			assert.Equal(t, ExtractedByLLM, task.ExtractedBy)
			assert.Equal(t, "Ravi", task.Assignee)
			assert.Equal(t, pipeline_type.PriorityHigh, task.Priority)
			assert.InDelta(t, 0.9, task.Confidence, 0.001)
			require.NotNil(t, task.DueDate)
		}
	}
}

func TestExtractTasksSurvivesLLMFailure(t *testing.T) {
	mock := &llm_service.MockLLMService{
		CallLLMFunc: func(ctx context.Context, config map[string]interface{}, prompt string) (string, error) {
			return "this is not json", nil
		},
	}
	svc := NewTaskService(mock, map[string]interface{}{"api_key": "key"}, testLogger())

	tasks := svc.ExtractTasks(context.Background(), "Action: archive the old tenders", nil)
	assert.Contains(t, taskTexts(tasks), "archive the old tenders")
}

func TestExtractTasksSkipsLLMWhenUnconfigured(t *testing.T) {
	called := false
	mock := &llm_service.MockLLMService{
		CallLLMFunc: func(ctx context.Context, config map[string]interface{}, prompt string) (string, error) {
			called = true
			return "[]", nil
		},
	}
	svc := NewTaskService(mock, map[string]interface{}{}, testLogger())

	svc.ExtractTasks(context.Background(), "Action: check the drains", nil)
	assert.False(t, called)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, stripCodeFence("```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, `[]`, stripCodeFence("[]"))
}
