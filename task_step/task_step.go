package task_step

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/nlp_service"
	"github.com/serisow/metrodoc/services/task_service"
)

const StepType = "extract_tasks"

// TaskStepImpl collects actionable tasks. The model server extracts
// document-level tasks from the full text; the hybrid extractor walks the
// surviving chunks. Model tasks win dedupe ties.
type TaskStepImpl struct {
	PipelineStep pipeline_type.PipelineStep
	NLP          nlp_service.NLPService
	Tasks        *task_service.TaskService
	Store        document_store.Store
	Logger       *slog.Logger
}

func (s *TaskStepImpl) GetType() string {
	return StepType
}

func (s *TaskStepImpl) SetPipelineStep(step pipeline_type.PipelineStep) {
	s.PipelineStep = step
}

func (s *TaskStepImpl) Execute(ctx context.Context, pc *pipeline_type.Context) error {
	modelTasks := s.extractModelTasks(ctx, pc)
	pc.ModelTasks = modelTasks

	var ruleTasks []pipeline_type.Task
	for _, chunk := range pc.Chunks {
		if chunk.Status == pipeline_type.ChunkFailed {
			continue
		}
		chunkID := chunk.ID
		ruleTasks = append(ruleTasks, s.Tasks.ExtractTasks(ctx, chunk.Text, &chunkID)...)
	}
	pc.RuleTasks = ruleTasks

	merged := task_service.Deduplicate(append(modelTasks, ruleTasks...))

	taskPtrs := make([]*pipeline_type.Task, len(merged))
	for i := range merged {
		taskPtrs[i] = &merged[i]
	}
	if err := s.Store.SaveTasks(ctx, pc.DocumentID, taskPtrs); err != nil {
		return fmt.Errorf("saving tasks for document %d: %w", pc.DocumentID, err)
	}

	s.Logger.Info("Extracted document tasks",
		slog.Int64("doc_id", pc.DocumentID),
		slog.Int("model_tasks", len(modelTasks)),
		slog.Int("rule_tasks", len(ruleTasks)),
		slog.Int("saved_tasks", len(merged)))

	if s.PipelineStep.StepOutputKey != "" {
		pc.SetStepOutput(s.PipelineStep.StepOutputKey, len(merged))
	}
	return nil
}

// Model task extraction is best effort: when the model server is down the
// rule-based pass still produces tasks.
func (s *TaskStepImpl) extractModelTasks(ctx context.Context, pc *pipeline_type.Context) []pipeline_type.Task {
	raw, err := s.NLP.ExtractTasks(ctx, pc.Text)
	if err != nil {
		s.Logger.Warn("Model task extraction failed, relying on rule-based pass",
			slog.Int64("doc_id", pc.DocumentID),
			slog.String("error", err.Error()))
		return nil
	}

	var tasks []pipeline_type.Task
	for _, mt := range raw {
		if mt.Text == "" {
			continue
		}
		tasks = append(tasks, pipeline_type.Task{
			Text:        mt.Text,
			Priority:    parsePriority(mt.Priority),
			Status:      pipeline_type.TaskOpen,
			ExtractedBy: "model",
		})
	}
	return tasks
}

func parsePriority(priority string) pipeline_type.TaskPriority {
	switch priority {
	case string(pipeline_type.PriorityHigh):
		return pipeline_type.PriorityHigh
	case string(pipeline_type.PriorityLow):
		return pipeline_type.PriorityLow
	}
	return pipeline_type.PriorityMedium
}
