package nlp_service

import (
	"context"

	"github.com/serisow/metrodoc/pipeline_type"
)

type MockNLPService struct {
	SummarizeFunc       func(ctx context.Context, text string) ([]string, error)
	ExtractTasksFunc    func(ctx context.Context, text string) ([]ModelTask, error)
	ExtractEntitiesFunc func(ctx context.Context, text string) ([]pipeline_type.Entity, error)
	HealthyFunc         func(ctx context.Context) bool
}

func (m *MockNLPService) Summarize(ctx context.Context, text string) ([]string, error) {
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}
	return []string{"mock summary point"}, nil
}

func (m *MockNLPService) ExtractTasks(ctx context.Context, text string) ([]ModelTask, error) {
	if m.ExtractTasksFunc != nil {
		return m.ExtractTasksFunc(ctx, text)
	}
	return nil, nil
}

func (m *MockNLPService) ExtractEntities(ctx context.Context, text string) ([]pipeline_type.Entity, error) {
	if m.ExtractEntitiesFunc != nil {
		return m.ExtractEntitiesFunc(ctx, text)
	}
	return nil, nil
}

func (m *MockNLPService) Healthy(ctx context.Context) bool {
	if m.HealthyFunc != nil {
		return m.HealthyFunc(ctx)
	}
	return true
}
