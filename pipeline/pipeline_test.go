package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/metrodoc/pipeline_type"
)

type stubStep struct {
	stepType string
	execute  func(ctx context.Context, pc *pipeline_type.Context) error
}

func (s *stubStep) Execute(ctx context.Context, pc *pipeline_type.Context) error {
	return s.execute(ctx, pc)
}

func (s *stubStep) GetType() string { return s.stepType }

type stubResolver struct {
	steps map[string]Step
}

func (r *stubResolver) GetStepInstance(typeName string) (Step, error) {
	step, ok := r.steps[typeName]
	if !ok {
		return nil, errors.New("unknown step type: " + typeName)
	}
	return step, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecutePipelineRunsStepsInWeightOrder(t *testing.T) {
	var order []string
	record := func(name string) Step {
		return &stubStep{stepType: name, execute: func(ctx context.Context, pc *pipeline_type.Context) error {
			order = append(order, name)
			return nil
		}}
	}

	resolver := &stubResolver{steps: map[string]Step{
		"extract": record("extract"),
		"chunk":   record("chunk"),
		"embed":   record("embed"),
	}}

	p := &pipeline_type.Pipeline{
		ID: "run-1",
		Steps: []pipeline_type.PipelineStep{
			{ID: "s3", Type: "embed", Weight: 3},
			{ID: "s1", Type: "extract", Weight: 1},
			{ID: "s2", Type: "chunk", Weight: 2},
		},
	}

	_, err := ExecutePipeline(context.Background(), p, resolver, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"extract", "chunk", "embed"}, order)
}

func TestExecutePipelineCollectsStepOutputs(t *testing.T) {
	resolver := &stubResolver{steps: map[string]Step{
		"produce": &stubStep{stepType: "produce", execute: func(ctx context.Context, pc *pipeline_type.Context) error {
			pc.SetStepOutput("chunk_count", 12)
			return nil
		}},
	}}

	p := &pipeline_type.Pipeline{
		ID: "run-2",
		Steps: []pipeline_type.PipelineStep{
			{ID: "s1", Type: "produce", Weight: 1, StepOutputKey: "chunk_count"},
		},
	}

	results, err := ExecutePipeline(context.Background(), p, resolver, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 12, results["s1"])
}

func TestExecutePipelineStopsOnRequiredStepFailure(t *testing.T) {
	var reached bool
	resolver := &stubResolver{steps: map[string]Step{
		"boom": &stubStep{stepType: "boom", execute: func(ctx context.Context, pc *pipeline_type.Context) error {
			return errors.New("extraction blew up")
		}},
		"after": &stubStep{stepType: "after", execute: func(ctx context.Context, pc *pipeline_type.Context) error {
			reached = true
			return nil
		}},
	}}

	p := &pipeline_type.Pipeline{
		ID: "run-3",
		Steps: []pipeline_type.PipelineStep{
			{ID: "s1", Type: "boom", Weight: 1},
			{ID: "s2", Type: "after", Weight: 2},
		},
	}

	_, err := ExecutePipeline(context.Background(), p, resolver, testLogger())
	require.Error(t, err)
	assert.ErrorContains(t, err, "error executing step s1")
	assert.False(t, reached)
}

func TestExecutePipelineContinuesPastOptionalFailure(t *testing.T) {
	var reached bool
	resolver := &stubResolver{steps: map[string]Step{
		"flaky": &stubStep{stepType: "flaky", execute: func(ctx context.Context, pc *pipeline_type.Context) error {
			return errors.New("model server down")
		}},
		"after": &stubStep{stepType: "after", execute: func(ctx context.Context, pc *pipeline_type.Context) error {
			reached = true
			return nil
		}},
	}}

	p := &pipeline_type.Pipeline{
		ID: "run-4",
		Steps: []pipeline_type.PipelineStep{
			{ID: "s1", Type: "flaky", Weight: 1, Optional: true},
			{ID: "s2", Type: "after", Weight: 2},
		},
	}

	_, err := ExecutePipeline(context.Background(), p, resolver, testLogger())
	require.NoError(t, err)
	assert.True(t, reached)
}

func TestExecutePipelineUnknownStepType(t *testing.T) {
	resolver := &stubResolver{steps: map[string]Step{}}

	p := &pipeline_type.Pipeline{
		ID:    "run-5",
		Steps: []pipeline_type.PipelineStep{{ID: "s1", Type: "missing", Weight: 1}},
	}

	_, err := ExecutePipeline(context.Background(), p, resolver, testLogger())
	assert.ErrorContains(t, err, "resolving step s1")
}
