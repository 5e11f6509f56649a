package pipeline

import (
	"context"

	"github.com/serisow/metrodoc/pipeline_type"
)

type Step interface {
	Execute(ctx context.Context, pipelineContext *pipeline_type.Context) error

	GetType() string
}

// StepResolver hands out step instances by type name. The plugin registry
// implements this.
type StepResolver interface {
	GetStepInstance(typeName string) (Step, error)
}

// ConfigurableStep receives its per-run settings from the pipeline
// definition before execution.
type ConfigurableStep interface {
	Step
	SetPipelineStep(step pipeline_type.PipelineStep)
}
