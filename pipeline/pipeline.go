package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/serisow/metrodoc/metrics"
	"github.com/serisow/metrodoc/pipeline_type"
)

// ExecutePipeline runs every step of a document pipeline in weight order.
// Optional steps log and continue on failure; a required step's failure
// aborts the run. Step outputs are collected into the execution result.
func ExecutePipeline(ctx context.Context, p *pipeline_type.Pipeline, registry StepResolver, logger *slog.Logger) (map[string]interface{}, error) {
	if p.Context == nil {
		p.Context = pipeline_type.NewContext()
	}

	steps := make([]pipeline_type.PipelineStep, len(p.Steps))
	copy(steps, p.Steps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Weight < steps[j].Weight
	})

	results := make(map[string]interface{})

	for _, pipelineStep := range steps {
		step, err := registry.GetStepInstance(pipelineStep.Type)
		if err != nil {
			return results, fmt.Errorf("resolving step %s: %w", pipelineStep.ID, err)
		}
		if configurable, ok := step.(ConfigurableStep); ok {
			configurable.SetPipelineStep(pipelineStep)
		}

		logger.Info("Executing pipeline step",
			slog.String("pipeline_id", p.ID),
			slog.String("step_id", pipelineStep.ID),
			slog.String("step_type", pipelineStep.Type))

		start := time.Now()
		err = step.Execute(ctx, p.Context)
		metrics.StageDuration.WithLabelValues(pipelineStep.Type).Observe(time.Since(start).Seconds())

		if err != nil {
			if pipelineStep.Optional {
				logger.Warn("Optional step failed, continuing",
					slog.String("pipeline_id", p.ID),
					slog.String("step_id", pipelineStep.ID),
					slog.String("error", err.Error()))
				continue
			}
			return results, fmt.Errorf("error executing step %s: %w", pipelineStep.ID, err)
		}

		if pipelineStep.StepOutputKey != "" {
			output, _ := p.Context.GetStepOutput(pipelineStep.StepOutputKey)
			results[pipelineStep.ID] = output
		}
	}

	return results, nil
}
