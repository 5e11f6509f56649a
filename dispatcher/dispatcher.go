package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serisow/metrodoc/chunk_step"
	"github.com/serisow/metrodoc/config"
	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/embed_step"
	"github.com/serisow/metrodoc/extract_step"
	"github.com/serisow/metrodoc/finalize_step"
	"github.com/serisow/metrodoc/metrics"
	"github.com/serisow/metrodoc/notifier"
	"github.com/serisow/metrodoc/pipeline"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/summarize_step"
	"github.com/serisow/metrodoc/task_step"
)

// Dispatcher polls the job queue and runs the document pipeline for each
// claimed job. Several workers poll concurrently; SKIP LOCKED on the claim
// query keeps them from double-claiming, and runningDocs keeps two jobs for
// the same document from running at once.
type Dispatcher struct {
	store        document_store.Store
	registry     pipeline.StepResolver
	notify       notifier.Notifier
	logger       *slog.Logger
	workerCount  int
	pollInterval time.Duration
	retryDelay   time.Duration

	runningDocs sync.Map
}

func New(store document_store.Store, registry pipeline.StepResolver, notify notifier.Notifier, tuning config.Tuning, logger *slog.Logger) *Dispatcher {
	workerCount := tuning.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}
	pollInterval := tuning.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Dispatcher{
		store:        store,
		registry:     registry,
		notify:       notify,
		logger:       logger,
		workerCount:  workerCount,
		pollInterval: pollInterval,
		retryDelay:   tuning.RetryDelay,
	}
}

// Start runs the worker pool until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting document dispatcher",
		slog.Int("workers", d.workerCount),
		slog.Duration("poll_interval", d.pollInterval))

	var wg sync.WaitGroup
	for i := 0; i < d.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			d.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, workerID int) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		d.drainQueue(ctx, workerID)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drainQueue claims and runs jobs until the queue comes back empty.
func (d *Dispatcher) drainQueue(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			return
		}

		if depth, err := d.store.QueueDepth(ctx); err == nil {
			metrics.QueueDepth.Set(float64(depth))
		}

		job, err := d.store.ClaimJob(ctx)
		if err != nil {
			d.logger.Error("Error claiming job",
				slog.Int("worker", workerID),
				slog.String("error", err.Error()))
			return
		}
		if job == nil {
			return
		}

		d.runJob(ctx, job)
	}
}

func (d *Dispatcher) runJob(ctx context.Context, job *pipeline_type.Job) {
	if _, loaded := d.runningDocs.LoadOrStore(job.DocID, struct{}{}); loaded {
		// Another worker already holds this document. RequeueJob gives back
		// the attempt the claim consumed; repeated collisions with a long
		// run must not drain the retry budget.
		if err := d.store.RequeueJob(ctx, job.ID); err != nil {
			d.logger.Error("Error requeueing concurrent job",
				slog.Int64("job_id", job.ID),
				slog.String("error", err.Error()))
		}
		return
	}
	defer d.runningDocs.Delete(job.DocID)

	doc, err := d.store.GetDocument(ctx, job.DocID)
	if err != nil {
		d.failJob(ctx, job, "", fmt.Errorf("loading document %d: %w", job.DocID, err))
		return
	}

	// A run always starts clean. Retries and reprocessing would otherwise
	// duplicate chunk, task and summary rows; the embeddings sit on the
	// chunk rows so they go too.
	if err := d.store.ClearDerived(ctx, doc.ID); err != nil {
		d.failJob(ctx, job, doc.Title, fmt.Errorf("clearing derived data for document %d: %w", doc.ID, err))
		return
	}

	if err := d.store.UpdateDocumentStatus(ctx, doc.ID, pipeline_type.DocumentProcessing); err != nil {
		d.failJob(ctx, job, doc.Title, fmt.Errorf("marking document %d processing: %w", doc.ID, err))
		return
	}

	execID := uuid.New().String()
	start := time.Now()
	execResult := &pipeline.ExecutionResult{
		DocumentID:  doc.ID,
		ExecutionID: execID,
		Status:      pipeline.StatusStarted,
		StartTime:   start.Unix(),
		SubmittedAt: start.Format(time.RFC3339),
	}
	pipeline.AddExecution(execID, execResult)

	d.logger.Info("Processing document",
		slog.Int64("doc_id", doc.ID),
		slog.Int64("job_id", job.ID),
		slog.Int("attempt", job.Attempts),
		slog.String("execution_id", execID))

	p := buildDocumentPipeline(doc)
	results, runErr := pipeline.ExecutePipeline(ctx, p, d.registry, d.logger)

	end := time.Now()
	pipeline.ExecutionStore.Lock()
	execResult.EndTime = end.Unix()
	execResult.CompletedAt = end.Format(time.RFC3339)
	execResult.Results = results
	if runErr != nil {
		execResult.Status = pipeline.StatusFailed
		execResult.ErrorMessage = runErr.Error()
	} else {
		execResult.Status = pipeline.StatusCompleted
	}
	pipeline.ExecutionStore.Unlock()

	if runErr != nil {
		d.failJob(ctx, job, doc.Title, runErr)
		return
	}

	if err := d.store.CompleteJob(ctx, job.ID); err != nil {
		d.logger.Error("Error completing job",
			slog.Int64("job_id", job.ID),
			slog.String("error", err.Error()))
	}

	d.logger.Info("Document processed",
		slog.Int64("doc_id", doc.ID),
		slog.Duration("duration", end.Sub(start)))
}

// failJob requeues the job when attempts remain, otherwise marks the job and
// the document failed and alerts operations.
func (d *Dispatcher) failJob(ctx context.Context, job *pipeline_type.Job, docTitle string, cause error) {
	if job.Attempts < job.MaxAttempts {
		metrics.JobRetries.Inc()
		d.logger.Warn("Processing attempt failed, requeueing",
			slog.Int64("doc_id", job.DocID),
			slog.Int("attempt", job.Attempts),
			slog.Int("max_attempts", job.MaxAttempts),
			slog.String("error", cause.Error()))

		if d.retryDelay > 0 {
			time.Sleep(d.retryDelay)
		}
		if err := d.store.FailJob(ctx, job.ID, cause.Error(), true); err != nil {
			d.logger.Error("Error requeueing job",
				slog.Int64("job_id", job.ID),
				slog.String("error", err.Error()))
		}
		return
	}

	d.logger.Error("Document processing failed permanently",
		slog.Int64("doc_id", job.DocID),
		slog.Int("attempts", job.Attempts),
		slog.String("error", cause.Error()))
	metrics.DocumentsProcessed.WithLabelValues(string(pipeline_type.DocumentFailed)).Inc()

	if err := d.store.FailJob(ctx, job.ID, cause.Error(), false); err != nil {
		d.logger.Error("Error marking job failed",
			slog.Int64("job_id", job.ID),
			slog.String("error", err.Error()))
	}
	if err := d.store.UpdateDocumentStatus(ctx, job.DocID, pipeline_type.DocumentFailed); err != nil {
		d.logger.Error("Error marking document failed",
			slog.Int64("doc_id", job.DocID),
			slog.String("error", err.Error()))
	}

	if err := d.notify.NotifyProcessingFailure(job.DocID, docTitle, cause.Error()); err != nil {
		d.logger.Error("Error sending failure alert",
			slog.Int64("doc_id", job.DocID),
			slog.String("error", err.Error()))
	}
}

// buildDocumentPipeline assembles the standard six-stage run for a document.
// Task extraction and summarization are optional: a model server outage
// should not fail the whole document.
func buildDocumentPipeline(doc *pipeline_type.Document) *pipeline_type.Pipeline {
	pc := pipeline_type.NewContext()
	pc.DocumentID = doc.ID
	pc.Document = doc

	return &pipeline_type.Pipeline{
		ID:    fmt.Sprintf("doc-%d", doc.ID),
		Label: fmt.Sprintf("Process document %s", doc.UUID),
		Steps: []pipeline_type.PipelineStep{
			{
				ID:              "extract",
				Type:            extract_step.StepType,
				Weight:          1,
				StepDescription: "Extract page text",
				StepOutputKey:   "page_count",
			},
			{
				ID:              "chunk",
				Type:            chunk_step.StepType,
				Weight:          2,
				StepDescription: "Split text into token windows",
				StepOutputKey:   "chunk_count",
			},
			{
				ID:              "embed",
				Type:            embed_step.StepType,
				Weight:          3,
				StepDescription: "Embed chunks and tag entities",
				StepOutputKey:   "embedding_counts",
			},
			{
				ID:              "tasks",
				Type:            task_step.StepType,
				Weight:          4,
				StepDescription: "Extract actionable tasks",
				StepOutputKey:   "task_count",
				Optional:        true,
			},
			{
				ID:              "summarize",
				Type:            summarize_step.StepType,
				Weight:          5,
				StepDescription: "Summarize chunks and document",
				StepOutputKey:   "document_summary",
				Optional:        true,
			},
			{
				ID:              "finalize",
				Type:            finalize_step.StepType,
				Weight:          6,
				StepDescription: "Close out the document record",
				StepOutputKey:   "totals",
			},
		},
		Context: pc,
	}
}
