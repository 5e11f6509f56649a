package pipeline_type

import "time"

type DocumentStatus string

const (
	DocumentUploaded   DocumentStatus = "uploaded"
	DocumentProcessing DocumentStatus = "processing"
	DocumentProcessed  DocumentStatus = "processed"
	DocumentFailed     DocumentStatus = "failed"
)

// Document is the relational record for an uploaded file. Content is only
// populated for text submitted inline; uploaded files live in the object
// store under FilePath.
type Document struct {
	ID          int64          `json:"id"`
	UUID        string         `json:"uuid"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Content     string         `json:"content,omitempty"`
	FilePath    string         `json:"file_path,omitempty"`
	FileName    string         `json:"file_name,omitempty"`
	FileSize    int64          `json:"file_size,omitempty"`
	FileType    string         `json:"file_type,omitempty"`
	Status      DocumentStatus `json:"status"`
	Summary     string         `json:"summary,omitempty"`
	ChunksCount int            `json:"chunks_count"`
	TasksCount  int            `json:"tasks_count"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Page holds the per-page extraction result, including which extractor
// produced it.
type Page struct {
	ID     int64  `json:"id"`
	DocID  int64  `json:"doc_id"`
	PageNo int    `json:"page_no"`
	Text   string `json:"text"`
	Method string `json:"method"`
}

type ChunkStatus string

const (
	ChunkPending   ChunkStatus = "pending"
	ChunkProcessed ChunkStatus = "processed"
	ChunkFailed    ChunkStatus = "failed"
)

type Chunk struct {
	ID          int64       `json:"id"`
	UUID        string      `json:"uuid"`
	DocID       int64       `json:"doc_id"`
	ChunkNo     int         `json:"chunk_no"`
	PageNo      int         `json:"page_no"`
	Text        string      `json:"text"`
	TextExcerpt string      `json:"text_excerpt"`
	TokenCount  int         `json:"token_count"`
	EmbeddingID string      `json:"embedding_id,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	Entities    []Entity    `json:"entities,omitempty"`
	Status      ChunkStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

type TaskStatus string

const (
	TaskOpen TaskStatus = "open"
	TaskDone TaskStatus = "done"
)

// Task is an actionable item lifted out of a document. SourceChunkID is nil
// for document-level tasks produced by the model extractor.
type Task struct {
	ID            int64        `json:"id"`
	UUID          string       `json:"uuid"`
	DocID         int64        `json:"doc_id"`
	SourceChunkID *int64       `json:"source_chunk_id,omitempty"`
	Text          string       `json:"text"`
	Assignee      string       `json:"assignee,omitempty"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
	Priority      TaskPriority `json:"priority"`
	Status        TaskStatus   `json:"status"`
	ExtractedBy   string       `json:"extracted_by"`
	Confidence    float64      `json:"confidence,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

type SummaryLevel string

const (
	SummaryChunk    SummaryLevel = "chunk"
	SummaryDocument SummaryLevel = "document"
)

type Summary struct {
	ID        int64        `json:"id"`
	DocID     int64        `json:"doc_id"`
	ChunkID   *int64       `json:"chunk_id,omitempty"`
	Level     SummaryLevel `json:"level"`
	Text      string       `json:"text"`
	Method    string       `json:"method"`
	CreatedAt time.Time    `json:"created_at"`
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one processing run for a document. The dispatcher claims queued
// jobs and retries them up to MaxAttempts.
type Job struct {
	ID          int64      `json:"id"`
	UUID        string     `json:"uuid"`
	DocID       int64      `json:"doc_id"`
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   string     `json:"last_error,omitempty"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// PipelineStep describes one stage of a document run. Steps are resolved
// against the plugin registry by Type.
type PipelineStep struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Weight          int    `json:"weight"`
	StepDescription string `json:"step_description"`
	StepOutputKey   string `json:"step_output_key"`
	Optional        bool   `json:"optional"`
}

// The full pipeline data for one document run.
type Pipeline struct {
	ID      string         `json:"id"`
	Label   string         `json:"label"`
	Steps   []PipelineStep `json:"steps"`
	Context *Context
}
