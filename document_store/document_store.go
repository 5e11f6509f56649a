package document_store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serisow/metrodoc/pipeline_type"
)

var ErrNotFound = errors.New("not found")

// Store covers the relational side of the system: documents, their derived
// artifacts, and the processing job queue.
type Store interface {
	CreateDocument(ctx context.Context, doc *pipeline_type.Document) error
	GetDocument(ctx context.Context, id int64) (*pipeline_type.Document, error)
	GetDocumentByUUID(ctx context.Context, docUUID string) (*pipeline_type.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]*pipeline_type.Document, error)
	UpdateDocumentStatus(ctx context.Context, id int64, status pipeline_type.DocumentStatus) error
	FinalizeDocument(ctx context.Context, id int64, summary string, chunksCount, tasksCount int) error

	SavePages(ctx context.Context, docID int64, pages []pipeline_type.Page) error
	SaveChunks(ctx context.Context, docID int64, chunks []*pipeline_type.Chunk) error
	UpdateChunk(ctx context.Context, chunk *pipeline_type.Chunk) error
	GetChunks(ctx context.Context, docID int64) ([]*pipeline_type.Chunk, error)

	SaveTasks(ctx context.Context, docID int64, tasks []*pipeline_type.Task) error
	GetTasks(ctx context.Context, docID int64) ([]*pipeline_type.Task, error)

	SaveSummary(ctx context.Context, s *pipeline_type.Summary) error
	GetDocumentSummary(ctx context.Context, docID int64) (*pipeline_type.Summary, error)

	ClearDerived(ctx context.Context, docID int64) error

	EnqueueJob(ctx context.Context, docID int64, maxAttempts int) (*pipeline_type.Job, error)
	ClaimJob(ctx context.Context) (*pipeline_type.Job, error)
	CompleteJob(ctx context.Context, jobID int64) error
	FailJob(ctx context.Context, jobID int64, lastError string, retry bool) error
	RequeueJob(ctx context.Context, jobID int64) error
	HasActiveJob(ctx context.Context, docID int64) (bool, error)
	QueueDepth(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*pipeline_type.SystemStats, error)
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) CreateDocument(ctx context.Context, doc *pipeline_type.Document) error {
	if doc.UUID == "" {
		doc.UUID = uuid.New().String()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (uuid, title, description, file_path, file_name, file_size, file_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		doc.UUID, doc.Title, doc.Description, doc.FilePath, doc.FileName,
		doc.FileSize, doc.FileType, pipeline_type.DocumentUploaded,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.Status = pipeline_type.DocumentUploaded
	return nil
}

const documentColumns = `id, uuid, title, description, content, file_path, file_name,
	file_size, file_type, status, summary, chunks_count, tasks_count,
	processed_at, created_at, updated_at`

func scanDocument(row pgx.Row) (*pipeline_type.Document, error) {
	var doc pipeline_type.Document
	err := row.Scan(&doc.ID, &doc.UUID, &doc.Title, &doc.Description, &doc.Content,
		&doc.FilePath, &doc.FileName, &doc.FileSize, &doc.FileType, &doc.Status,
		&doc.Summary, &doc.ChunksCount, &doc.TasksCount,
		&doc.ProcessedAt, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (s *PgStore) GetDocument(ctx context.Context, id int64) (*pipeline_type.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (s *PgStore) GetDocumentByUUID(ctx context.Context, docUUID string) (*pipeline_type.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE uuid = $1`, docUUID)
	return scanDocument(row)
}

func (s *PgStore) ListDocuments(ctx context.Context, limit, offset int) ([]*pipeline_type.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*pipeline_type.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PgStore) UpdateDocumentStatus(ctx context.Context, id int64, status pipeline_type.DocumentStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) FinalizeDocument(ctx context.Context, id int64, summary string, chunksCount, tasksCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET status = $1, summary = $2, chunks_count = $3, tasks_count = $4,
		    processed_at = now(), updated_at = now()
		WHERE id = $5`,
		pipeline_type.DocumentProcessed, summary, chunksCount, tasksCount, id)
	if err != nil {
		return fmt.Errorf("finalize document: %w", err)
	}
	return nil
}

func (s *PgStore) SavePages(ctx context.Context, docID int64, pages []pipeline_type.Page) error {
	batch := &pgx.Batch{}
	for _, p := range pages {
		batch.Queue(`
			INSERT INTO document_pages (doc_id, page_no, text, method)
			VALUES ($1, $2, $3, $4)`, docID, p.PageNo, p.Text, p.Method)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range pages {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert page: %w", err)
		}
	}
	return nil
}

func (s *PgStore) SaveChunks(ctx context.Context, docID int64, chunks []*pipeline_type.Chunk) error {
	for _, c := range chunks {
		if c.UUID == "" {
			c.UUID = uuid.New().String()
		}
		entitiesJSON, err := json.Marshal(c.Entities)
		if err != nil {
			return fmt.Errorf("marshal chunk entities: %w", err)
		}
		err = s.pool.QueryRow(ctx, `
			INSERT INTO chunks (uuid, doc_id, chunk_no, page_no, text, text_excerpt, token_count, entities, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			c.UUID, docID, c.ChunkNo, c.PageNo, c.Text, c.TextExcerpt,
			c.TokenCount, entitiesJSON, c.Status,
		).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkNo, err)
		}
		c.DocID = docID
	}
	return nil
}

func (s *PgStore) UpdateChunk(ctx context.Context, chunk *pipeline_type.Chunk) error {
	entitiesJSON, err := json.Marshal(chunk.Entities)
	if err != nil {
		return fmt.Errorf("marshal chunk entities: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE chunks
		SET embedding_id = $1, summary = $2, entities = $3, status = $4
		WHERE id = $5`,
		chunk.EmbeddingID, chunk.Summary, entitiesJSON, chunk.Status, chunk.ID)
	if err != nil {
		return fmt.Errorf("update chunk %d: %w", chunk.ID, err)
	}
	return nil
}

func (s *PgStore) GetChunks(ctx context.Context, docID int64) ([]*pipeline_type.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, uuid, doc_id, chunk_no, page_no, text, text_excerpt,
		       token_count, embedding_id, summary, entities, status, created_at
		FROM chunks WHERE doc_id = $1 ORDER BY chunk_no`, docID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*pipeline_type.Chunk
	for rows.Next() {
		var c pipeline_type.Chunk
		var entitiesJSON []byte
		err := rows.Scan(&c.ID, &c.UUID, &c.DocID, &c.ChunkNo, &c.PageNo, &c.Text,
			&c.TextExcerpt, &c.TokenCount, &c.EmbeddingID, &c.Summary,
			&entitiesJSON, &c.Status, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(entitiesJSON) > 0 {
			if err := json.Unmarshal(entitiesJSON, &c.Entities); err != nil {
				return nil, fmt.Errorf("unmarshal chunk entities: %w", err)
			}
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

func (s *PgStore) SaveTasks(ctx context.Context, docID int64, tasks []*pipeline_type.Task) error {
	for _, t := range tasks {
		if t.UUID == "" {
			t.UUID = uuid.New().String()
		}
		err := s.pool.QueryRow(ctx, `
			INSERT INTO tasks (uuid, doc_id, source_chunk_id, task_text, assignee,
			                   due_date, priority, status, extracted_by, confidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			t.UUID, docID, t.SourceChunkID, t.Text, t.Assignee,
			t.DueDate, t.Priority, pipeline_type.TaskOpen, t.ExtractedBy, t.Confidence,
		).Scan(&t.ID)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		t.DocID = docID
	}
	return nil
}

func (s *PgStore) GetTasks(ctx context.Context, docID int64) ([]*pipeline_type.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, uuid, doc_id, source_chunk_id, task_text, assignee, due_date,
		       priority, status, extracted_by, confidence, created_at
		FROM tasks WHERE doc_id = $1 ORDER BY id`, docID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*pipeline_type.Task
	for rows.Next() {
		var t pipeline_type.Task
		err := rows.Scan(&t.ID, &t.UUID, &t.DocID, &t.SourceChunkID, &t.Text,
			&t.Assignee, &t.DueDate, &t.Priority, &t.Status, &t.ExtractedBy,
			&t.Confidence, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

func (s *PgStore) SaveSummary(ctx context.Context, sum *pipeline_type.Summary) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO summaries (doc_id, chunk_id, level, text, method)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		sum.DocID, sum.ChunkID, sum.Level, sum.Text, sum.Method,
	).Scan(&sum.ID, &sum.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

func (s *PgStore) GetDocumentSummary(ctx context.Context, docID int64) (*pipeline_type.Summary, error) {
	var sum pipeline_type.Summary
	err := s.pool.QueryRow(ctx, `
		SELECT id, doc_id, chunk_id, level, text, method, created_at
		FROM summaries
		WHERE doc_id = $1 AND level = $2
		ORDER BY created_at DESC LIMIT 1`,
		docID, pipeline_type.SummaryDocument,
	).Scan(&sum.ID, &sum.DocID, &sum.ChunkID, &sum.Level, &sum.Text, &sum.Method, &sum.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query document summary: %w", err)
	}
	return &sum, nil
}

// ClearDerived removes everything the pipeline produced for a document so a
// reprocess starts clean. Vector rows live in the chunks table, so deleting
// chunks also drops the embeddings.
func (s *PgStore) ClearDerived(ctx context.Context, docID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin clear tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`DELETE FROM summaries WHERE doc_id = $1`,
		`DELETE FROM tasks WHERE doc_id = $1`,
		`DELETE FROM chunks WHERE doc_id = $1`,
		`DELETE FROM document_pages WHERE doc_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, docID); err != nil {
			return fmt.Errorf("clear derived data: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE documents
		SET summary = NULL, content = NULL, chunks_count = 0, tasks_count = 0,
		    processed_at = NULL, updated_at = now()
		WHERE id = $1`, docID)
	if err != nil {
		return fmt.Errorf("reset document counters: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PgStore) EnqueueJob(ctx context.Context, docID int64, maxAttempts int) (*pipeline_type.Job, error) {
	job := &pipeline_type.Job{
		UUID:        uuid.New().String(),
		DocID:       docID,
		Status:      pipeline_type.JobQueued,
		MaxAttempts: maxAttempts,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO processing_jobs (uuid, doc_id, status, max_attempts)
		VALUES ($1, $2, $3, $4)
		RETURNING id, enqueued_at`,
		job.UUID, docID, job.Status, maxAttempts,
	).Scan(&job.ID, &job.EnqueuedAt)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// ClaimJob atomically picks the oldest queued job. SKIP LOCKED lets several
// workers poll the same table without stepping on each other.
func (s *PgStore) ClaimJob(ctx context.Context) (*pipeline_type.Job, error) {
	var job pipeline_type.Job
	err := s.pool.QueryRow(ctx, `
		UPDATE processing_jobs
		SET status = $1, attempts = attempts + 1, started_at = now()
		WHERE id = (
			SELECT id FROM processing_jobs
			WHERE status = $2
			ORDER BY enqueued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, uuid, doc_id, status, attempts, max_attempts, last_error,
		          enqueued_at, started_at, finished_at`,
		pipeline_type.JobRunning, pipeline_type.JobQueued,
	).Scan(&job.ID, &job.UUID, &job.DocID, &job.Status, &job.Attempts,
		&job.MaxAttempts, &job.LastError, &job.EnqueuedAt, &job.StartedAt, &job.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return &job, nil
}

func (s *PgStore) CompleteJob(ctx context.Context, jobID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE processing_jobs
		SET status = $1, finished_at = now()
		WHERE id = $2`, pipeline_type.JobCompleted, jobID)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (s *PgStore) FailJob(ctx context.Context, jobID int64, lastError string, retry bool) error {
	status := pipeline_type.JobFailed
	if retry {
		status = pipeline_type.JobQueued
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE processing_jobs
		SET status = $1, last_error = $2,
		    finished_at = CASE WHEN $1 = 'failed' THEN now() ELSE NULL END
		WHERE id = $3`, status, lastError, jobID)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// RequeueJob puts a claimed job back untouched. ClaimJob already counted an
// attempt, so it is given back; no work was done on the document.
func (s *PgStore) RequeueJob(ctx context.Context, jobID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE processing_jobs
		SET status = $1, attempts = GREATEST(attempts - 1, 0), started_at = NULL
		WHERE id = $2`, pipeline_type.JobQueued, jobID)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	return nil
}

func (s *PgStore) HasActiveJob(ctx context.Context, docID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM processing_jobs
			WHERE doc_id = $1 AND status IN ('queued', 'running')
		)`, docID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active job: %w", err)
	}
	return exists, nil
}

func (s *PgStore) QueueDepth(ctx context.Context) (int, error) {
	var depth int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM processing_jobs WHERE status = 'queued'`).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return depth, nil
}

func (s *PgStore) Stats(ctx context.Context) (*pipeline_type.SystemStats, error) {
	var stats pipeline_type.SystemStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'processed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'processing')
		FROM documents`).Scan(&stats.TotalDocuments, &stats.Processed, &stats.Failed, &stats.Processing)
	if err != nil {
		return nil, fmt.Errorf("processing stats: %w", err)
	}
	return &stats, nil
}
