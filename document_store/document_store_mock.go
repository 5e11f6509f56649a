package document_store

import (
	"context"
	"sync"

	"github.com/serisow/metrodoc/pipeline_type"
)

// MockStore is an in-memory Store for tests. Only the behaviors tests care
// about are overridable; the defaults record writes so assertions can
// inspect them.
type MockStore struct {
	mu sync.Mutex

	Documents map[int64]*pipeline_type.Document
	Pages     map[int64][]pipeline_type.Page
	Chunks    map[int64][]*pipeline_type.Chunk
	Tasks     map[int64][]*pipeline_type.Task
	Summaries []*pipeline_type.Summary
	Jobs      map[int64]*pipeline_type.Job

	UpdateChunkFunc func(ctx context.Context, chunk *pipeline_type.Chunk) error
	ClaimJobFunc    func(ctx context.Context) (*pipeline_type.Job, error)

	ClearedDocs []int64

	nextID int64
}

func NewMockStore() *MockStore {
	return &MockStore{
		Documents: make(map[int64]*pipeline_type.Document),
		Pages:     make(map[int64][]pipeline_type.Page),
		Chunks:    make(map[int64][]*pipeline_type.Chunk),
		Tasks:     make(map[int64][]*pipeline_type.Task),
		Jobs:      make(map[int64]*pipeline_type.Job),
	}
}

func (m *MockStore) nextSeq() int64 {
	m.nextID++
	return m.nextID
}

func (m *MockStore) CreateDocument(ctx context.Context, doc *pipeline_type.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.ID = m.nextSeq()
	doc.Status = pipeline_type.DocumentUploaded
	m.Documents[doc.ID] = doc
	return nil
}

func (m *MockStore) GetDocument(ctx context.Context, id int64) (*pipeline_type.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.Documents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (m *MockStore) GetDocumentByUUID(ctx context.Context, docUUID string) (*pipeline_type.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.Documents {
		if doc.UUID == docUUID {
			return doc, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) ListDocuments(ctx context.Context, limit, offset int) ([]*pipeline_type.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var docs []*pipeline_type.Document
	for _, doc := range m.Documents {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *MockStore) UpdateDocumentStatus(ctx context.Context, id int64, status pipeline_type.DocumentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.Documents[id]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	return nil
}

func (m *MockStore) FinalizeDocument(ctx context.Context, id int64, summary string, chunksCount, tasksCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.Documents[id]
	if !ok {
		return ErrNotFound
	}
	doc.Status = pipeline_type.DocumentProcessed
	doc.Summary = summary
	doc.ChunksCount = chunksCount
	doc.TasksCount = tasksCount
	return nil
}

func (m *MockStore) SavePages(ctx context.Context, docID int64, pages []pipeline_type.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pages[docID] = append(m.Pages[docID], pages...)
	return nil
}

func (m *MockStore) SaveChunks(ctx context.Context, docID int64, chunks []*pipeline_type.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		c.ID = m.nextSeq()
		c.DocID = docID
	}
	m.Chunks[docID] = append(m.Chunks[docID], chunks...)
	return nil
}

func (m *MockStore) UpdateChunk(ctx context.Context, chunk *pipeline_type.Chunk) error {
	if m.UpdateChunkFunc != nil {
		return m.UpdateChunkFunc(ctx, chunk)
	}
	return nil
}

func (m *MockStore) GetChunks(ctx context.Context, docID int64) ([]*pipeline_type.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Chunks[docID], nil
}

func (m *MockStore) SaveTasks(ctx context.Context, docID int64, tasks []*pipeline_type.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tasks {
		t.ID = m.nextSeq()
		t.DocID = docID
	}
	m.Tasks[docID] = append(m.Tasks[docID], tasks...)
	return nil
}

func (m *MockStore) GetTasks(ctx context.Context, docID int64) ([]*pipeline_type.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Tasks[docID], nil
}

func (m *MockStore) SaveSummary(ctx context.Context, s *pipeline_type.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.nextSeq()
	m.Summaries = append(m.Summaries, s)
	return nil
}

func (m *MockStore) GetDocumentSummary(ctx context.Context, docID int64) (*pipeline_type.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Summaries) - 1; i >= 0; i-- {
		s := m.Summaries[i]
		if s.DocID == docID && s.Level == pipeline_type.SummaryDocument {
			return s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) ClearDerived(ctx context.Context, docID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Chunks, docID)
	delete(m.Tasks, docID)
	delete(m.Pages, docID)

	var kept []*pipeline_type.Summary
	for _, s := range m.Summaries {
		if s.DocID != docID {
			kept = append(kept, s)
		}
	}
	m.Summaries = kept
	m.ClearedDocs = append(m.ClearedDocs, docID)
	return nil
}

func (m *MockStore) EnqueueJob(ctx context.Context, docID int64, maxAttempts int) (*pipeline_type.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := &pipeline_type.Job{
		ID:          m.nextSeq(),
		DocID:       docID,
		Status:      pipeline_type.JobQueued,
		MaxAttempts: maxAttempts,
	}
	m.Jobs[job.ID] = job
	return job, nil
}

func (m *MockStore) ClaimJob(ctx context.Context) (*pipeline_type.Job, error) {
	if m.ClaimJobFunc != nil {
		return m.ClaimJobFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.Jobs {
		if job.Status == pipeline_type.JobQueued {
			job.Status = pipeline_type.JobRunning
			job.Attempts++
			return job, nil
		}
	}
	return nil, nil
}

func (m *MockStore) CompleteJob(ctx context.Context, jobID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.Jobs[jobID]; ok {
		job.Status = pipeline_type.JobCompleted
	}
	return nil
}

func (m *MockStore) FailJob(ctx context.Context, jobID int64, lastError string, retry bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.Jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.LastError = lastError
	if retry {
		job.Status = pipeline_type.JobQueued
	} else {
		job.Status = pipeline_type.JobFailed
	}
	return nil
}

func (m *MockStore) RequeueJob(ctx context.Context, jobID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.Jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = pipeline_type.JobQueued
	if job.Attempts > 0 {
		job.Attempts--
	}
	return nil
}

func (m *MockStore) HasActiveJob(ctx context.Context, docID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.Jobs {
		if job.DocID == docID &&
			(job.Status == pipeline_type.JobQueued || job.Status == pipeline_type.JobRunning) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStore) QueueDepth(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	depth := 0
	for _, job := range m.Jobs {
		if job.Status == pipeline_type.JobQueued {
			depth++
		}
	}
	return depth, nil
}

func (m *MockStore) Stats(ctx context.Context) (*pipeline_type.SystemStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &pipeline_type.SystemStats{TotalDocuments: len(m.Documents)}
	for _, doc := range m.Documents {
		switch doc.Status {
		case pipeline_type.DocumentProcessed:
			stats.Processed++
		case pipeline_type.DocumentFailed:
			stats.Failed++
		case pipeline_type.DocumentProcessing:
			stats.Processing++
		}
	}
	return stats, nil
}
