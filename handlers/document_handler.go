package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/pipeline"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/chunker"
	"github.com/serisow/metrodoc/storage"
	"github.com/serisow/metrodoc/textutil"
)

const maxUploadBytes = 50 << 20 // 50 MB

var supportedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".html": "text/html",
	".htm":  "text/html",
	".txt":  "text/plain",
	".md":   "text/plain",
}

// DocumentHandler owns the document CRUD surface. Uploads land the raw file
// in the object store and a job in the queue; everything derived is served
// from the relational store once the dispatcher has run.
type DocumentHandler struct {
	store       document_store.Store
	objects     storage.ObjectStore
	chunker     *chunker.Chunker
	maxAttempts int
	logger      *slog.Logger
}

func NewDocumentHandler(store document_store.Store, objects storage.ObjectStore, ch *chunker.Chunker, maxAttempts int, logger *slog.Logger) *DocumentHandler {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &DocumentHandler{
		store:       store,
		objects:     objects,
		chunker:     ch,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Upload accepts either a multipart file upload or an inline JSON text
// submission.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		h.uploadInline(w, r)
		return
	}
	h.uploadFile(w, r)
}

func (h *DocumentHandler) uploadInline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSONError(w, "content is required", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		req.Title = "Untitled document"
	}

	doc := &pipeline_type.Document{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		FileType:    "text/plain",
	}
	job, err := h.createAndEnqueue(r, doc)
	if err != nil {
		h.logger.Error("Failed to register inline document",
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to store document", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, pipeline_type.UploadResponse{
		Message:    "Document accepted for processing",
		DocumentID: doc.ID,
		JobID:      job.ID,
		Status:     string(doc.Status),
		Metadata: pipeline_type.DocumentMetadata{
			WordCount:      len(strings.Fields(req.Content)),
			TokenCount:     h.chunker.CountTokens(req.Content),
			ContentPreview: preview(req.Content),
			ContentType:    "text/plain",
		},
	})
}

func (h *DocumentHandler) uploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Failed to get file from form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	fileType, ok := supportedExtensions[ext]
	if !ok {
		h.logger.Warn("Rejected unsupported file type",
			slog.String("filename", header.Filename),
			slog.String("extension", ext))
		writeJSONError(w, fmt.Sprintf("Unsupported file type %s", ext), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	key := fmt.Sprintf("documents/%s%s", uuid.New().String(), ext)
	if _, err := h.objects.Upload(r.Context(), key, buf.Bytes(), fileType); err != nil {
		h.logger.Error("Failed to store uploaded file",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to store file", http.StatusInternalServerError)
		return
	}

	doc := &pipeline_type.Document{
		Title:       title,
		Description: r.FormValue("description"),
		FilePath:    key,
		FileName:    header.Filename,
		FileSize:    header.Size,
		FileType:    fileType,
	}
	job, err := h.createAndEnqueue(r, doc)
	if err != nil {
		h.logger.Error("Failed to register uploaded document",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to store document", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Accepted document upload",
		slog.Int64("doc_id", doc.ID),
		slog.String("filename", header.Filename),
		slog.Int64("size", header.Size))

	writeJSON(w, http.StatusAccepted, pipeline_type.UploadResponse{
		Message:    "Document accepted for processing",
		DocumentID: doc.ID,
		JobID:      job.ID,
		Status:     string(doc.Status),
		Metadata: pipeline_type.DocumentMetadata{
			ContentType: fileType,
		},
	})
}

func (h *DocumentHandler) createAndEnqueue(r *http.Request, doc *pipeline_type.Document) (*pipeline_type.Job, error) {
	if err := h.store.CreateDocument(r.Context(), doc); err != nil {
		return nil, err
	}
	job, err := h.store.EnqueueJob(r.Context(), doc.ID, h.maxAttempts)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	docs, err := h.store.ListDocuments(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list documents", slog.String("error", err.Error()))
		writeJSONError(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []*pipeline_type.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) GetChunks(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	chunks, err := h.store.GetChunks(r.Context(), doc.ID)
	if err != nil {
		h.logger.Error("Failed to load chunks",
			slog.Int64("doc_id", doc.ID),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to load chunks", http.StatusInternalServerError)
		return
	}
	if chunks == nil {
		chunks = []*pipeline_type.Chunk{}
	}
	writeJSON(w, http.StatusOK, chunks)
}

func (h *DocumentHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	tasks, err := h.store.GetTasks(r.Context(), doc.ID)
	if err != nil {
		h.logger.Error("Failed to load tasks",
			slog.Int64("doc_id", doc.ID),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to load tasks", http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []*pipeline_type.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *DocumentHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}
	summary, err := h.store.GetDocumentSummary(r.Context(), doc.ID)
	if err != nil {
		if errors.Is(err, document_store.ErrNotFound) {
			writeJSONError(w, "Summary not available yet", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to load summary",
			slog.Int64("doc_id", doc.ID),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to load summary", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Reprocess enqueues a fresh run. The dispatcher clears the derived rows at
// the start of the run, so reprocessing never duplicates chunks or tasks.
func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	active, err := h.store.HasActiveJob(r.Context(), doc.ID)
	if err != nil {
		h.logger.Error("Failed to check job state",
			slog.Int64("doc_id", doc.ID),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to check job state", http.StatusInternalServerError)
		return
	}
	if active {
		writeJSONError(w, "Document already has a queued or running job", http.StatusConflict)
		return
	}

	job, err := h.store.EnqueueJob(r.Context(), doc.ID, h.maxAttempts)
	if err != nil {
		h.logger.Error("Failed to enqueue reprocess job",
			slog.Int64("doc_id", doc.ID),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to enqueue job", http.StatusInternalServerError)
		return
	}

	h.logger.Info("Enqueued reprocess",
		slog.Int64("doc_id", doc.ID),
		slog.Int64("job_id", job.ID))

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":     "Reprocessing enqueued",
		"document_id": doc.ID,
		"job_id":      job.ID,
	})
}

// Status reports the document lifecycle state plus the latest in-memory
// execution record when one is still retained.
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	resp := map[string]interface{}{
		"document_id": doc.ID,
		"status":      doc.Status,
	}
	if exec, found := pipeline.LatestExecutionForDocument(doc.ID); found {
		resp["execution"] = exec
	}
	writeJSON(w, http.StatusOK, resp)
}

// lookup resolves {id} as a numeric id first, then as a document uuid. It
// writes the error response itself so callers can just bail out.
func (h *DocumentHandler) lookup(w http.ResponseWriter, r *http.Request) (*pipeline_type.Document, bool) {
	raw := mux.Vars(r)["id"]

	var doc *pipeline_type.Document
	var err error
	if id, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
		doc, err = h.store.GetDocument(r.Context(), id)
	} else {
		doc, err = h.store.GetDocumentByUUID(r.Context(), raw)
	}

	if err != nil {
		if errors.Is(err, document_store.ErrNotFound) {
			writeJSONError(w, "Document not found", http.StatusNotFound)
			return nil, false
		}
		h.logger.Error("Failed to load document",
			slog.String("id", raw),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to load document", http.StatusInternalServerError)
		return nil, false
	}
	return doc, true
}

func preview(text string) string {
	return textutil.Truncate(text, 250)
}
