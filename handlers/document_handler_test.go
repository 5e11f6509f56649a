package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/chunker"
	"github.com/serisow/metrodoc/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDocumentHandler(store *document_store.MockStore, objects *storage.MockObjectStore) *DocumentHandler {
	return NewDocumentHandler(store, objects, chunker.NewChunker(500, 50, testLogger()), 3, testLogger())
}

// routeRequest runs the request through a router so mux.Vars is populated.
func routeRequest(h http.HandlerFunc, pattern string, r *http.Request) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	router.HandleFunc(pattern, h)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestUploadInlineDocument(t *testing.T) {
	store := document_store.NewMockStore()
	objects := storage.NewMockObjectStore()
	h := newDocumentHandler(store, objects)

	body := `{"title": "Station safety circular", "content": "All staff must attend the drill on Monday."}`
	r := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Upload(w, r)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp pipeline_type.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotZero(t, resp.DocumentID)
	assert.NotZero(t, resp.JobID)
	assert.Equal(t, string(pipeline_type.DocumentUploaded), resp.Status)
	assert.NotZero(t, resp.Metadata.WordCount)
	assert.NotEmpty(t, resp.Metadata.ContentPreview)

	doc := store.Documents[resp.DocumentID]
	require.NotNil(t, doc)
	assert.Equal(t, "Station safety circular", doc.Title)
	assert.NotEmpty(t, doc.Content)
	assert.Empty(t, objects.Objects)

	active, err := store.HasActiveJob(context.Background(), resp.DocumentID)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestUploadInlineRequiresContent(t *testing.T) {
	h := newDocumentHandler(document_store.NewMockStore(), storage.NewMockObjectStore())

	r := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(`{"title": "empty"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Upload(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("title", "Maintenance schedule"))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadFileStoresObjectAndEnqueues(t *testing.T) {
	store := document_store.NewMockStore()
	objects := storage.NewMockObjectStore()
	h := newDocumentHandler(store, objects)

	buf, contentType := multipartBody(t, "schedule.txt", "Track inspection every Tuesday night.")
	r := httptest.NewRequest(http.MethodPost, "/documents", buf)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.Upload(w, r)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp pipeline_type.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	doc := store.Documents[resp.DocumentID]
	require.NotNil(t, doc)
	assert.Equal(t, "Maintenance schedule", doc.Title)
	assert.Equal(t, "schedule.txt", doc.FileName)
	require.NotEmpty(t, doc.FilePath)

	stored, err := objects.Download(context.Background(), doc.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "Track inspection every Tuesday night.", string(stored))
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	h := newDocumentHandler(document_store.NewMockStore(), storage.NewMockObjectStore())

	buf, contentType := multipartBody(t, "payload.exe", "binary junk")
	r := httptest.NewRequest(http.MethodPost, "/documents", buf)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.Upload(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDocumentByIDAndUUID(t *testing.T) {
	store := document_store.NewMockStore()
	h := newDocumentHandler(store, storage.NewMockObjectStore())

	doc := &pipeline_type.Document{UUID: "doc-uuid-1", Title: "Signalling upgrade"}
	require.NoError(t, store.CreateDocument(context.Background(), doc))

	r := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/documents/%d", doc.ID), nil)
	w := routeRequest(h.Get, "/documents/{id}", r)
	assert.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/documents/doc-uuid-1", nil)
	w = routeRequest(h.Get, "/documents/{id}", r)
	assert.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/documents/999", nil)
	w = routeRequest(h.Get, "/documents/{id}", r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSummaryNotReady(t *testing.T) {
	store := document_store.NewMockStore()
	h := newDocumentHandler(store, storage.NewMockObjectStore())

	doc := &pipeline_type.Document{Title: "Fresh upload"}
	require.NoError(t, store.CreateDocument(context.Background(), doc))

	r := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/documents/%d/summary", doc.ID), nil)
	w := routeRequest(h.GetSummary, "/documents/{id}/summary", r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReprocessConflictsWithActiveJob(t *testing.T) {
	store := document_store.NewMockStore()
	h := newDocumentHandler(store, storage.NewMockObjectStore())

	doc := &pipeline_type.Document{Title: "Already queued"}
	require.NoError(t, store.CreateDocument(context.Background(), doc))
	_, err := store.EnqueueJob(context.Background(), doc.ID, 3)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/documents/%d/reprocess", doc.ID), nil)
	w := routeRequest(h.Reprocess, "/documents/{id}/reprocess", r)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReprocessEnqueuesJob(t *testing.T) {
	store := document_store.NewMockStore()
	h := newDocumentHandler(store, storage.NewMockObjectStore())

	doc := &pipeline_type.Document{Title: "Done document"}
	require.NoError(t, store.CreateDocument(context.Background(), doc))

	r := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/documents/%d/reprocess", doc.ID), nil)
	w := routeRequest(h.Reprocess, "/documents/{id}/reprocess", r)
	require.Equal(t, http.StatusAccepted, w.Code)

	active, err := store.HasActiveJob(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestUploadInlinePreviewKeepsMultibyteRunes(t *testing.T) {
	store := document_store.NewMockStore()
	h := newDocumentHandler(store, storage.NewMockObjectStore())

	content := strings.Repeat("é", 300)
	body, err := json.Marshal(map[string]string{"title": "Accented notice", "content": content})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/documents", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Upload(w, r)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp pipeline_type.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, utf8.ValidString(resp.Metadata.ContentPreview))
	assert.Equal(t, strings.Repeat("é", 250)+"...", resp.Metadata.ContentPreview)
}

func TestListDocumentsEmpty(t *testing.T) {
	h := newDocumentHandler(document_store.NewMockStore(), storage.NewMockObjectStore())

	r := httptest.NewRequest(http.MethodGet, "/documents", nil)
	w := httptest.NewRecorder()
	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestListDocumentsNegativePagination(t *testing.T) {
	h := newDocumentHandler(document_store.NewMockStore(), storage.NewMockObjectStore())

	r := httptest.NewRequest(http.MethodGet, "/documents?limit=-1&offset=-5", nil)
	w := httptest.NewRecorder()
	h.List(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
