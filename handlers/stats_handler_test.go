package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/nlp_service"
)

func TestStatsHandler(t *testing.T) {
	store := document_store.NewMockStore()

	processed := &pipeline_type.Document{Title: "done"}
	require.NoError(t, store.CreateDocument(context.Background(), processed))
	require.NoError(t, store.UpdateDocumentStatus(context.Background(), processed.ID, pipeline_type.DocumentProcessed))

	queued := &pipeline_type.Document{Title: "waiting"}
	require.NoError(t, store.CreateDocument(context.Background(), queued))
	_, err := store.EnqueueJob(context.Background(), queued.ID, 3)
	require.NoError(t, err)

	nlp := &nlp_service.MockNLPService{
		HealthyFunc: func(ctx context.Context) bool { return false },
	}
	h := NewStatsHandler(store, nlp, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Documents          pipeline_type.SystemStats `json:"documents"`
		QueueDepth         int                       `json:"queue_depth"`
		ModelServerHealthy bool                      `json:"model_server_healthy"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Documents.TotalDocuments)
	assert.Equal(t, 1, resp.Documents.Processed)
	assert.Equal(t, 1, resp.QueueDepth)
	assert.False(t, resp.ModelServerHealthy)
}
