package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/serisow/metrodoc/pipeline_type"
	"github.com/serisow/metrodoc/services/embedding_service"
	"github.com/serisow/metrodoc/vector_store"
)

const defaultSearchLimit = 10

// SearchHandler embeds the query and runs a cosine similarity search over
// the chunk vectors, optionally scoped to one document.
type SearchHandler struct {
	embedder embedding_service.EmbeddingService
	vectors  vector_store.VectorStore
	logger   *slog.Logger
}

func NewSearchHandler(embedder embedding_service.EmbeddingService, vectors vector_store.VectorStore, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		embedder: embedder,
		vectors:  vectors,
		logger:   logger,
	}
}

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req pipeline_type.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, "query is required", http.StatusBadRequest)
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}

	queryVector, err := h.embedder.Embed(r.Context(), req.Query)
	if err != nil {
		h.logger.Error("Failed to embed search query",
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to process search query", http.StatusInternalServerError)
		return
	}

	var results []pipeline_type.SearchResult
	if req.DocID > 0 {
		results, err = h.vectors.SearchInDocument(r.Context(), req.DocID, queryVector, req.Limit)
	} else {
		results, err = h.vectors.Search(r.Context(), queryVector, req.Limit)
	}
	if err != nil {
		h.logger.Error("Search query failed",
			slog.String("error", err.Error()))
		writeJSONError(w, "Search failed", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []pipeline_type.SearchResult{}
	}

	writeJSON(w, http.StatusOK, pipeline_type.SearchResponse{
		Results: results,
		Count:   len(results),
	})
}
