package handlers

import (
	"log/slog"
	"net/http"

	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/services/nlp_service"
)

// StatsHandler reports aggregate document counts, queue depth and model
// server health.
type StatsHandler struct {
	store  document_store.Store
	nlp    nlp_service.NLPService
	logger *slog.Logger
}

func NewStatsHandler(store document_store.Store, nlp nlp_service.NLPService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		store:  store,
		nlp:    nlp,
		logger: logger,
	}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Error("Failed to load stats", slog.String("error", err.Error()))
		writeJSONError(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}

	depth, err := h.store.QueueDepth(r.Context())
	if err != nil {
		h.logger.Error("Failed to read queue depth", slog.String("error", err.Error()))
		writeJSONError(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents":            stats,
		"queue_depth":          depth,
		"model_server_healthy": h.nlp.Healthy(r.Context()),
	})
}
