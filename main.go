package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/serisow/metrodoc/chunk_step"
	"github.com/serisow/metrodoc/config"
	"github.com/serisow/metrodoc/db"
	"github.com/serisow/metrodoc/dispatcher"
	"github.com/serisow/metrodoc/document_store"
	"github.com/serisow/metrodoc/embed_step"
	"github.com/serisow/metrodoc/extract_step"
	"github.com/serisow/metrodoc/finalize_step"
	"github.com/serisow/metrodoc/handlers"
	"github.com/serisow/metrodoc/logging"
	"github.com/serisow/metrodoc/notifier"
	"github.com/serisow/metrodoc/pipeline"
	"github.com/serisow/metrodoc/plugin_registry"
	"github.com/serisow/metrodoc/server"
	"github.com/serisow/metrodoc/services/chunker"
	"github.com/serisow/metrodoc/services/embedding_service"
	"github.com/serisow/metrodoc/services/extractor"
	"github.com/serisow/metrodoc/services/llm_service"
	"github.com/serisow/metrodoc/services/nlp_service"
	"github.com/serisow/metrodoc/services/summary_service"
	"github.com/serisow/metrodoc/services/task_service"
	"github.com/serisow/metrodoc/storage"
	"github.com/serisow/metrodoc/summarize_step"
	"github.com/serisow/metrodoc/task_step"
	"github.com/serisow/metrodoc/vector_store"
)

func main() {
	cfg := config.Load()

	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	objects, err := storage.NewS3Store(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	store := document_store.NewPgStore(pool)
	vectors := vector_store.NewPgVectorStore(pool, logger)
	indexManager := vector_store.NewIndexManager(pool, logger)

	embedder := embedding_service.NewHTTPEmbeddingService(
		cfg.ModelServerURL, cfg.Tuning.EmbeddingDim, cfg.Tuning.ModelRateLimit, logger)
	nlp := nlp_service.NewHTTPNLPService(cfg.ModelServerURL, logger)

	llm := llm_service.NewOpenAIService(logger)
	llmConfig := map[string]interface{}{
		"api_url":    cfg.LLMAPIURL,
		"api_key":    cfg.LLMAPIKey,
		"model_name": cfg.LLMModelName,
	}

	tasks := task_service.NewTaskService(llm, llmConfig, logger)
	summaries := summary_service.NewSummaryService(nlp, logger)
	textChunker := chunker.NewChunker(cfg.Tuning.ChunkSizeTokens, cfg.Tuning.ChunkOverlapTokens, logger)
	docExtractor := extractor.NewDocumentExtractor(logger)

	registry := plugin_registry.NewPluginRegistry()
	registry.RegisterLLMService("openai", llm)
	registerStepTypes(registry, stepDeps{
		store:        store,
		objects:      objects,
		extractor:    docExtractor,
		chunker:      textChunker,
		embedder:     embedder,
		nlp:          nlp,
		vectors:      vectors,
		tasks:        tasks,
		summaries:    summaries,
		indexManager: indexManager,
		parallelism:  cfg.Tuning.EmbedParallelism,
		logger:       logger,
	})

	var notify notifier.Notifier
	if cfg.TwilioAccountSID != "" && cfg.OpsAlertNumber != "" {
		notify = notifier.NewSMSNotifier(cfg, logger)
	} else {
		notify = &notifier.NoopNotifier{Logger: logger}
	}

	// Keep finished execution results around for a day.
	pipeline.StartExecutionStoreCleanup(24*time.Hour, time.Hour)

	if err := indexManager.CreateOrUpdateIndex(ctx); err != nil {
		logger.Warn("Vector index setup failed", slog.String("error", err.Error()))
	}

	d := dispatcher.New(store, registry, notify, cfg.Tuning, logger)
	go d.Start(ctx)

	documents := handlers.NewDocumentHandler(store, objects, textChunker, cfg.Tuning.MaxJobAttempts, logger)
	search := handlers.NewSearchHandler(embedder, vectors, logger)
	stats := handlers.NewStatsHandler(store, nlp, logger)

	r := server.SetupRoutes(documents, search, stats)
	n := setupNegroni(r)

	if cfg.Environment == "production" {
		server.ServeProduction(n, cfg)
	} else {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      n,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		}
		server.ServeDevelopment(srv)
	}
}

func setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.UseHandler(r)
	return n
}

type stepDeps struct {
	store        document_store.Store
	objects      storage.ObjectStore
	extractor    *extractor.DocumentExtractor
	chunker      *chunker.Chunker
	embedder     embedding_service.EmbeddingService
	nlp          nlp_service.NLPService
	vectors      vector_store.VectorStore
	tasks        *task_service.TaskService
	summaries    *summary_service.SummaryService
	indexManager *vector_store.IndexManager
	parallelism  int
	logger       *slog.Logger
}

func registerStepTypes(registry *plugin_registry.PluginRegistry, deps stepDeps) {
	registry.RegisterStepType(extract_step.StepType, func() pipeline.Step {
		return &extract_step.ExtractStepImpl{
			ObjectStore: deps.objects,
			Extractor:   deps.extractor,
			Store:       deps.store,
			Logger:      deps.logger,
		}
	})
	registry.RegisterStepType(chunk_step.StepType, func() pipeline.Step {
		return &chunk_step.ChunkStepImpl{
			Chunker: deps.chunker,
			Store:   deps.store,
			Logger:  deps.logger,
		}
	})
	registry.RegisterStepType(embed_step.StepType, func() pipeline.Step {
		return &embed_step.EmbedStepImpl{
			Embedder:    deps.embedder,
			NLP:         deps.nlp,
			Vectors:     deps.vectors,
			Store:       deps.store,
			Parallelism: deps.parallelism,
			Logger:      deps.logger,
		}
	})
	registry.RegisterStepType(task_step.StepType, func() pipeline.Step {
		return &task_step.TaskStepImpl{
			NLP:    deps.nlp,
			Tasks:  deps.tasks,
			Store:  deps.store,
			Logger: deps.logger,
		}
	})
	registry.RegisterStepType(summarize_step.StepType, func() pipeline.Step {
		return &summarize_step.SummarizeStepImpl{
			Summaries: deps.summaries,
			Store:     deps.store,
			Logger:    deps.logger,
		}
	})
	registry.RegisterStepType(finalize_step.StepType, func() pipeline.Step {
		return &finalize_step.FinalizeStepImpl{
			Store:        deps.store,
			IndexManager: deps.indexManager,
			Logger:       deps.logger,
		}
	})
}

func initLogger() (*slog.Logger, error) {
	logDir := filepath.Join("logs", "metrodoc")

	fileHandler, err := logging.NewDailyFileHandler(logDir, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	if err != nil {
		return nil, err
	}

	return slog.New(fileHandler), nil
}
