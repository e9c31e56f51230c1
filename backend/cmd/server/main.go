package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kgchat/backend/internal/adapter"
	"kgchat/backend/internal/agent"
	"kgchat/backend/internal/api"
	"kgchat/backend/internal/conversation"
	"kgchat/backend/internal/corpus"
	"kgchat/backend/internal/graph"
	"kgchat/backend/internal/metrics"
	"kgchat/backend/pkg/config"
	"kgchat/backend/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal("Failed to load configuration", zap.Error(err))
	}

	if err := logger.InitWithFile(cfg.Env, logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	}); err != nil {
		logger.Get().Fatal("Failed to initialize file logger", zap.Error(err))
	}
	log := logger.Get()
	log.Info("Starting HTTP API server...")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a := newApp(cfg, log)
	defer a.close()

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: a.router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// app holds the long lived components behind the router
type app struct {
	router   *gin.Engine
	store    *graph.Store
	watcher  *graph.Watcher
	ingestor *corpus.Ingestor
}

func newApp(cfg *config.Config, log *zap.Logger) *app {
	settings := cfg.GraphSettings()

	store := graph.NewStore(cfg.GraphPath, graph.StoreOptions{
		Sources: graph.SourceOptions{
			Neo4jUser:     cfg.Neo4jUser,
			Neo4jPassword: cfg.Neo4jPassword,
			Neo4jDatabase: cfg.Neo4jDatabase,
		},
		OnReload: func(snap *graph.Snapshot, err error) {
			_, fellBack := snap.CentralityAlgorithm()
			metrics.ObserveReload(snap.NodeCount(), snap.EdgeCount(), fellBack, err)
		},
		Logger: log,
	})
	store.Reload(context.Background())

	a := &app{store: store}

	if cfg.GraphWatch && !graph.IsDatabaseLocation(cfg.GraphPath) {
		w, err := graph.NewWatcher(cfg.GraphPath, store, graph.DefaultDebounce, log)
		if err != nil {
			// The graph still loads on ingestion and on /api/graph/reload
			log.Warn("Graph file watcher disabled", zap.Error(err))
		} else {
			w.Start()
			a.watcher = w
		}
	}

	index := corpus.NewIndex(cfg.ChunkSize, cfg.ChunkOverlap)
	a.ingestor = corpus.NewIngestor(index, corpus.IngestOptions{
		MaxParallel: cfg.MaxParallelInsert,
		OnComplete: func(corpus.Status) {
			store.Reload(context.Background())
		},
		Logger: log,
	})

	generator := adapter.NewLLMAdapter(adapter.LLMOptions{
		BaseURL:      cfg.LLMBaseURL,
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.LLMModel,
		Timeout:      time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
		HistoryTurns: cfg.HistoryTurns,
		TopK:         cfg.RetrievalTopK,
		Graph:        store,
		Retriever:    index,
		Logger:       log,
	})
	if !generator.Ready() {
		log.Warn("Text generator is not configured; queries will be rejected", zap.String("base_url", cfg.LLMBaseURL))
	}

	tracker := conversation.NewTracker(settings.DecayRate, conversation.WithLogger(log))
	orch := agent.NewOrchestrator(store, generator, tracker, settings)
	orch.SetLogger(log)

	a.router = api.NewRouter(api.Dependencies{
		Orchestrator: orch,
		Graph:        store,
		Ingestor:     a.ingestor,
		CorpusDir:    cfg.CorpusDir,
		CORSOrigins:  cfg.CORSOrigins,
		Logger:       log,
	})
	return a
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.ingestor != nil {
		a.ingestor.Close()
	}
}
