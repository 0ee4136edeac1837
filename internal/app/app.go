package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/common"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/handlers"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/interfaces"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/queue"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/queue/workers"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/asr"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/chat"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/embeddings"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/events"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/export"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/library"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/llm"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/media"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/scheduler"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/services/search"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/storage/sqlite"
	"github.com/Caria-Tarnished/Edge-AI-Video-Summarizer-sub000/internal/storage/vector"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB          *sqlite.DB
	VectorDB    *vector.BadgerDB
	JobStorage  interfaces.JobStorage
	VideoStore  interfaces.VideoStorage
	Transcripts interfaces.TranscriptStorage
	Summaries   interfaces.SummaryStorage
	Keyframes   interfaces.KeyframeStorage
	IndexStates interfaces.IndexStateStorage
	VectorStore interfaces.VectorStore

	// Services
	EventService     interfaces.EventService
	LLMService       interfaces.LLMService
	EmbeddingService interfaces.EmbeddingService
	ASRService       interfaces.ASRService
	MediaTool        interfaces.MediaTool
	LibraryService   *library.Service
	SearchService    *search.Service
	ChatService      *chat.Service
	ExportService    *export.Service
	Scheduler        *scheduler.Scheduler

	// Job engine
	Registry   *queue.CancelRegistry
	JobManager *queue.Manager
	Hub        *queue.Hub
	WorkerPool *queue.WorkerPool

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	VideoHandler    *handlers.VideoHandler
	JobHandler      *handlers.JobHandler
	SearchHandler   *handlers.SearchHandler
	ChatHandler     *handlers.ChatHandler
	SummaryHandler  *handlers.SummaryHandler
	KeyframeHandler *handlers.KeyframeHandler
	ExportHandler   *handlers.ExportHandler
	WSHandler       *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Event service and WebSocket handler come up early so every later
	// component can publish into a live bus.
	app.EventService = events.NewService(app.Logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, &app.Config.WebSocket, app.Logger)

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initQueue(); err != nil {
		return nil, fmt.Errorf("failed to initialize job engine: %w", err)
	}

	app.initHandlers()

	// Recover orphaned jobs before any worker starts polling: a running row
	// at this point can only be from a previous process.
	recovered, err := app.JobStorage.ResetRunningJobs(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to recover orphaned jobs: %w", err)
	}
	if recovered > 0 {
		app.Logger.Info().Int("count", recovered).Msg("Recovered orphaned jobs from previous run")
	}

	app.WorkerPool.Start()

	app.Scheduler = scheduler.New(&cfg.Scheduler, app.JobStorage, app.VectorDB, app.Logger)
	if err := app.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info().
		Str("llm_provider", app.LLMService.Provider()).
		Str("embedding_model", app.EmbeddingService.ModelName()).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the SQLite metadata store and the Badger vector store
func (a *App) initStorage() error {
	db, err := sqlite.NewDB(a.Logger, &a.Config.Storage.SQLite)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	a.DB = db

	a.JobStorage = sqlite.NewJobStorage(db, a.Logger)
	a.VideoStore = sqlite.NewVideoStorage(db, a.Logger)
	a.Transcripts = sqlite.NewTranscriptStorage(db, a.Logger)
	a.Summaries = sqlite.NewSummaryStorage(db, a.Logger)
	a.Keyframes = sqlite.NewKeyframeStorage(db, a.Logger)
	a.IndexStates = sqlite.NewIndexStateStorage(db, a.Logger)

	vectorDB, err := vector.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to open vector database: %w", err)
	}
	a.VectorDB = vectorDB
	a.VectorStore = vector.NewStore(vectorDB, a.Logger)

	a.Logger.Debug().
		Str("sqlite", a.Config.Storage.SQLite.Path).
		Str("badger", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes the AI collaborators and domain services
func (a *App) initServices() error {
	var err error

	a.LLMService, err = llm.NewLLMService(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}

	a.EmbeddingService, err = embeddings.NewService(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding service: %w", err)
	}

	a.ASRService = asr.NewService(&a.Config.Whisper, a.Logger)
	a.MediaTool = media.NewTool(&a.Config.FFmpeg, a.Logger)

	a.LibraryService = library.NewService(
		a.VideoStore,
		a.JobStorage,
		a.Transcripts,
		a.Summaries,
		a.Keyframes,
		a.IndexStates,
		a.VectorStore,
		a.MediaTool,
		a.EventService,
		a.Config.Storage.Workspace,
		a.Logger,
	)

	a.SearchService = search.NewService(
		a.Transcripts,
		a.IndexStates,
		a.JobStorage,
		a.EmbeddingService,
		a.VectorStore,
		a.Logger,
	)

	a.ChatService = chat.NewService(a.SearchService, a.LLMService, a.Logger)
	a.ExportService = export.NewService(a.VideoStore, a.Transcripts, a.Summaries, a.Logger)

	return nil
}

// initQueue wires the job manager, progress hub and worker pool with its
// four stage handlers
func (a *App) initQueue() error {
	a.Registry = queue.NewCancelRegistry()
	a.JobManager = queue.NewManager(a.JobStorage, a.VideoStore, a.EventService, a.Registry, a.Logger)
	a.Hub = queue.NewHub(a.JobStorage, &a.Config.Workers, a.Logger)

	a.WorkerPool = queue.NewWorkerPool(
		a.JobStorage,
		a.VideoStore,
		a.EventService,
		a.Registry,
		&a.Config.Workers,
		a.Logger,
	)

	llmConcurrency := a.Config.LLM.Concurrency
	if llmConcurrency <= 0 {
		llmConcurrency = 1
	}
	llmSem := make(chan struct{}, llmConcurrency)

	a.WorkerPool.RegisterHandler(workers.NewTranscribeWorker(
		a.VideoStore, a.Transcripts, a.MediaTool, a.ASRService,
		a.Config.Storage.Workspace, a.Logger,
	))
	a.WorkerPool.RegisterHandler(workers.NewIndexWorker(
		a.Transcripts, a.IndexStates, a.EmbeddingService, a.VectorStore, a.Logger,
	))
	a.WorkerPool.RegisterHandler(workers.NewSummarizeWorker(
		a.Transcripts, a.Summaries, a.LLMService, llmSem, a.Logger,
	))
	a.WorkerPool.RegisterHandler(workers.NewKeyframesWorker(
		a.VideoStore, a.Keyframes, a.Summaries, a.MediaTool,
		a.Config.Storage.Workspace, a.Logger,
	))

	return nil
}

// initHandlers initializes the HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.VideoHandler = handlers.NewVideoHandler(a.LibraryService, a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.JobManager, a.Hub, a.Logger)
	a.SearchHandler = handlers.NewSearchHandler(a.SearchService, a.Logger)
	a.ChatHandler = handlers.NewChatHandler(a.ChatService, a.Logger)
	a.SummaryHandler = handlers.NewSummaryHandler(a.Transcripts, a.Summaries, a.Logger)
	a.KeyframeHandler = handlers.NewKeyframeHandler(a.Keyframes, a.Logger)
	a.ExportHandler = handlers.NewExportHandler(a.ExportService, a.Logger)
}

// Close shuts down all components in reverse dependency order
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	if a.WorkerPool != nil {
		a.WorkerPool.Stop()
		a.Logger.Info().Msg("Worker pool stopped")
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.VectorDB != nil {
		if err := a.VectorDB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close vector database")
		} else {
			a.Logger.Info().Msg("Vector database closed")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close sqlite database")
		} else {
			a.Logger.Info().Msg("Database closed")
		}
	}

	return nil
}
