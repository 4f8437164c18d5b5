package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/inkaso/callqa/pkg/validator"

	"github.com/inkaso/callqa/internal/adapter/handler"
	"github.com/inkaso/callqa/internal/adapter/repository"
	"github.com/inkaso/callqa/internal/infrastructure/cache"
	"github.com/inkaso/callqa/internal/infrastructure/database"
	"github.com/inkaso/callqa/internal/infrastructure/external/stt"
	httpmw "github.com/inkaso/callqa/internal/infrastructure/http/middleware"
	"github.com/inkaso/callqa/internal/infrastructure/storage"
	"github.com/inkaso/callqa/internal/usecase/calls"
	"github.com/inkaso/callqa/internal/usecase/pipeline"
	"github.com/inkaso/callqa/internal/usecase/qa"
	"github.com/inkaso/callqa/internal/usecase/stats"
	syncsvc "github.com/inkaso/callqa/internal/usecase/sync"
	"github.com/inkaso/callqa/internal/usecase/transcription"
	pkgai "github.com/inkaso/callqa/pkg/ai"
	"github.com/inkaso/callqa/pkg/config"
	"github.com/inkaso/callqa/pkg/daktela"
	"github.com/inkaso/callqa/pkg/jwt"
	"github.com/inkaso/callqa/pkg/workpool"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Echo instance
	e := echo.New()
	e.Validator = pkgvalidator.New()
	e.HideBanner = true
	e.HidePort = false

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	log.Println("🔧 Initializing dependencies...")

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	if cfg.Database.AutoMigrate {
		log.Println("🔄 Running schema migrations...")
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		log.Println("🔄 Skipping migrations; run sql-migrate in CI/CD for schema changes")
	}

	// Initialize Redis (optional, used for the scheduler tick lock)
	var locker cache.Locker = cache.NoopLocker{}
	if cfg.Redis.Enabled {
		log.Println("📦 Connecting to Redis...")
		redisClient, err := cache.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		locker = cache.NewRedisLocker(redisClient)
	}

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	callRepo := repository.NewCallRepository(db)
	transcriptRepo := repository.NewTranscriptRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	statusRepo := repository.NewStatusMappingRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	statsReadRepo := repository.NewStatsReadRepository(db)
	transactor := repository.NewGormTransactor(db)

	// Initialize call platform client
	log.Println("📞 Initializing call platform client...")
	tokens := daktela.NewLoginTokenProvider(
		cfg.Daktela.BaseURL,
		cfg.Daktela.Login,
		cfg.Daktela.Password,
		cfg.Daktela.TokenTTL,
		nil,
	)
	daktelaClient := daktela.NewClient(cfg.Daktela.BaseURL, tokens, nil, logger)

	// Initialize recording archive (optional)
	var archive transcription.RecordingArchive
	if cfg.Storage.Enabled {
		log.Println("🗄️  Initializing recording archive...")
		recordingArchive, err := storage.NewRecordingArchive(&cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to initialize recording archive: %v", err)
		}
		archive = recordingArchive
	}

	// Initialize AI components
	log.Println("🤖 Initializing AI components...")
	transcriber := stt.NewAssemblyAITranscriber(&cfg.Assembly, logger)
	geminiClient := pkgai.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model)

	// Initialize services
	log.Println("⚙️  Initializing services...")
	maintainer := stats.NewMaintainer(logger)
	transcriptionService := transcription.NewService(
		transcriptRepo, agentRepo, daktelaClient, archive, transcriber, logger)
	qaService := qa.NewService(
		questionRepo, agentRepo, transcriptRepo, transactor, maintainer, geminiClient,
		qa.Options{
			MaxAttempts:   cfg.Pipeline.AnalysisMaxAttempts,
			BaseDelay:     cfg.Pipeline.AnalysisRetryBaseDelay,
			MaxConcurrent: cfg.Pipeline.AnalysisParallelism,
		},
		logger)
	callService := calls.NewService(callRepo, transcriptRepo, transactor, maintainer, logger)
	reportService := stats.NewReportService(statsReadRepo, agentRepo, questionRepo)
	syncService := syncsvc.NewService(callRepo, agentRepo, statusRepo, daktelaClient, cfg.Sync, logger)

	// Initialize worker pools and scheduler
	log.Println("👷 Initializing worker pools...")
	transcriptionPool := workpool.New(workpool.Options{
		Name:           "transcription",
		Parallelism:    cfg.Pipeline.TranscriptionParallelism,
		MaxAttempts:    cfg.Pipeline.RetryMaxAttempts,
		InitialBackoff: cfg.Pipeline.RetryInitialBackoff,
	}, logger)
	analysisPool := workpool.New(workpool.Options{
		Name:           "analysis",
		Parallelism:    cfg.Pipeline.AnalysisParallelism,
		MaxAttempts:    cfg.Pipeline.RetryMaxAttempts,
		InitialBackoff: cfg.Pipeline.RetryInitialBackoff,
	}, logger)
	scheduler := pipeline.NewScheduler(
		callRepo, transcriptionService, qaService,
		transcriptionPool, analysisPool, locker, cfg.Pipeline, logger)

	if cfg.Pipeline.Enabled {
		scheduler.Start()
	} else {
		log.Println("⏭️  Pipeline scheduler disabled")
	}
	if cfg.Sync.Enabled {
		syncService.Start()
	} else {
		log.Println("⏭️  Call sync disabled")
	}

	// Initialize JWT manager and handlers
	log.Println("🔑 Initializing JWT manager...")
	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Expiry)
	authMW := httpmw.NewAuthMiddleware(jwtManager)

	log.Println("🛣️  Setting up routes...")
	authHandler := handler.NewAuth(cfg.JWT, jwtManager, logger)
	callsHandler := handler.NewCalls(callService, daktelaClient, logger)
	statsHandler := handler.NewStats(reportService, agentRepo, logger)
	adminHandler := handler.NewAdmin(syncService, scheduler, logger)

	router := handler.NewRouter(cfg, authHandler, callsHandler, statsHandler, adminHandler, authMW)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	scheduler.Stop()
	syncService.Stop()
	transcriptionPool.Shutdown()
	analysisPool.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}
