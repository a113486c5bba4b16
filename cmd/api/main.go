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

	"github.com/Auremas/voxanalyze-mvp/internal/adapter/handler"
	"github.com/Auremas/voxanalyze-mvp/internal/adapter/repository"
	"github.com/Auremas/voxanalyze-mvp/internal/infrastructure/cache"
	"github.com/Auremas/voxanalyze-mvp/internal/infrastructure/database"
	httpmw "github.com/Auremas/voxanalyze-mvp/internal/infrastructure/http/middleware"
	"github.com/Auremas/voxanalyze-mvp/internal/infrastructure/storage"
	"github.com/Auremas/voxanalyze-mvp/internal/usecase/pii"
	"github.com/Auremas/voxanalyze-mvp/internal/usecase/record"
	pkgai "github.com/Auremas/voxanalyze-mvp/pkg/ai"
	"github.com/Auremas/voxanalyze-mvp/pkg/config"
	"github.com/Auremas/voxanalyze-mvp/pkg/crypto"
	"github.com/Auremas/voxanalyze-mvp/pkg/jwt"
	"github.com/Auremas/voxanalyze-mvp/pkg/transcribe"
	pkgvalidator "github.com/Auremas/voxanalyze-mvp/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	e.HideBanner = true
	e.HidePort = false

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	log.Println("🔧 Initializing dependencies...")

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Run migrations only when explicitly enabled in config.
	// Production deployments should manage schema via sql-migrate.
	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE or manage schema with sql-migrate.")
		}
		log.Println("🔄 Running migrations (development only) ...")
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		log.Println("🔄 Skipping migrations; use sql-migrate for schema migrations in CI/CD/production")
	}

	// Initialize upload dedup store. REDIS_HOST=memory selects the
	// in-process store for single-node development runs.
	var dedup record.Deduper
	if cfg.Redis.Host == "memory" {
		log.Println("📦 Using in-memory upload dedup store")
		memStore := cache.NewMemoryStore(cfg.Redis.DedupWindow)
		defer memStore.Close()
		dedup = memStore
	} else {
		log.Println("📦 Connecting to Redis...")
		redisClient, err := cache.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		dedup = redisClient
	}

	// Initialize object storage
	log.Println("🪣 Connecting to object storage...")
	minioClient, err := storage.NewMinIOClient(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to connect to object storage: %v", err)
	}

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	callRepo := repository.NewCallRepository(db)

	// Initialize encryption
	encryptor, err := crypto.New(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("Failed to initialize encryption: %v", err)
	}
	if encryptor.Enabled() {
		log.Println("🔐 At-rest encryption enabled")
	} else {
		log.Println("⚠️  No encryption key configured; payloads stored in plaintext shape")
	}

	// Initialize AI components
	log.Println("🤖 Initializing AI components...")
	transcribeClient := transcribe.NewClient(&cfg.Transcribe, logger)
	llmClient := pkgai.NewClient(&cfg.AI)

	tokens := pii.TokensForLocale(cfg.PII.Locale)
	masker := pii.NewMasker(llmClient, cfg.AI.Models, cfg.AI.Timeout, tokens, logger)
	redactor := pii.NewRedactor(tokens)
	analyzer := record.NewAnalyzer(llmClient, cfg.AI.Models, cfg.AI.Timeout, logger)

	// Initialize record service
	log.Println("📞 Initializing call record service...")
	recordService := record.NewService(
		callRepo,
		minioClient,
		dedup,
		transcribeClient,
		masker,
		analyzer,
		encryptor,
		redactor,
		cfg.Pipeline.Timeout,
		logger,
	)

	// Start stuck-call worker
	worker := record.NewWorker(recordService, time.Minute, 20*time.Minute, logger)
	worker.Start()
	defer worker.Stop()

	// Initialize JWT manager
	log.Println("🔑 Initializing JWT manager...")
	jwtManager := jwt.NewManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authMW := httpmw.NewAuthMiddleware(jwtManager)

	// Setup router with handlers
	log.Println("🛣️  Setting up routes...")
	callHandler := handler.NewCallHandler(recordService, logger)
	router := handler.NewRouter(cfg, authMW, callHandler)
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}
