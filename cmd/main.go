package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nestform/nestform-backend/internal/clients/redis"
	"github.com/nestform/nestform-backend/internal/config"
	"github.com/nestform/nestform-backend/internal/db"
	"github.com/nestform/nestform-backend/internal/handlers"
	"github.com/nestform/nestform-backend/internal/logger"
	"github.com/nestform/nestform-backend/internal/middleware"
	"github.com/nestform/nestform-backend/internal/observability"
	"github.com/nestform/nestform-backend/internal/repos"
	"github.com/nestform/nestform-backend/internal/server"
	"github.com/nestform/nestform-backend/internal/services"
	"github.com/nestform/nestform-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	cfg := config.Load(log)

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "nestform-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if shutdownOTel != nil {
		defer shutdownOTel(context.Background())
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(cfg); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	moduleRepo := repos.NewModuleRepo(thePG, log)
	formRepo := repos.NewFormRepo(thePG, log)
	sectionRepo := repos.NewSectionRepo(thePG, log)
	fieldRepo := repos.NewFieldRepo(thePG, log)
	subformRepo := repos.NewSubformRepo(thePG, log)
	mappingRepo := repos.NewPartitionMappingRepo(thePG, log)
	recordRepo := repos.NewRecordRepo(thePG, log)
	lookupRepo := repos.NewLookupRepo(thePG, log)

	// Access
	var access services.AccessProvider = services.UnrestrictedAccess{}
	if os.Getenv("REDIS_ADDR") != "" {
		accessCache, err := redis.NewAccessCache(log, access)
		if err != nil {
			log.Warn("Could not init access cache, serving uncached", "error", err)
		} else {
			access = accessCache
			defer accessCache.Close()
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	partitionService := services.NewPartitionService(thePG, log, cfg, formRepo, mappingRepo)
	lookupService := services.NewLookupService(thePG, log, cfg, moduleRepo, formRepo, sectionRepo, fieldRepo, subformRepo, mappingRepo, recordRepo, lookupRepo)
	schemaService := services.NewSchemaService(thePG, log, cfg, moduleRepo, formRepo, sectionRepo, fieldRepo, subformRepo, partitionService, lookupService, access)
	recordService := services.NewRecordService(thePG, log, cfg, recordRepo, partitionService, schemaService)
	cleanupService := services.NewCleanupService(thePG, log, cfg, moduleRepo, formRepo, sectionRepo, fieldRepo, subformRepo, mappingRepo, recordRepo, lookupRepo)

	// Relation rows are cheap to rebuild and deterministic, so heal any
	// drift left by best-effort indexing.
	if err := lookupService.ReindexAll(context.Background(), nil); err != nil {
		log.Warn("Lookup relation reindex failed", "error", err)
	}

	// Handlers
	log.Info("Setting up handlers from main...")
	moduleHandler := handlers.NewModuleHandler(schemaService, cleanupService)
	formHandler := handlers.NewFormHandler(schemaService, cleanupService)
	sectionHandler := handlers.NewSectionHandler(schemaService, cleanupService)
	fieldHandler := handlers.NewFieldHandler(schemaService, cleanupService)
	subformHandler := handlers.NewSubformHandler(schemaService, cleanupService)
	recordHandler := handlers.NewRecordHandler(recordService)
	lookupHandler := handlers.NewLookupHandler(lookupService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, cfg.JWTSecretKey)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware: authMiddleware,
		ModuleHandler:  moduleHandler,
		FormHandler:    formHandler,
		SectionHandler: sectionHandler,
		FieldHandler:   fieldHandler,
		SubformHandler: subformHandler,
		RecordHandler:  recordHandler,
		LookupHandler:  lookupHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
