package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/arkival/arkive-api/internal/handler"
	"github.com/arkival/arkive-api/internal/middleware"
	"github.com/arkival/arkive-api/internal/repository"
	"github.com/arkival/arkive-api/internal/service"
	"github.com/arkival/arkive-api/pkg/cache"
	"github.com/arkival/arkive-api/pkg/config"
	"github.com/arkival/arkive-api/pkg/database"
	"github.com/arkival/arkive-api/pkg/logger"
	corsmiddleware "github.com/arkival/arkive-api/pkg/middleware/cors"
	reqidmiddleware "github.com/arkival/arkive-api/pkg/middleware/requestid"
	"github.com/arkival/arkive-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	objects, err := storage.NewObjectStore(cfg.Objects.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init object store", "error", err)
	}
	if err := os.MkdirAll(cfg.Objects.UploadDir, 0o755); err != nil {
		logr.Sugar().Fatalw("failed to create upload dir", "error", err)
	}

	archivistRepo := repository.NewArchivistRepository(db)
	archiveRepo := repository.NewArchiveRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	recordRepo := repository.NewRecordRepository(db)

	metrics := service.NewMetricsService()
	archivists := service.NewArchivistService(archivistRepo, logr)
	archives := service.NewArchiveService(archiveRepo, archivistRepo, logr)
	documents := service.NewDocumentService(documentRepo, archiveRepo, archivistRepo, objects, metrics, logr)

	queries := service.NewQueryService(recordRepo, archiveRepo, nil, metrics, cfg.Query.CacheTTL, logr)
	if cfg.Query.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, query cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			queries = service.NewQueryService(recordRepo, archiveRepo, cacheRepo, metrics, cfg.Query.CacheTTL, logr)
		}
	}

	records := service.NewRecordService(recordRepo, archiveRepo, archivistRepo, documentRepo, queries, logr)
	reconcile := service.NewReconcileService(documentRepo, recordRepo, archiveRepo, objects, logr)

	validate := validator.New()
	archivistHandler := handler.NewArchivistHandler(archivists, validate)
	archiveHandler := handler.NewArchiveHandler(archives, validate)
	documentHandler := handler.NewDocumentHandler(documents, validate, cfg.Objects.UploadDir, cfg.Objects.MaxFileSizeBytes)
	recordHandler := handler.NewRecordHandler(records, queries, validate)
	reconcileHandler := handler.NewReconcileHandler(reconcile)
	metricsHandler := handler.NewMetricsHandler(metrics)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.MaxMultipartMemory = cfg.Objects.MaxFileSizeBytes

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	r.GET("/archives", archiveHandler.List)
	r.POST("/archive", archiveHandler.Create)
	r.GET("/archive/:archive", archiveHandler.Get)
	r.POST("/archive/:archive/rename", archiveHandler.Rename)
	r.POST("/archive/:archive/description", archiveHandler.ChangeDescription)
	r.DELETE("/archive/:archive", archiveHandler.Delete)

	r.POST("/archivist", archivistHandler.Create)
	r.GET("/archivist/:username", archivistHandler.Get)
	r.POST("/archivist/:username/rename", archivistHandler.Rename)
	r.PUT("/archivist/:username/bio", archivistHandler.UpdateBio)
	r.DELETE("/archivist/:username", archivistHandler.Delete)

	r.POST("/document", documentHandler.Create)
	r.GET("/document/:archive/:hash/meta", documentHandler.GetMeta)
	r.GET("/document/:archive/:hash/object", documentHandler.GetObject)
	r.POST("/document/:archive/:hash/rename", documentHandler.Rename)
	r.DELETE("/document/:archive/:hash", documentHandler.Delete)
	r.GET("/unsorted/:archive", documentHandler.GetUnsorted)

	r.POST("/record/:archive", recordHandler.Create)
	r.GET("/record/:archive/:id", recordHandler.Get)
	r.DELETE("/record/:archive/:id", recordHandler.Delete)
	r.POST("/record/:archive/:id/document", recordHandler.AddDocument)
	r.DELETE("/record/:archive/:id/document/:index", recordHandler.RemoveDocument)
	r.POST("/record/:archive/:id/reorder", recordHandler.Reorder)
	r.POST("/record/:archive/:id/tag", recordHandler.AddTag)
	r.DELETE("/record/:archive/:id/tag/:tag", recordHandler.RemoveTag)
	r.GET("/records/:archive", recordHandler.Find)

	r.POST("/admin/reconcile/:archive", reconcileHandler.Reconcile)
	r.GET("/admin/stats", metricsHandler.Stats)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
