package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"LT-FLOW/internal"
	"LT-FLOW/internal/config"
	"LT-FLOW/internal/handlers"
	"LT-FLOW/internal/schema"
	"LT-FLOW/internal/services"
	"LT-FLOW/internal/storage"
	"LT-FLOW/internal/suggest"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Server.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	db, err := internal.OpenDB(cfg)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer internal.CloseDB(db)

	ctx := context.Background()
	gcsClient, err := storage.NewGCSClient(ctx, cfg.GCS.BucketName, cfg.GCS.ProjectID, cfg.GCS.CredentialsPath)
	if err != nil {
		logger.Fatal("failed to create GCS client", zap.Error(err))
	}
	defer gcsClient.Close()

	converter, err := services.NewConvertService(cfg.Gotenberg.URL, cfg.Gotenberg.Timeout, logger)
	if err != nil {
		logger.Fatal("failed to create conversion service", zap.Error(err))
	}

	store := services.NewGormStore(db)
	validator := services.NewCompletionValidator(gcsClient, logger)
	taskService := services.NewTaskService(store, gcsClient, validator, logger)
	templateService := services.NewTemplateService(store, store, gcsClient, logger)
	activityLog := services.NewActivityLogService(db, logger)

	discoverer := schema.NewDiscoverer(schema.DefaultTTL, logger,
		schema.ClientColumnsStrategy(db),
		schema.StaticStrategy(),
	)

	suggester, err := suggest.NewService(suggest.Config{
		BaseURL: cfg.Suggestion.BaseURL,
		Model:   cfg.Suggestion.Model,
		APIKey:  cfg.Suggestion.APIKey,
	}, logger)
	if err != nil {
		if !errors.Is(err, suggest.ErrDisabled) {
			logger.Fatal("failed to create suggestion service", zap.Error(err))
		}
		logger.Info("suggestion service disabled")
		suggester = nil
	}

	taskHandler := handlers.NewTaskHandler(taskService, validator, converter)
	templateHandler := handlers.NewTemplateHandler(templateService, discoverer, suggester)
	clientHandler := handlers.NewClientHandler(store)
	logsHandler := handlers.NewLogsHandler(activityLog)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(activityLog.LoggingMiddleware())

	// Graceful shutdown handling
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("shutting down server")
		internal.CloseDB(db)
		gcsClient.Close()
		os.Exit(0)
	}()

	v1 := r.Group("/api/v1")
	{
		v1.POST("/clients", clientHandler.Create)
		v1.GET("/clients/:clientId", clientHandler.Get)
		v1.PUT("/clients/:clientId", clientHandler.Update)

		v1.POST("/templates", templateHandler.Register)
		v1.GET("/templates/:templateId", templateHandler.Get)
		v1.PUT("/templates/:templateId/content", templateHandler.UpdateContent)
		v1.PUT("/templates/:templateId/fields", templateHandler.SetFieldDefinitions)
		v1.POST("/templates/:templateId/activate", templateHandler.Activate)
		v1.POST("/templates/:templateId/deactivate", templateHandler.Deactivate)
		v1.DELETE("/templates/:templateId", templateHandler.Delete)
		v1.GET("/templates/:templateId/suggestions", templateHandler.SuggestMappings)
		v1.POST("/schema/refresh", templateHandler.RefreshSchema)

		v1.POST("/tasks", taskHandler.Create)
		v1.GET("/tasks/:taskId", taskHandler.Get)
		v1.GET("/tasks/:taskId/fields", taskHandler.AggregateFields)
		v1.PUT("/tasks/:taskId/values", taskHandler.SetFieldValues)
		v1.POST("/tasks/:taskId/finalize", taskHandler.Finalize)
		v1.POST("/tasks/:taskId/retry", taskHandler.Retry)
		v1.POST("/tasks/:taskId/complete", taskHandler.Complete)
		v1.DELETE("/tasks/:taskId", taskHandler.Delete)
		v1.POST("/tasks/:taskId/files", taskHandler.AttachFile)
		v1.GET("/tasks/:taskId/documents/:templateId/download", taskHandler.DownloadBinary)
		v1.POST("/tasks/:taskId/documents/:templateId/signed", taskHandler.UploadSigned)
		v1.GET("/tasks/:taskId/documents/:templateId/signed", taskHandler.ListSigned)
		v1.GET("/tasks/:taskId/documents/:templateId/signed-url", taskHandler.SignedURL)

		v1.GET("/logs", logsHandler.GetLogs)
	}

	logger.Info("starting server", zap.String("port", cfg.Server.Port))
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
