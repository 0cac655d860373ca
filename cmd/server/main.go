package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estate/server/config"
	"estate/server/internal/api"
	"estate/server/internal/database"
	"estate/server/internal/estate"
	"estate/server/internal/processor"
	"estate/server/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.WithFields(logrus.Fields{
		"driver": cfg.Database.Driver,
	}).Info("Opening database")
	db, err := database.NewDatabase(cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	logger.Info("Running database migrations...")
	if err := database.MigrateSchema(db); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	service := estate.NewService(db, cfg, logger)

	imports := queue.NewImportQueue(cfg.Import.QueueSize, logger)
	batchProcessor := processor.NewBatchProcessor(service, imports, cfg, logger)
	batchProcessor.Start()

	handler := api.NewHandler(service, imports, batchProcessor, cfg, logger)
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(handler, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	batchProcessor.Stop()
	logger.Info("Server stopped")
}
