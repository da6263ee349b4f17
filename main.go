package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"reviewflow-pipeline/internal/config"
	"reviewflow-pipeline/internal/handlers"
	"reviewflow-pipeline/internal/pkg/logger"
	"reviewflow-pipeline/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting ReviewFlow Pipeline",
		"environment", cfg.Environment,
		"port", cfg.HTTP.Port)

	redisService, err := services.NewRedisService(cfg.Redis, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize Redis service")
		os.Exit(1)
	}

	aiService, err := services.NewOpenAIService(cfg.OpenAI, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize AI service")
		os.Exit(1)
	}

	customerService := services.NewCustomerService(log)
	productService := services.NewProductService(log)

	orchestrator := services.NewOrchestrator(
		redisService,
		aiService,
		customerService,
		productService,
		*cfg,
		log,
	)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := handlers.NewReviewHandler(orchestrator, log)
	router := handlers.NewRouter(handler, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Workflow.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	if err := orchestrator.Close(); err != nil {
		log.WithError(err).Error("Orchestrator shutdown failed")
	}

	if err := aiService.Close(); err != nil {
		log.WithError(err).Error("AI service shutdown failed")
	}

	if err := redisService.Close(); err != nil {
		log.WithError(err).Error("Redis service shutdown failed")
	}

	log.Info("ReviewFlow Pipeline stopped")
}
