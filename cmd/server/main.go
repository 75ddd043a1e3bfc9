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

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/vyralhq/vyral-backend/internal/api"
	"github.com/vyralhq/vyral-backend/internal/billing"
	"github.com/vyralhq/vyral-backend/internal/config"
	"github.com/vyralhq/vyral-backend/internal/images"
	"github.com/vyralhq/vyral-backend/internal/llm"
	"github.com/vyralhq/vyral-backend/internal/notifications"
	"github.com/vyralhq/vyral-backend/internal/pipeline"
	"github.com/vyralhq/vyral-backend/internal/providers"
	"github.com/vyralhq/vyral-backend/internal/ranking"
	"github.com/vyralhq/vyral-backend/internal/scheduler"
	"github.com/vyralhq/vyral-backend/internal/storage"
	"github.com/vyralhq/vyral-backend/internal/store"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Vyral backend")

	// Initialize the database
	st, err := store.NewPostgresStore(cfg.DatabaseDSN)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	// Azure storage is optional; without it images stay on the CDN
	var blobStore storage.BlobStore
	if cfg.StorageAccount != "" {
		blobStore, err = storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize storage: %v", err)
		}
	} else {
		logrus.Warn("AZURE_STORAGE_ACCOUNT not set, image persistence disabled")
	}

	imageService := images.NewService(st, blobStore)

	// Scrape pipeline over the two RapidAPI vendors
	primary := providers.NewPrimaryProvider("https://"+cfg.PrimaryHost, cfg.RapidAPIKey)
	fallback := providers.NewFallbackProvider("https://"+cfg.FallbackHost, cfg.RapidAPIKey, cfg.ScrapeCountry)
	scrapeService := pipeline.NewService(primary, fallback, st, imageService, cfg.ProductQueries, cfg.VideoQueries, cfg.ScrapeCountry)

	// Billing sync
	if cfg.StripeSecretKey == "" {
		logrus.Warn("STRIPE_SECRET_KEY not set, billing calls will fail")
	}
	billingService := billing.NewService(billing.NewRestClient(cfg.StripeSecretKey), st, cfg.StripePlanMap)

	// LLM-backed features
	aiService := llm.NewService(llm.NewClient(cfg.LLMGatewayURL, cfg.LLMAPIKey, cfg.LLMModel), st)

	rankingService := ranking.NewService(st)
	alertService := notifications.NewService(cfg, st)

	// Recurring jobs
	schedulerService := scheduler.NewService(cfg, rankingService, imageService, alertService, scrapeService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// HTTP API
	apiServer := api.NewServer(st, scrapeService, billingService, aiService, rankingService, imageService, cfg.JWTSecret, cfg.StripeWebhookSecret)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
