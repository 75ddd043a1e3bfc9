package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/vyralhq/vyral-backend/internal/config"
	"github.com/vyralhq/vyral-backend/internal/images"
	"github.com/vyralhq/vyral-backend/internal/pipeline"
	"github.com/vyralhq/vyral-backend/internal/providers"
	"github.com/vyralhq/vyral-backend/internal/store"
)

// One-shot scrape runner. Useful for exercising the vendor APIs and the
// normalization pipeline from a terminal without starting the server.
func main() {
	query := flag.String("query", "", "search query (random defaults when empty)")
	category := flag.String("category", "", "category override for stored products")
	videos := flag.Bool("videos", false, "scrape videos instead of products")
	flag.Parse()

	fmt.Println("🔍 Vyral scrape runner")
	fmt.Println("======================")

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	st, err := store.NewPostgresStore(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	primary := providers.NewPrimaryProvider("https://"+cfg.PrimaryHost, cfg.RapidAPIKey)
	fallback := providers.NewFallbackProvider("https://"+cfg.FallbackHost, cfg.RapidAPIKey, cfg.ScrapeCountry)
	service := pipeline.NewService(primary, fallback, st, images.NewService(st, nil),
		cfg.ProductQueries, cfg.VideoQueries, cfg.ScrapeCountry)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var result *pipeline.Result
	if *videos {
		result, err = service.ScrapeVideos(ctx, *query)
	} else {
		result, err = service.ScrapeProducts(ctx, *query, *category)
	}
	if err != nil {
		log.Fatalf("Scrape failed: %v", err)
	}

	fmt.Printf("\n✅ %s\n", result.Message)
	fmt.Printf("   inserted: %d, source: %s\n", result.Count, result.Source)
}
