// Command synconce runs one sync pipeline pass and exits. Meant for cron
// jobs and for backfilling a fresh database from the command line.
package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"dispatchboard/internal/bitable"
	"dispatchboard/internal/config"
	"dispatchboard/internal/database"
	"dispatchboard/internal/logging"
	"dispatchboard/internal/models"
	"dispatchboard/internal/normalize"
	"dispatchboard/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	logging.Init()

	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	cfg := config.Load()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	client := bitable.NewClient(bitable.Options{
		BaseURL:   cfg.BitableBaseURL,
		AppID:     cfg.BitableAppID,
		AppSecret: cfg.BitableAppSecret,
		AppToken:  cfg.BitableAppToken,
		TableID:   cfg.BitableTableID,
		QPS:       cfg.BitableQPS,
	})

	syncService := services.NewSyncService(
		client,
		normalize.New(models.DefaultFieldMapping()),
		services.NewTaskService(db),
		services.NewRecordService(db),
		nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := syncService.Run(ctx)
	if err != nil {
		log.Fatalf("❌ Sync failed: %v", err)
	}

	log.Printf("✅ Sync %s: %d records -> %d tasks in %v",
		result.RunID, result.RecordsFetched, result.TasksPersisted, result.Duration)
}
