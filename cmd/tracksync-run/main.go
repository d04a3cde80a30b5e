package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/petpath/tracksync/internal/config"
	"github.com/petpath/tracksync/internal/database"
	"github.com/petpath/tracksync/internal/store"
	"github.com/petpath/tracksync/internal/syncer"
	"github.com/petpath/tracksync/internal/trackimo"
	"github.com/petpath/tracksync/pkg/logger"
)

// One-shot runner: executes a single reconciliation and prints the report as
// JSON. Intended for cron jobs and manual operator runs; the HTTP service in
// the repository root is the long-running deployment.
func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	var stores *store.Stores
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			log.Fatalf("mongodb: %v", err)
		}
		defer func() { _ = client.Disconnect(ctx) }()
		stores = store.NewMongoStores(client.Database(cfg.MongoDB.Database))
	} else {
		// memory stores make dry runs possible without infrastructure, but
		// nothing survives the process
		log.Printf("warning: MONGODB_URI not set — running against in-memory stores")
		stores = store.NewMemoryStores()
	}

	engine := syncer.New(trackimo.NewClient(cfg.Trackimo), stores)
	report, err := engine.Run(ctx)
	if err != nil {
		log.Fatalf("sync run failed: %v", err)
	}

	out, err := json.MarshalIndent(map[string]any{
		"processed_users":   len(report.Processed),
		"deactivated_users": len(report.Deactivated),
		"users":             report.Processed,
		"inactive_users":    report.Deactivated,
		"summary":           report.Summarize(),
	}, "", "  ")
	if err != nil {
		log.Fatalf("report: %v", err)
	}
	fmt.Println(string(out))
}
