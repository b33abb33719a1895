package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"market-gateway/config"
	"market-gateway/internal/app"
	"market-gateway/internal/domain/actor"
	"market-gateway/internal/domain/document"
	"market-gateway/internal/domain/outgoing"
	"market-gateway/internal/repository"
	"market-gateway/internal/retention"
	"market-gateway/internal/services"
	"market-gateway/pkg/database"
	"market-gateway/pkg/logger"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const usage = `
Market Gateway - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up              Apply all *.up.sql migrations
  down            Roll back all migrations
  status          Show connection status and queue table sizes
  purge-dequeued  Delete bundles dequeued longer ago than RETENTION_PERIOD
  seed-dev        Enqueue sample messages for a development receiver

Flags:
  -migrations string   Path to migrations directory (default "migrations")
  -receiver string     Receiver for seed-dev as number/role (default "5790000392551/DDQ")
  -count int           Messages per document type for seed-dev (default 3)

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
  go run cmd/migrate/main.go purge-dequeued
`

var queueTables = []string{"actor_message_queues", "bundles", "outgoing_messages", "market_documents", "archived_messages"}

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")
	receiverFlag := flag.String("receiver", "5790000392551/DDQ", "Receiver for seed-dev")
	count := flag.Int("count", 3, "Messages per document type for seed-dev")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	cfg := config.LoadConfig()
	cfg.AppStore = config.StorePostgres
	ctx := context.Background()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := database.ApplyMigrations(ctx, db, *migrationsDir, database.Up); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	case "down":
		if err := database.ApplyMigrations(ctx, db, *migrationsDir, database.Down); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Rollback completed successfully")
	case "status":
		showStatus(ctx, db)
	case "purge-dequeued":
		store := repository.NewPostgresStore(db)
		n, err := retention.DefaultProcessor(store.Retention(), nil, cfg).Purge(ctx)
		if err != nil {
			log.Fatalf("Purge failed after %d bundles: %v", n, err)
		}
		log.Printf("Purged %d dequeued bundles", n)
	case "seed-dev":
		seedDevelopment(ctx, db, cfg, *receiverFlag, *count)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func showStatus(ctx context.Context, db *sql.DB) {
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, table := range queueTables {
		exists, err := database.TableExists(ctx, db, table)
		if err != nil {
			log.Printf("Error checking table %s: %v", table, err)
			continue
		}
		if !exists {
			log.Printf("Table %s: MISSING", table)
			continue
		}
		n, err := database.TableCount(ctx, db, table)
		if err != nil {
			log.Printf("Error counting table %s: %v", table, err)
			continue
		}
		log.Printf("Table %s: %d rows", table, n)
	}
}

// seedDevelopment enqueues count messages of a master data type and count
// aggregation results for one receiver, through the same enqueuer the API
// uses.
func seedDevelopment(ctx context.Context, db *sql.DB, cfg *config.Config, receiverArg string, count int) {
	number, role, _ := strings.Cut(receiverArg, "/")
	receiver, err := actor.NewReceiver(number, role)
	if err != nil {
		log.Fatalf("Invalid -receiver %q: %v", receiverArg, err)
	}

	store := repository.NewPostgresStore(db, app.QueueOptions(cfg)...)
	enqueuer := services.NewMessageEnqueuer(store, nil, services.WithLogger(logger.GetGlobalLogger()))

	kinds := []struct {
		docType document.DocumentType
		reason  document.BusinessReason
	}{
		{document.GenericNotification, document.MoveIn},
		{document.NotifyAggregatedMeasureData, document.BalanceFixing},
	}
	for _, k := range kinds {
		for i := 0; i < count; i++ {
			record, _ := json.Marshal(map[string]interface{}{"sequence": i + 1, "gridArea": "804"})
			msg, err := outgoing.New(outgoing.Params{
				DocumentType:   k.docType,
				ReceiverID:     receiver.Number,
				ReceiverRole:   receiver.Role,
				ProcessID:      uuid.New(),
				BusinessReason: k.reason,
				SenderID:       actor.ActorNumber(cfg.HubActorNumber),
				SenderRole:     actor.ActorRole(cfg.HubActorRole),
				MessageRecord:  record,
			}, time.Now())
			if err != nil {
				log.Fatalf("Building message: %v", err)
			}
			if err := enqueuer.Enqueue(ctx, msg); err != nil {
				log.Fatalf("Enqueue failed: %v", err)
			}
		}
	}
	log.Printf("Enqueued %d messages for %s", 2*count, receiver)
}
