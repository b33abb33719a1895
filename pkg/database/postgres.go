package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"market-gateway/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Connect opens a pooled connection through the pgx stdlib driver and
// verifies it with a ping.
func Connect(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DatabaseDSN()+" TimeZone=UTC")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Connection pool settings
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(100)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Println("Database connection established")
	return db, nil
}

// Direction selects which half of the migration files is applied.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// MigrationFiles returns the *.{direction}.sql files in dir, in the order
// they must be applied: ascending for up, descending for down.
func MigrationFiles(dir string, d Direction) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	suffix := "." + string(d) + ".sql"
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	if d == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}
	return files, nil
}

// ApplyMigrations executes every migration file for direction d, each in its
// own transaction.
func ApplyMigrations(ctx context.Context, db *sql.DB, dir string, d Direction) error {
	files, err := MigrationFiles(dir, d)
	if err != nil {
		return err
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filepath.Base(path), err)
		}

		log.Printf("Applying migration: %s", filepath.Base(path))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", filepath.Base(path), err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// HealthCheck verifies the connection and that the queue schema is present.
func HealthCheck(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	exists, err := TableExists(ctx, db, "actor_message_queues")
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table actor_message_queues is missing, run migrations")
	}
	return nil
}

func TableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.tables
            WHERE table_schema = current_schema() AND table_name = $1
        )
    `, table).Scan(&exists)
	return exists, err
}

// TableCount returns the number of rows in table. table must be a trusted
// identifier.
func TableCount(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&n)
	return n, err
}
