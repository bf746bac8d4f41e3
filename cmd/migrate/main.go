package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"collectibles/internal/config"
	"collectibles/internal/db"

	"github.com/jmoiron/sqlx"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		log.Fatalf("failed to ensure schema_migrations: %v", err)
	}

	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		log.Fatalf("failed to read migrations: %v", err)
	}
	sort.Strings(files)

	for _, file := range files {
		applied, err := apply(database, file)
		if err != nil {
			log.Fatalf("failed to apply %s: %v", filepath.Base(file), err)
		}
		if applied {
			fmt.Printf("applied %s\n", filepath.Base(file))
		}
	}
}

// apply runs the up section of one migration file inside a transaction,
// recording it in schema_migrations. Already-applied files are skipped.
func apply(database *sqlx.DB, file string) (bool, error) {
	filename := filepath.Base(file)
	var exists bool
	if err := database.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return false, err
	}
	up, _, _ := strings.Cut(string(content), "-- +migrate Down")
	tx, err := database.Beginx()
	if err != nil {
		return false, err
	}
	if _, err := tx.Exec(up); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	return true, tx.Commit()
}
