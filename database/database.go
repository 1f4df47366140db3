package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ConnectDB opens a SQL database with one of the registered drivers
// ("postgres", "pgx" or "sqlite3") and creates the gallery tables.
func ConnectDB(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if driver == "sqlite3" {
		// A single connection keeps ":memory:" databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[database] connected driver=%s", driver)
	return db, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			image_urls TEXT NOT NULL,
			image_public_ids TEXT NOT NULL DEFAULT '[]',
			tags TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL,
			created_by TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at)`,
		`CREATE TABLE IF NOT EXISTS post_tags (
			post_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (post_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %v", err)
		}
	}

	return nil
}
