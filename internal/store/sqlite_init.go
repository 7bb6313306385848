package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (creating if needed) the database file at path and initializes the schema.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %s: %w", path, err)
	}
	// One connection; database/sql queues concurrent callers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite database %s: ping: %w", path, err)
	}
	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema creates the pin and geocode cache tables.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createPinsQuery := `
	CREATE TABLE IF NOT EXISTS pins (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		address TEXT NOT NULL,
		city TEXT NOT NULL,
		country_code TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		map_image_url TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		accuracy REAL NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT ''
	);
	`

	createPinsIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_pins_seq ON pins(seq);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		coord_key TEXT PRIMARY KEY,
		short TEXT NOT NULL,
		city TEXT NOT NULL,
		country_code TEXT NOT NULL,
		display_name TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	statements := []string{
		createPinsQuery,
		createPinsIndexQuery,
		createGeocodeCacheQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
