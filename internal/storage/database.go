package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens the SQLite database at path. Foreign keys and a busy timeout are
// set on every pooled connection through the DSN.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the failure ledger tables. It is idempotent.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS ingest_failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			note_id INTEGER NOT NULL DEFAULT 0,
			user_id INTEGER NOT NULL DEFAULT 0,
			body BLOB NOT NULL,
			attempts INTEGER NOT NULL,
			last_error TEXT NOT NULL,
			failed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			replayed_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_failures_pending
			ON ingest_failures (replayed_at, failed_at);`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_failures_note
			ON ingest_failures (user_id, note_id);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
