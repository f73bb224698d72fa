package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hazards (
		hazard_id TEXT PRIMARY KEY,
		class_name TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		initial_confidence REAL DEFAULT 0,
		severity TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'unverified',
		confirmations INTEGER DEFAULT 0,
		denials INTEGER DEFAULT 0,
		total_feedback INTEGER DEFAULT 0,
		confidence_score REAL DEFAULT 0,
		contributors TEXT DEFAULT '{}',
		first_seen_at DATETIME NOT NULL,
		last_updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feedback_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hazard_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		confidence REAL DEFAULT 1,
		comment TEXT DEFAULT '',
		submitted_at DATETIME NOT NULL,
		FOREIGN KEY (hazard_id) REFERENCES hazards(hazard_id)
	);

	CREATE INDEX IF NOT EXISTS idx_hazards_status ON hazards(status);
	CREATE INDEX IF NOT EXISTS idx_hazards_class_name ON hazards(class_name);
	CREATE INDEX IF NOT EXISTS idx_feedback_hazard_id ON feedback_events(hazard_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_user_id ON feedback_events(user_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
