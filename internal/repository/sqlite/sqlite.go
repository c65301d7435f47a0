package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the journal connection. Writers take the lock exclusively.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New opens the journal database at dbPath and creates the schema if needed.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inferences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		command TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		duration_ms INTEGER DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS faces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		inference_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		xmin REAL NOT NULL,
		ymin REAL NOT NULL,
		xmax REAL NOT NULL,
		ymax REAL NOT NULL,
		label TEXT DEFAULT '',
		confidence REAL DEFAULT 0,
		FOREIGN KEY (inference_id) REFERENCES inferences(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_inferences_command ON inferences(command);
	CREATE INDEX IF NOT EXISTS idx_inferences_created_at ON inferences(created_at);
	CREATE INDEX IF NOT EXISTS idx_faces_label ON faces(label);
	CREATE INDEX IF NOT EXISTS idx_faces_inference_id ON faces(inference_id);
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
