package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLitePersister stores the conversation in a single-row key-value table.
type SQLitePersister struct {
	db  *sql.DB
	key string
}

// NewSQLitePersister opens (and creates if needed) the database at dbPath.
func NewSQLitePersister(dbPath string) (*SQLitePersister, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &SQLitePersister{db: db, key: StorageKey}
	if err := p.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return p, nil
}

func (p *SQLitePersister) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := p.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Load returns the stored value, or (nil, nil) when the key is absent.
func (p *SQLitePersister) Load(ctx context.Context) ([]byte, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, p.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return value, nil
}

// Save upserts the value under the fixed key.
func (p *SQLitePersister) Save(ctx context.Context, data []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := p.db.ExecContext(ctx, query, p.key, data, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

// Clear deletes the stored value.
func (p *SQLitePersister) Clear(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, p.key); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
