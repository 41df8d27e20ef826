// Package sqlite implements the SQLite key/value backend for the local cache.
// Every cache entry is one row in a single kv table; the database file lives
// in the configured data directory and survives restarts.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Backend implements types.KVStore on top of SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	dbPath   string
	db       *sql.DB
	logger   *zap.Logger
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{logger: logger}
}

// Attach opens (creating if needed) the database in config.DataDir and
// applies the schema. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	// A single connection serializes writers and keeps WAL simple.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(pragmasSQL); err != nil {
		db.Close()
		return fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("apply schema: %w", err)
	}

	b.db = db
	b.dbPath = dbPath
	b.attached = true
	b.logger.Debug("sqlite backend attached", zap.String("path", dbPath))
	return nil
}

// Detach closes the database. Detach is idempotent. After Detach, all
// operations return ErrDetached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.logger.Debug("sqlite backend detached", zap.String("path", b.dbPath))
	return nil
}

// Close implements types.KVStore by detaching.
func (b *Backend) Close() error {
	return b.Detach()
}

// Get returns the blob stored under key. ok is false when the key is absent.
func (b *Backend) Get(key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return "", false, types.ErrDetached
	}

	var value string
	err := b.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the blob stored under key.
func (b *Backend) Set(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrDetached
	}

	_, err := b.db.Exec(`
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (b *Backend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrDetached
	}

	if _, err := b.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys returns every stored key in lexical order.
func (b *Backend) Keys() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}

	rows, err := b.db.Query("SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
