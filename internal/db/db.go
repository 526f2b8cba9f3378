package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/Project-Sylos/Citrus/internal/types"
)

// ErrNotFound is returned when a key has never been written
var ErrNotFound = errors.New("key not found")

// KV is the durable key-value storage behind the library repository.
// Values are opaque serialized text; each Put replaces the whole value.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the KV backend selected by the store config
func Open(ctx context.Context, cfg types.StoreConfig) (KV, error) {
	switch cfg.Driver {
	case types.DriverDuckDB:
		return New(cfg.DBPath)
	case types.DriverBolt:
		return NewBoltStore(cfg.DBPath)
	case types.DriverS3:
		return NewS3Store(ctx, cfg)
	case types.DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
}

// DB wraps a DuckDB connection holding the kv_store table
type DB struct {
	conn *sql.DB
	mu   sync.Mutex // Serializes access to the connection
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.InitializeSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// InitializeSchema creates the kv_store table if it does not exist
func (db *DB) InitializeSchema() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(BuildKVTableSQL()); err != nil {
		return fmt.Errorf("failed to create %s table: %w", kvTable, err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Get returns the value stored under key
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var value string
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = ?", kvTable)
	err := db.conn.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return []byte(value), nil
}

// Put writes value under key, replacing any previous value
func (db *DB) Put(ctx context.Context, key string, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.ExecContext(ctx, BuildUpsertSQL(), key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting an absent key is not an error
func (db *DB) Delete(ctx context.Context, key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	query := fmt.Sprintf("DELETE FROM %s WHERE key = ?", kvTable)
	if _, err := db.conn.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}
