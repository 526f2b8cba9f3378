package db

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// kvTable holds every persisted collection as one serialized row per key
const kvTable = "kv_store"

// bucketLibrary is the single bbolt bucket used by BoltStore
const bucketLibrary = "library"

// BuildKVTableSQL returns the DuckDB DDL for the key-value table
func BuildKVTableSQL() string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    key        VARCHAR PRIMARY KEY,
    value      VARCHAR NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`, kvTable)
}

// BuildUpsertSQL returns the DuckDB upsert statement for one key
func BuildUpsertSQL() string {
	return fmt.Sprintf(`
INSERT INTO %s (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, kvTable)
}

// InitializeBuckets creates the library bucket in the BoltDB database
func InitializeBuckets(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketLibrary)); err != nil {
			return fmt.Errorf("failed to create %s bucket: %w", bucketLibrary, err)
		}
		return nil
	})
}

// VerifyBucketsExist checks that the library bucket exists
func VerifyBucketsExist(db *bbolt.DB) error {
	return db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(bucketLibrary)) == nil {
			return fmt.Errorf("required bucket %s does not exist", bucketLibrary)
		}
		return nil
	})
}
