package db

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStore keeps every key in one bbolt bucket
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) a bbolt file at path
func NewBoltStore(path string) (*BoltStore, error) {
	bdb, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	if err := InitializeBuckets(bdb); err != nil {
		bdb.Close()
		return nil, err
	}
	if err := VerifyBucketsExist(bdb); err != nil {
		bdb.Close()
		return nil, fmt.Errorf("failed to verify bolt database: %w", err)
	}

	return &BoltStore{db: bdb}, nil
}

// Get returns the value stored under key
func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketLibrary)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// bbolt values are only valid inside the transaction
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put writes value under key
func (s *BoltStore) Put(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketLibrary)).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (s *BoltStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketLibrary)).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close closes the bolt file
func (s *BoltStore) Close() error {
	return s.db.Close()
}
