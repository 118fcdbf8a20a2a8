package blobstore

import (
	"context"
	"sync"

	"github.com/vk/tickflowgo/internal/ctxlog"
)

// MemStore is an ephemeral Store keeping encoded records in memory. It backs
// tests and any host without a writable data directory, and deliberately
// round-trips through the same encode/decode path as FileStore so the two
// are interchangeable in behavior.
type MemStore struct {
	mu         sync.Mutex
	records    map[string][]byte
	version    int
	migrations []Migration
	warned     map[string]struct{}
}

// NewMemStore builds an empty in-memory store.
func NewMemStore(version int, migrations ...Migration) *MemStore {
	return &MemStore{
		records:    make(map[string][]byte),
		version:    version,
		migrations: migrations,
		warned:     make(map[string]struct{}),
	}
}

// Seed installs a raw record, letting tests stage corrupt or legacy payloads.
func (s *MemStore) Seed(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = append([]byte(nil), data...)
}

// Load implements Store.
func (s *MemStore) Load(ctx context.Context, key string, defaults *Blob) *Blob {
	s.mu.Lock()
	data, ok := s.records[key]
	s.mu.Unlock()

	blob := defaults.Clone()
	blob.setVersion(s.version)
	if !ok {
		return blob
	}

	values, recordVersion, err := decodeRecord(data)
	if err != nil {
		s.warnOnce(ctx, key, err)
		return blob
	}
	if !applyMigrations(ctx, values, recordVersion, s.version, s.migrations) {
		return blob
	}
	blob.merge(values)
	return blob
}

// Save implements Store.
func (s *MemStore) Save(ctx context.Context, key string, blob *Blob) error {
	data, err := blob.encode()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[key] = data
	s.mu.Unlock()
	blob.ClearDirty()
	return nil
}

func (s *MemStore) warnOnce(ctx context.Context, key string, err error) {
	s.mu.Lock()
	_, seen := s.warned[key]
	s.warned[key] = struct{}{}
	s.mu.Unlock()
	if !seen {
		ctxlog.FromContext(ctx).Warn("Persisted settings record is corrupt, using defaults.", "key", key, "error", err)
	}
}
