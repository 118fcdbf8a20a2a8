package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/tickflowgo/internal/ctxlog"
)

// FileStore persists one JSON record per key under a data directory. The
// filename is the sha256 of the key, so arbitrary profile names never leak
// into the filesystem namespace.
type FileStore struct {
	dir        string
	version    int
	migrations []Migration
	warned     map[string]struct{}
}

// NewFileStore builds a store rooted at dir, targeting the given schema
// version with the registered migration chain.
func NewFileStore(dir string, version int, migrations ...Migration) *FileStore {
	return &FileStore{
		dir:        dir,
		version:    version,
		migrations: migrations,
		warned:     make(map[string]struct{}),
	}
}

func (s *FileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, key string, defaults *Blob) *Blob {
	logger := ctxlog.FromContext(ctx)
	blob := defaults.Clone()
	blob.setVersion(s.version)

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			s.warnOnce(ctx, key, "Failed to read persisted settings, using defaults.", err)
		}
		return blob
	}

	values, recordVersion, err := decodeRecord(data)
	if err != nil {
		s.warnOnce(ctx, key, "Persisted settings record is corrupt, using defaults.", err)
		return blob
	}
	if !applyMigrations(ctx, values, recordVersion, s.version, s.migrations) {
		return blob
	}

	blob.merge(values)
	logger.Debug("Loaded persisted settings.", "key", key, "settings", len(values))
	return blob
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, key string, blob *Blob) error {
	data, err := blob.encode()
	if err != nil {
		return fmt.Errorf("blobstore: encode record for key %q: %w", key, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("blobstore: create data dir: %w", err)
	}
	path := s.path(key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("blobstore: write record for key %q: %w", key, err)
	}
	blob.ClearDirty()
	ctxlog.FromContext(ctx).Debug("Saved persisted settings.", "key", key, "path", path)
	return nil
}

// warnOnce reports a per-key load problem a single time; later loads of the
// same broken key stay quiet so the loop does not flood the log.
func (s *FileStore) warnOnce(ctx context.Context, key, msg string, err error) {
	if _, ok := s.warned[key]; ok {
		return
	}
	s.warned[key] = struct{}{}
	ctxlog.FromContext(ctx).Warn(msg, "key", key, "error", err)
}
