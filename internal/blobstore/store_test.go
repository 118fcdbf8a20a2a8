package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultsForTest() *Blob {
	b := New(2)
	b.Set("runebook_serial", 0)
	b.Set("use_tool_crafting", true)
	b.Set("use_sacred_journey", false)
	b.Set("weight_limit", 380)
	b.ClearDirty()
	return b
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir(), 2)

	blob := defaultsForTest()
	blob.Set("runebook_serial", 0x4001ABCD)
	blob.Set("use_sacred_journey", true)
	require.NoError(t, s.Save(ctx, "miner/test", blob))
	assert.False(t, blob.Dirty())

	loaded := s.Load(ctx, "miner/test", defaultsForTest())
	assert.True(t, blob.Equal(loaded), "round-tripped blob should equal the saved one")
	assert.Equal(t, 0x4001ABCD, loaded.Int("runebook_serial", 0))
	assert.True(t, loaded.Bool("use_sacred_journey", false))
	assert.True(t, loaded.Bool("use_tool_crafting", false), "untouched defaults survive")
}

func TestTransientFieldsAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir(), 2)

	blob := defaultsForTest()
	blob.Set("session_ore_count", 42)
	blob.MarkTransient("session_ore_count")
	require.NoError(t, s.Save(ctx, "miner/test", blob))

	defaults := defaultsForTest()
	defaults.Set("session_ore_count", 0)
	defaults.MarkTransient("session_ore_count")
	defaults.ClearDirty()

	loaded := s.Load(ctx, "miner/test", defaults)
	assert.Equal(t, 0, loaded.Int("session_ore_count", 0), "transient value resets on load")
	assert.True(t, blob.Equal(loaded), "Equal ignores transient fields")
}

func TestLoadMissingRecordReturnsDefaults(t *testing.T) {
	s := NewFileStore(t.TempDir(), 2)
	loaded := s.Load(context.Background(), "never/saved", defaultsForTest())
	assert.True(t, defaultsForTest().Equal(loaded))
}

func TestLoadCorruptRecordReturnsDefaultsWithoutError(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir, 2)

	// Write garbage where the record would live.
	blob := defaultsForTest()
	require.NoError(t, s.Save(ctx, "miner/test", blob))
	var recordPath string
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	recordPath = filepath.Join(dir, entries[0].Name())
	require.NoError(t, os.WriteFile(recordPath, []byte("{not json"), 0o644))

	loaded := s.Load(ctx, "miner/test", defaultsForTest())
	assert.True(t, defaultsForTest().Equal(loaded))

	// A second load of the same broken key must stay quiet and still succeed.
	loaded = s.Load(ctx, "miner/test", defaultsForTest())
	assert.True(t, defaultsForTest().Equal(loaded))
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(2)
	s.Seed("miner/test", []byte(`{"schema_version": 2, "weight_limit": 300, "dropped_in_v3": true}`))

	loaded := s.Load(ctx, "miner/test", defaultsForTest())
	assert.Equal(t, 300, loaded.Int("weight_limit", 0))
	assert.False(t, loaded.Has("dropped_in_v3"))
}

func TestMigrationChainRuns(t *testing.T) {
	ctx := context.Background()
	// v1 stored the travel mode as a bool; v2 keeps a mode string.
	migrate := Migration{From: 1, Apply: func(values map[string]any) {
		if chiv, ok := values["use_sacred_journey"].(bool); ok && chiv {
			values["travel_mode"] = "sacred_journey"
		} else {
			values["travel_mode"] = "recall"
		}
		delete(values, "use_sacred_journey")
	}}
	s := NewMemStore(2, migrate)
	s.Seed("miner/test", []byte(`{"schema_version": 1, "use_sacred_journey": true}`))

	defaults := New(2)
	defaults.Set("travel_mode", "recall")
	defaults.ClearDirty()

	loaded := s.Load(ctx, "miner/test", defaults)
	assert.Equal(t, "sacred_journey", loaded.String("travel_mode", ""))
}

func TestNewerRecordFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(2)
	s.Seed("miner/test", []byte(`{"schema_version": 9, "weight_limit": 1}`))

	loaded := s.Load(ctx, "miner/test", defaultsForTest())
	assert.Equal(t, 380, loaded.Int("weight_limit", 0))
}

func TestSetTracksDirtyOnlyOnChange(t *testing.T) {
	blob := defaultsForTest()
	assert.False(t, blob.Dirty())

	blob.Set("use_tool_crafting", true) // same value
	assert.False(t, blob.Dirty(), "writing an identical value must not dirty the blob")

	blob.Set("use_tool_crafting", false)
	assert.True(t, blob.Dirty())
}
