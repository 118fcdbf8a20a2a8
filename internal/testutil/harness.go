// Package testutil provides shared helpers for integration-style tests: a
// race-safe log buffer and a harness that assembles a full App over a
// scripted gateway.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/tickflowgo/internal/app"
	"github.com/vk/tickflowgo/internal/blobstore"
	"github.com/vk/tickflowgo/internal/gateway/gatewaytest"
	"github.com/vk/tickflowgo/internal/hcl"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a harness run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	Gateway   *gatewaytest.Fake
	Store     *blobstore.MemStore
}

// RunAppTest writes the given HCL files into a temporary tree, builds a full
// App over a scripted gateway and an in-memory store, runs it for the given
// duration, and returns everything a test needs to assert on. The prepare
// callback, when non-nil, scripts the gateway before the run starts.
func RunAppTest(t *testing.T, files map[string]string, runFor time.Duration, prepare func(*gatewaytest.Fake)) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	profilesDir := filepath.Join(tmpDir, "profiles")
	modulesDir := filepath.Join(tmpDir, "modules")
	require.NoError(t, os.Mkdir(profilesDir, 0o755))
	require.NoError(t, os.Mkdir(modulesDir, 0o755))

	// The test provides relative paths (e.g. "modules/miner/manifest.hcl"),
	// which naturally creates the subdirectory structure within tmpDir.
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	cfg, err := app.NewConfig(app.Config{
		ProfilePath:    profilesDir,
		ModulesPath:    modulesDir,
		DataDir:        filepath.Join(tmpDir, "data"),
		LogFormat:      "text",
		LogLevel:       "debug",
		TickIntervalMs: 5,
	})
	require.NoError(t, err)

	fake := gatewaytest.New()
	if prepare != nil {
		prepare(fake)
	}
	store := blobstore.NewMemStore(1)
	buf := &SafeBuffer{}

	a := app.NewApp(buf, cfg, hcl.NewLoader(), fake, store)

	ctx, cancel := context.WithTimeout(context.Background(), runFor)
	defer cancel()
	runErr := a.Run(ctx)

	return &HarnessResult{
		LogOutput: buf.String(),
		Err:       runErr,
		App:       a,
		Gateway:   fake,
		Store:     store,
	}
}
