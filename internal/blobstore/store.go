package blobstore

import (
	"context"

	"github.com/vk/tickflowgo/internal/ctxlog"
)

// Store loads and saves settings blobs under stable per-flow keys.
//
// Load never returns an error for a missing or unreadable record; it reports
// the problem once and hands back the defaults so the automation keeps
// running. Save is expected to be called only on explicit setting changes,
// never every tick.
type Store interface {
	// Load returns the blob stored under key, merged onto a clone of
	// defaults. Unknown persisted keys are ignored; missing keys keep their
	// default values.
	Load(ctx context.Context, key string, defaults *Blob) *Blob

	// Save persists the blob under key and clears its dirty marker.
	Save(ctx context.Context, key string, blob *Blob) error
}

// Migration rewrites a blob from schema version From to From+1. Migrations
// are explicit: a version bump without a registered step means older records
// are discarded in favor of defaults rather than silently reinterpreted.
type Migration struct {
	From  int
	Apply func(values map[string]any)
}

// applyMigrations walks the registered steps from the record's version up to
// the target. It returns false when no path exists (a gap in the chain or a
// record newer than the running code), in which case the caller falls back
// to defaults.
func applyMigrations(ctx context.Context, values map[string]any, from, target int, migrations []Migration) bool {
	if from == target {
		return true
	}
	if from > target {
		ctxlog.FromContext(ctx).Warn("Persisted record is newer than this build, using defaults.",
			"record_version", from, "supported_version", target)
		return false
	}
	steps := make(map[int]Migration, len(migrations))
	for _, m := range migrations {
		steps[m.From] = m
	}
	for v := from; v < target; v++ {
		step, ok := steps[v]
		if !ok {
			ctxlog.FromContext(ctx).Warn("No migration step registered, using defaults.",
				"record_version", from, "missing_step", v)
			return false
		}
		step.Apply(values)
	}
	return true
}
