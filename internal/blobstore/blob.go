// Package blobstore persists per-flow settings blobs under stable keys.
//
// A Blob is an open mapping of setting names to primitive values, serialized
// as one JSON record per key. Loads never fail the automation: a missing or
// corrupt record falls back to the caller's defaults, and the corruption is
// reported once to the log rather than raised.
package blobstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vk/tickflowgo/internal/gateway"
)

// versionKey is the reserved setting name carrying the blob schema version.
const versionKey = "schema_version"

// Blob holds one flow's persisted settings. Values are restricted to the JSON
// primitives bool, float64 and string.
type Blob struct {
	version   int
	values    map[string]any
	transient map[string]struct{}
	dirty     bool
}

// New returns an empty blob at the given schema version.
func New(version int) *Blob {
	return &Blob{
		version:   version,
		values:    make(map[string]any),
		transient: make(map[string]struct{}),
	}
}

// Version returns the blob's schema version.
func (b *Blob) Version() int {
	return b.version
}

// setVersion is used by the store's migration machinery.
func (b *Blob) setVersion(v int) {
	b.version = v
}

// Keys returns the setting names in sorted order.
func (b *Blob) Keys() []string {
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether a setting exists.
func (b *Blob) Has(name string) bool {
	_, ok := b.values[name]
	return ok
}

// Set stores a primitive value and marks the blob dirty if the value actually
// changed. Non-primitive values are normalized through their JSON form.
func (b *Blob) Set(name string, value any) {
	norm := normalize(value)
	if old, ok := b.values[name]; ok && old == norm {
		return
	}
	b.values[name] = norm
	b.dirty = true
}

// Delete removes a setting.
func (b *Blob) Delete(name string) {
	if _, ok := b.values[name]; ok {
		delete(b.values, name)
		b.dirty = true
	}
}

// MarkTransient excludes a setting from serialization. Transient settings
// survive within one process but are not persisted by Save.
func (b *Blob) MarkTransient(name string) {
	b.transient[name] = struct{}{}
}

// Dirty reports whether the blob changed since the last Save/ClearDirty.
func (b *Blob) Dirty() bool {
	return b.dirty
}

// ClearDirty resets the change marker. The store calls this after a
// successful Save.
func (b *Blob) ClearDirty() {
	b.dirty = false
}

// Get returns the raw stored value for a setting.
func (b *Blob) Get(name string) (any, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Bool returns a boolean setting, falling back to def when the setting is
// missing or holds another type.
func (b *Blob) Bool(name string, def bool) bool {
	if v, ok := b.values[name].(bool); ok {
		return v
	}
	return def
}

// Int returns an integer setting. JSON numbers arrive as float64, so the
// value is truncated.
func (b *Blob) Int(name string, def int) int {
	if v, ok := b.values[name].(float64); ok {
		return int(v)
	}
	return def
}

// Float returns a numeric setting.
func (b *Blob) Float(name string, def float64) float64 {
	if v, ok := b.values[name].(float64); ok {
		return v
	}
	return def
}

// String returns a string setting.
func (b *Blob) String(name, def string) string {
	if v, ok := b.values[name].(string); ok {
		return v
	}
	return def
}

// Serial returns a setting interpreted as a game object serial. String
// values accept the usual hex form ("0x40012A5F") as well as decimal.
func (b *Blob) Serial(name string) gateway.Serial {
	switch v := b.values[name].(type) {
	case float64:
		return gateway.Serial(uint32(v))
	case string:
		if n, err := strconv.ParseUint(strings.TrimSpace(v), 0, 32); err == nil {
			return gateway.Serial(uint32(n))
		}
	}
	return 0
}

// Clone returns a deep copy sharing no state with the original. The copy
// starts clean regardless of the original's dirty marker.
func (b *Blob) Clone() *Blob {
	c := New(b.version)
	for k, v := range b.values {
		c.values[k] = v
	}
	for k := range b.transient {
		c.transient[k] = struct{}{}
	}
	return c
}

// Equal compares two blobs on version and all non-transient settings.
func (b *Blob) Equal(other *Blob) bool {
	if other == nil || b.version != other.version {
		return false
	}
	count := func(blob *Blob) int {
		n := 0
		for k := range blob.values {
			if _, t := blob.transient[k]; !t {
				n++
			}
		}
		return n
	}
	if count(b) != count(other) {
		return false
	}
	for k, v := range b.values {
		if _, t := b.transient[k]; t {
			continue
		}
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// merge overlays persisted values onto the defaults. Only names the defaults
// already declare are taken; unknown persisted keys are ignored so that a
// newer record never smuggles settings into older code.
func (b *Blob) merge(persisted map[string]any) {
	for name := range b.values {
		if v, ok := persisted[name]; ok {
			b.values[name] = normalize(v)
		}
	}
}

// encode serializes the blob as a flat JSON object, dropping transients.
func (b *Blob) encode() ([]byte, error) {
	out := make(map[string]any, len(b.values)+1)
	for k, v := range b.values {
		if _, t := b.transient[k]; t {
			continue
		}
		out[k] = v
	}
	out[versionKey] = b.version
	return json.MarshalIndent(out, "", "  ")
}

// decodeRecord parses a persisted JSON record into a raw value map plus the
// recorded schema version (0 when the record predates versioning).
func decodeRecord(data []byte) (map[string]any, int, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("blobstore: decode record: %w", err)
	}
	version := 0
	if v, ok := raw[versionKey].(float64); ok {
		version = int(v)
	}
	delete(raw, versionKey)
	return raw, version, nil
}

// normalize coerces Go numeric types to float64 so comparisons behave the
// same before and after a JSON round trip.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint32:
		return float64(n)
	case float32:
		return float64(n)
	case gateway.Serial:
		return float64(n)
	default:
		return v
	}
}
