package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads configuration from the given paths, translates it into the
	// format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter is the interface for a format-specific data binding and type
// conversion implementation. It bridges raw configuration expressions and
// the Go settings structs flow modules declare.
type Converter interface {
	// DecodeSettings evaluates a profile's settings expressions, applies the
	// manifest's defaults, and populates the target Go struct.
	DecodeSettings(
		ctx context.Context,
		target any,
		args map[string]hcl.Expression,
		defs map[string]*SettingDefinition,
		evalCtx *hcl.EvalContext,
	) error
}
