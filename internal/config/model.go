package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of the entire
// application configuration: every flow manifest plus the user's profiles.
type Model struct {
	Flows    map[string]*FlowDefinition
	Profiles []*Profile
}

// Profile is the format-agnostic representation of a `profile` block: one
// configured instantiation of a flow type.
type Profile struct {
	FlowType string
	Name     string
	Settings map[string]hcl.Expression
	Timing   *Timing
	Panel    *PanelOptions
}

// Key returns the stable identifier the profile's settings blob is persisted
// under.
func (p *Profile) Key() string {
	return p.FlowType + "/" + p.Name
}

// Timing carries the per-profile overrides for the flow's timers, in
// milliseconds. Zero values defer to the engine defaults.
type Timing struct {
	AwaitTimeoutMs int
	CooldownMs     int
	IdleBackoffMs  int
}

// PanelOptions tunes the control panel rendered for a profile.
type PanelOptions struct {
	Title    string
	Disabled bool
}

// --- Flow Manifest Models ---

// FlowDefinition is the format-agnostic representation of a flow module's
// manifest: its type name, the Go plan it binds to, and the settings it
// declares.
type FlowDefinition struct {
	Type        string
	Description string
	Lifecycle   *Lifecycle
	Settings    map[string]*SettingDefinition
}

// Lifecycle maps a flow's manifest to its registered Go plan name.
type Lifecycle struct {
	Plan string
}

// SettingDefinition declares a single persisted setting of a flow.
type SettingDefinition struct {
	Name        string
	Type        cty.Type
	Description string
	Default     *cty.Value
	Optional    bool
	// Transient settings live in the blob for the session but are excluded
	// from persistence.
	Transient bool
}
