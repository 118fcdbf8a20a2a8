package schema

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// --- Primary Profile Structures ---

// SettingsBlock represents the content of the 'settings' block within a profile.
type SettingsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// TimingBlock carries the per-profile timer overrides, in milliseconds.
type TimingBlock struct {
	AwaitTimeoutMs int `hcl:"await_timeout_ms,optional"`
	CooldownMs     int `hcl:"cooldown_ms,optional"`
	IdleBackoffMs  int `hcl:"idle_backoff_ms,optional"`
}

// PanelBlock tunes the control panel rendered for a profile.
type PanelBlock struct {
	Title    string `hcl:"title,optional"`
	Disabled bool   `hcl:"disabled,optional"`
}

// Profile represents a `profile` block from a user's profile file. It is a
// configured instance of a defined flow.
type Profile struct {
	FlowType string         `hcl:"flow_type,label"`
	Name     string         `hcl:"profile_name,label"`
	Settings *SettingsBlock `hcl:"settings,block"`
	Timing   *TimingBlock   `hcl:"timing,block"`
	Panel    *PanelBlock    `hcl:"panel,block"`
}

// --- Flow Manifest Schemas ---

// Lifecycle defines the mapping from a flow type to its registered Go plan.
type Lifecycle struct {
	Plan string `hcl:"plan"`
}

// SettingDefinition defines a single persisted setting for a flow.
type SettingDefinition struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Description string         `hcl:"description,optional"`
	Default     *cty.Value     `hcl:"default,optional"`
	Transient   bool           `hcl:"transient,optional"`
}

// FlowDefinition represents the HCL manifest for a `flow` type.
type FlowDefinition struct {
	Type        string               `hcl:"type,label"`
	Description string               `hcl:"description,optional"`
	Lifecycle   *Lifecycle           `hcl:"lifecycle,block"`
	Settings    []*SettingDefinition `hcl:"setting,block"`
}
