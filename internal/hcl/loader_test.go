package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func writeHCL(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minerManifest = `
flow "miner" {
  description = "Mines ore until overweight, then banks it."

  lifecycle {
    plan = "MinerPlan"
  }

  setting "weight_limit" {
    type    = number
    default = 380
  }

  setting "use_sacred_journey" {
    type    = bool
    default = false
  }

  setting "runebook_serial" {
    type = string
  }

  setting "session_ore" {
    type      = number
    default   = 0
    transient = true
  }
}
`

const minerProfile = `
profile "miner" "east_mine" {
  settings {
    runebook_serial = "0x40012A5F"
    weight_limit    = 400
  }

  timing {
    cooldown_ms = 900
  }

  panel {
    title = "East Mine"
  }
}
`

func TestLoader_ParsesManifestAndProfile(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "miner.hcl", minerManifest)
	writeHCL(t, dir, "profiles.hcl", minerProfile)

	model, conv, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	require.NotNil(t, conv)

	def, ok := model.Flows["miner"]
	require.True(t, ok, "miner flow should be in the model")
	require.NotNil(t, def.Lifecycle)
	assert.Equal(t, "MinerPlan", def.Lifecycle.Plan)
	require.Len(t, def.Settings, 4)

	weight := def.Settings["weight_limit"]
	require.NotNil(t, weight)
	assert.True(t, weight.Type.Equals(cty.Number))
	require.NotNil(t, weight.Default)
	assert.True(t, weight.Optional)

	serial := def.Settings["runebook_serial"]
	require.NotNil(t, serial)
	assert.Nil(t, serial.Default)
	assert.False(t, serial.Optional)

	session := def.Settings["session_ore"]
	require.NotNil(t, session)
	assert.True(t, session.Transient)

	require.Len(t, model.Profiles, 1)
	profile := model.Profiles[0]
	assert.Equal(t, "miner", profile.FlowType)
	assert.Equal(t, "east_mine", profile.Name)
	assert.Equal(t, "miner/east_mine", profile.Key())
	assert.Contains(t, profile.Settings, "runebook_serial")
	assert.Contains(t, profile.Settings, "weight_limit")
	require.NotNil(t, profile.Timing)
	assert.Equal(t, 900, profile.Timing.CooldownMs)
	require.NotNil(t, profile.Panel)
	assert.Equal(t, "East Mine", profile.Panel.Title)
}

func TestLoader_MissingPathIsNotAnError(t *testing.T) {
	model, _, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, model.Flows)
	assert.Empty(t, model.Profiles)
}

func TestLoader_RejectsDefaultOfWrongType(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "bad.hcl", `
flow "broken" {
  setting "weight_limit" {
    type    = number
    default = "heavy"
  }
}
`)

	_, _, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight_limit")
}

func TestLoader_RejectsUnknownTypeKeyword(t *testing.T) {
	dir := t.TempDir()
	writeHCL(t, dir, "bad.hcl", `
flow "broken" {
  setting "target" {
    type = serial
  }
}
`)

	_, _, err := NewLoader().Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown primitive type")
}
