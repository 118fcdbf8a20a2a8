package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/vk/tickflowgo/internal/gateway/gatewaytest"
	"github.com/vk/tickflowgo/internal/testutil"
)

const healerManifest = `
flow "healer" {
  lifecycle {
    plan = "HealerPlan"
  }

  setting "heal_threshold" {
    type    = number
    default = 0.60
  }

  setting "use_bandages" {
    type    = bool
    default = false
  }
}
`

const healerProfile = `
profile "healer" "self" {
  settings {
    heal_threshold = 0.75
  }

  panel {
    title = "Self Healer"
  }
}
`

func TestRun_HealerProfileEndToEnd(t *testing.T) {
	result := testutil.RunAppTest(t, map[string]string{
		"modules/healer/manifest.hcl": healerManifest,
		"profiles/profiles.hcl":       healerProfile,
	}, 150*time.Millisecond, func(fake *gatewaytest.Fake) {
		fake.SetVitals(gateway.Vitals{Hits: 50, MaxHits: 100})
		fake.QueueTarget("self", gateway.TargetRef{Serial: 0x1})
	})

	require.NoError(t, result.Err)
	assert.Greater(t, result.Gateway.TickCount, 1, "loop pumps the gateway every iteration")
	assert.GreaterOrEqual(t, result.Gateway.CreateCount, 1, "profile panel is rendered")

	require.NotEmpty(t, result.Gateway.Actions)
	assert.Equal(t, gateway.ActionID("heal_self"), result.Gateway.Actions[0].Action)
}

func TestRun_UnknownFlowTypeFails(t *testing.T) {
	result := testutil.RunAppTest(t, map[string]string{
		"profiles/profiles.hcl": `
profile "ghost" "nobody" {
  settings {}
}
`,
	}, 50*time.Millisecond, nil)

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "unknown flow type")
}

func TestRun_NoProfilesIsANoop(t *testing.T) {
	result := testutil.RunAppTest(t, map[string]string{
		"modules/healer/manifest.hcl": healerManifest,
	}, 50*time.Millisecond, nil)

	require.NoError(t, result.Err)
	assert.Zero(t, result.Gateway.TickCount)
	assert.Contains(t, result.LogOutput, "nothing to run")
}

func TestNewApp_PanicsOnManifestParityViolation(t *testing.T) {
	badManifest := `
flow "healer" {
  lifecycle {
    plan = "HealerPlan"
  }

  setting "heal_threshold" {
    type    = number
    default = 0.60
  }

  setting "use_bandages" {
    type    = bool
    default = false
  }

  setting "mystery_knob" {
    type    = number
    default = 1
  }
}
`
	require.Panics(t, func() {
		testutil.RunAppTest(t, map[string]string{
			"modules/healer/manifest.hcl": badManifest,
		}, 20*time.Millisecond, nil)
	})
}
