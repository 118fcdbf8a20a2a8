package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vk/tickflowgo/internal/gateway"
)

func TestTargetFromWire(t *testing.T) {
	ref := targetFromWire(map[string]any{"serial": float64(0x40012A5F), "graphic": float64(0x53B)})
	assert.Equal(t, gateway.Serial(0x40012A5F), ref.Serial)
	assert.Equal(t, uint16(0x53B), ref.Graphic)

	// A host that omits the graphic still yields a usable reference.
	bare := targetFromWire(map[string]any{"serial": float64(0x2)})
	assert.Equal(t, gateway.Serial(0x2), bare.Serial)
	assert.Zero(t, bare.Graphic)
}

func TestOutcomeFromWire(t *testing.T) {
	assert.Equal(t, gateway.OutcomeSuccess, outcomeFromWire("success"))
	assert.Equal(t, gateway.OutcomeTimedOut, outcomeFromWire("timeout"))
	assert.Equal(t, gateway.OutcomeFailed, outcomeFromWire("failed"))
	assert.Equal(t, gateway.OutcomeFailed, outcomeFromWire("gibberish"))
}

func TestBridgeErrorMapsSentinels(t *testing.T) {
	assert.ErrorIs(t, bridgeError("disconnected"), gateway.ErrDisconnected)
	assert.ErrorIs(t, bridgeError("rejected"), gateway.ErrActionRejected)
	assert.NotErrorIs(t, bridgeError("out of mana"), gateway.ErrActionRejected)
	assert.EqualError(t, bridgeError("out of mana"), "bridge call failed: out of mana")
}

func TestPayloadHelpersTolerateMissingKeys(t *testing.T) {
	m := map[string]any{"serial": float64(0x40012A5F), "found": true, "reason": "busy"}

	assert.Equal(t, float64(0x40012A5F), num(m, "serial"))
	assert.Zero(t, num(m, "absent"))
	assert.True(t, boolean(m, "found"))
	assert.False(t, boolean(m, "absent"))
	assert.Equal(t, "busy", str(m, "reason"))
	assert.Empty(t, str(m, "absent"))
}
