package gateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/vk/tickflowgo/internal/gateway/gatewaytest"
)

func TestStrict_DeniesUngrantedCapability(t *testing.T) {
	fake := gatewaytest.New()
	gw, err := gateway.NewStrict(fake, gateway.CapVitals)
	require.NoError(t, err)

	_, _, err = gw.FindTarget(context.Background(), gateway.Criteria{Kind: "mining_tile"})
	var denied *gateway.ErrCapabilityDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, gateway.CapFindTarget, denied.Capability)
	assert.Zero(t, fake.FindCalls, "denied call never reaches the transport")
}

func TestStrict_DeniedPollDeliversFailure(t *testing.T) {
	fake := gatewaytest.New()
	gw, err := gateway.NewStrict(fake, gateway.CapVitals)
	require.NoError(t, err)

	// The denial must read as a delivered failure, not a pending action that
	// would spin until the await timeout.
	outcome, done := gw.Poll(gateway.Handle("h-1"))
	assert.True(t, done)
	assert.Equal(t, gateway.OutcomeFailed, outcome)
	assert.Zero(t, fake.PollAttempts[gateway.Handle("h-1")], "denied poll never reaches the transport")
}

func TestStrict_GrantedCapabilityPassesThrough(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("self", gateway.TargetRef{Serial: 0x1})

	gw, err := gateway.NewStrict(fake, gateway.CapFindTarget)
	require.NoError(t, err)

	ref, found, err := gw.FindTarget(context.Background(), gateway.Criteria{Kind: "self"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, gateway.Serial(0x1), ref.Serial)
}

func TestStrict_TickIsAlwaysAllowed(t *testing.T) {
	fake := gatewaytest.New()
	gw, err := gateway.NewStrict(fake, gateway.CapVitals)
	require.NoError(t, err)

	require.NoError(t, gw.Tick(context.Background()))
	assert.Equal(t, 1, fake.TickCount)
}

func TestStrict_EmptyGrantMeansEverything(t *testing.T) {
	fake := gatewaytest.New()
	gw, err := gateway.NewStrict(fake)
	require.NoError(t, err)

	_, err = gw.Vitals(context.Background())
	require.NoError(t, err)
	_, err = gw.OpenPanelIDs(context.Background())
	require.NoError(t, err)
}

func TestStrict_RejectsUnknownGrant(t *testing.T) {
	_, err := gateway.NewStrict(gatewaytest.New(), gateway.Capability("teleport"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}
