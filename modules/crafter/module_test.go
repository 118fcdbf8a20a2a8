package crafter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/tickflowgo/internal/blobstore"
	"github.com/vk/tickflowgo/internal/flow"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/vk/tickflowgo/internal/gateway/gatewaytest"
)

type stubClock struct{ t time.Time }

func (c *stubClock) now() time.Time          { return c.t }
func (c *stubClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newCrafterInstance(t *testing.T, fake *gatewaytest.Fake, blob *blobstore.Blob) (*flow.Instance, *stubClock) {
	t.Helper()
	clock := &stubClock{t: time.Unix(1700000000, 0)}
	inst := flow.New("crafter/test", NewPlan(), fake, blob, flow.Options{
		AwaitTimeout: 2 * time.Second,
		Cooldown:     time.Second,
		IdleBackoff:  time.Second,
		Now:          clock.now,
	})
	inst.Start()
	return inst, clock
}

func crafterBlob() *blobstore.Blob {
	blob := blobstore.New(1)
	blob.Set("tool_graphic", 0x0FBB)
	blob.Set("recipe", "dagger")
	blob.Set("stock_container_serial", "0x42003344")
	blob.Set("use_tool_crafting", false)
	blob.Set("session_crafts", 0)
	blob.MarkTransient("session_crafts")
	return blob
}

func actionNames(fake *gatewaytest.Fake) []gateway.ActionID {
	names := make([]gateway.ActionID, 0, len(fake.Actions))
	for _, a := range fake.Actions {
		names = append(names, a.Action)
	}
	return names
}

func TestCraftsAndCountsSuccesses(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("crafting_tool", gateway.TargetRef{Serial: 0x3, Graphic: 0x0FBB})

	blob := crafterBlob()
	inst, _ := newCrafterInstance(t, fake, blob)
	ctx := context.Background()

	inst.Tick(ctx)
	require.Len(t, fake.Actions, 1)
	assert.Equal(t, gateway.ActionID("craft_item"), fake.Actions[0].Action)

	inst.Tick(ctx)
	assert.Equal(t, 1, int(blob.Float("session_crafts", 0)))
}

func TestToolCraftingChainsSelectBeforeCraft(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("crafting_tool", gateway.TargetRef{Serial: 0x3})

	blob := crafterBlob()
	blob.Set("use_tool_crafting", true)

	inst, clock := newCrafterInstance(t, fake, blob)
	ctx := context.Background()

	inst.Tick(ctx)
	inst.Tick(ctx) // select_tool completes, cooldown starts
	clock.advance(2 * time.Second)
	inst.Tick(ctx) // chain continues with the craft

	assert.Equal(t, []gateway.ActionID{"select_tool", "craft_item"}, actionNames(fake))
}

func TestFailedCraftTriggersRestockTrip(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("crafting_tool", gateway.TargetRef{Serial: 0x3})
	fake.QueueTarget("stock_container", gateway.TargetRef{Serial: 0x42003344})
	fake.QueueTarget("crafting_tool", gateway.TargetRef{Serial: 0x3})
	fake.ScriptOutcome(gateway.OutcomeFailed, 0)

	blob := crafterBlob()
	inst, clock := newCrafterInstance(t, fake, blob)
	ctx := context.Background()

	// Craft fails: materials ran out.
	inst.Tick(ctx)
	inst.Tick(ctx)
	clock.advance(2 * time.Second)

	// Restock from the container, then resume crafting.
	inst.Tick(ctx)
	inst.Tick(ctx)
	clock.advance(2 * time.Second)
	inst.Tick(ctx)

	assert.Equal(t, []gateway.ActionID{"craft_item", "restock_materials", "craft_item"}, actionNames(fake))
	assert.Zero(t, int(blob.Float("session_crafts", 0)), "failed crafts are not counted")
}
