package flow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tickflowgo/internal/blobstore"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/vk/tickflowgo/internal/gateway/gatewaytest"
)

// stubPlan lets each test script the plan hooks directly.
type stubPlan struct {
	ready    func(ctx context.Context, f *Instance) (bool, error)
	criteria gateway.Criteria
	actions  func(f *Instance, target gateway.TargetRef) []gateway.ActionID
	outcomes []gateway.Outcome
}

func (p *stubPlan) Ready(ctx context.Context, f *Instance) (bool, error) {
	if p.ready == nil {
		return true, nil
	}
	return p.ready(ctx, f)
}

func (p *stubPlan) Criteria(f *Instance) gateway.Criteria {
	return p.criteria
}

func (p *stubPlan) Actions(f *Instance, target gateway.TargetRef) []gateway.ActionID {
	if p.actions == nil {
		return []gateway.ActionID{"act"}
	}
	return p.actions(f, target)
}

func (p *stubPlan) HandleOutcome(f *Instance, action gateway.ActionID, outcome gateway.Outcome) {
	p.outcomes = append(p.outcomes, outcome)
}

// fakeClock is a manual clock shared between test and instance.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type transition struct{ from, to State }

func newTestInstance(t *testing.T, plan Plan, fake *gatewaytest.Fake, clock *fakeClock) (*Instance, *[]transition) {
	t.Helper()
	var seen []transition
	blob := blobstore.New(1)
	inst := New("test", plan, fake, blob, Options{
		AwaitTimeout: 2 * time.Second,
		Cooldown:     time.Second,
		IdleBackoff:  time.Second,
		Now:          clock.now,
		Observer: func(name string, from, to State) {
			seen = append(seen, transition{from, to})
		},
	})
	return inst, &seen
}

func TestIdleUntilStarted(t *testing.T) {
	fake := gatewaytest.New()
	inst, _ := newTestInstance(t, &stubPlan{}, fake, &fakeClock{})

	inst.Tick(context.Background())
	assert.Equal(t, Stopped, inst.State())
	assert.Empty(t, fake.Actions)
}

func TestHealScenarioActsWithinOneTick(t *testing.T) {
	// Health ratio 0.55 against threshold 0.60: the flow must go
	// Idle → AcquireTarget → Act within a single tick and issue exactly one
	// heal action.
	fake := gatewaytest.New()
	fake.SetVitals(gateway.Vitals{Hits: 55, MaxHits: 100})
	fake.QueueTarget("injured_self", gateway.TargetRef{Serial: 0x1})

	plan := &stubPlan{
		ready: func(ctx context.Context, f *Instance) (bool, error) {
			v, err := f.gw.Vitals(ctx)
			if err != nil {
				return false, err
			}
			return v.HealthRatio() < 0.60, nil
		},
		criteria: gateway.Criteria{Kind: "injured_self"},
		actions: func(f *Instance, target gateway.TargetRef) []gateway.ActionID {
			return []gateway.ActionID{"heal_self"}
		},
	}
	clock := &fakeClock{}
	inst, seen := newTestInstance(t, plan, fake, clock)
	inst.Start()

	inst.Tick(context.Background())

	require.Len(t, fake.Actions, 1)
	assert.Equal(t, gateway.ActionID("heal_self"), fake.Actions[0].Action)
	assert.Equal(t, AwaitResult, inst.State())
	assert.Equal(t, []transition{
		{Stopped, Idle},
		{Idle, AcquireTarget},
		{AcquireTarget, Act},
		{Act, AwaitResult},
	}, *seen)
}

func TestAtMostOneActionInFlight(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("x", gateway.TargetRef{Serial: 0x2})
	fake.ScriptOutcome(gateway.OutcomeSuccess, 3) // pending for 3 polls

	clock := &fakeClock{}
	inst, _ := newTestInstance(t, &stubPlan{criteria: gateway.Criteria{Kind: "x"}}, fake, clock)
	inst.Start()

	for i := 0; i < 5; i++ {
		inst.Tick(context.Background())
		require.LessOrEqual(t, fake.InFlight(), 1, "tick %d", i)
	}
	require.Len(t, fake.Actions, 1, "no second action while the first is pending")
}

func TestStopDuringAwaitStopsWithinOneTick(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("x", gateway.TargetRef{Serial: 0x3})
	fake.ScriptOutcome(gateway.OutcomeSuccess, 100) // never completes in this test

	clock := &fakeClock{}
	inst, _ := newTestInstance(t, &stubPlan{criteria: gateway.Criteria{Kind: "x"}}, fake, clock)
	inst.Start()

	inst.Tick(context.Background())
	require.Equal(t, AwaitResult, inst.State())
	handle := fake.Actions[0].Handle
	pollsBefore := fake.PollAttempts[handle]

	inst.Stop()
	inst.Tick(context.Background())

	assert.Equal(t, Stopped, inst.State())
	assert.Equal(t, pollsBefore, fake.PollAttempts[handle],
		"stop must not wait on or poll the outstanding action")
}

func TestTimedOutGoesCooldownThenAcquireWithoutRetry(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("x", gateway.TargetRef{Serial: 0x4})
	fake.QueueTarget("x", gateway.TargetRef{Serial: 0x5})
	fake.ScriptOutcome(gateway.OutcomeTimedOut, 0)

	clock := &fakeClock{t: time.Unix(1000, 0)}
	inst, seen := newTestInstance(t, &stubPlan{criteria: gateway.Criteria{Kind: "x"}}, fake, clock)
	inst.Start()

	inst.Tick(context.Background()) // issue action
	timedOutHandle := fake.Actions[0].Handle
	inst.Tick(context.Background()) // poll: timed out -> cooldown
	require.Equal(t, Cooldown, inst.State())

	clock.advance(2 * time.Second)
	inst.Tick(context.Background()) // cooldown elapsed -> acquire -> act again

	assert.Contains(t, *seen, transition{Cooldown, AcquireTarget})
	require.Len(t, fake.Actions, 2)
	assert.NotEqual(t, timedOutHandle, fake.Actions[1].Handle)
	assert.Zero(t, fake.ReleasedPolls(timedOutHandle), "a settled handle is never polled again")
}

func TestAwaitDeadlineCountsAsTimeout(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("x", gateway.TargetRef{Serial: 0x6})
	fake.ScriptOutcome(gateway.OutcomeSuccess, 100) // host never answers in time

	clock := &fakeClock{t: time.Unix(1000, 0)}
	plan := &stubPlan{criteria: gateway.Criteria{Kind: "x"}}
	inst, _ := newTestInstance(t, plan, fake, clock)
	inst.Start()

	inst.Tick(context.Background())
	require.Equal(t, AwaitResult, inst.State())

	clock.advance(2500 * time.Millisecond) // past the 2s await timeout
	inst.Tick(context.Background())

	assert.Equal(t, Cooldown, inst.State())
	require.Len(t, plan.outcomes, 1)
	assert.Equal(t, gateway.OutcomeTimedOut, plan.outcomes[0])
}

func TestNoTargetIdlesWithBoundedBackoff(t *testing.T) {
	fake := gatewaytest.New()
	clock := &fakeClock{t: time.Unix(1000, 0)}
	inst, _ := newTestInstance(t, &stubPlan{criteria: gateway.Criteria{Kind: "nothing"}}, fake, clock)
	inst.Start()

	inst.Tick(context.Background())
	assert.Equal(t, Idle, inst.State())

	// Inside the backoff window the flow must not spin on FindTarget.
	findsBefore := fake.FindCalls
	inst.Tick(context.Background())
	assert.Equal(t, Idle, inst.State())
	assert.Equal(t, findsBefore, fake.FindCalls)

	// After the backoff it tries again.
	fake.QueueTarget("nothing", gateway.TargetRef{Serial: 0x7})
	clock.advance(1500 * time.Millisecond)
	inst.Tick(context.Background())
	assert.Equal(t, AwaitResult, inst.State())
}

func TestFlagGatedActionChain(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("ore", gateway.TargetRef{Serial: 0x8})

	plan := &stubPlan{
		criteria: gateway.Criteria{Kind: "ore"},
		actions: func(f *Instance, target gateway.TargetRef) []gateway.ActionID {
			chain := []gateway.ActionID{}
			if f.Blob().Bool("use_sacred_journey", false) {
				chain = append(chain, "sacred_journey")
			}
			return append(chain, "mine")
		},
	}
	clock := &fakeClock{t: time.Unix(1000, 0)}
	inst, _ := newTestInstance(t, plan, fake, clock)
	inst.Blob().Set("use_sacred_journey", true)
	inst.Start()

	inst.Tick(context.Background()) // issues the travel shortcut first
	require.Len(t, fake.Actions, 1)
	assert.Equal(t, gateway.ActionID("sacred_journey"), fake.Actions[0].Action)

	inst.Tick(context.Background()) // completes -> cooldown
	clock.advance(2 * time.Second)
	inst.Tick(context.Background()) // cooldown elapsed -> next chained action

	require.Len(t, fake.Actions, 2)
	assert.Equal(t, gateway.ActionID("mine"), fake.Actions[1].Action)
}

func TestExpectedGatewayErrorBacksOff(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("x", gateway.TargetRef{Serial: 0x9})
	fake.SetActionError(fmt.Errorf("busy: %w", gateway.ErrActionRejected))

	clock := &fakeClock{t: time.Unix(1000, 0)}
	inst, _ := newTestInstance(t, &stubPlan{criteria: gateway.Criteria{Kind: "x"}}, fake, clock)
	inst.Start()

	inst.Tick(context.Background())
	assert.Equal(t, Cooldown, inst.State())
	assert.True(t, inst.Running(), "expected failures do not stop the flow")
	assert.NoError(t, inst.Err())
}

func TestUnknownFailureStopsTheFlow(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("x", gateway.TargetRef{Serial: 0xA})
	fake.SetActionError(errors.New("segfault in host bridge"))

	clock := &fakeClock{t: time.Unix(1000, 0)}
	inst, _ := newTestInstance(t, &stubPlan{criteria: gateway.Criteria{Kind: "x"}}, fake, clock)
	inst.Start()

	inst.Tick(context.Background())
	assert.Equal(t, Stopped, inst.State())
	assert.False(t, inst.Running())
	require.Error(t, inst.Err())
	assert.Contains(t, inst.Err().Error(), "segfault")
}

func TestStartAfterFatalErrorResets(t *testing.T) {
	fake := gatewaytest.New()
	fake.QueueTarget("x", gateway.TargetRef{Serial: 0xB})
	fake.SetActionError(errors.New("boom"))

	clock := &fakeClock{t: time.Unix(1000, 0)}
	inst, _ := newTestInstance(t, &stubPlan{criteria: gateway.Criteria{Kind: "x"}}, fake, clock)
	inst.Start()
	inst.Tick(context.Background())
	require.Equal(t, Stopped, inst.State())

	fake.SetActionError(nil)
	inst.Start()
	assert.Equal(t, Idle, inst.State())
	assert.NoError(t, inst.Err())
}
