// Package flow implements the task flow state machine that drives one
// automation (mining, crafting, healing) against the gateway.
//
// One Instance is one running flow with its own run state and settings blob.
// All state lives on the instance, never in package globals, so several flows can
// share a loop and tests can drive an instance directly. Each Tick performs a
// bounded amount of work: transitions chain within a tick until the flow
// issues an action, has to wait, or idles.
package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vk/tickflowgo/internal/blobstore"
	"github.com/vk/tickflowgo/internal/ctxlog"
	"github.com/vk/tickflowgo/internal/gateway"
)

// State is the task flow state.
type State int

const (
	// Idle waits for run state and the plan's preconditions.
	Idle State = iota
	// AcquireTarget resolves a target reference through the gateway.
	AcquireTarget
	// Act issues exactly one action per state entry.
	Act
	// AwaitResult polls the in-flight action's outcome every tick.
	AwaitResult
	// Cooldown enforces the minimum inter-action delay.
	Cooldown
	// Stopped is terminal until the instance is started again.
	Stopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AcquireTarget:
		return "acquire_target"
	case Act:
		return "act"
	case AwaitResult:
		return "await_result"
	case Cooldown:
		return "cooldown"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Plan supplies the automation-specific logic for a flow. Implementations
// read their settings from the instance's blob so user edits through the
// panel take effect on the next tick without restarting.
type Plan interface {
	// Ready reports whether preconditions hold (thresholds, required
	// resources). A gateway error here is handled by the flow, not the plan.
	Ready(ctx context.Context, f *Instance) (bool, error)

	// Criteria describes the target the flow should acquire next.
	Criteria(f *Instance) gateway.Criteria

	// Actions returns the action chain for one acquired target. Feature
	// flags gate optional entries (e.g. a travel shortcut before the main
	// action) without changing the outer state shape. An empty chain sends
	// the flow back to Idle.
	Actions(f *Instance, target gateway.TargetRef) []gateway.ActionID
}

// OutcomeHandler is an optional Plan extension for flows that define a
// recovery branch on specific outcomes (e.g. switching mining spots after a
// timeout). Without it, TimedOut is treated exactly like Failed.
type OutcomeHandler interface {
	HandleOutcome(f *Instance, action gateway.ActionID, outcome gateway.Outcome)
}

// Observer receives every state transition. Used by the panel to refresh and
// by tests to assert on the exact transition sequence.
type Observer func(flowName string, from, to State)

// Options tune one instance's timing. Zero values pick the defaults.
type Options struct {
	// AwaitTimeout bounds AwaitResult; an elapsed deadline counts as a
	// TimedOut outcome for the in-flight action.
	AwaitTimeout time.Duration
	// Cooldown is the minimum delay between actions.
	Cooldown time.Duration
	// IdleBackoff is the bounded wait before re-trying target acquisition
	// after nothing was found.
	IdleBackoff time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
	// Observer, when set, is notified of every transition.
	Observer Observer
}

const (
	defaultAwaitTimeout = 2 * time.Second
	defaultCooldown     = 1500 * time.Millisecond
	defaultIdleBackoff  = 2 * time.Second
)

// Instance is one running flow: the state machine plus its run state,
// settings blob, and in-flight bookkeeping. It is owned by a single
// cooperative loop; methods are not safe for concurrent use.
type Instance struct {
	id   uuid.UUID
	name string
	plan Plan
	gw   gateway.Gateway
	blob *blobstore.Blob
	opts Options

	state   State
	running bool
	err     error

	target    gateway.TargetRef
	queue     []gateway.ActionID
	curAction gateway.ActionID
	handle    gateway.Handle
	hasHandle bool
	deadline  time.Time

	cooldownUntil time.Time
	idleUntil     time.Time
}

// New builds a stopped instance. Call Start to arm it.
func New(name string, plan Plan, gw gateway.Gateway, blob *blobstore.Blob, opts Options) *Instance {
	if opts.AwaitTimeout <= 0 {
		opts.AwaitTimeout = defaultAwaitTimeout
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = defaultCooldown
	}
	if opts.IdleBackoff <= 0 {
		opts.IdleBackoff = defaultIdleBackoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Instance{
		id:    uuid.New(),
		name:  name,
		plan:  plan,
		gw:    gw,
		blob:  blob,
		opts:  opts,
		state: Stopped,
	}
}

// ID returns the instance's unique id.
func (f *Instance) ID() uuid.UUID { return f.id }

// Name returns the instance name used in logs and panel titles.
func (f *Instance) Name() string { return f.name }

// Blob returns the instance's settings blob.
func (f *Instance) Blob() *blobstore.Blob { return f.blob }

// Gateway returns the gateway the instance acts through, for plan
// precondition checks.
func (f *Instance) Gateway() gateway.Gateway { return f.gw }

// State returns the current flow state.
func (f *Instance) State() State { return f.state }

// Running reports the run state flag.
func (f *Instance) Running() bool { return f.running }

// Err returns the fatal error that stopped the flow, if any.
func (f *Instance) Err() error { return f.err }

// Start arms the flow. Starting a stopped instance clears a previous fatal
// error and resets the machine to Idle.
func (f *Instance) Start() {
	f.running = true
	f.err = nil
	if f.state == Stopped {
		f.to(context.Background(), Idle)
	}
}

// Stop clears the run state flag. The transition to Stopped happens on the
// next Tick: cancellation is cooperative, an in-flight action is abandoned
// rather than interrupted.
func (f *Instance) Stop() {
	f.running = false
}

func (f *Instance) now() time.Time {
	return f.opts.Now()
}

func (f *Instance) to(ctx context.Context, next State) {
	if f.state == next {
		return
	}
	prev := f.state
	f.state = next
	ctxlog.FromContext(ctx).Debug("Flow transition.", "from", prev, "to", next)
	if f.opts.Observer != nil {
		f.opts.Observer(f.name, prev, next)
	}
}

// releaseHandle forgets the in-flight action. The handle is never polled
// again; at most one action is in flight per instance at any time.
func (f *Instance) releaseHandle() {
	f.handle = ""
	f.hasHandle = false
	f.curAction = ""
}

// fail records an unexpected failure and stops the flow safely rather than
// looping on a broken state.
func (f *Instance) fail(ctx context.Context, err error) {
	ctxlog.FromContext(ctx).Error("Flow stopped on unexpected failure.", "state", f.state, "error", err)
	f.err = err
	f.running = false
	f.releaseHandle()
	f.queue = nil
	f.to(ctx, Stopped)
}

// expectedGatewayErr reports whether an error is one of the narrow failure
// kinds a flow recovers from via cooldown.
func expectedGatewayErr(err error) bool {
	return errors.Is(err, gateway.ErrActionRejected) || errors.Is(err, gateway.ErrDisconnected)
}

// recover handles an expected gateway failure: report, drop the current
// chain, and back off through Cooldown instead of retrying unboundedly.
func (f *Instance) recover(ctx context.Context, op string, err error) {
	ctxlog.FromContext(ctx).Warn("Gateway call failed, backing off.", "op", op, "error", err)
	f.queue = nil
	f.beginCooldown(ctx)
}

func (f *Instance) beginCooldown(ctx context.Context) {
	f.cooldownUntil = f.now().Add(f.opts.Cooldown)
	f.to(ctx, Cooldown)
}

// Tick advances the state machine. Transitions chain within the tick until
// the flow issues an action, has to wait, or idles; the caller still owes
// the gateway its Tick afterwards regardless of what happened here.
func (f *Instance) Tick(ctx context.Context) {
	ctx = ctxlog.WithFlow(ctx, f.name)

	if f.state == Stopped {
		return
	}
	// Run state is re-checked before anything else so an external stop takes
	// effect within one tick, even mid-wait.
	if !f.running {
		f.releaseHandle()
		f.queue = nil
		f.to(ctx, Stopped)
		return
	}

	for {
		switch f.state {
		case Idle:
			if f.now().Before(f.idleUntil) {
				return
			}
			ready, err := f.plan.Ready(ctx, f)
			if err != nil {
				if expectedGatewayErr(err) {
					f.recover(ctx, "readiness check", err)
					return
				}
				f.fail(ctx, fmt.Errorf("readiness check: %w", err))
				return
			}
			if !ready {
				return
			}
			f.to(ctx, AcquireTarget)

		case AcquireTarget:
			target, found, err := f.gw.FindTarget(ctx, f.plan.Criteria(f))
			if err != nil {
				if expectedGatewayErr(err) {
					f.recover(ctx, "find target", err)
					return
				}
				f.fail(ctx, fmt.Errorf("find target: %w", err))
				return
			}
			if !found {
				// Normal outcome: back to Idle after a bounded wait.
				f.idleUntil = f.now().Add(f.opts.IdleBackoff)
				f.to(ctx, Idle)
				return
			}
			f.target = target
			f.queue = f.plan.Actions(f, target)
			if len(f.queue) == 0 {
				f.to(ctx, Idle)
				return
			}
			f.to(ctx, Act)

		case Act:
			if f.hasHandle {
				f.fail(ctx, fmt.Errorf("action %q still in flight entering Act", f.curAction))
				return
			}
			action := f.queue[0]
			f.queue = f.queue[1:]
			handle, err := f.gw.PerformAction(ctx, action, f.target)
			if err != nil {
				if expectedGatewayErr(err) {
					f.recover(ctx, fmt.Sprintf("perform %s", action), err)
					return
				}
				f.fail(ctx, fmt.Errorf("perform %s: %w", action, err))
				return
			}
			f.handle = handle
			f.hasHandle = true
			f.curAction = action
			f.deadline = f.now().Add(f.opts.AwaitTimeout)
			f.to(ctx, AwaitResult)
			// One action issued: yield until the outcome arrives.
			return

		case AwaitResult:
			outcome, done := f.gw.Poll(f.handle)
			if !done {
				if f.now().Before(f.deadline) {
					return
				}
				outcome = gateway.OutcomeTimedOut
			}
			action := f.curAction
			f.releaseHandle()
			f.settleOutcome(ctx, action, outcome)

		case Cooldown:
			if f.now().Before(f.cooldownUntil) {
				return
			}
			if len(f.queue) > 0 {
				f.to(ctx, Act)
				continue
			}
			f.to(ctx, AcquireTarget)

		case Stopped:
			return
		}
	}
}

// settleOutcome finishes one awaited action. A non-success outcome drops the
// rest of the chain; the same handle is never retried.
func (f *Instance) settleOutcome(ctx context.Context, action gateway.ActionID, outcome gateway.Outcome) {
	logger := ctxlog.FromContext(ctx)
	if handler, ok := f.plan.(OutcomeHandler); ok {
		handler.HandleOutcome(f, action, outcome)
	}
	switch outcome {
	case gateway.OutcomeSuccess:
		logger.Debug("Action completed.", "action", action)
	case gateway.OutcomeTimedOut:
		logger.Warn("Action timed out, abandoning.", "action", action)
		f.queue = nil
	default:
		logger.Warn("Action failed.", "action", action)
		f.queue = nil
	}
	f.beginCooldown(ctx)
}
