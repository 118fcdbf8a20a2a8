// Package gateway defines the capability contract between the automation
// engine and the host game client's scripting surface.
//
// The engine never talks to the client directly; every observation and every
// action goes through the Gateway interface. The method set is fixed and
// enumerated (see caps.go); the engine must not grow ad-hoc client calls
// outside this contract.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Serial is an opaque identifier for a game object instance (target, tool,
// container). A zero serial never refers to a real object.
type Serial uint32

// String renders the serial in the hex form players see in client journals.
func (s Serial) String() string {
	return fmt.Sprintf("0x%08X", uint32(s))
}

// IsZero reports whether the serial refers to no object.
func (s Serial) IsZero() bool {
	return s == 0
}

// TargetRef is a resolved reference to a game object. It becomes invalid when
// the underlying object disappears, so it must be re-validated before use
// rather than cached indefinitely.
type TargetRef struct {
	Serial Serial
	// Graphic is the object's art id as reported by the host, 0 when the
	// host did not include one.
	Graphic uint16
}

// IsZero reports whether the reference points at no object.
func (t TargetRef) IsZero() bool {
	return t.Serial.IsZero()
}

// Criteria describes what kind of object a flow wants the host to discover.
type Criteria struct {
	// Kind is the discovery class understood by the host, e.g. "mining_tile",
	// "injured_mobile", "crafting_tool".
	Kind string
	// Graphics optionally restricts discovery to specific item graphics.
	Graphics []uint16
	// Range is the maximum tile distance from the player; 0 means host default.
	Range int
	// Container optionally scopes the search to one container's contents.
	Container Serial
}

// ActionID names a client-side action the host knows how to perform, e.g.
// "mine", "heal_self", "craft_item", "recall", "sacred_journey".
type ActionID string

// Handle identifies one in-flight action issued through PerformAction.
type Handle string

// Outcome is the terminal result of an awaited action.
type Outcome int

const (
	// OutcomeSuccess means the action completed as requested.
	OutcomeSuccess Outcome = iota
	// OutcomeTimedOut means the caller-supplied deadline elapsed before the
	// host reported completion.
	OutcomeTimedOut
	// OutcomeFailed means the host reported the action as failed.
	OutcomeFailed
)

// String implements fmt.Stringer for log output.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Vitals is a snapshot of the player's core attributes, read once per use and
// never cached across ticks by callers.
type Vitals struct {
	Hits      int
	MaxHits   int
	Stamina   int
	Mana      int
	Weight    int
	MaxWeight int
}

// HealthRatio returns hits as a fraction of max hits, 1.0 when max is unknown.
func (v Vitals) HealthRatio() float64 {
	if v.MaxHits <= 0 {
		return 1.0
	}
	return float64(v.Hits) / float64(v.MaxHits)
}

// PanelID identifies one open UI panel (gump) on the host client.
type PanelID uint32

// ControlKind enumerates the panel control types the host can render.
type ControlKind string

const (
	ControlLabel    ControlKind = "label"
	ControlCheckbox ControlKind = "checkbox"
	ControlButton   ControlKind = "button"
	ControlDropdown ControlKind = "dropdown"
)

// Control is one interactive or static element of a panel layout.
type Control struct {
	Kind    ControlKind
	Name    string
	Label   string
	Value   string
	Options []string
}

// Layout is the full renderable content of a panel. Two layouts with equal
// content must render observably identical panels on the host.
type Layout struct {
	Title    string
	Controls []Control
}

// ControlValues maps control names to the values last read back from an open
// panel. An empty map means the user changed nothing.
type ControlValues map[string]string

// Sentinel errors for the expected failure kinds a flow handles locally.
// Anything not matching these is treated as an unknown failure and stops the
// flow rather than being retried.
var (
	// ErrDisconnected reports that the bridge to the host client is down.
	ErrDisconnected = errors.New("gateway: host client disconnected")
	// ErrActionRejected reports that the host refused to start the action
	// (busy, rate-limited, missing resource). Flows recover via cooldown.
	ErrActionRejected = errors.New("gateway: action rejected by host")
	// ErrUnknownHandle reports a Poll against a handle the gateway has
	// already released.
	ErrUnknownHandle = errors.New("gateway: unknown action handle")
)

// Gateway is the capability interface the engine consumes. Implementations
// perform no implicit retries; retry policy lives entirely in the task flow.
//
// All methods are called from the single cooperative loop, so implementations
// do not need to be safe for concurrent callers (but may be).
type Gateway interface {
	// FindTarget resolves a target matching the criteria. A false second
	// return means nothing matched, which is a normal outcome, not an error.
	FindTarget(ctx context.Context, c Criteria) (TargetRef, bool, error)

	// PerformAction starts one action against a target and returns a handle
	// for completion polling. At most one action per flow instance may be in
	// flight; the gateway does not enforce this, the flow does.
	PerformAction(ctx context.Context, action ActionID, target TargetRef) (Handle, error)

	// Poll reports the outcome of an in-flight action. The second return is
	// false while the action is still pending. Once an outcome has been
	// delivered the handle is released and must not be polled again.
	Poll(handle Handle) (Outcome, bool)

	// Vitals returns the player's current attribute snapshot.
	Vitals(ctx context.Context) (Vitals, error)

	// Tick lets the host deliver pending events and callbacks. This is the
	// cooperative yield point and must be invoked on every loop iteration
	// regardless of state.
	Tick(ctx context.Context) error

	// CreatePanel renders a new panel from the layout and returns its id.
	CreatePanel(ctx context.Context, layout Layout) (PanelID, error)

	// ClosePanel disposes an open panel. Closing an already-closed panel is
	// not an error.
	ClosePanel(ctx context.Context, id PanelID) error

	// OpenPanelIDs enumerates the panels currently open on the host. Used as
	// the liveness probe for detecting externally-closed panels.
	OpenPanelIDs(ctx context.Context) ([]PanelID, error)

	// ReadPanel pulls the current control values from an open panel. A false
	// second return means the panel reported no changes since the last read.
	ReadPanel(ctx context.Context, id PanelID) (ControlValues, bool, error)
}
