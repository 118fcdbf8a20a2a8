// Package panel manages the lifecycle of a remote UI panel (gump) on the
// host client: create, rebuild on content drift, stale detection when the
// user closes it externally, and disposal on stop.
package panel

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/tickflowgo/internal/ctxlog"
	"github.com/vk/tickflowgo/internal/gateway"
)

// State is the panel lifecycle state.
type State int

const (
	// Closed means no panel is on the host and no descriptor is held.
	Closed State = iota
	// Open means a panel exists and its descriptor is live.
	Open
	// Stale means the descriptor's id is no longer among the host's open
	// panels, meaning the user closed it externally. Treated as "no panel".
	Stale
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case Stale:
		return "stale"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Descriptor identifies the currently open panel plus the content it was
// rendered from. It exists only while the panel is open.
type Descriptor struct {
	ID     gateway.PanelID
	Layout gateway.Layout
}

// Renderer produces the panel layout from the owning flow's current flags
// and run state. It is called at most once per tick.
type Renderer func() gateway.Layout

// Controller drives one panel through Closed → Open → Stale → Closed. It is
// owned by a single cooperative loop and performs a bounded amount of work
// per Tick.
type Controller struct {
	gw     gateway.Gateway
	render Renderer
	state  State
	desc   *Descriptor
}

// NewController builds a controller in the Closed state.
func NewController(gw gateway.Gateway, render Renderer) *Controller {
	return &Controller{gw: gw, render: render, state: Closed}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Descriptor returns a copy of the live descriptor, or false when no panel
// is open.
func (c *Controller) Descriptor() (Descriptor, bool) {
	if c.state != Open || c.desc == nil {
		return Descriptor{}, false
	}
	return *c.desc, true
}

// Tick performs the controller's per-iteration work: probe liveness, then
// reconcile the displayed content with the rendered layout. Rebuilding an
// already-correct panel is a no-op, so repeated ticks with unchanged content
// are idempotent.
func (c *Controller) Tick(ctx context.Context) error {
	if c.state == Open {
		if err := c.probe(ctx); err != nil {
			return err
		}
	}
	return c.reconcile(ctx)
}

// probe checks that the descriptor's id is still among the host's open
// panels. A vanished id moves the controller to Stale, an expected event
// rather than an error.
func (c *Controller) probe(ctx context.Context) error {
	ids, err := c.gw.OpenPanelIDs(ctx)
	if err != nil {
		return fmt.Errorf("panel liveness probe: %w", err)
	}
	for _, id := range ids {
		if c.desc != nil && id == c.desc.ID {
			return nil
		}
	}
	ctxlog.FromContext(ctx).Debug("Panel closed externally.", "panel_id", c.desc.ID)
	c.desc = nil
	c.state = Stale
	return nil
}

// reconcile creates or rebuilds the panel so the displayed content matches
// the rendered layout.
func (c *Controller) reconcile(ctx context.Context) error {
	want := c.render()

	switch c.state {
	case Open:
		if reflect.DeepEqual(c.desc.Layout, want) {
			return nil
		}
		// Content drifted: dispose and recreate with updated content.
		if err := c.gw.ClosePanel(ctx, c.desc.ID); err != nil {
			return fmt.Errorf("panel rebuild close: %w", err)
		}
		c.desc = nil
		c.state = Closed
		return c.create(ctx, want)
	case Stale:
		// The user closed it; do not force it back open. Stale clears on
		// Dispose or on an explicit Reopen.
		return nil
	default:
		return c.create(ctx, want)
	}
}

func (c *Controller) create(ctx context.Context, layout gateway.Layout) error {
	id, err := c.gw.CreatePanel(ctx, layout)
	if err != nil {
		return fmt.Errorf("panel create: %w", err)
	}
	c.desc = &Descriptor{ID: id, Layout: layout}
	c.state = Open
	ctxlog.FromContext(ctx).Debug("Panel created.", "panel_id", id, "controls", len(layout.Controls))
	return nil
}

// Reopen clears a Stale state so the next Tick recreates the panel. Callers
// use it when the user asks for the panel back (e.g. a hotkey).
func (c *Controller) Reopen() {
	if c.state == Stale {
		c.state = Closed
	}
}

// ReadValues pulls the control values once. Against a Stale or Closed panel
// it reports "no changes" rather than an error.
func (c *Controller) ReadValues(ctx context.Context) (gateway.ControlValues, bool, error) {
	if c.state != Open || c.desc == nil {
		return nil, false, nil
	}
	values, changed, err := c.gw.ReadPanel(ctx, c.desc.ID)
	if err != nil {
		return nil, false, fmt.Errorf("panel read: %w", err)
	}
	return values, changed, nil
}

// Dispose releases the panel and its descriptor. Safe to call in any state.
func (c *Controller) Dispose(ctx context.Context) error {
	if c.desc != nil {
		if err := c.gw.ClosePanel(ctx, c.desc.ID); err != nil {
			return fmt.Errorf("panel dispose: %w", err)
		}
	}
	c.desc = nil
	c.state = Closed
	return nil
}
