// Package engine drives the cooperative tick loop that advances every flow,
// reconciles every panel, and pumps the gateway bridge exactly once per
// iteration.
package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/vk/tickflowgo/internal/blobstore"
	"github.com/vk/tickflowgo/internal/ctxlog"
	"github.com/vk/tickflowgo/internal/flow"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/vk/tickflowgo/internal/panel"
)

// runningControl is the reserved panel control name bound to the flow's
// start/stop state rather than a settings blob entry.
const runningControl = "running"

// Unit bundles one configured profile's flow instance with its panel and
// persisted settings.
type Unit struct {
	Name  string
	Key   string
	Flow  *flow.Instance
	Panel *panel.Controller
	Blob  *blobstore.Blob
}

// Options configures the engine loop.
type Options struct {
	// TickInterval is the pacing between loop iterations.
	TickInterval time.Duration
}

const defaultTickInterval = 100 * time.Millisecond

// Engine owns the loop. All units are advanced from a single goroutine, so
// flows and panels never need their own locking.
type Engine struct {
	gw    gateway.Gateway
	store blobstore.Store
	units []*Unit
	tick  time.Duration
}

// New creates an engine over the given units.
func New(gw gateway.Gateway, store blobstore.Store, opts Options, units ...*Unit) *Engine {
	tick := opts.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	return &Engine{gw: gw, store: store, units: units, tick: tick}
}

// Units exposes the engine's units, primarily for status reporting.
func (e *Engine) Units() []*Unit {
	return e.units
}

// Run executes the loop until the context is cancelled, then shuts down
// cooperatively: flows are stopped, panels disposed, and dirty settings
// flushed.
func (e *Engine) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("🚀 Engine loop started.", "units", len(e.units), "tick_interval", e.tick.String())

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		e.step(ctx)

		select {
		case <-ctx.Done():
			return e.shutdown(context.WithoutCancel(ctx))
		case <-ticker.C:
		}
	}
}

// step runs a single loop iteration. The gateway is pumped exactly once at
// the end regardless of what the units did.
func (e *Engine) step(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	for _, u := range e.units {
		uCtx := ctxlog.WithFlow(ctx, u.Name)
		u.Flow.Tick(uCtx)
		e.tickPanel(uCtx, u)
		e.persist(uCtx, u)
	}

	if err := e.gw.Tick(ctx); err != nil {
		logger.Warn("Gateway tick failed.", "error", err)
	}
}

// tickPanel applies any edits the user made since the last iteration, then
// reconciles the panel. Edits are pulled first: reconciling can rebuild the
// panel under a new id, and edits still queued against the old id would be
// lost with it.
func (e *Engine) tickPanel(ctx context.Context, u *Unit) {
	if u.Panel == nil {
		return
	}
	logger := ctxlog.FromContext(ctx)

	values, changed, err := u.Panel.ReadValues(ctx)
	if err != nil {
		logger.Warn("Panel read failed.", "error", err)
	} else if changed {
		e.applyControls(ctx, u, values)
	}

	if err := u.Panel.Tick(ctx); err != nil {
		logger.Warn("Panel reconcile failed.", "error", err)
	}
}

// applyControls maps edited panel controls back onto the unit: the reserved
// running control toggles the flow, everything else writes through to the
// settings blob using the stored value's type.
func (e *Engine) applyControls(ctx context.Context, u *Unit, values gateway.ControlValues) {
	logger := ctxlog.FromContext(ctx)

	for name, raw := range values {
		if name == runningControl {
			on, err := strconv.ParseBool(raw)
			if err != nil {
				logger.Warn("Ignoring malformed running control value.", "value", raw)
				continue
			}
			if on {
				u.Flow.Start()
			} else {
				u.Flow.Stop()
			}
			continue
		}

		current, ok := u.Blob.Get(name)
		if !ok {
			logger.Debug("Panel control has no matching setting, ignoring.", "control", name)
			continue
		}

		switch current.(type) {
		case bool:
			v, err := strconv.ParseBool(raw)
			if err != nil {
				logger.Warn("Ignoring malformed boolean control value.", "control", name, "value", raw)
				continue
			}
			u.Blob.Set(name, v)
		case float64:
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				logger.Warn("Ignoring malformed numeric control value.", "control", name, "value", raw)
				continue
			}
			u.Blob.Set(name, v)
		default:
			u.Blob.Set(name, raw)
		}
		logger.Debug("Applied panel edit to settings.", "control", name, "value", raw)
	}
}

// persist flushes the unit's blob when a tick left it dirty.
func (e *Engine) persist(ctx context.Context, u *Unit) {
	if !u.Blob.Dirty() {
		return
	}
	if err := e.store.Save(ctx, u.Key, u.Blob); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to persist settings.", "key", u.Key, "error", err)
	}
}

// shutdown stops every flow, gives each one final tick to release in-flight
// work, disposes panels, and flushes dirty settings.
func (e *Engine) shutdown(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Engine loop stopping.")

	for _, u := range e.units {
		uCtx := ctxlog.WithFlow(ctx, u.Name)
		u.Flow.Stop()
		u.Flow.Tick(uCtx)
		if u.Panel != nil {
			if err := u.Panel.Dispose(uCtx); err != nil {
				logger.Warn("Failed to dispose panel.", "unit", u.Name, "error", err)
			}
		}
		e.persist(uCtx, u)
	}

	if err := e.gw.Tick(ctx); err != nil {
		logger.Warn("Final gateway tick failed.", "error", err)
	}
	logger.Info("✅ Engine loop stopped.")
	return nil
}
