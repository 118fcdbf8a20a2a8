// Package remote implements the gateway contract over a socket.io bridge to
// the game client host. Every call is a correlated request/response emit;
// asynchronous action completions arrive as events and are surfaced to the
// loop only at tick boundaries.
package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vk/tickflowgo/internal/ctxlog"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Wire event names shared with the host bridge.
const (
	evCall      = "gateway:call"
	evResult    = "gateway:result"
	evCompleted = "gateway:action_completed"
)

// Options configures the bridge connection.
type Options struct {
	// URL is the full bridge endpoint, e.g. "http://127.0.0.1:5000/socket.io".
	URL string
	// Namespace is the socket.io namespace, "/" when empty.
	Namespace string
	// CallTimeout bounds each request/response round trip.
	CallTimeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

const defaultCallTimeout = 5 * time.Second

type callResult struct {
	data map[string]any
	err  error
}

// Client is the socket.io-backed gateway.Gateway implementation.
type Client struct {
	io          *socket.Socket
	manager     *socket.Manager
	callTimeout time.Duration

	connected atomic.Bool

	mu       sync.Mutex
	pending  map[string]chan callResult
	inbox    []completion
	outcomes map[gateway.Handle]gateway.Outcome
}

type completion struct {
	handle  gateway.Handle
	outcome gateway.Outcome
}

// Dial connects to the bridge and waits for the initial connection before
// returning.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	logger := ctxlog.FromContext(ctx).With("url", opts.URL, "namespace", opts.Namespace)
	logger.Debug("Dialing gateway bridge.")

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bridge URL: %w", err)
	}

	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	sockOpts := socket.DefaultOptions()
	sockOpts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	namespace := opts.Namespace
	if namespace == "" {
		namespace = "/"
	}

	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(namespace, sockOpts)

	c := &Client{
		io:          io,
		manager:     manager,
		callTimeout: callTimeout,
		pending:     make(map[string]chan callResult),
		outcomes:    make(map[gateway.Handle]gateway.Outcome),
	}

	connectErr := make(chan error, 1)

	io.On(types.EventName("connect"), func(...any) {
		c.connected.Store(true)
		logger.Info("✅ Connected to gateway bridge.", "sid", io.Id())
		select {
		case connectErr <- nil:
		default:
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("connect_error: %v", errs[0])
		}
		select {
		case connectErr <- err:
		default:
		}
	})
	io.On(types.EventName("disconnect"), func(...any) {
		c.connected.Store(false)
		logger.Warn("Gateway bridge disconnected.")
		c.failPending(gateway.ErrDisconnected)
	})
	io.On(types.EventName(evResult), func(data ...any) {
		c.dispatchResult(data...)
	})
	io.On(types.EventName(evCompleted), func(data ...any) {
		c.enqueueCompletion(data...)
	})

	io.Connect()

	select {
	case err := <-connectErr:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("bridge connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, ctx.Err()
	}
	return c, nil
}

// Close tears the bridge connection down.
func (c *Client) Close() {
	c.connected.Store(false)
	c.io.Disconnect()
	c.failPending(gateway.ErrDisconnected)
}

// failPending unblocks every in-flight call with the given error.
func (c *Client) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- callResult{err: err}
		delete(c.pending, id)
	}
}

// dispatchResult routes a correlated response back to its waiting caller.
func (c *Client) dispatchResult(data ...any) {
	if len(data) == 0 {
		return
	}
	payload, ok := data[0].(map[string]any)
	if !ok {
		return
	}
	id := str(payload, "id")

	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if !boolean(payload, "ok") {
		ch <- callResult{err: bridgeError(str(payload, "error"))}
		return
	}
	result, _ := payload["data"].(map[string]any)
	ch <- callResult{data: result}
}

// enqueueCompletion buffers an asynchronous action completion until the next
// Tick drains it into the poll cache.
func (c *Client) enqueueCompletion(data ...any) {
	if len(data) == 0 {
		return
	}
	payload, ok := data[0].(map[string]any)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbox = append(c.inbox, completion{
		handle:  gateway.Handle(str(payload, "handle")),
		outcome: outcomeFromWire(str(payload, "outcome")),
	})
}

// call performs one correlated request/response round trip.
func (c *Client) call(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	if !c.connected.Load() {
		return nil, gateway.ErrDisconnected
	}

	id := uuid.NewString()
	ch := make(chan callResult, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	c.io.Emit(evCall, map[string]any{
		"id":     id,
		"method": method,
		"params": params,
	})

	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("bridge call %q timed out after %s", method, c.callTimeout)
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// --- gateway.Gateway implementation ---

// FindTarget resolves a target on the host matching the criteria.
func (c *Client) FindTarget(ctx context.Context, crit gateway.Criteria) (gateway.TargetRef, bool, error) {
	params := map[string]any{
		"kind":  crit.Kind,
		"range": crit.Range,
	}
	if len(crit.Graphics) > 0 {
		graphics := make([]any, 0, len(crit.Graphics))
		for _, g := range crit.Graphics {
			graphics = append(graphics, int(g))
		}
		params["graphics"] = graphics
	}
	if !crit.Container.IsZero() {
		params["container"] = int(uint32(crit.Container))
	}

	data, err := c.call(ctx, "find_target", params)
	if err != nil {
		return gateway.TargetRef{}, false, err
	}
	if !boolean(data, "found") {
		return gateway.TargetRef{}, false, nil
	}
	return targetFromWire(data), true, nil
}

// PerformAction starts one action on the host and returns its polling handle.
func (c *Client) PerformAction(ctx context.Context, action gateway.ActionID, target gateway.TargetRef) (gateway.Handle, error) {
	data, err := c.call(ctx, "perform_action", map[string]any{
		"action": string(action),
		"serial": int(uint32(target.Serial)),
	})
	if err != nil {
		return "", err
	}
	if !boolean(data, "accepted") {
		ctxlog.FromContext(ctx).Debug("Host rejected action.", "action", action, "reason", str(data, "reason"))
		return "", gateway.ErrActionRejected
	}
	return gateway.Handle(str(data, "handle")), nil
}

// Poll reports a completed outcome previously drained by Tick. Delivering an
// outcome releases the handle.
func (c *Client) Poll(handle gateway.Handle) (gateway.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	outcome, ok := c.outcomes[handle]
	if !ok {
		return 0, false
	}
	delete(c.outcomes, handle)
	return outcome, true
}

// Vitals fetches the player's current attribute snapshot.
func (c *Client) Vitals(ctx context.Context) (gateway.Vitals, error) {
	data, err := c.call(ctx, "vitals", nil)
	if err != nil {
		return gateway.Vitals{}, err
	}
	return gateway.Vitals{
		Hits:      int(num(data, "hits")),
		MaxHits:   int(num(data, "max_hits")),
		Stamina:   int(num(data, "stamina")),
		Mana:      int(num(data, "mana")),
		Weight:    int(num(data, "weight")),
		MaxWeight: int(num(data, "max_weight")),
	}, nil
}

// Tick drains buffered completions into the poll cache and reports bridge
// liveness. It never blocks on the network.
func (c *Client) Tick(ctx context.Context) error {
	if !c.connected.Load() {
		return gateway.ErrDisconnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, done := range c.inbox {
		c.outcomes[done.handle] = done.outcome
	}
	if n := len(c.inbox); n > 0 {
		ctxlog.FromContext(ctx).Debug("Drained action completions.", "count", n)
	}
	c.inbox = c.inbox[:0]
	return nil
}

// CreatePanel renders a panel on the host from the layout.
func (c *Client) CreatePanel(ctx context.Context, layout gateway.Layout) (gateway.PanelID, error) {
	controls := make([]any, 0, len(layout.Controls))
	for _, ctl := range layout.Controls {
		entry := map[string]any{
			"kind":  string(ctl.Kind),
			"name":  ctl.Name,
			"label": ctl.Label,
			"value": ctl.Value,
		}
		if len(ctl.Options) > 0 {
			opts := make([]any, 0, len(ctl.Options))
			for _, o := range ctl.Options {
				opts = append(opts, o)
			}
			entry["options"] = opts
		}
		controls = append(controls, entry)
	}

	data, err := c.call(ctx, "create_panel", map[string]any{
		"title":    layout.Title,
		"controls": controls,
	})
	if err != nil {
		return 0, err
	}
	return gateway.PanelID(num(data, "panel_id")), nil
}

// ClosePanel disposes a panel on the host.
func (c *Client) ClosePanel(ctx context.Context, id gateway.PanelID) error {
	_, err := c.call(ctx, "close_panel", map[string]any{"panel_id": int(uint32(id))})
	return err
}

// OpenPanelIDs enumerates the panels currently open on the host.
func (c *Client) OpenPanelIDs(ctx context.Context) ([]gateway.PanelID, error) {
	data, err := c.call(ctx, "open_panel_ids", nil)
	if err != nil {
		return nil, err
	}
	raw, _ := data["panel_ids"].([]any)
	ids := make([]gateway.PanelID, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			ids = append(ids, gateway.PanelID(f))
		}
	}
	return ids, nil
}

// ReadPanel pulls the current control values from an open panel.
func (c *Client) ReadPanel(ctx context.Context, id gateway.PanelID) (gateway.ControlValues, bool, error) {
	data, err := c.call(ctx, "read_panel", map[string]any{"panel_id": int(uint32(id))})
	if err != nil {
		return nil, false, err
	}
	if !boolean(data, "changed") {
		return nil, false, nil
	}
	raw, _ := data["values"].(map[string]any)
	values := make(gateway.ControlValues, len(raw))
	for name, v := range raw {
		values[name] = fmt.Sprintf("%v", v)
	}
	return values, true, nil
}
