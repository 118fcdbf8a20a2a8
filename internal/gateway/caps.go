package gateway

import (
	"context"
	"fmt"
)

// Capability names every method of the Gateway contract. The set is closed:
// a host grant outside this enumeration is rejected at construction time, and
// a call against an ungranted capability is rejected at the boundary instead
// of reaching the transport.
type Capability string

const (
	CapFindTarget    Capability = "find_target"
	CapPerformAction Capability = "perform_action"
	CapPoll          Capability = "poll"
	CapVitals        Capability = "vitals"
	CapTick          Capability = "tick"
	CapCreatePanel   Capability = "create_panel"
	CapClosePanel    Capability = "close_panel"
	CapOpenPanelIDs  Capability = "open_panel_ids"
	CapReadPanel     Capability = "read_panel"
)

// AllCapabilities returns the full enumerated capability set.
func AllCapabilities() []Capability {
	return []Capability{
		CapFindTarget, CapPerformAction, CapPoll, CapVitals, CapTick,
		CapCreatePanel, CapClosePanel, CapOpenPanelIDs, CapReadPanel,
	}
}

// ErrCapabilityDenied wraps the capability a denied call attempted to use.
type ErrCapabilityDenied struct {
	Capability Capability
}

// Error implements the error interface.
func (e *ErrCapabilityDenied) Error() string {
	return fmt.Sprintf("gateway: capability %q not granted", e.Capability)
}

// Strict wraps a Gateway and enforces a granted capability subset at the
// call boundary. Tick is always allowed: the cooperative yield point is
// mandatory and withholding it would stall the whole loop.
type Strict struct {
	inner   Gateway
	granted map[Capability]struct{}
}

// NewStrict builds a boundary-checking wrapper around inner. An empty grant
// list means the full capability set. Unknown capability names are rejected
// here rather than surfacing later as confusing call failures.
func NewStrict(inner Gateway, granted ...Capability) (*Strict, error) {
	known := make(map[Capability]struct{}, len(AllCapabilities()))
	for _, c := range AllCapabilities() {
		known[c] = struct{}{}
	}
	if len(granted) == 0 {
		granted = AllCapabilities()
	}
	set := make(map[Capability]struct{}, len(granted))
	for _, c := range granted {
		if _, ok := known[c]; !ok {
			return nil, fmt.Errorf("gateway: unknown capability %q in grant", c)
		}
		set[c] = struct{}{}
	}
	set[CapTick] = struct{}{}
	return &Strict{inner: inner, granted: set}, nil
}

func (s *Strict) allow(c Capability) error {
	if _, ok := s.granted[c]; !ok {
		return &ErrCapabilityDenied{Capability: c}
	}
	return nil
}

// FindTarget implements Gateway.
func (s *Strict) FindTarget(ctx context.Context, c Criteria) (TargetRef, bool, error) {
	if err := s.allow(CapFindTarget); err != nil {
		return TargetRef{}, false, err
	}
	return s.inner.FindTarget(ctx, c)
}

// PerformAction implements Gateway.
func (s *Strict) PerformAction(ctx context.Context, action ActionID, target TargetRef) (Handle, error) {
	if err := s.allow(CapPerformAction); err != nil {
		return "", err
	}
	return s.inner.PerformAction(ctx, action, target)
}

// Poll implements Gateway. A denial reports a delivered failure rather than
// "still pending", so an ungranted flow fails its action immediately instead
// of spinning until the await timeout.
func (s *Strict) Poll(handle Handle) (Outcome, bool) {
	if err := s.allow(CapPoll); err != nil {
		return OutcomeFailed, true
	}
	return s.inner.Poll(handle)
}

// Vitals implements Gateway.
func (s *Strict) Vitals(ctx context.Context) (Vitals, error) {
	if err := s.allow(CapVitals); err != nil {
		return Vitals{}, err
	}
	return s.inner.Vitals(ctx)
}

// Tick implements Gateway. Always granted.
func (s *Strict) Tick(ctx context.Context) error {
	return s.inner.Tick(ctx)
}

// CreatePanel implements Gateway.
func (s *Strict) CreatePanel(ctx context.Context, layout Layout) (PanelID, error) {
	if err := s.allow(CapCreatePanel); err != nil {
		return 0, err
	}
	return s.inner.CreatePanel(ctx, layout)
}

// ClosePanel implements Gateway.
func (s *Strict) ClosePanel(ctx context.Context, id PanelID) error {
	if err := s.allow(CapClosePanel); err != nil {
		return err
	}
	return s.inner.ClosePanel(ctx, id)
}

// OpenPanelIDs implements Gateway.
func (s *Strict) OpenPanelIDs(ctx context.Context) ([]PanelID, error) {
	if err := s.allow(CapOpenPanelIDs); err != nil {
		return nil, err
	}
	return s.inner.OpenPanelIDs(ctx)
}

// ReadPanel implements Gateway.
func (s *Strict) ReadPanel(ctx context.Context, id PanelID) (ControlValues, bool, error) {
	if err := s.allow(CapReadPanel); err != nil {
		return nil, false, err
	}
	return s.inner.ReadPanel(ctx, id)
}
