// Package gatewaytest provides a scripted in-memory Gateway for tests.
//
// The fake is deterministic: targets, vitals, and action outcomes are queued
// by the test and consumed in order, and every call is recorded so tests can
// assert on the exact traffic the engine generated.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/tickflowgo/internal/gateway"
)

// Fake is a scripted gateway.Gateway implementation.
type Fake struct {
	mu sync.Mutex

	targets  map[string][]gateway.TargetRef
	vitals   gateway.Vitals
	vitalsOK bool

	// outcomes are consumed in order by PerformAction; each one is delivered
	// only after its afterPolls count of Poll calls.
	outcomes     []scriptedOutcome
	inflight     map[gateway.Handle]*inflightAction
	nextHandle   int
	actionErr    error
	releasedPoll map[gateway.Handle]int

	panels     map[gateway.PanelID]panelState
	nextPanel  gateway.PanelID
	panelReads map[gateway.PanelID][]gateway.ControlValues

	TickCount    int
	TickErr      error
	FindCalls    int
	Actions      []PerformedAction
	CreateCount  int
	CloseCount   int
	PollAttempts map[gateway.Handle]int
}

type scriptedOutcome struct {
	outcome    gateway.Outcome
	afterPolls int
}

type inflightAction struct {
	outcome   gateway.Outcome
	remaining int
	done      bool
}

type panelState struct {
	layout gateway.Layout
	open   bool
}

// PerformedAction records one PerformAction call.
type PerformedAction struct {
	Action gateway.ActionID
	Target gateway.TargetRef
	Handle gateway.Handle
}

// New returns an empty scripted gateway.
func New() *Fake {
	return &Fake{
		targets:      make(map[string][]gateway.TargetRef),
		inflight:     make(map[gateway.Handle]*inflightAction),
		releasedPoll: make(map[gateway.Handle]int),
		panels:       make(map[gateway.PanelID]panelState),
		panelReads:   make(map[gateway.PanelID][]gateway.ControlValues),
		PollAttempts: make(map[gateway.Handle]int),
		nextPanel:    100,
	}
}

// QueueTarget scripts one FindTarget result for a criteria kind.
func (f *Fake) QueueTarget(kind string, ref gateway.TargetRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets[kind] = append(f.targets[kind], ref)
}

// SetVitals scripts the vitals snapshot returned to callers.
func (f *Fake) SetVitals(v gateway.Vitals) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vitals = v
	f.vitalsOK = true
}

// ScriptOutcome queues the outcome for the next issued action, delivered
// after the given number of Poll calls.
func (f *Fake) ScriptOutcome(o gateway.Outcome, afterPolls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, scriptedOutcome{outcome: o, afterPolls: afterPolls})
}

// SetActionError makes subsequent PerformAction calls fail with err.
func (f *Fake) SetActionError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actionErr = err
}

// ClosePanelExternally simulates the user closing a panel on the host side,
// outside the engine's control.
func (f *Fake) ClosePanelExternally(id gateway.PanelID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.panels[id]; ok {
		p.open = false
		f.panels[id] = p
	}
}

// QueuePanelRead scripts one changed-values read for a panel.
func (f *Fake) QueuePanelRead(id gateway.PanelID, values gateway.ControlValues) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panelReads[id] = append(f.panelReads[id], values)
}

// PanelLayout returns the layout last rendered for a panel.
func (f *Fake) PanelLayout(id gateway.PanelID) (gateway.Layout, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.panels[id]
	return p.layout, ok
}

// FindTarget implements gateway.Gateway.
func (f *Fake) FindTarget(ctx context.Context, c gateway.Criteria) (gateway.TargetRef, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FindCalls++
	queue := f.targets[c.Kind]
	if len(queue) == 0 {
		return gateway.TargetRef{}, false, nil
	}
	ref := queue[0]
	f.targets[c.Kind] = queue[1:]
	return ref, true, nil
}

// PerformAction implements gateway.Gateway.
func (f *Fake) PerformAction(ctx context.Context, action gateway.ActionID, target gateway.TargetRef) (gateway.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return "", f.actionErr
	}
	f.nextHandle++
	h := gateway.Handle(fmt.Sprintf("fake-%d", f.nextHandle))

	scripted := scriptedOutcome{outcome: gateway.OutcomeSuccess}
	if len(f.outcomes) > 0 {
		scripted = f.outcomes[0]
		f.outcomes = f.outcomes[1:]
	}
	f.inflight[h] = &inflightAction{outcome: scripted.outcome, remaining: scripted.afterPolls}
	f.Actions = append(f.Actions, PerformedAction{Action: action, Target: target, Handle: h})
	return h, nil
}

// Poll implements gateway.Gateway. A handle is released after delivering its
// outcome; later polls against it are counted in PollAttempts but report
// nothing, mirroring ErrUnknownHandle semantics at this layer.
func (f *Fake) Poll(handle gateway.Handle) (gateway.Outcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PollAttempts[handle]++
	a, ok := f.inflight[handle]
	if !ok {
		f.releasedPoll[handle]++
		return gateway.OutcomeFailed, false
	}
	if a.remaining > 0 {
		a.remaining--
		return gateway.OutcomeFailed, false
	}
	delete(f.inflight, handle)
	return a.outcome, true
}

// ReleasedPolls reports how many Poll calls hit a handle after its release.
func (f *Fake) ReleasedPolls(handle gateway.Handle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releasedPoll[handle]
}

// InFlight reports how many actions are currently awaiting an outcome.
func (f *Fake) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inflight)
}

// Vitals implements gateway.Gateway.
func (f *Fake) Vitals(ctx context.Context) (gateway.Vitals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.vitalsOK {
		return gateway.Vitals{Hits: 100, MaxHits: 100, Weight: 0, MaxWeight: 400}, nil
	}
	return f.vitals, nil
}

// Tick implements gateway.Gateway.
func (f *Fake) Tick(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TickCount++
	return f.TickErr
}

// CreatePanel implements gateway.Gateway.
func (f *Fake) CreatePanel(ctx context.Context, layout gateway.Layout) (gateway.PanelID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextPanel++
	id := f.nextPanel
	f.panels[id] = panelState{layout: layout, open: true}
	f.CreateCount++
	return id, nil
}

// ClosePanel implements gateway.Gateway.
func (f *Fake) ClosePanel(ctx context.Context, id gateway.PanelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.panels[id]; ok && p.open {
		p.open = false
		f.panels[id] = p
		f.CloseCount++
	}
	return nil
}

// OpenPanelIDs implements gateway.Gateway.
func (f *Fake) OpenPanelIDs(ctx context.Context) ([]gateway.PanelID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []gateway.PanelID
	for id, p := range f.panels {
		if p.open {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ReadPanel implements gateway.Gateway.
func (f *Fake) ReadPanel(ctx context.Context, id gateway.PanelID) (gateway.ControlValues, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.panels[id]
	if !ok || !p.open {
		return nil, false, nil
	}
	reads := f.panelReads[id]
	if len(reads) == 0 {
		return nil, false, nil
	}
	values := reads[0]
	f.panelReads[id] = reads[1:]
	return values, true, nil
}
