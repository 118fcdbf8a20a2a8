// Package miner implements the ore mining flow: dig nearby tiles until the
// pack is (nearly) full, then travel to the drop-off, unload, and travel back.
package miner

import (
	"context"
	"reflect"

	"github.com/vk/tickflowgo/internal/ctxlog"
	"github.com/vk/tickflowgo/internal/flow"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/vk/tickflowgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Settings defines the persisted configuration for the miner flow.
type Settings struct {
	RunebookSerial      string  `tfgo:"runebook_serial"`
	DropContainerSerial string  `tfgo:"drop_container_serial"`
	WeightLimit         float64 `tfgo:"weight_limit"`
	UseSacredJourney    bool    `tfgo:"use_sacred_journey"`
	SessionOre          float64 `tfgo:"session_ore"`
}

// phase tracks where the miner is in its dig/travel/unload round trip.
type phase int

const (
	phaseMining phase = iota
	phaseTravelOut
	phaseUnload
	phaseTravelHome
)

// Plan is the miner's flow logic. Settings are read from the instance's blob
// every tick so panel edits apply immediately.
type Plan struct {
	phase phase
}

// NewPlan builds a fresh miner plan.
func NewPlan() *Plan {
	return &Plan{}
}

// Ready checks the pack weight and starts an unload trip when the limit is
// crossed mid-mining.
func (p *Plan) Ready(ctx context.Context, f *flow.Instance) (bool, error) {
	vitals, err := f.Gateway().Vitals(ctx)
	if err != nil {
		return false, err
	}

	limit := int(f.Blob().Float("weight_limit", 380))
	if p.phase == phaseMining && vitals.Weight >= limit {
		ctxlog.FromContext(ctx).Info("⛏️ Pack is full, heading to drop-off.", "weight", vitals.Weight, "limit", limit)
		p.phase = phaseTravelOut
	}
	return true, nil
}

// Criteria targets a mining tile while digging, the runebook while traveling,
// and the drop container while unloading.
func (p *Plan) Criteria(f *flow.Instance) gateway.Criteria {
	switch p.phase {
	case phaseTravelOut, phaseTravelHome:
		return gateway.Criteria{Kind: "runebook", Container: f.Blob().Serial("runebook_serial")}
	case phaseUnload:
		return gateway.Criteria{Kind: "drop_container", Container: f.Blob().Serial("drop_container_serial")}
	default:
		return gateway.Criteria{Kind: "mining_tile", Range: 2}
	}
}

// Actions returns one action per phase. The travel action is gated by the
// sacred journey flag.
func (p *Plan) Actions(f *flow.Instance, target gateway.TargetRef) []gateway.ActionID {
	switch p.phase {
	case phaseTravelOut, phaseTravelHome:
		if f.Blob().Bool("use_sacred_journey", false) {
			return []gateway.ActionID{"sacred_journey"}
		}
		return []gateway.ActionID{"recall"}
	case phaseUnload:
		return []gateway.ActionID{"drop_ore"}
	default:
		return []gateway.ActionID{"mine"}
	}
}

// HandleOutcome advances the round trip and keeps the session ore counter.
// Failures leave the phase alone so the same step is retried after cooldown.
func (p *Plan) HandleOutcome(f *flow.Instance, action gateway.ActionID, outcome gateway.Outcome) {
	if outcome != gateway.OutcomeSuccess {
		return
	}
	switch action {
	case "mine":
		f.Blob().Set("session_ore", f.Blob().Float("session_ore", 0)+1)
	case "recall", "sacred_journey":
		if p.phase == phaseTravelOut {
			p.phase = phaseUnload
		} else {
			p.phase = phaseMining
		}
	case "drop_ore":
		p.phase = phaseTravelHome
	}
}

// Register registers the plan with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFlow("MinerPlan", &registry.RegisteredFlow{
		NewSettings:  func() any { return new(Settings) },
		SettingsType: reflect.TypeOf(Settings{}),
		NewPlan:      func(settings any) flow.Plan { return NewPlan() },
	})
}
