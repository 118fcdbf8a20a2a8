// Package healer implements the self-healing flow: watch the player's health
// and heal whenever it drops below the configured threshold.
package healer

import (
	"context"
	"reflect"

	"github.com/vk/tickflowgo/internal/flow"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/vk/tickflowgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Settings defines the persisted configuration for the healer flow.
type Settings struct {
	HealThreshold float64 `tfgo:"heal_threshold"`
	UseBandages   bool    `tfgo:"use_bandages"`
}

// Plan is the healer's flow logic.
type Plan struct{}

// NewPlan builds a fresh healer plan.
func NewPlan() *Plan {
	return &Plan{}
}

// Ready fires only while health sits below the threshold.
func (p *Plan) Ready(ctx context.Context, f *flow.Instance) (bool, error) {
	vitals, err := f.Gateway().Vitals(ctx)
	if err != nil {
		return false, err
	}
	threshold := f.Blob().Float("heal_threshold", 0.60)
	return vitals.HealthRatio() < threshold, nil
}

// Criteria targets the player themselves.
func (p *Plan) Criteria(f *flow.Instance) gateway.Criteria {
	return gateway.Criteria{Kind: "self"}
}

// Actions picks bandages or the heal spell per the settings.
func (p *Plan) Actions(f *flow.Instance, target gateway.TargetRef) []gateway.ActionID {
	if f.Blob().Bool("use_bandages", false) {
		return []gateway.ActionID{"apply_bandage"}
	}
	return []gateway.ActionID{"heal_self"}
}

// Register registers the plan with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFlow("HealerPlan", &registry.RegisteredFlow{
		NewSettings:  func() any { return new(Settings) },
		SettingsType: reflect.TypeOf(Settings{}),
		NewPlan:      func(settings any) flow.Plan { return NewPlan() },
	})
}
