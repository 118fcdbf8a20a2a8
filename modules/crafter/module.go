// Package crafter implements the craft training flow: repeat a recipe on the
// crafting tool, restocking materials from a container when a craft fails for
// lack of them.
package crafter

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/vk/tickflowgo/internal/flow"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/vk/tickflowgo/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Settings defines the persisted configuration for the crafter flow.
type Settings struct {
	ToolGraphic          float64 `tfgo:"tool_graphic"`
	Recipe               string  `tfgo:"recipe"`
	StockContainerSerial string  `tfgo:"stock_container_serial"`
	UseToolCrafting      bool    `tfgo:"use_tool_crafting"`
	SessionCrafts        float64 `tfgo:"session_crafts"`
}

// Plan is the crafter's flow logic.
type Plan struct {
	// restocking flips when a craft fails, which the host reports when
	// materials run out, and clears once the restock succeeded.
	restocking bool
}

// NewPlan builds a fresh crafter plan.
func NewPlan() *Plan {
	return &Plan{}
}

// Ready always fires; the crafter has no vitals precondition.
func (p *Plan) Ready(ctx context.Context, f *flow.Instance) (bool, error) {
	return true, nil
}

// Criteria targets the crafting tool normally, or the stock container while
// restocking.
func (p *Plan) Criteria(f *flow.Instance) gateway.Criteria {
	if p.restocking {
		return gateway.Criteria{
			Kind:      "stock_container",
			Container: f.Blob().Serial("stock_container_serial"),
		}
	}
	c := gateway.Criteria{Kind: "crafting_tool", Range: 2}
	if g := f.Blob().Float("tool_graphic", 0); g > 0 {
		c.Graphics = []uint16{uint16(g)}
	}
	return c
}

// Actions crafts the configured recipe, with an optional tool-assisted
// variant, or refills materials during a restock.
func (p *Plan) Actions(f *flow.Instance, target gateway.TargetRef) []gateway.ActionID {
	if p.restocking {
		return []gateway.ActionID{"restock_materials"}
	}
	if f.Blob().Bool("use_tool_crafting", false) {
		return []gateway.ActionID{"select_tool", "craft_item"}
	}
	return []gateway.ActionID{"craft_item"}
}

// HandleOutcome counts successful crafts and toggles restock trips: a failed
// craft means materials ran out, a successful restock resumes crafting.
func (p *Plan) HandleOutcome(f *flow.Instance, action gateway.ActionID, outcome gateway.Outcome) {
	switch action {
	case "craft_item":
		if outcome == gateway.OutcomeSuccess {
			f.Blob().Set("session_crafts", f.Blob().Float("session_crafts", 0)+1)
		} else if outcome == gateway.OutcomeFailed {
			slog.Debug("Craft failed, switching to restock.")
			p.restocking = true
		}
	case "restock_materials":
		if outcome == gateway.OutcomeSuccess {
			p.restocking = false
		}
	}
}

// Register registers the plan with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFlow("CrafterPlan", &registry.RegisteredFlow{
		NewSettings:  func() any { return new(Settings) },
		SettingsType: reflect.TypeOf(Settings{}),
		NewPlan:      func(settings any) flow.Plan { return NewPlan() },
	})
}
