package registry

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/vk/tickflowgo/internal/flow"
)

// RegisteredFlow holds the compiled Go parts of a flow module.
type RegisteredFlow struct {
	// NewSettings returns a zeroed pointer to the module's settings struct.
	NewSettings func() any
	// SettingsType is the struct type NewSettings points at, used for the
	// manifest parity check.
	SettingsType reflect.Type
	// NewPlan builds a fresh plan bound to the given decoded settings.
	NewPlan func(settings any) flow.Plan
}

// RegisterFlow registers the Go plan implementation for a flow type.
func (r *Registry) RegisterFlow(name string, handler *RegisteredFlow) {
	if _, exists := r.PlanRegistry[name]; exists {
		panic(fmt.Sprintf("flow plan with name '%s' already registered", name))
	}
	slog.Debug("Registering flow plan.", "name", name)
	r.PlanRegistry[name] = handler
}
