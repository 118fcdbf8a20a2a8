// Package registry holds the mapping between flow manifests and the Go code
// that implements them, and validates that the two sides agree.
package registry

import (
	"github.com/vk/tickflowgo/internal/config"
)

// Module is the interface that all core modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds all the registered plans and flow definitions for a single
// application instance.
type Registry struct {
	PlanRegistry       map[string]*RegisteredFlow
	DefinitionRegistry map[string]*config.FlowDefinition
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		PlanRegistry:       make(map[string]*RegisteredFlow),
		DefinitionRegistry: make(map[string]*config.FlowDefinition),
	}
}

// PopulateDefinitionsFromModel copies the loaded flow definitions from the
// config model into the registry for easy access during execution.
func (r *Registry) PopulateDefinitionsFromModel(model *config.Model) {
	for key, val := range model.Flows {
		r.DefinitionRegistry[key] = val
	}
}
