package app

import (
	"github.com/vk/tickflowgo/internal/registry"
	"github.com/vk/tickflowgo/modules/crafter"
	"github.com/vk/tickflowgo/modules/healer"
	"github.com/vk/tickflowgo/modules/miner"
)

// coreModules is the definitive list of all flow modules that are compiled
// into the tickflowgo binary.
var coreModules = []registry.Module{
	&miner.Module{},
	&crafter.Module{},
	&healer.Module{},
}
