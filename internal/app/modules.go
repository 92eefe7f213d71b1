package app

import (
	"github.com/vk/phaserun/internal/registry"
	"github.com/vk/phaserun/modules/copyfiles"
	"github.com/vk/phaserun/modules/deletefiles"
	"github.com/vk/phaserun/modules/runscript"
)

// coreModules is the definitive list of all modules that are compiled into
// the phaserun binary.
var coreModules = []registry.Module{
	&runscript.Module{},
	&copyfiles.Module{},
	&deletefiles.Module{},
}
