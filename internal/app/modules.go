package app

import (
	"github.com/vk/netround/internal/registry"
	"github.com/vk/netround/modules/pingpong"
	"github.com/vk/netround/modules/qkd"
	"github.com/vk/netround/modules/teleport"
)

// coreModules is the definitive list of all program modules compiled into
// the netround binary.
var coreModules = []registry.Module{
	&teleport.Module{},
	&pingpong.Module{},
	&qkd.Module{},
}
