package modules

import (
	"github.com/iota-uz/entity-registry/modules/registry"
	"github.com/iota-uz/entity-registry/pkg/application"
	"github.com/iota-uz/entity-registry/pkg/configuration"
)

// BuiltInModules returns the modules every binary loads, configured from conf.
func BuiltInModules(conf *configuration.Configuration) []application.Module {
	return []application.Module{
		registry.NewModule(&registry.ModuleOptions{
			Workflow: conf.Workflow,
			Outbox:   conf.Outbox,
		}),
	}
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
