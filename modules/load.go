package modules

import (
	"slices"

	"github.com/trakwell/pipetrak/modules/piping"
	"github.com/trakwell/pipetrak/pkg/application"
)

var (
	BuiltInModules = []application.Module{
		piping.NewModule(),
	}
)

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range slices.Concat(BuiltInModules, externalModules) {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
