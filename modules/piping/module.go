package piping

import (
	"embed"

	"github.com/trakwell/pipetrak/modules/piping/importing"
	"github.com/trakwell/pipetrak/modules/piping/infrastructure/persistence"
	"github.com/trakwell/pipetrak/modules/piping/services"
	"github.com/trakwell/pipetrak/pkg/application"
)

//go:embed infrastructure/persistence/schema/piping-schema.sql
var MigrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Name() string {
	return "piping"
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&MigrationFiles)

	drawingRepo := persistence.NewDrawingRepository()
	componentRepo := persistence.NewComponentRepository()
	milestoneRepo := persistence.NewMilestoneRepository()

	app.RegisterServices(
		services.NewImportService(
			drawingRepo,
			componentRepo,
			milestoneRepo,
			importing.PoolTxRunner{},
			app.EventPublisher(),
			app.Logger(),
		),
	)
	return nil
}
