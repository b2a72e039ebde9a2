package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
	"github.com/trakwell/pipetrak/modules/piping/domain/drawing"
	"github.com/trakwell/pipetrak/modules/piping/domain/milestone"
	"github.com/trakwell/pipetrak/modules/piping/importing"
	"github.com/trakwell/pipetrak/pkg/composables"
	"github.com/trakwell/pipetrak/pkg/eventbus"
)

// ImportCompletedEvent is published after a persisting import run finishes,
// whether fully or partially.
type ImportCompletedEvent struct {
	ProjectID uuid.UUID
	Kind      importing.ImportKind
	Filename  string
	Summary   importing.Summary
	Timestamp time.Time
}

// ImportService is the application-facing surface of the reconciliation
// engine: it scopes the run to a project, runs the pipeline, and publishes
// the completion event.
type ImportService struct {
	engine    *importing.Engine
	publisher eventbus.EventBus
	log       *logrus.Logger
}

func NewImportService(
	drawings drawing.Repository,
	instances component.Repository,
	templates milestone.TemplateRepository,
	tx importing.TxRunner,
	publisher eventbus.EventBus,
	log *logrus.Logger,
) *ImportService {
	return &ImportService{
		engine:    importing.NewEngine(drawings, instances, templates, tx, log),
		publisher: publisher,
		log:       log,
	}
}

// CheckFormat verifies file structure and column mapping without touching
// the store.
func (s *ImportService) CheckFormat(ctx context.Context, data []byte, filename string, kind importing.ImportKind, opts importing.Options) (*importing.Result, error) {
	return s.engine.CheckFormat(ctx, data, filename, kind, opts)
}

// Validate runs schema and business-rule checks; the store is never written.
func (s *ImportService) Validate(ctx context.Context, data []byte, filename string, kind importing.ImportKind, opts importing.Options) (*importing.Result, error) {
	return s.engine.Validate(ctx, data, filename, kind, opts)
}

// Import runs the full pipeline for the given project and publishes
// ImportCompletedEvent on completion. Dry runs publish nothing.
func (s *ImportService) Import(ctx context.Context, projectID uuid.UUID, data []byte, filename string, kind importing.ImportKind, opts importing.Options) (*importing.Result, error) {
	ctx = composables.WithProjectID(ctx, projectID)

	res, err := s.engine.Import(ctx, projectID, data, filename, kind, opts)
	if err != nil {
		return nil, err
	}

	if !res.DryRun {
		s.publisher.Publish(ImportCompletedEvent{
			ProjectID: projectID,
			Kind:      kind,
			Filename:  filename,
			Summary:   res.Summary,
			Timestamp: time.Now(),
		})
	}
	return res, nil
}
