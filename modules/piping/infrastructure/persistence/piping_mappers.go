package persistence

import (
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trakwell/pipetrak/modules/piping/domain/drawing"
	"github.com/trakwell/pipetrak/modules/piping/infrastructure/persistence/models"
)

func toDomainDrawing(m *models.Drawing) (*drawing.Drawing, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, errors.Wrap(err, "parse drawing id")
	}
	projectID, err := uuid.Parse(m.ProjectID)
	if err != nil {
		return nil, errors.Wrap(err, "parse project id")
	}

	opts := []drawing.Option{
		drawing.WithID(id),
		drawing.WithRevision(m.Revision),
		drawing.WithTitle(m.Title),
		drawing.WithSpec(m.Spec),
		drawing.WithMaterial(m.Material),
		drawing.WithCreatedAt(m.CreatedAt),
		drawing.WithUpdatedAt(m.UpdatedAt),
	}
	if m.PressureRating.Valid {
		rating, err := decimal.NewFromString(m.PressureRating.String)
		if err != nil {
			return nil, errors.Wrap(err, "parse pressure rating")
		}
		opts = append(opts, drawing.WithPressureRating(rating))
	}
	return drawing.New(projectID, m.Number, opts...), nil
}
