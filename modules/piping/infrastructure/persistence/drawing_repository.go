package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/trakwell/pipetrak/modules/piping/domain/drawing"
	"github.com/trakwell/pipetrak/modules/piping/infrastructure/persistence/models"
	"github.com/trakwell/pipetrak/pkg/composables"
)

const drawingFindQuery = `
	SELECT id, project_id, number, revision, title, spec, material, pressure_rating, created_at, updated_at
	FROM drawings`

type DrawingRepository struct{}

func NewDrawingRepository() drawing.Repository {
	return &DrawingRepository{}
}

// querier prefers the transaction in context and falls back to the pool, so
// the same repositories serve both planning reads and chunk transactions.
func querier(ctx context.Context) (composables.Tx, error) {
	if tx, err := composables.UseTx(ctx); err == nil {
		return tx, nil
	}
	return composables.UsePool(ctx)
}

func (r *DrawingRepository) FindByNumbers(ctx context.Context, numbers []string) (map[string]*drawing.Drawing, error) {
	if len(numbers) == 0 {
		return map[string]*drawing.Drawing{}, nil
	}
	projectID, err := composables.UseProjectID(ctx)
	if err != nil {
		return nil, err
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, drawingFindQuery+` WHERE project_id = $1 AND number = ANY($2)`,
		projectID.String(), numbers)
	if err != nil {
		return nil, errors.Wrap(err, "find drawings")
	}
	defer rows.Close()

	out := make(map[string]*drawing.Drawing, len(numbers))
	for rows.Next() {
		var m models.Drawing
		if err := rows.Scan(
			&m.ID, &m.ProjectID, &m.Number, &m.Revision, &m.Title,
			&m.Spec, &m.Material, &m.PressureRating, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan drawing")
		}
		d, err := toDomainDrawing(&m)
		if err != nil {
			return nil, err
		}
		out[d.Number()] = d
	}
	return out, rows.Err()
}

func (r *DrawingRepository) CreateMissing(ctx context.Context, numbers []string) (map[string]*drawing.Drawing, error) {
	if len(numbers) == 0 {
		return map[string]*drawing.Drawing{}, nil
	}
	projectID, err := composables.UseProjectID(ctx)
	if err != nil {
		return nil, err
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO drawings (id, project_id, number)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, number) DO NOTHING`
	for _, number := range numbers {
		if _, err := q.Exec(ctx, query, uuid.New().String(), projectID.String(), number); err != nil {
			return nil, errors.Wrap(err, "create drawing "+number)
		}
	}
	return r.FindByNumbers(ctx, numbers)
}
