package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
	"github.com/trakwell/pipetrak/modules/piping/domain/milestone"
	"github.com/trakwell/pipetrak/pkg/composables"
)

var ErrTemplateNotFound = errors.New("milestone template not found")

type MilestoneRepository struct{}

func NewMilestoneRepository() milestone.TemplateRepository {
	return &MilestoneRepository{}
}

func (r *MilestoneRepository) CategoryMappings(ctx context.Context) (map[component.Category]uuid.UUID, error) {
	projectID, err := composables.UseProjectID(ctx)
	if err != nil {
		return nil, err
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx,
		`SELECT category, template_id FROM template_category_mappings WHERE project_id = $1`,
		projectID.String())
	if err != nil {
		return nil, errors.Wrap(err, "load category mappings")
	}
	defer rows.Close()

	out := make(map[component.Category]uuid.UUID)
	for rows.Next() {
		var category string
		var templateID uuid.UUID
		if err := rows.Scan(&category, &templateID); err != nil {
			return nil, errors.Wrap(err, "scan category mapping")
		}
		out[component.Category(category)] = templateID
	}
	return out, rows.Err()
}

func (r *MilestoneRepository) GetByID(ctx context.Context, id uuid.UUID) (*milestone.Template, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	tpl := &milestone.Template{}
	row := q.QueryRow(ctx,
		`SELECT id, name, is_default, created_at FROM milestone_templates WHERE id = $1`,
		id.String())
	if err := row.Scan(&tpl.ID, &tpl.Name, &tpl.IsDefault, &tpl.CreatedAt); err != nil {
		return nil, errors.Wrap(ErrTemplateNotFound, id.String())
	}

	defs, err := r.definitions(ctx, tpl.ID)
	if err != nil {
		return nil, err
	}
	tpl.Definitions = defs
	return tpl, nil
}

func (r *MilestoneRepository) definitions(ctx context.Context, templateID uuid.UUID) ([]milestone.Definition, error) {
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx,
		`SELECT name, sort_order, weight, workflow
		 FROM milestone_definitions WHERE template_id = $1 ORDER BY sort_order`,
		templateID.String())
	if err != nil {
		return nil, errors.Wrap(err, "load definitions")
	}
	defer rows.Close()

	var defs []milestone.Definition
	for rows.Next() {
		var def milestone.Definition
		var weight string
		var workflow string
		if err := rows.Scan(&def.Name, &def.Order, &weight, &workflow); err != nil {
			return nil, errors.Wrap(err, "scan definition")
		}
		w, err := decimal.NewFromString(weight)
		if err != nil {
			return nil, errors.Wrap(err, "parse weight")
		}
		def.Weight = w
		def.Workflow = milestone.Workflow(workflow)
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// EnsureDefault returns the project's default template, creating the stock
// milestone set when the project has none yet.
func (r *MilestoneRepository) EnsureDefault(ctx context.Context) (*milestone.Template, error) {
	projectID, err := composables.UseProjectID(ctx)
	if err != nil {
		return nil, err
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	var id uuid.UUID
	row := q.QueryRow(ctx,
		`SELECT id FROM milestone_templates WHERE project_id = $1 AND is_default LIMIT 1`,
		projectID.String())
	if err := row.Scan(&id); err == nil {
		return r.GetByID(ctx, id)
	}

	tpl := &milestone.Template{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Name:        "Standard",
		IsDefault:   true,
		Definitions: milestone.DefaultDefinitions(),
	}
	if _, err := q.Exec(ctx,
		`INSERT INTO milestone_templates (id, project_id, name, is_default)
		 VALUES ($1, $2, $3, true)
		 ON CONFLICT DO NOTHING`,
		tpl.ID.String(), projectID.String(), tpl.Name); err != nil {
		return nil, errors.Wrap(err, "create default template")
	}
	for _, def := range tpl.Definitions {
		if _, err := q.Exec(ctx,
			`INSERT INTO milestone_definitions (template_id, name, sort_order, weight, workflow)
			 VALUES ($1, $2, $3, $4, $5)`,
			tpl.ID.String(), def.Name, def.Order, def.Weight.String(), string(def.Workflow)); err != nil {
			return nil, errors.Wrap(err, "create default definition")
		}
	}
	return tpl, nil
}

func (r *MilestoneRepository) InsertRecords(ctx context.Context, records []milestone.Record) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO milestone_records (id, instance_id, name, sort_order, weight, workflow, completed, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, rec := range records {
		_, err := tx.Exec(ctx, query,
			rec.ID.String(),
			rec.InstanceID.String(),
			rec.Name,
			rec.Order,
			rec.Weight.String(),
			string(rec.Workflow),
			rec.Completed,
			rec.Value.String(),
		)
		if err != nil {
			return errors.Wrap(err, "insert milestone record")
		}
	}
	return nil
}
