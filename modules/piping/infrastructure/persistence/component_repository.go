package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
	"github.com/trakwell/pipetrak/pkg/composables"
	"github.com/trakwell/pipetrak/pkg/mapping"
)

type ComponentRepository struct{}

func NewComponentRepository() component.Repository {
	return &ComponentRepository{}
}

// keyPredicate renders a (drawing_id, tag_id, attribute) tuple filter with
// placeholders starting at $first.
func keyPredicate(keys []component.IdentityKey, first int) (string, []interface{}) {
	tuples := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)*3)
	n := first
	for _, k := range keys {
		tuples = append(tuples, fmt.Sprintf("($%d::uuid, $%d, $%d)", n, n+1, n+2))
		args = append(args, k.DrawingID.String(), k.TagID, k.Attribute)
		n += 3
	}
	return "(drawing_id, tag_id, attribute) IN (" + strings.Join(tuples, ", ") + ")", args
}

func (r *ComponentRepository) ExistingStates(ctx context.Context, keys []component.IdentityKey) (map[component.IdentityKey]component.ExistingState, error) {
	if len(keys) == 0 {
		return map[component.IdentityKey]component.ExistingState{}, nil
	}
	projectID, err := composables.UseProjectID(ctx)
	if err != nil {
		return nil, err
	}
	q, err := querier(ctx)
	if err != nil {
		return nil, err
	}

	predicate, args := keyPredicate(keys, 2)
	query := `
		SELECT drawing_id, tag_id, attribute, MAX(instance_number), COUNT(*)
		FROM component_instances
		WHERE project_id = $1 AND ` + predicate + `
		GROUP BY drawing_id, tag_id, attribute`
	rows, err := q.Query(ctx, query, append([]interface{}{projectID.String()}, args...)...)
	if err != nil {
		return nil, errors.Wrap(err, "load existing states")
	}
	defer rows.Close()

	out := make(map[component.IdentityKey]component.ExistingState, len(keys))
	for rows.Next() {
		var key component.IdentityKey
		var state component.ExistingState
		if err := rows.Scan(&key.DrawingID, &key.TagID, &key.Attribute, &state.MaxInstance, &state.Count); err != nil {
			return nil, errors.Wrap(err, "scan existing state")
		}
		out[key] = state
	}
	return out, rows.Err()
}

// LockKeyScopes reads the same per-key state as ExistingStates but locks the
// matched rows for the rest of the transaction. Aggregation happens client
// side because FOR UPDATE does not compose with GROUP BY.
func (r *ComponentRepository) LockKeyScopes(ctx context.Context, keys []component.IdentityKey) (map[component.IdentityKey]component.ExistingState, error) {
	out := make(map[component.IdentityKey]component.ExistingState, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	projectID, err := composables.UseProjectID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	predicate, args := keyPredicate(keys, 2)
	query := `
		SELECT drawing_id, tag_id, attribute, instance_number
		FROM component_instances
		WHERE project_id = $1 AND ` + predicate + `
		FOR UPDATE`
	rows, err := tx.Query(ctx, query, append([]interface{}{projectID.String()}, args...)...)
	if err != nil {
		return nil, errors.Wrap(err, "lock key scopes")
	}
	defer rows.Close()

	for rows.Next() {
		var key component.IdentityKey
		var number int
		if err := rows.Scan(&key.DrawingID, &key.TagID, &key.Attribute, &number); err != nil {
			return nil, errors.Wrap(err, "scan locked row")
		}
		state := out[key]
		state.Count++
		if number > state.MaxInstance {
			state.MaxInstance = number
		}
		out[key] = state
	}
	return out, rows.Err()
}

func (r *ComponentRepository) InsertBatch(ctx context.Context, instances []*component.Instance) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO component_instances (
			id, project_id, drawing_id, tag_id, attribute, instance_number, total_on_key,
			category, spec, material, description, area, system, test_package,
			template_id, status, completion_pct, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	for _, inst := range instances {
		_, err := tx.Exec(ctx, query,
			inst.ID.String(),
			inst.ProjectID.String(),
			inst.Key.DrawingID.String(),
			inst.Key.TagID,
			inst.Key.Attribute,
			inst.InstanceNumber,
			inst.TotalOnKey,
			string(inst.Category),
			inst.Spec,
			inst.Material,
			inst.Description,
			inst.Area,
			inst.System,
			inst.TestPackage,
			mapping.UUIDToSQLNullString(inst.TemplateID),
			string(inst.Status),
			inst.CompletionPct,
			inst.CreatedAt,
			inst.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "insert instance "+inst.Key.String())
		}
	}
	return nil
}

func (r *ComponentRepository) UpdateDescriptive(ctx context.Context, key component.IdentityKey, inst *component.Instance) (int64, error) {
	projectID, err := composables.UseProjectID(ctx)
	if err != nil {
		return 0, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE component_instances
		SET spec = $1, material = $2, description = $3, area = $4, system = $5,
			test_package = $6, updated_at = now()
		WHERE project_id = $7 AND drawing_id = $8 AND tag_id = $9 AND attribute = $10`
	tag, err := tx.Exec(ctx, query,
		inst.Spec, inst.Material, inst.Description, inst.Area, inst.System, inst.TestPackage,
		projectID.String(), key.DrawingID.String(), key.TagID, key.Attribute,
	)
	if err != nil {
		return 0, errors.Wrap(err, "update descriptive fields")
	}
	return tag.RowsAffected(), nil
}
