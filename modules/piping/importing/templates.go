package importing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
	"github.com/trakwell/pipetrak/modules/piping/domain/milestone"
)

// TemplateAssigner resolves milestone templates per component category. The
// category table and every referenced template are loaded once per run.
type TemplateAssigner struct {
	repo milestone.TemplateRepository

	mappings  map[component.Category]uuid.UUID
	templates map[uuid.UUID]*milestone.Template
	fallback  *milestone.Template
}

func NewTemplateAssigner(repo milestone.TemplateRepository) *TemplateAssigner {
	return &TemplateAssigner{repo: repo}
}

// Load fetches the category table, all referenced templates, and the
// guaranteed default template.
func (a *TemplateAssigner) Load(ctx context.Context) error {
	mappings, err := a.repo.CategoryMappings(ctx)
	if err != nil {
		return fmt.Errorf("load template mappings: %w", err)
	}
	a.mappings = mappings
	a.templates = make(map[uuid.UUID]*milestone.Template, len(mappings))

	for _, id := range mappings {
		if _, loaded := a.templates[id]; loaded {
			continue
		}
		tpl, err := a.repo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load template %s: %w", id, err)
		}
		a.templates[id] = tpl
	}

	fallback, err := a.repo.EnsureDefault(ctx)
	if err != nil {
		return fmt.Errorf("ensure default template: %w", err)
	}
	a.fallback = fallback
	a.templates[fallback.ID] = fallback
	return nil
}

// Assign stamps each planned instance with its category's template and
// materializes the per-instance milestone records. An empty resolved
// template fails only the affected instances, which are removed from the
// expansion; the run continues.
func (a *TemplateAssigner) Assign(expansions []*Expansion, report *Report) []milestone.Record {
	var records []milestone.Record

	for _, exp := range expansions {
		if exp.Skipped || len(exp.Instances) == 0 {
			continue
		}

		category := exp.Candidate.ComponentCategory()
		tpl := a.templateFor(category)

		if len(tpl.Definitions) == 0 {
			report.AddError(exp.Candidate.Row, FieldCategory, CodeTemplateEmpty,
				fmt.Sprintf("template %q has no milestone definitions", tpl.Name), string(category))
			exp.Instances = nil
			continue
		}

		for _, inst := range exp.Instances {
			inst.TemplateID = tpl.ID
			records = append(records, tpl.Materialize(inst.ID)...)
		}
	}

	return records
}

func (a *TemplateAssigner) templateFor(category component.Category) *milestone.Template {
	if id, ok := a.mappings[category]; ok {
		if tpl, loaded := a.templates[id]; loaded {
			return tpl
		}
	}
	return a.fallback
}
