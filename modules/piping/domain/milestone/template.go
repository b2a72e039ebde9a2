package milestone

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
)

// Workflow controls how completion of a milestone is recorded.
type Workflow string

const (
	WorkflowDiscrete   Workflow = "discrete"
	WorkflowPercentage Workflow = "percentage"
	WorkflowQuantity   Workflow = "quantity"
)

// Definition is one milestone within a template. Weight is the milestone's
// contribution to overall completion; a template's weights sum to ~100.
type Definition struct {
	Name     string
	Order    int
	Weight   decimal.Decimal
	Workflow Workflow
}

type Template struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	Name        string
	IsDefault   bool
	Definitions []Definition
	CreatedAt   time.Time
}

// Record is the per-instance materialization of one definition.
type Record struct {
	ID         uuid.UUID
	InstanceID uuid.UUID
	Name       string
	Order      int
	Weight     decimal.Decimal
	Workflow   Workflow
	Completed  bool
	// Value holds percentage or quantity progress; stays zero for
	// discrete milestones until completion.
	Value decimal.Decimal
}

// Materialize expands the template's definitions into not-started records
// for one instance.
func (t *Template) Materialize(instanceID uuid.UUID) []Record {
	records := make([]Record, 0, len(t.Definitions))
	for _, def := range t.Definitions {
		records = append(records, Record{
			ID:         uuid.New(),
			InstanceID: instanceID,
			Name:       def.Name,
			Order:      def.Order,
			Weight:     def.Weight,
			Workflow:   def.Workflow,
		})
	}
	return records
}

// DefaultDefinitions is the minimal milestone set used when a project has no
// default template yet.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: "Receive", Order: 1, Weight: decimal.NewFromInt(10), Workflow: WorkflowDiscrete},
		{Name: "Install", Order: 2, Weight: decimal.NewFromInt(60), Workflow: WorkflowDiscrete},
		{Name: "Test", Order: 3, Weight: decimal.NewFromInt(20), Workflow: WorkflowDiscrete},
		{Name: "Complete", Order: 4, Weight: decimal.NewFromInt(10), Workflow: WorkflowDiscrete},
	}
}

// TemplateRepository is the milestone-template directory the engine assigns
// templates from.
type TemplateRepository interface {
	// CategoryMappings returns the explicit category -> template id table
	// for the project in context.
	CategoryMappings(ctx context.Context) (map[component.Category]uuid.UUID, error)
	// GetByID loads a template with its definitions.
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	// EnsureDefault returns the project's default template, creating one
	// with DefaultDefinitions when none exists.
	EnsureDefault(ctx context.Context) (*Template, error)
	// InsertRecords writes per-instance milestone records within the
	// current transaction.
	InsertRecords(ctx context.Context, records []Record) error
}
