package drawing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Drawing is an isometric/spool drawing a component row references by number.
// Identity-scoping fields left blank on an import row are inherited from here.
type Drawing struct {
	id             uuid.UUID
	projectID      uuid.UUID
	number         string
	revision       string
	title          string
	spec           string
	material       string
	pressureRating decimal.Decimal
	createdAt      time.Time
	updatedAt      time.Time
}

type Option func(*Drawing)

func WithID(id uuid.UUID) Option {
	return func(d *Drawing) {
		d.id = id
	}
}

func WithRevision(revision string) Option {
	return func(d *Drawing) {
		d.revision = revision
	}
}

func WithTitle(title string) Option {
	return func(d *Drawing) {
		d.title = title
	}
}

func WithSpec(spec string) Option {
	return func(d *Drawing) {
		d.spec = spec
	}
}

func WithMaterial(material string) Option {
	return func(d *Drawing) {
		d.material = material
	}
}

func WithPressureRating(rating decimal.Decimal) Option {
	return func(d *Drawing) {
		d.pressureRating = rating
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(d *Drawing) {
		d.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(d *Drawing) {
		d.updatedAt = updatedAt
	}
}

func New(projectID uuid.UUID, number string, opts ...Option) *Drawing {
	d := &Drawing{
		id:        uuid.New(),
		projectID: projectID,
		number:    number,
		createdAt: time.Now(),
		updatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Drawing) ID() uuid.UUID                   { return d.id }
func (d *Drawing) ProjectID() uuid.UUID            { return d.projectID }
func (d *Drawing) Number() string                  { return d.number }
func (d *Drawing) Revision() string                { return d.revision }
func (d *Drawing) Title() string                   { return d.title }
func (d *Drawing) Spec() string                    { return d.spec }
func (d *Drawing) Material() string                { return d.material }
func (d *Drawing) PressureRating() decimal.Decimal { return d.pressureRating }
func (d *Drawing) CreatedAt() time.Time            { return d.createdAt }
func (d *Drawing) UpdatedAt() time.Time            { return d.updatedAt }

// Repository resolves drawing references for an import run.
type Repository interface {
	// FindByNumbers returns the drawings matching the given numbers within
	// the project in context. Unknown numbers are simply absent from the map.
	FindByNumbers(ctx context.Context, numbers []string) (map[string]*Drawing, error)
	// CreateMissing creates bare drawings for the given numbers and returns
	// all of them keyed by number. Numbers that already exist are returned
	// as-is, not duplicated.
	CreateMissing(ctx context.Context, numbers []string) (map[string]*Drawing, error)
}
