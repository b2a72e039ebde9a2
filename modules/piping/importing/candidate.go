package importing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
)

// ImportCandidate is one normalized, typed component/weld row. Created by the
// normalizer, consumed by validation and consolidation. Row is the 1-based
// source row (header = row 1) so issues point back at the file.
type ImportCandidate struct {
	Row  int
	Kind ImportKind

	DrawingNumber string `validate:"required,max=64"`
	// DrawingID is resolved during validation from DrawingNumber.
	DrawingID uuid.UUID

	TagID    string `validate:"required,max=64"`
	Category string `validate:"max=64"`
	Size     string `validate:"max=32"`
	Quantity int    `validate:"min=1,max=10000"`

	Spec           string `validate:"max=64"`
	Material       string `validate:"max=64"`
	PressureRating decimal.Decimal
	HasPressure    bool

	Description string `validate:"max=512"`
	Area        string `validate:"max=64"`
	System      string `validate:"max=64"`
	TestPackage string `validate:"max=64"`

	InspectionRequired bool
	InspectionDate     time.Time

	WeldType string `validate:"max=32"`
	WelderID string `validate:"max=32"`

	// Inherited marks canonical fields copied from the parent drawing
	// rather than supplied by the row.
	Inherited map[string]bool

	// MergedRows counts source rows folded into this candidate by
	// consolidation; 1 for an unmerged row.
	MergedRows int
}

// IdentityKey scopes instance numbering: welds discriminate on weld type,
// components on size.
func (c *ImportCandidate) IdentityKey() component.IdentityKey {
	attr := c.Size
	if c.Kind == KindWeld {
		attr = c.WeldType
	}
	return component.IdentityKey{
		DrawingID: c.DrawingID,
		TagID:     c.TagID,
		Attribute: attr,
	}
}

// fileKey identifies a candidate before drawing resolution, for in-file
// duplicate detection.
func (c *ImportCandidate) fileKey() string {
	attr := c.Size
	if c.Kind == KindWeld {
		attr = c.WeldType
	}
	return c.DrawingNumber + "|" + c.TagID + "|" + attr
}

// ComponentCategory maps the row's free-text category to the tracked enum.
func (c *ImportCandidate) ComponentCategory() component.Category {
	if c.Kind == KindWeld {
		return component.CategoryFieldWeld
	}
	switch normalizeHeader(c.Category) {
	case "spool", "pipespool", "pipe":
		return component.CategorySpool
	case "valve", "vlv":
		return component.CategoryValve
	case "support", "hanger", "pipesupport":
		return component.CategorySupport
	case "gasket", "gskt":
		return component.CategoryGasket
	case "flange", "flg":
		return component.CategoryFlange
	case "fitting", "elbow", "tee", "reducer":
		return component.CategoryFitting
	default:
		return component.CategoryOther
	}
}

// Instance materializes one numbered instance from the candidate.
func (c *ImportCandidate) Instance(projectID uuid.UUID, number, total int, templateID uuid.UUID) *component.Instance {
	now := time.Now()
	return &component.Instance{
		ID:             uuid.New(),
		ProjectID:      projectID,
		Key:            c.IdentityKey(),
		InstanceNumber: number,
		TotalOnKey:     total,
		Category:       c.ComponentCategory(),
		Spec:           c.Spec,
		Material:       c.Material,
		Description:    c.Description,
		Area:           c.Area,
		System:         c.System,
		TestPackage:    c.TestPackage,
		TemplateID:     templateID,
		Status:         component.StatusNotStarted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
