package importing

import (
	"github.com/shopspring/decimal"
)

// NormalizeRow converts one raw row into a typed candidate. Coercion failures
// on non-identity fields degrade to issues instead of rejecting the row;
// validation decides the row's fate.
func NormalizeRow(row RawRow, mapping ColumnMapping, kind ImportKind, sourceRow int) (*ImportCandidate, []Issue) {
	var issues []Issue
	c := &ImportCandidate{
		Row:        sourceRow,
		Kind:       kind,
		Quantity:   1,
		Inherited:  make(map[string]bool),
		MergedRows: 1,
	}

	cell := func(field string) Cell {
		header := mapping.Header(field)
		if header == "" {
			return EmptyCell()
		}
		return row[header]
	}

	c.DrawingNumber = cell(FieldDrawing).String()
	c.TagID = cell(FieldTagID).String()
	c.Category = cell(FieldCategory).String()
	c.Size = cell(FieldSize).String()
	c.Spec = cell(FieldSpec).String()
	c.Material = cell(FieldMaterial).String()
	c.Description = cell(FieldDescription).String()
	c.Area = cell(FieldArea).String()
	c.System = cell(FieldSystem).String()
	c.TestPackage = cell(FieldTestPackage).String()
	c.WeldType = cell(FieldWeldType).String()
	c.WelderID = cell(FieldWelderID).String()

	if qty := cell(FieldQuantity); !qty.IsEmpty() {
		n, err := coerceNumber(qty)
		if err != nil || !n.Equal(n.Truncate(0)) || n.LessThan(decimal.NewFromInt(1)) {
			issues = append(issues, Issue{
				Row: sourceRow, Field: FieldQuantity, Severity: SeverityWarning,
				Code: CodeQuantityDefaulted, Message: "quantity unparseable, defaulted to 1",
				Value: qty.Raw, Recommendation: "use a whole number of 1 or more",
			})
		} else {
			c.Quantity = int(n.IntPart())
		}
	} else if mapping.Header(FieldQuantity) != "" {
		issues = append(issues, Issue{
			Row: sourceRow, Field: FieldQuantity, Severity: SeverityWarning,
			Code: CodeQuantityDefaulted, Message: "quantity missing, defaulted to 1",
		})
	}

	if p := cell(FieldPressureRating); !p.IsEmpty() {
		n, err := coerceNumber(p)
		if err != nil {
			issues = append(issues, Issue{
				Row: sourceRow, Field: FieldPressureRating, Severity: SeverityWarning,
				Code: CodeInvalidValue, Message: "pressure rating unparseable, ignored",
				Value: p.Raw,
			})
		} else {
			c.PressureRating = n
			c.HasPressure = true
		}
	}

	if flag := cell(FieldInspectionRequired); !flag.IsEmpty() {
		b, err := coerceBool(flag)
		if err != nil {
			issues = append(issues, Issue{
				Row: sourceRow, Field: FieldInspectionRequired, Severity: SeverityWarning,
				Code: CodeInvalidValue, Message: "inspection flag unparseable, treated as no",
				Value: flag.Raw,
			})
		} else {
			c.InspectionRequired = b
		}
	}

	if d := cell(FieldInspectionDate); !d.IsEmpty() {
		t, err := coerceTime(d)
		if err != nil {
			issues = append(issues, Issue{
				Row: sourceRow, Field: FieldInspectionDate, Severity: SeverityWarning,
				Code: CodeInvalidValue, Message: "inspection date unparseable, ignored",
				Value: d.Raw,
			})
		} else {
			c.InspectionDate = t
		}
	}

	return c, issues
}
