package importing

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
	"github.com/trakwell/pipetrak/modules/piping/domain/drawing"
)

// ValidationMode selects how deep the escalating pipeline goes.
type ValidationMode int

const (
	// FormatCheck only proves the file parses into the expected shape.
	FormatCheck ValidationMode = iota
	// PreviewValidation adds schema and business rules but skips
	// store-backed lookups.
	PreviewValidation
	// FullValidation adds store-backed duplicate and reference checks.
	FullValidation
)

func (m ValidationMode) String() string {
	switch m {
	case FormatCheck:
		return "format-check"
	case PreviewValidation:
		return "preview"
	case FullValidation:
		return "full"
	default:
		return "unknown"
	}
}

// Plausibility bounds for pressure ratings (psi). Outside is suspicious,
// not impossible.
var (
	pressureFloor   = decimal.NewFromInt(50)
	pressureCeiling = decimal.NewFromInt(15000)
)

var tagCharset = regexp.MustCompile(`^[A-Za-z0-9._/\-]+$`)

// Validator runs the escalating validation pipeline over normalized
// candidates.
type Validator struct {
	drawings  drawing.Repository
	instances component.Repository
	validate  *validator.Validate
	log       *logrus.Logger
}

func NewValidator(drawings drawing.Repository, instances component.Repository, log *logrus.Logger) *Validator {
	return &Validator{
		drawings:  drawings,
		instances: instances,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       log,
	}
}

// ValidationResult carries everything later stages need alongside the report.
type ValidationResult struct {
	Report *Report
	// Valid holds candidates with zero error-severity issues, drawing ids
	// resolved in full mode.
	Valid []*ImportCandidate
	// Existing is the per-key persisted state loaded in full mode.
	Existing map[component.IdentityKey]component.ExistingState
	// Drawings is the resolved number -> drawing map (full mode only).
	Drawings map[string]*drawing.Drawing
}

// Run validates candidates in batches. Batch boundaries bound peak memory
// for the store lookups; they never change the outcome of any row.
func (v *Validator) Run(ctx context.Context, candidates []*ImportCandidate, mode ValidationMode, opts Options) (*ValidationResult, error) {
	opts = opts.withDefaults()
	report := &Report{Mode: mode, TotalRows: len(candidates)}
	result := &ValidationResult{
		Report:   report,
		Existing: make(map[component.IdentityKey]component.ExistingState),
		Drawings: make(map[string]*drawing.Drawing),
	}

	if mode == FormatCheck {
		report.ValidRows = len(candidates)
		result.Valid = candidates
		return result, nil
	}

	if mode == FullValidation {
		if err := v.resolveDrawings(ctx, candidates, report, result, opts); err != nil {
			return nil, err
		}
	}

	fileKeyRows := make(map[string]int, len(candidates))

	for start := 0; start < len(candidates); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		for _, c := range batch {
			v.validateRow(c, report, result, mode, opts, fileKeyRows)
		}

		if mode == FullValidation {
			if err := v.checkStoreDuplicates(ctx, batch, report, result, opts); err != nil {
				return nil, err
			}
		}
	}

	seenKeys := make(map[string]bool)
	for _, c := range candidates {
		if report.RowHasErrors(c.Row) {
			report.InvalidRows++
			continue
		}
		report.ValidRows++
		result.Valid = append(result.Valid, c)
		if key := c.fileKey(); !seenKeys[key] {
			seenKeys[key] = true
			report.IdentityKeys = append(report.IdentityKeys, key)
		}
	}

	if report.InvalidRows > 0 {
		report.Recommend(fmt.Sprintf("%d row(s) failed validation; export the issue list, fix the source file, and re-run", report.InvalidRows))
	}
	if len(report.MissingDrawings) > 0 && !opts.CreateMissingDrawings {
		report.Recommend("load the referenced drawings first, or re-run with create-missing-drawings")
	}

	v.log.WithFields(logrus.Fields{
		"mode":    mode.String(),
		"total":   report.TotalRows,
		"valid":   report.ValidRows,
		"invalid": report.InvalidRows,
	}).Info("validation finished")

	return result, nil
}

// validateRow runs all per-row checks. A panic anywhere in the row's checks
// is converted into a row-scoped error so one malformed row never takes the
// run down.
func (v *Validator) validateRow(c *ImportCandidate, report *Report, result *ValidationResult, mode ValidationMode, opts Options, fileKeyRows map[string]int) {
	defer func() {
		if r := recover(); r != nil {
			v.log.WithField("row", c.Row).Errorf("row validation panicked: %v", r)
			report.AddError(c.Row, "", CodeRowFailed, fmt.Sprintf("row could not be processed: %v", r), "")
		}
	}()

	if mode == FullValidation {
		v.inheritFromDrawing(c, result.Drawings, report)
	}

	v.checkSchema(c, report)
	v.checkBusinessRules(c, report)

	// In-file identity repeats are folded by consolidation; surface them so
	// the operator sees the merge coming.
	key := c.fileKey()
	if firstRow, dup := fileKeyRows[key]; dup {
		report.AddWarning(c.Row, "", CodeDuplicateInFile,
			fmt.Sprintf("identity key repeats row %d; quantities will be merged", firstRow), key)
	} else {
		fileKeyRows[key] = c.Row
	}
}

func (v *Validator) checkSchema(c *ImportCandidate, report *Report) {
	err := v.validate.Struct(c)
	if err == nil {
		return
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		report.AddError(c.Row, "", CodeRowFailed, err.Error(), "")
		return
	}
	for _, fe := range validationErrs {
		field := canonicalFieldName(fe.Field())
		switch fe.Tag() {
		case "required":
			report.AddError(c.Row, field, CodeRequiredField, fmt.Sprintf("%s is required", field), "")
		case "max":
			if fe.Kind() == reflect.String {
				report.AddError(c.Row, field, CodeFieldTooLong, fmt.Sprintf("%s exceeds %s characters", field, fe.Param()), fmt.Sprintf("%v", fe.Value()))
			} else {
				report.AddError(c.Row, field, CodeQuantityRange, fmt.Sprintf("%s must be at most %s", field, fe.Param()), fmt.Sprintf("%v", fe.Value()))
			}
		case "min":
			report.AddError(c.Row, field, CodeQuantityRange, fmt.Sprintf("%s must be at least %s", field, fe.Param()), fmt.Sprintf("%v", fe.Value()))
		default:
			report.AddError(c.Row, field, CodeInvalidValue, fmt.Sprintf("%s is invalid (%s)", field, fe.Tag()), fmt.Sprintf("%v", fe.Value()))
		}
	}
}

func canonicalFieldName(structField string) string {
	switch structField {
	case "DrawingNumber":
		return FieldDrawing
	case "TagID":
		return FieldTagID
	case "Category":
		return FieldCategory
	case "Size":
		return FieldSize
	case "Quantity":
		return FieldQuantity
	case "Spec":
		return FieldSpec
	case "Material":
		return FieldMaterial
	case "Description":
		return FieldDescription
	case "Area":
		return FieldArea
	case "System":
		return FieldSystem
	case "TestPackage":
		return FieldTestPackage
	case "WeldType":
		return FieldWeldType
	case "WelderID":
		return FieldWelderID
	default:
		return structField
	}
}

func (v *Validator) checkBusinessRules(c *ImportCandidate, report *Report) {
	if c.TagID != "" && !tagCharset.MatchString(c.TagID) {
		report.AddError(c.Row, FieldTagID, CodeInvalidCharset,
			"identifier may only contain letters, digits, and ._/-", c.TagID)
	}

	if c.HasPressure {
		switch {
		case c.PressureRating.IsNegative():
			report.AddError(c.Row, FieldPressureRating, CodePressureNegative,
				"pressure rating cannot be negative", c.PressureRating.String())
		case c.PressureRating.LessThan(pressureFloor) || c.PressureRating.GreaterThan(pressureCeiling):
			report.AddWarning(c.Row, FieldPressureRating, CodePressureRange,
				fmt.Sprintf("pressure rating outside plausible range [%s, %s]", pressureFloor, pressureCeiling),
				c.PressureRating.String())
		}
	}

	if c.InspectionRequired && c.InspectionDate.IsZero() {
		report.AddWarning(c.Row, FieldInspectionDate, CodeInspectionNoDate,
			"inspection required but no inspection date given", "")
	}

	if c.Kind == KindWeld && c.WeldType == "" {
		report.AddWarning(c.Row, FieldWeldType, CodeRequiredField,
			"weld type missing; welds with the same id but different joint types will share numbering", "")
	}
}

// inheritFromDrawing copies blank identity-scoping fields from the resolved
// parent drawing, flagging each copy.
func (v *Validator) inheritFromDrawing(c *ImportCandidate, drawings map[string]*drawing.Drawing, report *Report) {
	d, ok := drawings[c.DrawingNumber]
	if !ok {
		return
	}
	c.DrawingID = d.ID()

	inherit := func(field string, current *string, parent string) {
		if *current != "" || parent == "" {
			return
		}
		*current = parent
		c.Inherited[field] = true
		report.AddWarning(c.Row, field, CodeInheritedField,
			fmt.Sprintf("%s inherited from drawing %s", field, c.DrawingNumber), parent)
	}

	inherit(FieldSpec, &c.Spec, d.Spec())
	inherit(FieldMaterial, &c.Material, d.Material())

	if !c.HasPressure && !d.PressureRating().IsZero() {
		c.PressureRating = d.PressureRating()
		c.HasPressure = true
		c.Inherited[FieldPressureRating] = true
		report.AddWarning(c.Row, FieldPressureRating, CodeInheritedField,
			fmt.Sprintf("pressure rating inherited from drawing %s", c.DrawingNumber), d.PressureRating().String())
	}
}

// resolveDrawings looks up (and optionally creates) every referenced drawing
// once per run.
func (v *Validator) resolveDrawings(ctx context.Context, candidates []*ImportCandidate, report *Report, result *ValidationResult, opts Options) error {
	numberSet := make(map[string]bool)
	for _, c := range candidates {
		if c.DrawingNumber != "" {
			numberSet[c.DrawingNumber] = true
		}
	}
	numbers := make([]string, 0, len(numberSet))
	for n := range numberSet {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)

	found, err := v.drawings.FindByNumbers(ctx, numbers)
	if err != nil {
		return fmt.Errorf("resolve drawings: %w", err)
	}

	var missing []string
	for _, n := range numbers {
		if _, ok := found[n]; !ok {
			missing = append(missing, n)
		}
	}

	if len(missing) > 0 && opts.CreateMissingDrawings {
		created, err := v.drawings.CreateMissing(ctx, missing)
		if err != nil {
			return fmt.Errorf("create missing drawings: %w", err)
		}
		for n, d := range created {
			found[n] = d
			report.AddInfo(0, FieldDrawing, CodeDrawingCreated,
				fmt.Sprintf("drawing %s created", n), n)
		}
		missing = nil
	}

	report.MissingDrawings = missing
	missingSet := make(map[string]bool, len(missing))
	for _, n := range missing {
		missingSet[n] = true
	}

	for _, c := range candidates {
		if c.DrawingNumber == "" {
			continue
		}
		if missingSet[c.DrawingNumber] {
			msg := fmt.Sprintf("drawing %s not found in project", c.DrawingNumber)
			if opts.StrictMode {
				report.AddError(c.Row, FieldDrawing, CodeDrawingNotFound, msg, c.DrawingNumber)
			} else {
				report.AddWarning(c.Row, FieldDrawing, CodeDrawingNotFound, msg, c.DrawingNumber)
			}
		}
	}

	result.Drawings = found
	return nil
}

// checkStoreDuplicates loads persisted state for the batch's keys and flags
// keys that already exist.
func (v *Validator) checkStoreDuplicates(ctx context.Context, batch []*ImportCandidate, report *Report, result *ValidationResult, opts Options) error {
	keySet := make(map[component.IdentityKey]bool)
	var keys []component.IdentityKey
	for _, c := range batch {
		if c.DrawingID == uuid.Nil {
			continue // unresolved drawing; reference check already spoke
		}
		k := c.IdentityKey()
		if !keySet[k] {
			keySet[k] = true
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	existing, err := v.instances.ExistingStates(ctx, keys)
	if err != nil {
		return fmt.Errorf("load existing instances: %w", err)
	}
	for k, state := range existing {
		result.Existing[k] = state
	}

	for _, c := range batch {
		state, ok := existing[c.IdentityKey()]
		if !ok || state.Count == 0 {
			continue
		}
		if opts.SkipDuplicates || opts.UpdateExisting {
			// Handled downstream: skipped or updated, never an error.
			continue
		}
		msg := fmt.Sprintf("identity key already has %d instance(s) in the project", state.Count)
		if opts.StrictMode {
			report.AddError(c.Row, FieldTagID, CodeDuplicateInStore, msg, c.IdentityKey().String())
		} else {
			report.AddWarning(c.Row, FieldTagID, CodeDuplicateInStore, msg, c.IdentityKey().String())
		}
	}
	return nil
}
