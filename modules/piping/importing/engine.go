package importing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
	"github.com/trakwell/pipetrak/modules/piping/domain/drawing"
	"github.com/trakwell/pipetrak/modules/piping/domain/milestone"
)

// Engine runs the full reconciliation pipeline over one uploaded file:
// parse, map columns, normalize, validate, consolidate, expand quantities
// into numbered instances, assign milestone templates, persist in chunks.
type Engine struct {
	validator *Validator
	assigner  *TemplateAssigner
	batcher   *Batcher
	log       *logrus.Logger
}

func NewEngine(
	drawings drawing.Repository,
	instances component.Repository,
	templates milestone.TemplateRepository,
	tx TxRunner,
	log *logrus.Logger,
) *Engine {
	return &Engine{
		validator: NewValidator(drawings, instances, log),
		assigner:  NewTemplateAssigner(templates),
		batcher:   NewBatcher(instances, templates, tx, log),
		log:       log,
	}
}

// Summary condenses a run's counts for callers that do not walk the report.
type Summary struct {
	TotalRows        int           `json:"totalRows"`
	ValidRows        int           `json:"validRows"`
	InvalidRows      int           `json:"invalidRows"`
	TruncatedRows    int           `json:"truncatedRows,omitempty"`
	MergedRows       int           `json:"mergedRows,omitempty"`
	PlannedInstances int           `json:"plannedInstances"`
	Created          int           `json:"created"`
	Updated          int           `json:"updated"`
	Skipped          int           `json:"skipped"`
	FailedChunks     int           `json:"failedChunks,omitempty"`
	Aborted          bool          `json:"aborted,omitempty"`
	Elapsed          time.Duration `json:"-"`
}

// Result is the outcome of one engine operation.
type Result struct {
	Mapping     ColumnMapping
	Report      *Report
	Summary     Summary
	InstanceIDs []uuid.UUID
	DryRun      bool
}

// Succeeded reports whether the run produced no error-severity issues.
func (r *Result) Succeeded() bool {
	return r.Report.CountBySeverity(SeverityError) == 0
}

type prepared struct {
	mapping    ColumnMapping
	candidates []*ImportCandidate
	issues     []Issue
	truncated  int
	totalRows  int
}

// prepare runs the stages that need no store access: parse, column mapping,
// row normalization.
func (e *Engine) prepare(data []byte, filename string, kind ImportKind, opts Options) (*prepared, error) {
	opts = opts.withDefaults()

	table, err := Parse(data, filename, ParseOptions{MaxRows: opts.MaxRows, MaxColumns: opts.MaxColumns})
	if err != nil {
		return nil, err
	}

	p := &prepared{
		mapping:   MapColumns(table.Headers, kind),
		truncated: table.Truncated,
		totalRows: table.TotalRows,
	}

	if table.Truncated > 0 {
		p.issues = append(p.issues, Issue{
			Severity: SeverityWarning,
			Code:     CodeRowsTruncated,
			Message:  fmt.Sprintf("%d row(s) beyond the %d-row cap were not read", table.Truncated, opts.MaxRows),
		})
	}

	for _, field := range []string{FieldDrawing, FieldTagID} {
		if p.mapping.Header(field) == "" {
			p.issues = append(p.issues, Issue{
				Field:    field,
				Severity: SeverityError,
				Code:     CodeColumnUnmapped,
				Message:  fmt.Sprintf("no column maps to required field %q", field),
			})
		}
	}

	// Header is row 1; data starts at row 2.
	for i, row := range table.Rows {
		c, issues := NormalizeRow(row, p.mapping, kind, i+2)
		p.issues = append(p.issues, issues...)
		p.candidates = append(p.candidates, c)
	}

	return p, nil
}

func (e *Engine) run(ctx context.Context, p *prepared, mode ValidationMode, opts Options) (*Result, *ValidationResult, error) {
	vr, err := e.validator.Run(ctx, p.candidates, mode, opts)
	if err != nil {
		return nil, nil, err
	}
	for _, issue := range p.issues {
		vr.Report.Add(issue)
	}
	// Prep issues can carry errors the validator never saw (unmapped
	// columns, normalization failures), so the valid set is re-derived.
	if len(p.issues) > 0 {
		valid := vr.Valid[:0]
		for _, c := range vr.Valid {
			if !vr.Report.RowHasErrors(c.Row) {
				valid = append(valid, c)
			}
		}
		vr.Report.InvalidRows += len(vr.Valid) - len(valid)
		vr.Report.ValidRows -= len(vr.Valid) - len(valid)
		vr.Valid = valid
	}

	res := &Result{
		Mapping: p.mapping,
		Report:  vr.Report,
		Summary: Summary{
			TotalRows:     p.totalRows,
			ValidRows:     vr.Report.ValidRows,
			InvalidRows:   vr.Report.InvalidRows,
			TruncatedRows: p.truncated,
		},
	}
	return res, vr, nil
}

// CheckFormat parses the file and verifies structure and column mapping only.
// No store access.
func (e *Engine) CheckFormat(ctx context.Context, data []byte, filename string, kind ImportKind, opts Options) (*Result, error) {
	p, err := e.prepare(data, filename, kind, opts)
	if err != nil {
		return nil, err
	}
	res, _, err := e.run(ctx, p, FormatCheck, opts)
	return res, err
}

// Validate runs schema and business-rule checks without touching the store.
func (e *Engine) Validate(ctx context.Context, data []byte, filename string, kind ImportKind, opts Options) (*Result, error) {
	p, err := e.prepare(data, filename, kind, opts)
	if err != nil {
		return nil, err
	}
	res, _, err := e.run(ctx, p, PreviewValidation, opts)
	return res, err
}

// Import runs the full pipeline for the project in scope. DryRun stops after
// planning; nothing is written but the result reports what would have been.
func (e *Engine) Import(ctx context.Context, projectID uuid.UUID, data []byte, filename string, kind ImportKind, opts Options) (*Result, error) {
	started := time.Now()
	opts = opts.withDefaults()

	p, err := e.prepare(data, filename, kind, opts)
	if err != nil {
		return nil, err
	}
	res, vr, err := e.run(ctx, p, FullValidation, opts)
	if err != nil {
		return nil, err
	}

	// A nil drawing id would collapse rows from distinct unresolved
	// drawings onto one identity key, so those rows never expand.
	eligible := make([]*ImportCandidate, 0, len(vr.Valid))
	for _, c := range vr.Valid {
		if c.DrawingID == uuid.Nil {
			res.Summary.Skipped++
			res.Report.AddInfo(c.Row, FieldDrawing, CodeDrawingNotFound,
				fmt.Sprintf("row skipped: drawing %s is not in the project; add it or enable create-missing-drawings", c.DrawingNumber),
				c.DrawingNumber)
			continue
		}
		eligible = append(eligible, c)
	}

	consolidated := Consolidate(eligible, res.Report)
	for _, c := range consolidated {
		if c.MergedRows > 1 {
			res.Summary.MergedRows += c.MergedRows - 1
		}
	}

	expansions := Expand(projectID, consolidated, vr.Existing, opts, res.Report)

	if err := e.assigner.Load(ctx); err != nil {
		return nil, err
	}
	records := e.assigner.Assign(expansions, res.Report)

	for _, exp := range expansions {
		res.Summary.PlannedInstances += len(exp.Instances)
		if exp.Skipped {
			res.Summary.Skipped++
		}
	}

	if opts.DryRun {
		res.DryRun = true
		res.Summary.Elapsed = time.Since(started)
		e.log.WithFields(logrus.Fields{
			"planned": res.Summary.PlannedInstances,
			"skipped": res.Summary.Skipped,
		}).Info("dry run complete, nothing written")
		return res, nil
	}

	outcome, err := e.batcher.Persist(ctx, expansions, records, opts, res.Report)
	if err != nil {
		return nil, err
	}

	res.Summary.Created = outcome.Created
	res.Summary.Updated = outcome.Updated
	res.Summary.Skipped = outcome.Skipped
	res.Summary.FailedChunks = outcome.FailedChunks
	res.Summary.Aborted = outcome.Aborted
	res.InstanceIDs = outcome.InstanceIDs
	res.Summary.Elapsed = time.Since(started)

	e.log.WithFields(logrus.Fields{
		"created": outcome.Created,
		"updated": outcome.Updated,
		"skipped": outcome.Skipped,
		"failed":  outcome.FailedChunks,
		"elapsed": res.Summary.Elapsed.String(),
	}).Info("import finished")

	return res, nil
}
