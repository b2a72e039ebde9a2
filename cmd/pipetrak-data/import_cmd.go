package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/trakwell/pipetrak/modules"
	"github.com/trakwell/pipetrak/modules/piping/importing"
	"github.com/trakwell/pipetrak/modules/piping/services"
	"github.com/trakwell/pipetrak/pkg/application"
	"github.com/trakwell/pipetrak/pkg/composables"
	"github.com/trakwell/pipetrak/pkg/configuration"
	"github.com/trakwell/pipetrak/pkg/eventbus"
)

type importCmdOptions struct {
	projectID uuid.UUID
	file      string
	kind      string
	outputDir string
	apply     bool

	strict         bool
	flexible       bool
	skipDuplicates bool
	updateExisting bool
	createDrawings bool
	allOrNothing   bool
}

func parseKind(s string) (importing.ImportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "component", "components":
		return importing.KindComponent, nil
	case "weld", "welds":
		return importing.KindWeld, nil
	default:
		return "", fmt.Errorf("unsupported --kind: %s (component|weld)", s)
	}
}

func (o importCmdOptions) engineOptions() importing.Options {
	conf := configuration.Use()
	strict := conf.Import.StrictByDefault
	if o.strict {
		strict = true
	}
	if o.flexible {
		strict = false
	}
	return importing.Options{
		MaxRows:               conf.Import.MaxRows,
		MaxColumns:            conf.Import.MaxColumns,
		BatchSize:             conf.Import.BatchSize,
		ChunkSize:             conf.Import.ChunkSize,
		ChunkTimeout:          conf.Import.TxTimeout,
		StrictMode:            strict,
		SkipDuplicates:        o.skipDuplicates,
		UpdateExisting:        o.updateExisting,
		CreateMissingDrawings: o.createDrawings,
		DryRun:                !o.apply,
		AllOrNothing:          o.allOrNothing,
	}
}

func addModeFlags(cmd *cobra.Command, opts *importCmdOptions) {
	cmd.Flags().StringVar(&opts.file, "file", "", "Input file, .xlsx or .csv (required)")
	cmd.Flags().StringVar(&opts.kind, "kind", "component", "Import kind: component|weld")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Treat reference and duplicate violations as errors")
	cmd.Flags().BoolVar(&opts.flexible, "flexible", false, "Downgrade reference and duplicate violations to warnings")
	_ = cmd.MarkFlagRequired("file")
}

func newImportCmd() *cobra.Command {
	var opts importCmdOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import components or welds into a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts)
		},
	}

	addModeFlags(cmd, &opts)
	cmd.Flags().StringVar(&opts.outputDir, "output", ".", "Output directory for manifest and issue report")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Apply changes to DB (default is dry-run)")
	cmd.Flags().BoolVar(&opts.skipDuplicates, "skip-duplicates", false, "Skip keys already covered in the project")
	cmd.Flags().BoolVar(&opts.updateExisting, "update-existing", false, "Refresh descriptive fields on existing instances")
	cmd.Flags().BoolVar(&opts.createDrawings, "create-missing-drawings", false, "Create bare drawings for unknown references")
	cmd.Flags().BoolVar(&opts.allOrNothing, "all-or-nothing", false, "Stop at the first failed chunk")

	var project string
	cmd.Flags().StringVar(&project, "project", "", "Project UUID (required)")
	_ = cmd.MarkFlagRequired("project")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(strings.TrimSpace(project))
		if err != nil {
			return withCode(exitUsage, fmt.Errorf("invalid --project: %w", err))
		}
		opts.projectID = id
		return nil
	}

	return cmd
}

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	conf := configuration.Use()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func bootstrapApp(pool *pgxpool.Pool) (application.Application, error) {
	conf := configuration.Use()
	log := conf.Logger()
	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(log),
		Logger:   log,
	})
	if err := modules.Load(app); err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}
	return app, nil
}

func importService(app application.Application) *services.ImportService {
	return app.Service(services.ImportService{}).(*services.ImportService)
}

func runImport(ctx context.Context, opts importCmdOptions) error {
	kind, err := parseKind(opts.kind)
	if err != nil {
		return withCode(exitUsage, err)
	}
	if err := configuration.Use().Import.Validate(); err != nil {
		return withCode(exitUsage, err)
	}

	data, err := os.ReadFile(opts.file)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("read input: %w", err))
	}

	pool, err := connectDB(ctx)
	if err != nil {
		return withCode(exitDB, err)
	}
	defer pool.Close()
	ctx = composables.WithPool(ctx, pool)

	app, err := bootstrapApp(pool)
	if err != nil {
		return withCode(exitDB, err)
	}

	startedAt := time.Now().UTC()
	runID := uuid.New()
	svc := importService(app)

	res, err := svc.Import(ctx, opts.projectID, data, filepath.Base(opts.file), kind, opts.engineOptions())
	if err != nil {
		return withCode(exitDB, err)
	}

	status := "applied"
	switch {
	case res.DryRun:
		status = "dry_run"
	case res.Summary.Aborted:
		status = "aborted"
	case res.Summary.FailedChunks > 0:
		status = "partial"
	}

	manifest := newManifest(runID, opts.projectID, kind, filepath.Base(opts.file), status, startedAt, res)
	if reportPath, err := writeIssueReport(opts.outputDir, runID, res.Report); err != nil {
		return withCode(exitDB, fmt.Errorf("write issue report: %w", err))
	} else if reportPath != "" {
		manifest.ReportCSV = reportPath
	}

	if !res.DryRun {
		if _, err := writeManifest(opts.outputDir, manifest); err != nil {
			return withCode(exitDB, fmt.Errorf("write manifest: %w", err))
		}
	}
	if err := writeJSONLine(manifest); err != nil {
		return err
	}

	switch status {
	case "aborted", "partial":
		return withCode(exitPartial, fmt.Errorf("%d chunk(s) failed", res.Summary.FailedChunks))
	}
	if !res.Succeeded() && res.Summary.Created == 0 && !res.DryRun {
		return withCode(exitValidation, fmt.Errorf("no rows imported: %d invalid row(s)", res.Summary.InvalidRows))
	}
	return nil
}
