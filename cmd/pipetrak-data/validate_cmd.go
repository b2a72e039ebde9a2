package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trakwell/pipetrak/modules/piping/importing"
)

// check and validate work entirely off the file; no database connection.

func newCheckCmd() *cobra.Command {
	var opts importCmdOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check file structure and column mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOffline(cmd.Context(), opts, importing.FormatCheck)
		},
	}
	addModeFlags(cmd, &opts)
	return cmd
}

func newValidateCmd() *cobra.Command {
	var opts importCmdOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate rows without touching the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOffline(cmd.Context(), opts, importing.PreviewValidation)
		},
	}
	addModeFlags(cmd, &opts)
	cmd.Flags().StringVar(&opts.outputDir, "output", "", "Directory for the CSV issue report (optional)")
	return cmd
}

type offlineSummary struct {
	Mode    string            `json:"mode"`
	File    string            `json:"file"`
	Mapping map[string]string `json:"mapping"`
	Summary importing.Summary `json:"summary"`
	Issues  map[string]int    `json:"issues"`
}

func runOffline(ctx context.Context, opts importCmdOptions, mode importing.ValidationMode) error {
	kind, err := parseKind(opts.kind)
	if err != nil {
		return withCode(exitUsage, err)
	}
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("read input: %w", err))
	}

	// The offline modes never reach the repositories, so the production
	// service works without a pool in context.
	app, err := bootstrapApp(nil)
	if err != nil {
		return withCode(exitValidation, err)
	}
	svc := importService(app)
	var res *importing.Result
	if mode == importing.FormatCheck {
		res, err = svc.CheckFormat(ctx, data, filepath.Base(opts.file), kind, opts.engineOptions())
	} else {
		res, err = svc.Validate(ctx, data, filepath.Base(opts.file), kind, opts.engineOptions())
	}
	if err != nil {
		return withCode(exitValidation, err)
	}

	out := offlineSummary{
		Mode:    mode.String(),
		File:    filepath.Base(opts.file),
		Mapping: map[string]string(res.Mapping),
		Summary: res.Summary,
		Issues: map[string]int{
			"errors":   res.Report.CountBySeverity(importing.SeverityError),
			"warnings": res.Report.CountBySeverity(importing.SeverityWarning),
			"infos":    res.Report.CountBySeverity(importing.SeverityInfo),
		},
	}
	if err := writeJSONLine(out); err != nil {
		return err
	}

	if opts.outputDir != "" {
		if _, err := writeIssueReport(opts.outputDir, uuid.New(), res.Report); err != nil {
			return withCode(exitValidation, fmt.Errorf("write issue report: %w", err))
		}
	}

	if !res.Succeeded() {
		return withCode(exitValidation, fmt.Errorf("%d error issue(s) found", out.Issues["errors"]))
	}
	return nil
}
