package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/trakwell/pipetrak/modules/piping/importing"
)

func writeJSONLine(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return withCode(exitDB, fmt.Errorf("json encode: %w", err))
	}
	return nil
}

type importManifestV1 struct {
	Version    int       `json:"version"`
	RunID      uuid.UUID `json:"run_id"`
	ProjectID  uuid.UUID `json:"project_id"`
	Kind       string    `json:"kind"`
	File       string    `json:"file"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary   importing.Summary `json:"summary"`
	Issues    map[string]int    `json:"issues"`
	Inserted  []uuid.UUID       `json:"inserted_instances"`
	ReportCSV string            `json:"report_csv,omitempty"`
}

func newManifest(runID, projectID uuid.UUID, kind importing.ImportKind, file, status string, startedAt time.Time, res *importing.Result) *importManifestV1 {
	return &importManifestV1{
		Version:    1,
		RunID:      runID,
		ProjectID:  projectID,
		Kind:       string(kind),
		File:       file,
		Status:     status,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Summary:    res.Summary,
		Issues: map[string]int{
			"errors":   res.Report.CountBySeverity(importing.SeverityError),
			"warnings": res.Report.CountBySeverity(importing.SeverityWarning),
			"infos":    res.Report.CountBySeverity(importing.SeverityInfo),
		},
		Inserted: res.InstanceIDs,
	}
}

func writeManifest(outputDir string, manifest *importManifestV1) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, fmt.Sprintf("import-manifest-%s.json", manifest.RunID))
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, data, 0o644)
}

// writeIssueReport exports the issue list next to the manifest and returns
// its path, or "" when there is nothing to report.
func writeIssueReport(outputDir string, runID uuid.UUID, report *importing.Report) (string, error) {
	if len(report.Issues) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	data, err := report.ExportCSV()
	if err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, fmt.Sprintf("import-issues-%s.csv", runID))
	return path, os.WriteFile(path, data, 0o644)
}
