package importing

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue codes. Stable: operators key spreadsheet fixes off them.
const (
	CodeRequiredField     = "REQUIRED_FIELD"
	CodeFieldTooLong      = "FIELD_TOO_LONG"
	CodeInvalidValue      = "INVALID_VALUE"
	CodeInvalidCharset    = "INVALID_CHARSET"
	CodeQuantityDefaulted = "QUANTITY_DEFAULTED"
	CodeQuantityRange     = "QUANTITY_RANGE"
	CodePressureRange     = "PRESSURE_RANGE"
	CodePressureNegative  = "PRESSURE_NEGATIVE"
	CodeInspectionNoDate  = "INSPECTION_NO_DATE"
	CodeInheritedField    = "INHERITED_FIELD"
	CodeDuplicateInFile   = "DUPLICATE_IN_FILE"
	CodeDuplicateInStore  = "DUPLICATE_IN_STORE"
	CodeDrawingNotFound   = "DRAWING_NOT_FOUND"
	CodeDrawingCreated    = "DRAWING_CREATED"
	CodeRowsMerged        = "ROWS_MERGED"
	CodeRowFailed         = "ROW_FAILED"
	CodeTemplateEmpty     = "TEMPLATE_EMPTY"
	CodeChunkFailed       = "CHUNK_FAILED"
	CodeSkippedExisting   = "SKIPPED_EXISTING"
	CodeRowsTruncated     = "ROWS_TRUNCATED"
	CodeColumnUnmapped    = "COLUMN_UNMAPPED"
)

// Issue is one finding against one source row. Row 0 means the issue applies
// to the whole file. Immutable once recorded.
type Issue struct {
	Row            int
	Field          string
	Severity       Severity
	Code           string
	Message        string
	Value          string
	Recommendation string
}

// Report accumulates validation findings for one import run.
type Report struct {
	Mode ValidationMode

	TotalRows   int
	ValidRows   int
	InvalidRows int

	Issues []Issue

	// IdentityKeys is the deduplicated set of identity keys seen among
	// valid rows (string form, file-relative before drawing resolution).
	IdentityKeys []string
	// MissingDrawings lists drawing numbers referenced but not found.
	MissingDrawings []string

	Recommendations []string
}

func (r *Report) Add(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

func (r *Report) AddError(row int, field, code, message, value string) {
	r.Add(Issue{Row: row, Field: field, Severity: SeverityError, Code: code, Message: message, Value: value})
}

func (r *Report) AddWarning(row int, field, code, message, value string) {
	r.Add(Issue{Row: row, Field: field, Severity: SeverityWarning, Code: code, Message: message, Value: value})
}

func (r *Report) AddInfo(row int, field, code, message, value string) {
	r.Add(Issue{Row: row, Field: field, Severity: SeverityInfo, Code: code, Message: message, Value: value})
}

func (r *Report) Recommend(text string) {
	r.Recommendations = append(r.Recommendations, text)
}

func (r *Report) CountBySeverity(sev Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			n++
		}
	}
	return n
}

// RowHasErrors reports whether any error-severity issue targets the row.
// A row with warnings only is still valid.
func (r *Report) RowHasErrors(row int) bool {
	for _, issue := range r.Issues {
		if issue.Row == row && issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ExportCSV renders the flat operator-facing form: one line per issue with
// row number and code preserved, ordered by row then code.
func (r *Report) ExportCSV() ([]byte, error) {
	issues := make([]Issue, len(r.Issues))
	copy(issues, r.Issues)
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Row != issues[j].Row {
			return issues[i].Row < issues[j].Row
		}
		return issues[i].Code < issues[j].Code
	})

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"row", "field", "category", "code", "message", "value", "recommendation"}); err != nil {
		return nil, err
	}
	for _, issue := range issues {
		record := []string{
			fmt.Sprintf("%d", issue.Row),
			issue.Field,
			string(issue.Severity),
			issue.Code,
			issue.Message,
			issue.Value,
			issue.Recommendation,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
