package importing

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	"github.com/trakwell/pipetrak/pkg/serrors"
)

var (
	ErrUnsupportedFormat = serrors.NewError("IMPORT_UNSUPPORTED_FORMAT", "unsupported file format", "upload an .xlsx or .csv export")
	ErrEmptyFile         = serrors.NewError("IMPORT_EMPTY_FILE", "no data rows found", "the file needs a header row and at least one data row")
)

// maxTemplateColumns caps the read width. Legacy takeoff templates are 27
// columns wide; anything beyond that is formatting junk.
const maxTemplateColumns = 27

// RawRow maps a source header to the cell under it.
type RawRow map[string]Cell

// Table is the parsed form of one uploaded file.
type Table struct {
	Headers   []string
	Rows      []RawRow
	TotalRows int
	// Truncated reports rows dropped by the MaxRows cap.
	Truncated int
}

type ParseOptions struct {
	MaxRows    int
	MaxColumns int
}

func (o ParseOptions) withDefaults() ParseOptions {
	if o.MaxRows <= 0 {
		o.MaxRows = 20000
	}
	if o.MaxColumns <= 0 || o.MaxColumns > maxTemplateColumns {
		o.MaxColumns = maxTemplateColumns
	}
	return o
}

// Parse reads a spreadsheet or CSV byte buffer into headers plus raw rows.
// Format is detected from magic bytes first, extension second.
func Parse(data []byte, filename string, opts ParseOptions) (*Table, error) {
	opts = opts.withDefaults()
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	switch detectFormat(data, filename) {
	case formatXLSX:
		return parseXLSX(data, opts)
	case formatCSV:
		return parseCSV(data, opts)
	default:
		return nil, ErrUnsupportedFormat.WithDetails("%s", filepath.Base(filename))
	}
}

type fileFormat int

const (
	formatUnknown fileFormat = iota
	formatXLSX
	formatCSV
)

func detectFormat(data []byte, filename string) fileFormat {
	mime := mimetype.Detect(data)
	switch {
	case mime.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return formatXLSX
	case mime.Is("text/csv"):
		return formatCSV
	}

	// Magic-byte detection is inconclusive for plain text; fall back to the
	// declared extension, but only when the content is valid text.
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
			return formatXLSX
		}
	case ".csv", ".txt":
		if mime.Is("text/plain") || utf8.Valid(data) {
			return formatCSV
		}
	}
	return formatUnknown
}

func parseXLSX(data []byte, opts ParseOptions) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnsupportedFormat.WithDetails("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	defer func() { _ = rows.Close() }()

	var headers []string
	table := &Table{}
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if headers == nil {
			headers = cleanHeaders(record, opts.MaxColumns)
			if len(headers) == 0 {
				return nil, ErrEmptyFile.WithDetails("no header row")
			}
			continue
		}
		if len(table.Rows) >= opts.MaxRows {
			table.Truncated++
			continue
		}
		if row := buildRow(headers, record); row != nil {
			table.Rows = append(table.Rows, row)
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	if headers == nil || len(table.Rows) == 0 {
		return nil, ErrEmptyFile
	}
	table.Headers = headers
	table.TotalRows = len(table.Rows) + table.Truncated
	return table, nil
}

func parseCSV(data []byte, opts ParseOptions) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = false
	// Field exports put inch marks in size columns; treat bare quotes as data.
	r.LazyQuotes = true

	headerRec, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmptyFile
		}
		return nil, ErrUnsupportedFormat.WithDetails("read header: %v", err)
	}
	headers := cleanHeaders(headerRec, opts.MaxColumns)
	if len(headers) == 0 {
		return nil, ErrEmptyFile.WithDetails("no header row")
	}

	table := &Table{Headers: headers}
	line := 1
	for {
		record, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("row %d: %w", line+1, err)
		}
		line++
		if len(table.Rows) >= opts.MaxRows {
			table.Truncated++
			continue
		}
		if row := buildRow(headers, record); row != nil {
			table.Rows = append(table.Rows, row)
		}
	}

	if len(table.Rows) == 0 {
		return nil, ErrEmptyFile
	}
	table.TotalRows = len(table.Rows) + table.Truncated
	return table, nil
}

func cleanHeaders(record []string, maxColumns int) []string {
	if len(record) > maxColumns {
		record = record[:maxColumns]
	}
	headers := make([]string, 0, len(record))
	for i, h := range record {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if !utf8.ValidString(h) {
			h = fmt.Sprintf("column_%d", i+1)
		}
		headers = append(headers, h)
	}
	// Drop trailing auto-named headers from ragged exports.
	for len(headers) > 0 && strings.HasPrefix(headers[len(headers)-1], "column_") {
		headers = headers[:len(headers)-1]
	}
	return headers
}

// buildRow pairs cells with headers. Rows with no non-empty cells return nil
// and are skipped rather than validated.
func buildRow(headers []string, record []string) RawRow {
	row := make(RawRow, len(headers))
	any := false
	for i, h := range headers {
		if i >= len(record) {
			row[h] = EmptyCell()
			continue
		}
		cell := ClassifyCell(record[i])
		if !cell.IsEmpty() {
			any = true
		}
		row[h] = cell
	}
	if !any {
		return nil
	}
	return row
}
