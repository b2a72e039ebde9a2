package importing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CellKind tags the variant held by a Cell. Keeping cells tagged (rather than
// bare interface{}) makes coercion and error messages exhaustive.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellBool
	CellTime
)

func (k CellKind) String() string {
	switch k {
	case CellEmpty:
		return "empty"
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellBool:
		return "bool"
	case CellTime:
		return "time"
	default:
		return "unknown"
	}
}

// Cell is one spreadsheet cell. Exactly one of the value fields is meaningful,
// selected by Kind. Raw always preserves the original string form for error
// reporting.
type Cell struct {
	Kind   CellKind
	Raw    string
	Text   string
	Number decimal.Decimal
	Bool   bool
	Time   time.Time
}

func EmptyCell() Cell {
	return Cell{Kind: CellEmpty}
}

func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{Kind: CellEmpty, Raw: s}
	}
	return Cell{Kind: CellText, Raw: s, Text: strings.TrimSpace(s)}
}

func NumberCell(d decimal.Decimal, raw string) Cell {
	return Cell{Kind: CellNumber, Raw: raw, Number: d}
}

func BoolCell(b bool, raw string) Cell {
	return Cell{Kind: CellBool, Raw: raw, Bool: b}
}

func TimeCell(t time.Time, raw string) Cell {
	return Cell{Kind: CellTime, Raw: raw, Time: t}
}

func (c Cell) IsEmpty() bool {
	return c.Kind == CellEmpty
}

// String returns the cell's text form, whatever the variant.
func (c Cell) String() string {
	switch c.Kind {
	case CellEmpty:
		return ""
	case CellText:
		return c.Text
	case CellNumber:
		return c.Number.String()
	case CellBool:
		return strconv.FormatBool(c.Bool)
	case CellTime:
		return c.Time.Format("2006-01-02")
	default:
		return c.Raw
	}
}

// excelEpoch is the serial-date origin spreadsheets use (the 1900 leap-year
// bug makes it 1899-12-30, not 1899-12-31).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02-Jan-2006",
	"2006/01/02",
}

// ClassifyCell converts a raw string cell into its most specific variant.
// Classification is lossless: Raw keeps the source text, and ambiguous values
// stay text. Dates are NOT guessed here; only explicit layouts at coercion
// time produce CellTime, to keep "1/2" sizes from becoming January 2nd.
func ClassifyCell(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Cell{Kind: CellEmpty, Raw: raw}
	}
	if d, err := decimal.NewFromString(trimmed); err == nil {
		return NumberCell(d, raw)
	}
	switch strings.ToLower(trimmed) {
	case "true", "false":
		return BoolCell(strings.ToLower(trimmed) == "true", raw)
	}
	return TextCell(raw)
}

// coerceTime interprets the cell as a date: serial numbers via the
// spreadsheet epoch, text via the known layouts.
func coerceTime(c Cell) (time.Time, error) {
	switch c.Kind {
	case CellTime:
		return c.Time, nil
	case CellNumber:
		days := c.Number.IntPart()
		if days < 0 || days > 200000 {
			return time.Time{}, fmt.Errorf("serial date %s out of range", c.Number)
		}
		frac := c.Number.Sub(decimal.NewFromInt(days))
		seconds := frac.Mul(decimal.NewFromInt(86400)).IntPart()
		return excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(seconds) * time.Second), nil
	case CellText:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, c.Text); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid date: %s", c.Text)
	default:
		return time.Time{}, fmt.Errorf("cannot read %s cell as date", c.Kind)
	}
}

// unitSuffixes are stripped before numeric coercion, longest first.
var unitSuffixes = []string{"psig", "psi", "bar", "kpa", "mm", "in", "ea", "%", `"`, "#"}

// coerceNumber interprets the cell as a number, tolerating unit suffixes and
// thousands separators in text cells.
func coerceNumber(c Cell) (decimal.Decimal, error) {
	switch c.Kind {
	case CellNumber:
		return c.Number, nil
	case CellText:
		s := strings.ToLower(strings.TrimSpace(c.Text))
		for _, suffix := range unitSuffixes {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
		}
		s = strings.ReplaceAll(s, ",", "")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid number: %s", c.Text)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("cannot read %s cell as number", c.Kind)
	}
}

// coerceBool interprets the cell as a flag. Empty means false; spreadsheet
// conventions ("x" in a checkbox column, yes/no, 1/0) are accepted.
func coerceBool(c Cell) (bool, error) {
	switch c.Kind {
	case CellEmpty:
		return false, nil
	case CellBool:
		return c.Bool, nil
	case CellNumber:
		if c.Number.IsZero() {
			return false, nil
		}
		if c.Number.Equal(decimal.NewFromInt(1)) {
			return true, nil
		}
		return false, fmt.Errorf("invalid flag: %s", c.Number)
	case CellText:
		switch strings.ToLower(c.Text) {
		case "true", "yes", "y", "x", "1":
			return true, nil
		case "false", "no", "n", "0":
			return false, nil
		}
		return false, fmt.Errorf("invalid flag: %s", c.Text)
	default:
		return false, fmt.Errorf("cannot read %s cell as flag", c.Kind)
	}
}
