package importing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCell(t *testing.T) {
	assert.Equal(t, CellEmpty, ClassifyCell("").Kind)
	assert.Equal(t, CellEmpty, ClassifyCell("   ").Kind)

	n := ClassifyCell("42")
	assert.Equal(t, CellNumber, n.Kind)
	assert.True(t, n.Number.Equal(decimal.NewFromInt(42)))

	assert.Equal(t, CellNumber, ClassifyCell("2.5").Kind)
	assert.Equal(t, CellBool, ClassifyCell("TRUE").Kind)
	assert.Equal(t, CellText, ClassifyCell("VLV-104").Kind)

	// Slashed values stay text; date meaning is decided only at coercion.
	assert.Equal(t, CellText, ClassifyCell("1/2").Kind)
}

func TestClassifyCell_PreservesRaw(t *testing.T) {
	c := ClassifyCell("  3000  ")
	assert.Equal(t, "  3000  ", c.Raw)
}

func TestCoerceNumber(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"150 psi", 150},
		{"3,000 psig", 3000},
		{`2"`, 2},
		{"6 in", 6},
		{"12 ea", 12},
	}
	for _, tc := range cases {
		got, err := coerceNumber(TextCell(tc.in))
		require.NoError(t, err, tc.in)
		assert.True(t, got.Equal(decimal.NewFromInt(tc.want)), "%s -> %s", tc.in, got)
	}

	_, err := coerceNumber(TextCell("carbon steel"))
	assert.Error(t, err)
}

func TestCoerceTime_SerialDate(t *testing.T) {
	got, err := coerceTime(NumberCell(decimal.NewFromInt(45000), "45000"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), got)

	_, err = coerceTime(NumberCell(decimal.NewFromInt(-5), "-5"))
	assert.Error(t, err)
}

func TestCoerceTime_TextLayouts(t *testing.T) {
	for _, in := range []string{"2024-01-15", "01/15/2024", "1/15/2024", "15-Jan-2024"} {
		got, err := coerceTime(TextCell(in))
		require.NoError(t, err, in)
		assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got, in)
	}

	_, err := coerceTime(TextCell("next tuesday"))
	assert.Error(t, err)
}

func TestCoerceBool(t *testing.T) {
	truthy := []Cell{TextCell("x"), TextCell("Yes"), TextCell("Y"), NumberCell(decimal.NewFromInt(1), "1")}
	for _, c := range truthy {
		got, err := coerceBool(c)
		require.NoError(t, err, c.Raw)
		assert.True(t, got, c.Raw)
	}

	falsy := []Cell{EmptyCell(), TextCell("no"), TextCell("N"), NumberCell(decimal.Zero, "0")}
	for _, c := range falsy {
		got, err := coerceBool(c)
		require.NoError(t, err, c.Raw)
		assert.False(t, got, c.Raw)
	}

	_, err := coerceBool(TextCell("maybe"))
	assert.Error(t, err)
}
