package importing

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_RowHasErrors(t *testing.T) {
	r := &Report{}
	r.AddWarning(2, FieldQuantity, CodeQuantityDefaulted, "defaulted", "")
	r.AddError(3, FieldTagID, CodeRequiredField, "required", "")

	assert.False(t, r.RowHasErrors(2))
	assert.True(t, r.RowHasErrors(3))
	assert.Equal(t, 1, r.CountBySeverity(SeverityError))
	assert.Equal(t, 1, r.CountBySeverity(SeverityWarning))
}

func TestReport_ExportCSV(t *testing.T) {
	r := &Report{}
	r.AddError(5, FieldTagID, CodeRequiredField, "tagId is required", "")
	r.AddWarning(2, FieldQuantity, CodeQuantityDefaulted, "defaulted to 1", "a few")

	out, err := r.ExportCSV()
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"row", "field", "category", "code", "message", "value", "recommendation"}, records[0])
	// Ordered by row regardless of insertion order.
	assert.Equal(t, "2", records[1][0])
	assert.Equal(t, CodeQuantityDefaulted, records[1][3])
	assert.Equal(t, "a few", records[1][5])
	assert.Equal(t, "5", records[2][0])
	assert.Equal(t, string(SeverityError), records[2][2])
}
