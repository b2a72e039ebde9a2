package importing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
)

type engineFixture struct {
	engine    *Engine
	drawings  *memDrawingRepo
	instances *memComponentRepo
	templates *memTemplateRepo
}

func newEngineFixture(drawingNumbers ...string) *engineFixture {
	f := &engineFixture{
		drawings:  newMemDrawingRepo(drawingNumbers...),
		instances: newMemComponentRepo(),
		templates: newMemTemplateRepo(),
	}
	f.engine = NewEngine(f.drawings, f.instances, f.templates, &memTxRunner{}, testLogger())
	return f
}

var componentCSV = []byte("Drawing No,Component ID,Type,Size,Qty,Spec\n" +
	"P-101,VLV-1,Valve,2in,1,CS150\n" +
	"P-101,GSK-1,Gasket,2in,3,CS150\n" +
	"P-101,VLV-1,Valve,2in,2,CS150\n")

func TestEngine_ImportEndToEnd(t *testing.T) {
	f := newEngineFixture("P-101")

	res, err := f.engine.Import(context.Background(), uuid.New(), componentCSV, "components.csv", KindComponent, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Summary.TotalRows)
	assert.Equal(t, 3, res.Summary.ValidRows)
	assert.Equal(t, 0, res.Summary.InvalidRows)
	// Rows 2 and 4 share a key; quantities 1+2 merge on top of GSK-1's 3.
	assert.Equal(t, 1, res.Summary.MergedRows)
	assert.Equal(t, 6, res.Summary.PlannedInstances)
	assert.Equal(t, 6, res.Summary.Created)
	assert.Len(t, res.InstanceIDs, 6)
	assert.False(t, res.DryRun)

	assert.Len(t, f.instances.inserted, 6)
	assert.Len(t, f.templates.records, 6*4)

	byTag := map[string][]*component.Instance{}
	for _, inst := range f.instances.inserted {
		byTag[inst.Key.TagID] = append(byTag[inst.Key.TagID], inst)
	}
	require.Len(t, byTag["VLV-1"], 3)
	assert.Equal(t, 3, byTag["VLV-1"][2].InstanceNumber)
	assert.Equal(t, component.CategoryValve, byTag["VLV-1"][0].Category)
	assert.Equal(t, component.CategoryGasket, byTag["GSK-1"][0].Category)
}

func TestEngine_ReimportContinuesNumbering(t *testing.T) {
	f := newEngineFixture("P-101")
	projectID := uuid.New()

	_, err := f.engine.Import(context.Background(), projectID, componentCSV, "c.csv", KindComponent, Options{})
	require.NoError(t, err)

	res, err := f.engine.Import(context.Background(), projectID, componentCSV, "c.csv", KindComponent, Options{})
	require.NoError(t, err)
	require.Equal(t, 6, res.Summary.Created)

	maxSeen := 0
	for _, inst := range f.instances.inserted {
		if inst.Key.TagID == "VLV-1" && inst.InstanceNumber > maxSeen {
			maxSeen = inst.InstanceNumber
		}
	}
	// Second run numbers 4..6; nothing is renumbered.
	assert.Equal(t, 6, maxSeen)
}

func TestEngine_ReimportSkipDuplicates(t *testing.T) {
	f := newEngineFixture("P-101")
	projectID := uuid.New()

	_, err := f.engine.Import(context.Background(), projectID, componentCSV, "c.csv", KindComponent, Options{})
	require.NoError(t, err)

	res, err := f.engine.Import(context.Background(), projectID, componentCSV, "c.csv", KindComponent, Options{SkipDuplicates: true})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Summary.Created)
	assert.Equal(t, 2, res.Summary.Skipped)
	assert.Len(t, f.instances.inserted, 6)
}

func TestEngine_DryRunWritesNothing(t *testing.T) {
	f := newEngineFixture("P-101")

	res, err := f.engine.Import(context.Background(), uuid.New(), componentCSV, "c.csv", KindComponent, Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Equal(t, 6, res.Summary.PlannedInstances)
	assert.Equal(t, 0, res.Summary.Created)
	assert.Empty(t, f.instances.inserted)
	assert.Empty(t, f.templates.records)
}

func TestEngine_StrictModeIsolatesBadRows(t *testing.T) {
	f := newEngineFixture("P-101")

	// Strict escalates reference and duplicate violations; a bad row still
	// never blocks its valid siblings.
	csv := []byte("Drawing No,Component ID,Qty\n" +
		"P-101,VLV-1,1\n" +
		"P-101,,1\n")
	res, err := f.engine.Import(context.Background(), uuid.New(), csv, "c.csv", KindComponent, Options{StrictMode: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Summary.InvalidRows)
	assert.Equal(t, 1, res.Summary.Created)
	assert.Len(t, f.instances.inserted, 1)
}

func TestEngine_StrictModeExcludesUnknownDrawingRows(t *testing.T) {
	f := newEngineFixture("P-101")

	csv := []byte("Drawing No,Component ID,Qty\n" +
		"P-101,VLV-1,1\n" +
		"P-404,VLV-2,1\n")
	res, err := f.engine.Import(context.Background(), uuid.New(), csv, "c.csv", KindComponent, Options{StrictMode: true})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Summary.InvalidRows)
	assert.Equal(t, 1, res.Summary.Created)
	assert.True(t, hasIssue(res.Report, 3, CodeDrawingNotFound, SeverityError))
}

func TestEngine_UnresolvedDrawingsNeverExpand(t *testing.T) {
	f := newEngineFixture("P-101")

	// Two different unknown drawings sharing a tag and size must not share
	// an instance-number scope.
	csv := []byte("Drawing No,Component ID,Size,Qty\n" +
		"P-888,VLV-1,2in,1\n" +
		"P-999,VLV-1,2in,1\n")
	res, err := f.engine.Import(context.Background(), uuid.New(), csv, "c.csv", KindComponent, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Summary.Created)
	assert.Equal(t, 2, res.Summary.Skipped)
	assert.Empty(t, f.instances.inserted)
	assert.True(t, hasIssue(res.Report, 2, CodeDrawingNotFound, SeverityInfo))
	assert.True(t, hasIssue(res.Report, 3, CodeDrawingNotFound, SeverityInfo))
}

func TestEngine_FlexibleModeImportsValidRows(t *testing.T) {
	f := newEngineFixture("P-101")

	csv := []byte("Drawing No,Component ID,Qty\n" +
		"P-101,VLV-1,1\n" +
		"P-101,,1\n")
	res, err := f.engine.Import(context.Background(), uuid.New(), csv, "c.csv", KindComponent, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Summary.InvalidRows)
	assert.Equal(t, 1, res.Summary.Created)
	assert.Len(t, f.instances.inserted, 1)
}

func TestEngine_CheckFormat(t *testing.T) {
	f := newEngineFixture()

	res, err := f.engine.CheckFormat(context.Background(), componentCSV, "c.csv", KindComponent, Options{})
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, "Drawing No", res.Mapping.Header(FieldDrawing))

	// A file without identity columns fails format check.
	bad := []byte("Notes,Remarks\nfoo,bar\n")
	res, err = f.engine.CheckFormat(context.Background(), bad, "c.csv", KindComponent, Options{})
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
	found := false
	for _, issue := range res.Report.Issues {
		if issue.Code == CodeColumnUnmapped {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEngine_ValidateTouchesNoStore(t *testing.T) {
	f := newEngineFixture()
	// Preview validation must not need any seeded drawings.
	res, err := f.engine.Validate(context.Background(), componentCSV, "c.csv", KindComponent, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.ValidRows)
	assert.Empty(t, f.instances.inserted)
}

func TestEngine_WeldImport(t *testing.T) {
	f := newEngineFixture("P-101")

	csv := []byte("ISO,Weld Number,Joint Type,Welder\n" +
		"P-101,FW-001,BW,W-17\n" +
		"P-101,FW-001,SW,W-17\n")
	res, err := f.engine.Import(context.Background(), uuid.New(), csv, "welds.csv", KindWeld, Options{})
	require.NoError(t, err)

	// Different joint types are different keys; no merge happens.
	assert.Equal(t, 0, res.Summary.MergedRows)
	assert.Equal(t, 2, res.Summary.Created)
	for _, inst := range f.instances.inserted {
		assert.Equal(t, component.CategoryFieldWeld, inst.Category)
	}
}

func TestEngine_UnreadableFile(t *testing.T) {
	f := newEngineFixture()
	_, err := f.engine.Import(context.Background(), uuid.New(), []byte{0xFF, 0xFE, 0x01}, "x.bin", KindComponent, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
