package importing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
	"github.com/trakwell/pipetrak/modules/piping/domain/milestone"
)

func plannedExpansions(t *testing.T, repo *memTemplateRepo, counts ...int) ([]*Expansion, []milestone.Record) {
	t.Helper()
	var exps []*Expansion
	for i, count := range counts {
		c := candidate(i+2, uuid.NewString()[:8])
		c.DrawingID = uuid.New()
		exps = append(exps, expansionFor(c, count))
	}
	a := NewTemplateAssigner(repo)
	require.NoError(t, a.Load(context.Background()))
	records := a.Assign(exps, &Report{})
	return exps, records
}

func TestBatcher_PersistsInChunks(t *testing.T) {
	instances := newMemComponentRepo()
	templates := newMemTemplateRepo()
	tx := &memTxRunner{}
	b := NewBatcher(instances, templates, tx, testLogger())

	exps, records := plannedExpansions(t, templates, 3, 2)
	report := &Report{}
	outcome, err := b.Persist(context.Background(), exps, records, Options{ChunkSize: 2}, report)
	require.NoError(t, err)

	assert.Equal(t, 5, outcome.Created)
	assert.Len(t, outcome.InstanceIDs, 5)
	assert.Equal(t, 0, outcome.FailedChunks)
	assert.Len(t, instances.inserted, 5)
	// 5 instances, 4 default milestones each.
	assert.Len(t, templates.records, 20)
	// ceil(5/2) chunk transactions, no update pass.
	assert.Equal(t, 3, tx.calls)
	assert.Empty(t, report.Issues)
}

func TestBatcher_BoundsEachChunkTransaction(t *testing.T) {
	instances := newMemComponentRepo()
	templates := newMemTemplateRepo()
	tx := &memTxRunner{}
	b := NewBatcher(instances, templates, tx, testLogger())

	exps, records := plannedExpansions(t, templates, 3, 2)
	outcome, err := b.Persist(context.Background(), exps, records, Options{ChunkSize: 2, ChunkTimeout: time.Minute}, &Report{})
	require.NoError(t, err)

	assert.Equal(t, 5, outcome.Created)
	// Every chunk transaction carries a deadline, including the defaulted
	// timeout on a zero options bag.
	assert.Equal(t, 3, tx.sawDeadlines)

	tx2 := &memTxRunner{}
	b2 := NewBatcher(newMemComponentRepo(), templates, tx2, testLogger())
	exps2, records2 := plannedExpansions(t, templates, 1)
	_, err = b2.Persist(context.Background(), exps2, records2, Options{}, &Report{})
	require.NoError(t, err)
	assert.Equal(t, 1, tx2.sawDeadlines)
}

func TestBatcher_ChunkFailureIsIsolated(t *testing.T) {
	instances := newMemComponentRepo()
	instances.failOnCall = 2
	instances.failWith = errors.New("connection reset")
	templates := newMemTemplateRepo()
	b := NewBatcher(instances, templates, &memTxRunner{}, testLogger())

	exps, records := plannedExpansions(t, templates, 6)
	report := &Report{}
	outcome, err := b.Persist(context.Background(), exps, records, Options{ChunkSize: 2}, report)
	require.NoError(t, err)

	// Chunks 1 and 3 land, chunk 2 is reported and rolled past.
	assert.Equal(t, 4, outcome.Created)
	assert.Equal(t, 1, outcome.FailedChunks)
	assert.False(t, outcome.Aborted)
	assert.True(t, hasIssue(report, 2, CodeChunkFailed, SeverityError))
}

func TestBatcher_AllOrNothingStopsAtFirstFailure(t *testing.T) {
	instances := newMemComponentRepo()
	instances.failOnCall = 1
	instances.failWith = errors.New("connection reset")
	templates := newMemTemplateRepo()
	tx := &memTxRunner{}
	b := NewBatcher(instances, templates, tx, testLogger())

	exps, records := plannedExpansions(t, templates, 6)
	outcome, err := b.Persist(context.Background(), exps, records, Options{ChunkSize: 2, AllOrNothing: true}, &Report{})
	require.NoError(t, err)

	assert.True(t, outcome.Aborted)
	assert.Equal(t, 0, outcome.Created)
	assert.Equal(t, 1, tx.calls)
}

func TestBatcher_ConcurrentNumberingDrift(t *testing.T) {
	instances := newMemComponentRepo()
	templates := newMemTemplateRepo()
	b := NewBatcher(instances, templates, &memTxRunner{}, testLogger())

	exps, records := plannedExpansions(t, templates, 2)
	key := exps[0].Candidate.IdentityKey()
	instances.driftKey = &key

	report := &Report{}
	outcome, err := b.Persist(context.Background(), exps, records, Options{}, report)
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.Created)
	assert.Equal(t, 1, outcome.FailedChunks)
	assert.True(t, hasIssue(report, 2, CodeChunkFailed, SeverityError))
	assert.Empty(t, instances.inserted)
}

func TestBatcher_MultiChunkKeyKeepsNumbering(t *testing.T) {
	instances := newMemComponentRepo()
	templates := newMemTemplateRepo()
	b := NewBatcher(instances, templates, &memTxRunner{}, testLogger())

	// One key's 5 instances span three chunks; the drift check must accept
	// its own earlier chunks.
	exps, records := plannedExpansions(t, templates, 5)
	outcome, err := b.Persist(context.Background(), exps, records, Options{ChunkSize: 2}, &Report{})
	require.NoError(t, err)

	assert.Equal(t, 5, outcome.Created)
	assert.Equal(t, 0, outcome.FailedChunks)
	for i, inst := range instances.inserted {
		assert.Equal(t, i+1, inst.InstanceNumber)
	}
}

func TestBatcher_SkippedExpansionsCount(t *testing.T) {
	instances := newMemComponentRepo()
	templates := newMemTemplateRepo()
	b := NewBatcher(instances, templates, &memTxRunner{}, testLogger())

	c := candidate(2, "VLV-1")
	c.DrawingID = uuid.New()
	exps := []*Expansion{{Candidate: c, Skipped: true}}
	outcome, err := b.Persist(context.Background(), exps, nil, Options{}, &Report{})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Skipped)
	assert.Equal(t, 0, outcome.Created)
}

func TestBatcher_UpdateExisting(t *testing.T) {
	instances := newMemComponentRepo()
	templates := newMemTemplateRepo()
	b := NewBatcher(instances, templates, &memTxRunner{}, testLogger())

	c := candidate(2, "VLV-1")
	c.DrawingID = uuid.New()
	key := c.IdentityKey()
	instances.seed(key, 2, 2)

	exps := []*Expansion{{Candidate: c, Updated: true, PlannedMax: 2,
		Instances: []*component.Instance{c.Instance(uuid.New(), 3, 3, uuid.Nil)}}}
	a := NewTemplateAssigner(templates)
	require.NoError(t, a.Load(context.Background()))
	records := a.Assign(exps, &Report{})

	outcome, err := b.Persist(context.Background(), exps, records, Options{}, &Report{})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, 2, outcome.Updated)
	require.Len(t, instances.updates, 1)
	assert.Equal(t, key, instances.updates[0])
}
