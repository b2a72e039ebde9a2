package importing

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/trakwell/pipetrak/modules/piping/domain/component"
)

// Expansion is the planned output of quantity-to-instance expansion for one
// consolidated candidate.
type Expansion struct {
	Candidate *ImportCandidate
	// PlannedMax is the max existing instance number observed at planning
	// time; the batcher re-verifies it at write time.
	PlannedMax int
	Instances  []*component.Instance
	Skipped    bool
	Updated    bool
}

// Expand turns each consolidated candidate's quantity N into N numbered
// instances, reconciled against the persisted state so re-imports never
// reuse or renumber. Deterministic: same store state + same input gives the
// same numbering.
func Expand(projectID uuid.UUID, candidates []*ImportCandidate, existing map[component.IdentityKey]component.ExistingState, opts Options, report *Report) []*Expansion {
	opts = opts.withDefaults()
	expansions := make([]*Expansion, 0, len(candidates))

	for _, c := range candidates {
		key := c.IdentityKey()
		state := existing[key]

		exp := &Expansion{Candidate: c, PlannedMax: state.MaxInstance}

		if opts.SkipDuplicates && state.Count >= c.Quantity {
			exp.Skipped = true
			report.AddInfo(c.Row, "", CodeSkippedExisting,
				fmt.Sprintf("key already has %d instance(s); requested %d, nothing to create", state.Count, c.Quantity),
				key.String())
			expansions = append(expansions, exp)
			continue
		}

		quantity := c.Quantity
		if opts.SkipDuplicates {
			// Partial coverage: only top up to the requested quantity.
			quantity = c.Quantity - state.Count
		}

		start := state.MaxInstance + 1
		total := state.Count + quantity
		for n := start; n < start+quantity; n++ {
			exp.Instances = append(exp.Instances, c.Instance(projectID, n, total, uuid.Nil))
		}

		if opts.UpdateExisting && state.Count > 0 {
			exp.Updated = true
		}

		expansions = append(expansions, exp)
	}

	return expansions
}
