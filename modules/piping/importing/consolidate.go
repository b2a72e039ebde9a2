package importing

import "fmt"

// Consolidate merges valid candidates sharing an identity key into one
// candidate with summed quantity. The first row's descriptive fields are
// kept as the representative values; the fold count is reported per merged
// key for operator visibility. Input order is preserved for first
// occurrences, so consolidation is deterministic.
func Consolidate(candidates []*ImportCandidate, report *Report) []*ImportCandidate {
	byKey := make(map[string]*ImportCandidate, len(candidates))
	out := make([]*ImportCandidate, 0, len(candidates))

	for _, c := range candidates {
		key := c.fileKey()
		first, seen := byKey[key]
		if !seen {
			byKey[key] = c
			out = append(out, c)
			continue
		}
		first.Quantity += c.Quantity
		first.MergedRows++
	}

	for _, c := range out {
		if c.MergedRows > 1 {
			report.AddInfo(c.Row, "", CodeRowsMerged,
				fmt.Sprintf("%d source rows merged into one candidate (quantity %d)", c.MergedRows, c.Quantity),
				c.fileKey())
		}
	}

	return out
}
