// Package candidates selects the bounded, high-confidence subset of scored
// SERP results promoted to expensive downstream work (LLM classification,
// scraping). Caps are per (job_index, label) so the volume of downstream
// work is independent of how many raw SERP hits were returned.
package candidates

import (
	"sort"

	"github.com/jonathan/jobserp-explorer/internal/types"
)

// Default caps, matching the scoring stage defaults.
const (
	DefaultPerLabel = 2
	DefaultUnknown  = 1
)

type groupKey struct {
	jobIndex int
	label    types.Label
}

// FilterTop returns the candidate set for a scored batch: the top nPerLabel
// rows per (job_index, label) for Employer and ATS, the top nUnknown rows
// per job_index for Unknown, and no Aggregator_* rows at all. Within a
// group, ties keep their original relative order so identical input ordering
// yields identical output. The result is sorted by (job_index asc,
// score desc), again stably.
func FilterTop(rows []types.ScoredResult, nPerLabel, nUnknown int) []types.ScoredResult {
	groups := make(map[groupKey][]types.ScoredResult)
	var order []groupKey

	for _, row := range rows {
		var key groupKey
		switch row.Label {
		case types.LabelEmployer, types.LabelATS:
			key = groupKey{row.JobIndex, row.Label}
		case types.LabelUnknown:
			key = groupKey{row.JobIndex, types.LabelUnknown}
		default:
			// Aggregators stay in the full scored export for audit but are
			// never promoted.
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	selected := make([]types.ScoredResult, 0, len(rows))
	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Score > group[j].Score
		})

		cap := nPerLabel
		if key.label == types.LabelUnknown {
			cap = nUnknown
		}
		if len(group) > cap {
			group = group[:cap]
		}
		selected = append(selected, group...)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].JobIndex != selected[j].JobIndex {
			return selected[i].JobIndex < selected[j].JobIndex
		}
		return selected[i].Score > selected[j].Score
	})

	return selected
}
