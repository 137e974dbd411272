// Package explain derives the human-facing record of how a playlist was
// planned. It only reports what the scorer and assembler already computed;
// nothing here re-derives a score or re-runs a filter.
package explain

import (
	"github.com/dock108/reelplan/pkg/assembly"
	"github.com/dock108/reelplan/pkg/models"
)

// Build produces the Explanation for one completed build.
func Build(spec models.RequestSpec, result assembly.Result, weights map[string]float64) models.Explanation {
	assumptions := spec.Assumptions
	if assumptions == nil {
		assumptions = []string{}
	}
	notes := result.CoverageNotes
	if notes == nil {
		notes = []string{}
	}

	return models.Explanation{
		Assumptions: assumptions,
		FiltersApplied: models.FiltersApplied{
			ContentTypes: append([]string(nil), spec.ContentTypes...),
			Exclusions:   append([]string(nil), spec.Exclusions...),
			SafeSearch:   spec.SafeSearch,
		},
		RankingWeights:       weights,
		CoverageNotes:        notes,
		CandidatesConsidered: result.PoolSize,
		ItemsSelected:        len(result.Items),
		TargetSeconds:        spec.TargetMinutes * 60,
		ActualSeconds:        result.TotalSeconds,
	}
}
