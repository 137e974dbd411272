package explain

import (
	"testing"

	"github.com/dock108/reelplan/pkg/assembly"
	"github.com/dock108/reelplan/pkg/models"
	"github.com/dock108/reelplan/pkg/scoring"
)

func TestBuildReportsCounters(t *testing.T) {
	spec := models.RequestSpec{
		Topic:         "league x",
		ContentTypes:  []string{"highlights"},
		Exclusions:    []string{"podcast"},
		SafeSearch:    true,
		TargetMinutes: 120,
	}
	result := assembly.Result{
		Items:         make([]models.PlaylistItem, 4),
		TotalSeconds:  2400,
		CoverageNotes: []string{"requested 120 minutes but only 40 minutes of qualifying content assembled"},
		PoolSize:      37,
	}

	exp := Build(spec, result, scoring.DefaultWeights().Map())

	if exp.CandidatesConsidered != 37 {
		t.Errorf("considered = %d, want 37", exp.CandidatesConsidered)
	}
	if exp.ItemsSelected != 4 {
		t.Errorf("selected = %d, want 4", exp.ItemsSelected)
	}
	if exp.TargetSeconds != 7200 || exp.ActualSeconds != 2400 {
		t.Errorf("durations = %d/%d, want 7200/2400", exp.ActualSeconds, exp.TargetSeconds)
	}
	if len(exp.CoverageNotes) != 1 {
		t.Errorf("coverage notes = %v", exp.CoverageNotes)
	}
	if !exp.FiltersApplied.SafeSearch || len(exp.FiltersApplied.Exclusions) != 1 {
		t.Errorf("filters not passed through: %+v", exp.FiltersApplied)
	}
	if exp.RankingWeights["relevance"] != 0.40 {
		t.Errorf("weights not passed through: %v", exp.RankingWeights)
	}
}

// A fully specified request that needed no inference reports an empty, not
// nil, assumptions list.
func TestBuildEmptyAssumptions(t *testing.T) {
	spec := models.RequestSpec{Topic: "league x", ContentTypes: []string{"highlights"}, TargetMinutes: 120}

	exp := Build(spec, assembly.Result{}, nil)

	if exp.Assumptions == nil {
		t.Fatal("assumptions should be an empty list, not nil")
	}
	if len(exp.Assumptions) != 0 {
		t.Errorf("assumptions = %v, want none", exp.Assumptions)
	}
	if exp.CoverageNotes == nil {
		t.Error("coverage notes should be an empty list, not nil")
	}
}

func TestBuildPassesAssumptionsThrough(t *testing.T) {
	spec := models.RequestSpec{
		Topic:         "league x",
		TargetMinutes: 60,
		Assumptions:   []string{"assumed the current season", "assumed men's competition"},
	}

	exp := Build(spec, assembly.Result{}, nil)
	if len(exp.Assumptions) != 2 {
		t.Errorf("assumptions = %v, want both passed through", exp.Assumptions)
	}
}
