package scoring

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dock108/reelplan/pkg/models"
)

var scoreNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func testScorer() *Scorer {
	table := NewReputationTable(
		[]string{"chan-official"},
		[]string{"chan-media"},
		[]string{"chan-flagged"},
	)
	return NewScorer(DefaultWeights(), table, zap.NewNop())
}

func highlightsSpec() models.RequestSpec {
	start := scoreNow.AddDate(0, 0, -7)
	end := scoreNow
	return models.RequestSpec{
		Topic:         "premier league",
		Entities:      []string{"arsenal"},
		ContentTypes:  []string{"highlights"},
		Window:        models.DateWindow{Start: &start, End: &end},
		TargetMinutes: 120,
	}
}

func candidate(id, title string) models.CandidateItem {
	return models.CandidateItem{
		ExternalID:      id,
		Title:           title,
		ChannelID:       "chan-unknown",
		DurationSeconds: 600,
		PublishedAt:     scoreNow.AddDate(0, 0, -1),
		ViewCount:       10_000,
	}
}

func TestScoresStayInUnitInterval(t *testing.T) {
	s := testScorer()
	batch := []models.CandidateItem{
		candidate("a", "Premier League highlights Arsenal best moments recap all goals"),
		candidate("b", "full match live stream press conference"),
		{ExternalID: "c", Title: "", ViewCount: 0, PublishedAt: time.Time{}},
		{ExternalID: "d", Title: "x", ViewCount: 1 << 40, PublishedAt: scoreNow.AddDate(10, 0, 0)},
	}

	for _, sc := range s.ScoreBatch(highlightsSpec(), batch, scoreNow) {
		for name, v := range map[string]float64{
			"relevance":  sc.Relevance,
			"reputation": sc.Reputation,
			"popularity": sc.Popularity,
			"freshness":  sc.Freshness,
			"final":      sc.FinalScore,
		} {
			if v < 0 || v > 1 {
				t.Errorf("candidate %s: %s score %f outside [0,1]", sc.ExternalID, name, v)
			}
		}
	}
}

func TestRelevanceSignals(t *testing.T) {
	s := testScorer()
	spec := highlightsSpec()

	tests := []struct {
		name   string
		higher string
		lower  string
	}{
		{
			name:   "condensed beats full broadcast",
			higher: "Arsenal Premier League highlights",
			lower:  "Arsenal Premier League full match replay",
		},
		{
			name:   "entity match beats no entity",
			higher: "Arsenal highlights",
			lower:  "Chelsea highlights",
		},
		{
			name:   "live stream penalized",
			higher: "Premier League recap",
			lower:  "Premier League live stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := []models.CandidateItem{candidate("hi", tt.higher), candidate("lo", tt.lower)}
			scored := s.ScoreBatch(spec, batch, scoreNow)
			if scored[0].Relevance <= scored[1].Relevance {
				t.Errorf("relevance(%q) = %f, not above relevance(%q) = %f",
					tt.higher, scored[0].Relevance, tt.lower, scored[1].Relevance)
			}
		})
	}
}

func TestRelevanceFloorsWithoutContentTypeMatch(t *testing.T) {
	s := testScorer()
	spec := highlightsSpec()
	spec.ContentTypes = []string{"bloopers"}

	batch := []models.CandidateItem{candidate("a", "Arsenal Premier League recap")}
	scored := s.ScoreBatch(spec, batch, scoreNow)
	if scored[0].Relevance > 0.1 {
		t.Errorf("relevance = %f, expected near-zero floor when no requested play type matches", scored[0].Relevance)
	}
}

func TestReputationTiers(t *testing.T) {
	table := NewReputationTable([]string{"off"}, []string{"med"}, []string{"bad"})
	tests := []struct {
		channel string
		want    float64
	}{
		{"off", 1.0},
		{"med", 0.7},
		{"nobody", 0.4},
		{"bad", 0.05},
	}
	for _, tt := range tests {
		if got := table.Score(tt.channel); got != tt.want {
			t.Errorf("Score(%q) = %f, want %f", tt.channel, got, tt.want)
		}
	}
}

func TestPopularityOutlierDoesNotCrushBatch(t *testing.T) {
	s := testScorer()
	batch := []models.CandidateItem{
		candidate("viral", "Premier League highlights"),
		candidate("mid", "Premier League highlights"),
		candidate("small", "Premier League highlights"),
	}
	batch[0].ViewCount = 50_000_000
	batch[1].ViewCount = 80_000
	batch[2].ViewCount = 900

	scored := s.ScoreBatch(highlightsSpec(), batch, scoreNow)
	if scored[0].Popularity != 1.0 {
		t.Errorf("outlier popularity = %f, want 1.0", scored[0].Popularity)
	}
	// Log scaling keeps the mid-tier candidate well off the floor.
	if scored[1].Popularity < 0.3 {
		t.Errorf("mid popularity = %f, crushed by the outlier", scored[1].Popularity)
	}
	if scored[2].Popularity != 0.0 {
		t.Errorf("smallest popularity = %f, want 0.0", scored[2].Popularity)
	}
}

func TestFreshness(t *testing.T) {
	s := testScorer()
	spec := highlightsSpec()

	preWindow := candidate("pre", "Premier League highlights")
	preWindow.PublishedAt = scoreNow.AddDate(0, -2, 0) // long before window start

	dayAfter := candidate("fresh", "Premier League highlights")
	dayAfter.PublishedAt = scoreNow.AddDate(0, 0, -1)

	monthAfter := candidate("old", "Premier League highlights")
	monthAfter.PublishedAt = scoreNow.AddDate(0, 1, 0)

	scored := s.ScoreBatch(spec, []models.CandidateItem{preWindow, dayAfter, monthAfter}, scoreNow)

	if scored[0].Freshness > 0.05 {
		t.Errorf("pre-window freshness = %f, want near-maximal penalty", scored[0].Freshness)
	}
	if scored[1].Freshness != 1.0 {
		t.Errorf("in-window freshness = %f, want peak 1.0", scored[1].Freshness)
	}
	if scored[2].Freshness >= scored[1].Freshness {
		t.Errorf("freshness did not decay: %f >= %f", scored[2].Freshness, scored[1].Freshness)
	}
	if scored[2].Freshness <= scored[0].Freshness {
		t.Errorf("gradual decay %f should stay above the pre-window penalty %f",
			scored[2].Freshness, scored[0].Freshness)
	}
}

func TestScoringIsDeterministic(t *testing.T) {
	s := testScorer()
	batch := []models.CandidateItem{
		candidate("a", "Arsenal Premier League highlights"),
		candidate("b", "Arsenal full match"),
	}
	first := s.ScoreBatch(highlightsSpec(), batch, scoreNow)
	second := s.ScoreBatch(highlightsSpec(), batch, scoreNow)
	for i := range first {
		if first[i].FinalScore != second[i].FinalScore {
			t.Errorf("candidate %s scored %f then %f", first[i].ExternalID, first[i].FinalScore, second[i].FinalScore)
		}
	}
}

func TestCustomWeightProfile(t *testing.T) {
	table := NewReputationTable(nil, nil, nil)
	even := NewScorer(Weights{Relevance: 0.3, Reputation: 0.3, Popularity: 0.2, Freshness: 0.2}, table, zap.NewNop())
	if w := even.Weights(); w.Relevance != 0.3 {
		t.Errorf("weights not honored: %+v", w)
	}

	// A zero profile falls back to the canonical one rather than dividing by
	// zero.
	fallback := NewScorer(Weights{}, table, zap.NewNop())
	if fallback.Weights() != DefaultWeights() {
		t.Errorf("zero profile should fall back to default, got %+v", fallback.Weights())
	}
}
