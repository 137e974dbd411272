package scoring

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dock108/reelplan/pkg/models"
)

// Weights is the ranking profile applied to the four score components.
type Weights struct {
	Relevance  float64 `json:"relevance"`
	Reputation float64 `json:"reputation"`
	Popularity float64 `json:"popularity"`
	Freshness  float64 `json:"freshness"`
}

// DefaultWeights is the canonical profile: relevance dominates, reputation
// second, popularity and freshness round it out.
func DefaultWeights() Weights {
	return Weights{Relevance: 0.40, Reputation: 0.25, Popularity: 0.20, Freshness: 0.15}
}

func (w Weights) sum() float64 {
	return w.Relevance + w.Reputation + w.Popularity + w.Freshness
}

// Map renders the profile for explanation records.
func (w Weights) Map() map[string]float64 {
	return map[string]float64{
		"relevance":  w.Relevance,
		"reputation": w.Reputation,
		"popularity": w.Popularity,
		"freshness":  w.Freshness,
	}
}

// Terms signalling condensed/summary content versus full unedited broadcasts.
var (
	condensedTerms = []string{
		"highlights", "recap", "condensed", "best of", "top plays",
		"all goals", "every goal", "best moments", "extended highlights",
	}
	broadcastTerms = []string{
		"full game", "full match", "full broadcast", "full replay",
		"live stream", "livestream", "watch live", "press conference",
	}
)

// Scorer computes component and final scores for search candidates.
// Identical inputs always produce identical scores.
type Scorer struct {
	weights    Weights
	reputation *ReputationTable
	log        *zap.Logger
}

func NewScorer(weights Weights, reputation *ReputationTable, log *zap.Logger) *Scorer {
	if weights.sum() <= 0 {
		weights = DefaultWeights()
	}
	return &Scorer{
		weights:    weights,
		reputation: reputation,
		log:        log,
	}
}

// Weights returns the profile in use, for explanation records.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// ScoreBatch scores every candidate against an already-normalized spec.
// Popularity is normalized within the batch, so the batch must be the full
// merged pool for the build. now anchors freshness for requests with no
// explicit date window.
func (s *Scorer) ScoreBatch(spec models.RequestSpec, batch []models.CandidateItem, now time.Time) []models.ScoredCandidate {
	if len(batch) == 0 {
		return nil
	}

	minLog, maxLog := viewLogRange(batch)

	scored := make([]models.ScoredCandidate, 0, len(batch))
	for _, item := range batch {
		sc := models.ScoredCandidate{CandidateItem: item}
		sc.Relevance = s.relevance(spec, item)
		sc.Reputation = s.reputation.Score(item.ChannelID)
		sc.Popularity = popularity(item.ViewCount, minLog, maxLog)
		sc.Freshness = freshness(spec.Window, item.PublishedAt, now)

		w := s.weights
		sc.FinalScore = clamp01((w.Relevance*sc.Relevance +
			w.Reputation*sc.Reputation +
			w.Popularity*sc.Popularity +
			w.Freshness*sc.Freshness) / w.sum())

		scored = append(scored, sc)
	}

	s.log.Debug("scored candidate batch",
		zap.Int("candidates", len(batch)),
		zap.Float64("weight_relevance", s.weights.Relevance))

	return scored
}

// relevance matches topic and entity terms against title and description,
// boosts condensed-content terms, penalizes full-broadcast and live terms,
// and floors the score near zero when the spec names content types the
// candidate does not match.
func (s *Scorer) relevance(spec models.RequestSpec, item models.CandidateItem) float64 {
	text := strings.ToLower(item.Title + " " + item.Description)
	tokens := tokenSet(text)

	var score float64

	if topicTokens := strings.Fields(spec.Topic); len(topicTokens) > 0 {
		matched := 0
		for _, tok := range topicTokens {
			if _, ok := tokens[tok]; ok {
				matched++
			}
		}
		score += 0.35 * float64(matched) / float64(len(topicTokens))
	}

	if len(spec.Entities) > 0 {
		matched := 0
		for _, entity := range spec.Entities {
			if strings.Contains(text, entity) {
				matched++
			}
		}
		score += 0.25 * float64(matched) / float64(len(spec.Entities))
	}

	for _, term := range condensedTerms {
		if strings.Contains(text, term) {
			score += 0.25
			break
		}
	}

	if len(spec.ContentTypes) > 0 {
		matched := false
		for _, ct := range spec.ContentTypes {
			if strings.Contains(text, ct) {
				matched = true
				break
			}
		}
		if matched {
			score += 0.15
		} else {
			// Requested play types and this candidate covers none of them.
			score *= 0.05
		}
	}

	for _, term := range broadcastTerms {
		if strings.Contains(text, term) {
			score -= 0.4
			break
		}
	}

	return clamp01(score)
}

// popularity maps view count onto [0,1] on a log scale relative to the
// batch's observed range, so one viral outlier does not dominate ranking.
func popularity(views int64, minLog, maxLog float64) float64 {
	if maxLog <= minLog {
		return 0.5
	}
	v := math.Log10(float64(views) + 1)
	return clamp01((v - minLog) / (maxLog - minLog))
}

func viewLogRange(batch []models.CandidateItem) (minLog, maxLog float64) {
	minLog, maxLog = math.Inf(1), math.Inf(-1)
	for _, item := range batch {
		v := math.Log10(float64(item.ViewCount) + 1)
		minLog = math.Min(minLog, v)
		maxLog = math.Max(maxLog, v)
	}
	return minLog, maxLog
}

// freshness peaks shortly after the window's reference date and decays
// gradually afterward. A candidate published before the earliest possible
// event date cannot legitimately cover the event and is penalized
// near-maximally.
func freshness(window models.DateWindow, published, now time.Time) float64 {
	const (
		peakDays     = 3.0  // uploads within this many days of the event score full
		halfLifeDays = 14.0 // decay rate beyond the peak
		prePenalty   = 0.02
	)

	earliest := window.Start
	if earliest == nil {
		earliest = window.Date
	}
	if earliest != nil && published.Before(*earliest) {
		return prePenalty
	}

	ref := window.Reference(now)
	daysAfter := published.Sub(ref).Hours() / 24

	if daysAfter < 0 {
		if earliest != nil {
			// Published inside the requested window, before its end: timely.
			daysAfter = 0
		} else {
			// No window: decay by age relative to the request moment.
			daysAfter = -daysAfter
		}
	}
	if daysAfter <= peakDays {
		return 1.0
	}
	return clamp01(math.Exp(-math.Ln2 * (daysAfter - peakDays) / halfLifeDays))
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		set[tok] = struct{}{}
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
