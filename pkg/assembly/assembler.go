package assembly

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dock108/reelplan/pkg/models"
)

// Options bound the selection. Zero values fall back to the documented
// defaults.
type Options struct {
	// TolerancePct is the accepted deviation around the target duration,
	// e.g. 0.10 for +-10%.
	TolerancePct float64
	// MaxItems caps the playlist length regardless of duration.
	MaxItems int
	// MinItemSeconds is the per-content-type floor preventing the target from
	// being reached with trivially short clips. The "" key is the fallback.
	MinItemSeconds map[string]int
}

const (
	DefaultTolerancePct = 0.10
	DefaultMaxItems     = 50
)

// DefaultMinItemSeconds keeps highlight reels substantial while allowing
// short-form types through.
func DefaultMinItemSeconds() map[string]int {
	return map[string]int{
		"highlights": 60,
		"":           20,
	}
}

func (o Options) withDefaults() Options {
	if o.TolerancePct <= 0 {
		o.TolerancePct = DefaultTolerancePct
	}
	if o.MaxItems <= 0 {
		o.MaxItems = DefaultMaxItems
	}
	if o.MinItemSeconds == nil {
		o.MinItemSeconds = DefaultMinItemSeconds()
	}
	return o
}

// Result is the assembled selection plus everything the explanation needs.
type Result struct {
	Items         []models.PlaylistItem
	TotalSeconds  int
	CoverageNotes []string
	// PoolSize is the candidate count before filtering, QualifyingCount after.
	PoolSize        int
	QualifyingCount int
}

// Assembler selects and orders scored candidates to hit the target duration
// within tolerance.
type Assembler struct {
	opts Options
	log  *zap.Logger
}

func NewAssembler(opts Options, log *zap.Logger) *Assembler {
	return &Assembler{opts: opts.withDefaults(), log: log}
}

// Options returns the effective configuration, defaults applied.
func (a *Assembler) Options() Options {
	return a.opts
}

// Assemble filters, orders, and greedily selects candidates. It never
// backfills with low-scoring content to hit the target: a shortfall is
// returned as-is with a coverage note naming the limiting constraint.
func (a *Assembler) Assemble(spec models.RequestSpec, pool []models.ScoredCandidate) Result {
	res := Result{PoolSize: len(pool)}

	qualifying := a.filter(spec, pool)
	res.QualifyingCount = len(qualifying)

	sortCandidates(qualifying)

	target := spec.TargetMinutes * 60
	lower := int(float64(target) * (1 - a.opts.TolerancePct))
	upper := int(float64(target) * (1 + a.opts.TolerancePct))

	capped := false
	for _, cand := range qualifying {
		if len(res.Items) >= a.opts.MaxItems {
			capped = true
			break
		}
		if res.TotalSeconds >= lower {
			break
		}
		if res.TotalSeconds+cand.DurationSeconds > upper {
			continue
		}
		res.Items = append(res.Items, models.PlaylistItem{
			Position:  len(res.Items),
			Candidate: cand,
		})
		res.TotalSeconds += cand.DurationSeconds
	}

	if res.TotalSeconds < lower {
		constraint := "qualifying candidate pool exhausted"
		if capped {
			constraint = fmt.Sprintf("item cap of %d reached", a.opts.MaxItems)
		}
		res.CoverageNotes = append(res.CoverageNotes, fmt.Sprintf(
			"requested %d minutes but only %d minutes of qualifying content assembled (%s)",
			spec.TargetMinutes, res.TotalSeconds/60, constraint))
	}
	if res.QualifyingCount == 0 && res.PoolSize > 0 {
		res.CoverageNotes = append(res.CoverageNotes,
			"all candidates were removed by exclusion, duration, or duplicate filters")
	}
	if res.PoolSize == 0 {
		res.CoverageNotes = append(res.CoverageNotes, "search returned no candidates")
	}

	a.log.Info("assembled playlist",
		zap.Int("pool", res.PoolSize),
		zap.Int("qualifying", res.QualifyingCount),
		zap.Int("selected", len(res.Items)),
		zap.Int("total_seconds", res.TotalSeconds),
		zap.Int("target_seconds", target))

	return res
}

// filter drops exclusion matches, too-short items, and duplicates (exact
// external id and near-duplicate title+channel).
func (a *Assembler) filter(spec models.RequestSpec, pool []models.ScoredCandidate) []models.ScoredCandidate {
	minSeconds := a.minDuration(spec)

	seenIDs := make(map[string]struct{}, len(pool))
	seenTitles := make(map[string]struct{}, len(pool))

	out := make([]models.ScoredCandidate, 0, len(pool))
	for _, cand := range pool {
		if cand.DurationSeconds < minSeconds {
			continue
		}
		if matchesExclusion(cand, spec.Exclusions) {
			continue
		}
		if _, dup := seenIDs[cand.ExternalID]; dup {
			continue
		}
		titleKey := normalizeTitle(cand.Title) + "|" + cand.ChannelID
		if _, dup := seenTitles[titleKey]; dup {
			continue
		}
		seenIDs[cand.ExternalID] = struct{}{}
		seenTitles[titleKey] = struct{}{}
		out = append(out, cand)
	}
	return out
}

func (a *Assembler) minDuration(spec models.RequestSpec) int {
	min := a.opts.MinItemSeconds[""]
	for _, ct := range spec.ContentTypes {
		if v, ok := a.opts.MinItemSeconds[ct]; ok && v > min {
			min = v
		}
	}
	return min
}

func matchesExclusion(cand models.ScoredCandidate, exclusions []string) bool {
	if len(exclusions) == 0 {
		return false
	}
	haystack := strings.ToLower(cand.Title + " " + cand.ChannelName)
	for _, term := range exclusions {
		if term != "" && strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}

// sortCandidates imposes a total order: score desc, views desc, published
// asc, external id asc. The final key makes assembly deterministic for any
// input permutation.
func sortCandidates(cands []models.ScoredCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if a.ViewCount != b.ViewCount {
			return a.ViewCount > b.ViewCount
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.Before(b.PublishedAt)
		}
		return a.ExternalID < b.ExternalID
	})
}

// normalizeTitle collapses case, punctuation, and whitespace so re-uploads
// with cosmetic title edits dedupe against each other.
func normalizeTitle(title string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case 'a' <= r && r <= 'z' || '0' <= r && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
