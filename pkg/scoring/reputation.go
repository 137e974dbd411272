package scoring

import "strings"

// Channel reputation tiers. Verified official channels first, recognized
// media/network channels mid-tier, unknown channels at a conservative
// baseline, flagged channels near zero.
const (
	officialScore = 1.0
	mediaScore    = 0.7
	baselineScore = 0.4
	flaggedScore  = 0.05
)

// ReputationTable maps channel ids to reputation scores.
type ReputationTable struct {
	official map[string]struct{}
	media    map[string]struct{}
	flagged  map[string]struct{}
}

func NewReputationTable(official, media, flagged []string) *ReputationTable {
	toSet := func(ids []string) map[string]struct{} {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			set[id] = struct{}{}
		}
		return set
	}
	return &ReputationTable{
		official: toSet(official),
		media:    toSet(media),
		flagged:  toSet(flagged),
	}
}

// Score returns the reputation component for a channel. Flagged wins over
// every other tier.
func (t *ReputationTable) Score(channelID string) float64 {
	if t == nil {
		return baselineScore
	}
	if _, ok := t.flagged[channelID]; ok {
		return flaggedScore
	}
	if _, ok := t.official[channelID]; ok {
		return officialScore
	}
	if _, ok := t.media[channelID]; ok {
		return mediaScore
	}
	return baselineScore
}
