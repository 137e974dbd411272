package models

import "time"

// RequestSpec is the structured form of a planning request, produced once by
// the interpreter and immutable afterward.
type RequestSpec struct {
	Topic         string             `json:"topic" bson:"topic"`                                 // category/topic tag, e.g. "premier league"
	Entities      []string           `json:"entities" bson:"entities"`                           // teams, players
	ContentTypes  []string           `json:"content_types" bson:"content_types"`                 // sub-category tags, e.g. "highlights", "bloopers"
	Window        DateWindow         `json:"window" bson:"window"`
	ContentMix    map[string]float64 `json:"content_mix,omitempty" bson:"content_mix,omitempty"` // named buckets, sum <= 1.0
	TargetMinutes int                `json:"target_minutes" bson:"target_minutes"`
	LoopMode      bool               `json:"loop_mode" bson:"loop_mode"`
	Exclusions    []string           `json:"exclusions" bson:"exclusions"`
	SafeSearch    bool               `json:"safe_search" bson:"safe_search"`
	Language      string             `json:"language,omitempty" bson:"language,omitempty"`
	Assumptions   []string           `json:"assumptions,omitempty" bson:"assumptions,omitempty"` // pass-through from interpretation
}

// DateWindow is either a single date, an absolute range, or a relative
// period ("today", "yesterday", "last_week", "last_month", "this_year").
// Relative periods are resolved against "now" during normalization.
type DateWindow struct {
	Date     *time.Time `json:"date,omitempty" bson:"date,omitempty"`
	Start    *time.Time `json:"start,omitempty" bson:"start,omitempty"`
	End      *time.Time `json:"end,omitempty" bson:"end,omitempty"`
	Relative string     `json:"relative,omitempty" bson:"relative,omitempty"`
}

// IsZero reports whether no bound of the window is set.
func (w DateWindow) IsZero() bool {
	return w.Date == nil && w.Start == nil && w.End == nil && w.Relative == ""
}

// Reference returns the date the request is "about": the single date if set,
// otherwise the end of the range, otherwise now.
func (w DateWindow) Reference(now time.Time) time.Time {
	if w.Date != nil {
		return *w.Date
	}
	if w.End != nil {
		return *w.End
	}
	return now
}

// CandidateItem is a raw, unscored search result.
type CandidateItem struct {
	ExternalID      string    `json:"external_id" bson:"external_id"`
	Title           string    `json:"title" bson:"title"`
	Description     string    `json:"description" bson:"description"`
	ChannelID       string    `json:"channel_id" bson:"channel_id"`
	ChannelName     string    `json:"channel_name" bson:"channel_name"`
	DurationSeconds int       `json:"duration_seconds" bson:"duration_seconds"`
	PublishedAt     time.Time `json:"published_at" bson:"published_at"`
	ViewCount       int64     `json:"view_count" bson:"view_count"`
	URL             string    `json:"url" bson:"url"`
	ThumbnailURL    string    `json:"thumbnail_url" bson:"thumbnail_url"`
}

// ScoredCandidate carries the four component scores and the weighted final
// score, all in [0,1]. Recomputed on every cache-miss build.
type ScoredCandidate struct {
	CandidateItem `bson:",inline"`

	Relevance  float64 `json:"relevance" bson:"relevance"`
	Reputation float64 `json:"reputation" bson:"reputation"`
	Popularity float64 `json:"popularity" bson:"popularity"`
	Freshness  float64 `json:"freshness" bson:"freshness"`
	FinalScore float64 `json:"final_score" bson:"final_score"`
}

// PlaylistItem is a scored candidate chosen for inclusion.
type PlaylistItem struct {
	Position  int             `json:"position" bson:"position"`
	Candidate ScoredCandidate `json:"candidate" bson:"candidate"`
}

// Playlist is the persisted build output for one signature+version.
// Superseded rows are never mutated; a rebuild inserts the next version.
type Playlist struct {
	ID                   string         `json:"id" bson:"_id"`
	Signature            string         `json:"signature" bson:"signature"`
	Version              int            `json:"version" bson:"version"`
	Items                []PlaylistItem `json:"items" bson:"items"`
	TotalDurationSeconds int            `json:"total_duration_seconds" bson:"total_duration_seconds"`
	Explanation          Explanation    `json:"explanation" bson:"explanation"`
	LoopMode             bool           `json:"loop_mode" bson:"loop_mode"`
	CreatedAt            time.Time      `json:"created_at" bson:"created_at"`
	StaleAfter           *time.Time     `json:"stale_after,omitempty" bson:"stale_after,omitempty"`
}

// Stale reports whether the playlist must be rebuilt as of now.
func (p *Playlist) Stale(now time.Time) bool {
	return p.StaleAfter != nil && !now.Before(*p.StaleAfter)
}

// FiltersApplied records the filters the assembler actually enforced.
type FiltersApplied struct {
	ContentTypes []string `json:"content_types" bson:"content_types"`
	Exclusions   []string `json:"exclusions" bson:"exclusions"`
	SafeSearch   bool     `json:"safe_search" bson:"safe_search"`
}

// Explanation documents how a playlist came to be: assumptions from
// interpretation, filters applied, the ranking weights actually used,
// coverage shortfalls, and summary counters.
type Explanation struct {
	Assumptions          []string           `json:"assumptions" bson:"assumptions"`
	FiltersApplied       FiltersApplied     `json:"filters_applied" bson:"filters_applied"`
	RankingWeights       map[string]float64 `json:"ranking_weights" bson:"ranking_weights"`
	CoverageNotes        []string           `json:"coverage_notes" bson:"coverage_notes"`
	CandidatesConsidered int                `json:"candidates_considered" bson:"candidates_considered"`
	ItemsSelected        int                `json:"items_selected" bson:"items_selected"`
	TargetSeconds        int                `json:"target_seconds" bson:"target_seconds"`
	ActualSeconds        int                `json:"actual_seconds" bson:"actual_seconds"`
}

// QueryRecord is the persisted request-side row for a signature: the
// resolved request metadata and the latest build bookkeeping.
type QueryRecord struct {
	Signature     string      `json:"signature" bson:"_id"`
	Spec          RequestSpec `json:"spec" bson:"spec"`
	LatestVersion int         `json:"latest_version" bson:"latest_version"`
	CreatedAt     time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" bson:"updated_at"`
}
