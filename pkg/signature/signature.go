package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dock108/reelplan/pkg/models"
)

// DefaultDurationStepMinutes collapses near-duplicate target durations into
// the same signature (115 and 120 minutes are the same ask).
const DefaultDurationStepMinutes = 15

// Normalized is the canonical form of a request: the cache key plus the spec
// with all list fields sorted/lowercased and the date window resolved to
// absolute UTC bounds. Downstream components use the resolved spec so the
// whole build shares one resolution of "now".
type Normalized struct {
	Key  string
	Spec models.RequestSpec
}

// Normalize canonicalizes spec against now and derives the cache key.
// Semantically equal specs (same values, different list order, different
// casing) always produce the same key. Fields that do not change the result
// set (assumptions, language hint) are excluded from the key.
func Normalize(spec models.RequestSpec, now time.Time, stepMinutes int) (Normalized, error) {
	if spec.TargetMinutes <= 0 {
		return Normalized{}, fmt.Errorf("target duration must be positive, got %d", spec.TargetMinutes)
	}
	if stepMinutes <= 0 {
		stepMinutes = DefaultDurationStepMinutes
	}

	resolved := spec
	resolved.Topic = canonicalTerm(spec.Topic)
	resolved.Entities = canonicalList(spec.Entities)
	resolved.ContentTypes = canonicalList(spec.ContentTypes)
	resolved.Exclusions = canonicalList(spec.Exclusions)
	resolved.TargetMinutes = roundToStep(spec.TargetMinutes, stepMinutes)

	window, err := resolveWindow(spec.Window, now)
	if err != nil {
		return Normalized{}, err
	}
	resolved.Window = window

	var b strings.Builder
	writeField(&b, "topic", resolved.Topic)
	writeField(&b, "entities", strings.Join(resolved.Entities, ","))
	writeField(&b, "types", strings.Join(resolved.ContentTypes, ","))
	writeField(&b, "window", windowKey(window))
	writeField(&b, "mix", mixKey(resolved.ContentMix))
	writeField(&b, "target", fmt.Sprintf("%d", resolved.TargetMinutes))
	writeField(&b, "loop", fmt.Sprintf("%t", resolved.LoopMode))
	writeField(&b, "exclude", strings.Join(resolved.Exclusions, ","))
	writeField(&b, "safe", fmt.Sprintf("%t", resolved.SafeSearch))

	sum := sha256.Sum256([]byte(b.String()))

	return Normalized{
		Key:  hex.EncodeToString(sum[:]),
		Spec: resolved,
	}, nil
}

func canonicalTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func canonicalList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		c := canonicalTerm(s)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func roundToStep(minutes, step int) int {
	rounded := ((minutes + step/2) / step) * step
	if rounded == 0 {
		rounded = step
	}
	return rounded
}

// resolveWindow converts relative windows ("today", "last_week", ...) into
// absolute UTC day bounds so the signature is stable for the rest of the day
// but distinct across days.
func resolveWindow(w models.DateWindow, now time.Time) (models.DateWindow, error) {
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}

	if w.Relative != "" {
		today := day(now.UTC())
		var start, end time.Time
		switch canonicalTerm(w.Relative) {
		case "today":
			start, end = today, today
		case "yesterday":
			start, end = today.AddDate(0, 0, -1), today.AddDate(0, 0, -1)
		case "last_week":
			start, end = today.AddDate(0, 0, -7), today
		case "last_month":
			start, end = today.AddDate(0, -1, 0), today
		case "this_year":
			start, end = time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC), today
		default:
			return models.DateWindow{}, fmt.Errorf("unknown relative period %q", w.Relative)
		}
		return models.DateWindow{Start: &start, End: &end}, nil
	}

	if w.Date != nil {
		d := day(w.Date.UTC())
		return models.DateWindow{Date: &d}, nil
	}

	out := models.DateWindow{}
	if w.Start != nil {
		s := day(w.Start.UTC())
		out.Start = &s
	}
	if w.End != nil {
		e := day(w.End.UTC())
		out.End = &e
	}
	if out.Start != nil && out.End != nil && out.End.Before(*out.Start) {
		return models.DateWindow{}, fmt.Errorf("window end %s before start %s", out.End.Format("2006-01-02"), out.Start.Format("2006-01-02"))
	}
	return out, nil
}

func windowKey(w models.DateWindow) string {
	format := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("2006-01-02")
	}
	if w.Date != nil {
		return format(w.Date)
	}
	if w.Start == nil && w.End == nil {
		return ""
	}
	return format(w.Start) + ".." + format(w.End)
}

func mixKey(mix map[string]float64) string {
	if len(mix) == 0 {
		return ""
	}
	keys := make([]string, 0, len(mix))
	for k := range mix {
		keys = append(keys, canonicalTerm(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, mixValue(mix, k)))
	}
	return strings.Join(parts, ",")
}

// mixValue looks the bucket up case-insensitively; the map keys may not be
// canonical yet.
func mixValue(mix map[string]float64, canonical string) float64 {
	for k, v := range mix {
		if canonicalTerm(k) == canonical {
			return v
		}
	}
	return 0
}

func writeField(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte('\n')
}
