package signature

import (
	"testing"
	"time"

	"github.com/dock108/reelplan/pkg/models"
)

var testNow = time.Date(2025, 3, 15, 18, 30, 0, 0, time.UTC)

func TestNormalizeOrderAndCaseInvariance(t *testing.T) {
	a := models.RequestSpec{
		Topic:         "Premier League",
		Entities:      []string{"Arsenal", "Liverpool"},
		ContentTypes:  []string{"Highlights", "Goals"},
		Exclusions:    []string{"Press Conference"},
		TargetMinutes: 120,
	}
	b := models.RequestSpec{
		Topic:         "premier league",
		Entities:      []string{"liverpool", "ARSENAL"},
		ContentTypes:  []string{"goals", "highlights"},
		Exclusions:    []string{"press conference"},
		TargetMinutes: 120,
	}

	na, err := Normalize(a, testNow, 0)
	if err != nil {
		t.Fatalf("Normalize(a) error: %v", err)
	}
	nb, err := Normalize(b, testNow, 0)
	if err != nil {
		t.Fatalf("Normalize(b) error: %v", err)
	}

	if na.Key != nb.Key {
		t.Errorf("keys differ for semantically equal specs: %s vs %s", na.Key, nb.Key)
	}
}

func TestNormalizeDistinguishesDifferentAsks(t *testing.T) {
	base := models.RequestSpec{Topic: "nba", TargetMinutes: 60}

	tests := []struct {
		name   string
		mutate func(*models.RequestSpec)
	}{
		{"different topic", func(s *models.RequestSpec) { s.Topic = "nhl" }},
		{"different entities", func(s *models.RequestSpec) { s.Entities = []string{"lakers"} }},
		{"different target", func(s *models.RequestSpec) { s.TargetMinutes = 120 }},
		{"loop mode", func(s *models.RequestSpec) { s.LoopMode = true }},
		{"safe search", func(s *models.RequestSpec) { s.SafeSearch = true }},
		{"exclusion added", func(s *models.RequestSpec) { s.Exclusions = []string{"podcast"} }},
	}

	ref, err := Normalize(base, testNow, 0)
	if err != nil {
		t.Fatalf("Normalize(base) error: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := base
			tt.mutate(&spec)
			n, err := Normalize(spec, testNow, 0)
			if err != nil {
				t.Fatalf("Normalize error: %v", err)
			}
			if n.Key == ref.Key {
				t.Errorf("expected a different key for %s", tt.name)
			}
		})
	}
}

func TestNormalizeIgnoresIdentityNeutralFields(t *testing.T) {
	a := models.RequestSpec{Topic: "nba", TargetMinutes: 60}
	b := models.RequestSpec{
		Topic:         "nba",
		TargetMinutes: 60,
		Language:      "en-GB",
		Assumptions:   []string{"assumed current season"},
	}

	na, _ := Normalize(a, testNow, 0)
	nb, _ := Normalize(b, testNow, 0)
	if na.Key != nb.Key {
		t.Errorf("language/assumptions changed the key: %s vs %s", na.Key, nb.Key)
	}
}

func TestNormalizeRoundsTargetDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    int
	}{
		{115, 120},
		{120, 120},
		{123, 120},
		{128, 135},
		{5, 15}, // never rounds to zero
	}
	for _, tt := range tests {
		spec := models.RequestSpec{Topic: "nba", TargetMinutes: tt.minutes}
		n, err := Normalize(spec, testNow, 15)
		if err != nil {
			t.Fatalf("Normalize(%d) error: %v", tt.minutes, err)
		}
		if n.Spec.TargetMinutes != tt.want {
			t.Errorf("round(%d) = %d, want %d", tt.minutes, n.Spec.TargetMinutes, tt.want)
		}
	}
}

func TestNormalizeResolvesRelativeWindows(t *testing.T) {
	spec := models.RequestSpec{
		Topic:         "nba",
		TargetMinutes: 60,
		Window:        models.DateWindow{Relative: "last_week"},
	}

	n, err := Normalize(spec, testNow, 0)
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if n.Spec.Window.Start == nil || n.Spec.Window.End == nil {
		t.Fatal("relative window was not resolved to absolute bounds")
	}
	wantStart := time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	if !n.Spec.Window.Start.Equal(wantStart) || !n.Spec.Window.End.Equal(wantEnd) {
		t.Errorf("resolved window = %v..%v, want %v..%v",
			n.Spec.Window.Start, n.Spec.Window.End, wantStart, wantEnd)
	}

	// Same relative ask later the same day keys identically; the next day it
	// must not.
	sameDay, _ := Normalize(spec, testNow.Add(3*time.Hour), 0)
	if sameDay.Key != n.Key {
		t.Error("same-day relative requests should share a key")
	}
	nextDay, _ := Normalize(spec, testNow.AddDate(0, 0, 1), 0)
	if nextDay.Key == n.Key {
		t.Error("next-day relative requests should not share a key")
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	if _, err := Normalize(models.RequestSpec{Topic: "nba"}, testNow, 0); err == nil {
		t.Error("expected error for zero target duration")
	}

	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bad := models.RequestSpec{
		Topic:         "nba",
		TargetMinutes: 60,
		Window:        models.DateWindow{Start: &start, End: &end},
	}
	if _, err := Normalize(bad, testNow, 0); err == nil {
		t.Error("expected error for inverted window")
	}

	unknown := models.RequestSpec{
		Topic:         "nba",
		TargetMinutes: 60,
		Window:        models.DateWindow{Relative: "fortnight"},
	}
	if _, err := Normalize(unknown, testNow, 0); err == nil {
		t.Error("expected error for unknown relative period")
	}
}
