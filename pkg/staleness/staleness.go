package staleness

import (
	"time"

	"github.com/dock108/reelplan/pkg/models"
)

// TTL bands by distance between now and the request's reference date.
// Content about a recent event churns as highlights get uploaded; content
// about the distant past does not change.
const (
	recentCutoff  = 48 * time.Hour
	settledCutoff = 30 * 24 * time.Hour

	recentTTL  = 6 * time.Hour
	settledTTL = 72 * time.Hour
)

// StaleAfter returns the moment a playlist built now for the given window
// stops being served from cache, or nil when it never expires.
//
// The policy is monotonic: moving the reference date further into the past
// never shortens the TTL.
func StaleAfter(window models.DateWindow, now time.Time) *time.Time {
	ref := window.Reference(now)

	distance := now.Sub(ref)
	if distance < 0 {
		// Upcoming event: treat like a current one.
		distance = 0
	}

	var ttl time.Duration
	switch {
	case distance <= recentCutoff:
		ttl = recentTTL
	case distance <= settledCutoff:
		ttl = settledTTL
	default:
		return nil
	}

	at := now.Add(ttl)
	return &at
}
