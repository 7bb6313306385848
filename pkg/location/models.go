package location

import "time"

// Provenance records which acquisition path produced a Reading.
type Provenance string

const (
	// ProvenancePrimary marks readings delivered by the continuous high-accuracy subscription.
	ProvenancePrimary Provenance = "primary"
	// ProvenanceFallback marks readings obtained from the relaxed single-shot query.
	ProvenanceFallback Provenance = "fallback"
)

// Reading represents a single position fix.
type Reading struct {
	Latitude   float64    // Signed decimal degrees
	Longitude  float64    // Signed decimal degrees
	Accuracy   float64    // Estimated horizontal error radius in meters, lower is better
	CapturedAt time.Time  // When the fix was measured
	Provenance Provenance // Set by the Acquirer
}

// Age returns how old the reading is relative to now.
func (r Reading) Age(now time.Time) time.Duration {
	if r.CapturedAt.IsZero() {
		return 0
	}
	return now.Sub(r.CapturedAt)
}
